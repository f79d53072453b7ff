package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/logger"
)

const defaultMaxRetries = 3

type TransitionServiceConfig struct {
	Repository ports.TaskRepository
	Table      *domain.TransitionTable
	Publisher  ports.Publisher
	Logger     *logger.Logger
	MaxRetries int
}

// TransitionService validates and applies every transition other than
// acceptance. Writes are keyed on the task version; on a version miss the
// read-validate-write cycle retries up to MaxRetries before surfacing
// Conflict, which bounds retry storms under pathological contention.
type TransitionService struct {
	repo       ports.TaskRepository
	table      *domain.TransitionTable
	publisher  ports.Publisher
	log        *logger.Logger
	maxRetries int
}

func NewTransitionService(cfg TransitionServiceConfig) *TransitionService {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &TransitionService{
		repo:       cfg.Repository,
		table:      cfg.Table,
		publisher:  cfg.Publisher,
		log:        cfg.Logger,
		maxRetries: retries,
	}
}

func (s *TransitionService) Transition(ctx context.Context, taskID, actorID string, requested domain.TaskStatus) (*domain.Task, error) {
	if !requested.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrTaskInvalidInput, string(requested))
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		task, err := s.repo.GetByID(ctx, taskID)
		if err != nil {
			if errors.Is(err, ports.ErrNotFound) {
				return nil, ErrTaskNotFound
			}
			return nil, err
		}

		// Role is re-derived from the task record, never taken from the
		// caller. Non-participants are rejected before the table is
		// consulted so they cannot probe the graph.
		role, ok := task.RoleOf(actorID)
		if !ok {
			s.log.Warnw("task_transition_unauthorized", "id", taskID, "actor", actorID)
			return nil, ErrTaskNotAuthorized
		}

		// A helper "cancel" is a release: the task goes back to the open
		// pool instead of dying. The recorded edge is -> open.
		effective := requested
		if role == domain.ActorRoleHelper && requested == domain.TaskStatusCancelled && s.table.AllowsHelperCancel() {
			effective = domain.TaskStatusOpen
		}
		release := effective == domain.TaskStatusOpen

		if !s.table.IsLegal(task.Status, effective, role) {
			// Wrong role for an existing edge reads as NotAuthorized,
			// a missing edge as IllegalTransition naming both statuses.
			other := domain.ActorRoleRequester
			if role == domain.ActorRoleRequester {
				other = domain.ActorRoleHelper
			}
			if s.table.IsLegal(task.Status, effective, other) {
				s.log.Warnw("task_transition_wrong_role", "id", taskID, "actor", actorID, "role", role, "requested", requested)
				return nil, ErrTaskNotAuthorized
			}
			return nil, fmt.Errorf("%w: %s -> %s", ErrTaskIllegalTransition, task.Status, requested)
		}

		updated, event, err := s.repo.ApplyTransition(ctx, task, effective, actorID, role, release)
		if err != nil {
			if errors.Is(err, ports.ErrConditionFailed) {
				// A concurrent writer advanced the version; re-read and
				// re-validate against the new state.
				s.log.Infow("task_transition_version_miss", "id", taskID, "attempt", attempt+1)
				continue
			}
			s.log.Errorw("task_transition_failed", "id", taskID, "error", err)
			return nil, err
		}

		s.log.Infow("task_transitioned",
			"id", updated.ID,
			"from", event.FromStatus,
			"to", event.ToStatus,
			"actor", actorID,
			"role", role,
			"sequence", event.Sequence,
		)
		s.publisher.Publish(event.Change(), s.participants(task, updated, actorID)...)
		return updated, nil
	}

	s.log.Warnw("task_transition_contended", "id", taskID, "actor", actorID, "requested", requested)
	return nil, ErrTaskConflict
}

// participants collects the per-user subscription keys for the event: the
// requester plus whichever helper was bound before or after the write (a
// release clears accepted_by on the updated row).
func (s *TransitionService) participants(before, after *domain.Task, actorID string) []string {
	seen := map[string]struct{}{after.CreatedBy: {}, actorID: {}}
	ids := []string{after.CreatedBy}
	if actorID != after.CreatedBy {
		ids = append(ids, actorID)
	}
	for _, t := range []*domain.Task{before, after} {
		if t.AcceptedBy == nil {
			continue
		}
		if _, ok := seen[*t.AcceptedBy]; !ok {
			seen[*t.AcceptedBy] = struct{}{}
			ids = append(ids, *t.AcceptedBy)
		}
	}
	return ids
}
