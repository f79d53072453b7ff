package services

import (
	"context"
	"errors"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/logger"
)

type AcceptanceServiceConfig struct {
	Repository ports.TaskRepository
	Publisher  ports.Publisher
	Logger     *logger.Logger
}

// AcceptanceService performs the first-bidder-wins open -> accepted change.
// The repository's conditional write is the arbitration point; there is no
// lock, queue, or retry. Losing callers fail fast with NoLongerAvailable.
type AcceptanceService struct {
	repo      ports.TaskRepository
	publisher ports.Publisher
	log       *logger.Logger
}

func NewAcceptanceService(cfg AcceptanceServiceConfig) *AcceptanceService {
	return &AcceptanceService{
		repo:      cfg.Repository,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
	}
}

func (s *AcceptanceService) Accept(ctx context.Context, taskID, helperID string) (*domain.Task, error) {
	task, event, err := s.repo.AcceptOpen(ctx, taskID, helperID)
	if err == nil {
		s.log.Infow("task_accepted", "id", task.ID, "helper", helperID, "sequence", event.Sequence)
		// Publish only after the durable commit, never before.
		s.publisher.Publish(event.Change(), task.CreatedBy, helperID)
		return task, nil
	}

	if !errors.Is(err, ports.ErrConditionFailed) {
		s.log.Errorw("task_accept_failed", "id", taskID, "helper", helperID, "error", err)
		return nil, err
	}

	// The conditional write matched nothing. Read the row to tell the
	// caller which precondition failed.
	current, gerr := s.repo.GetByID(ctx, taskID)
	if gerr != nil {
		if errors.Is(gerr, ports.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, gerr
	}
	if current.CreatedBy == helperID {
		s.log.Warnw("task_accept_own_task", "id", taskID, "helper", helperID)
		return nil, ErrTaskNotAuthorized
	}
	if current.AcceptedBy != nil && *current.AcceptedBy == helperID {
		// Unknown-outcome retry: the earlier attempt already won.
		s.log.Infow("task_accept_idempotent_retry", "id", taskID, "helper", helperID)
		return current, nil
	}
	s.log.Infow("task_accept_lost_race", "id", taskID, "helper", helperID, "status", current.Status)
	return nil, ErrTaskNoLongerAvailable
}
