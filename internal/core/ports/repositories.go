package ports

import (
	"context"
	"errors"

	"github.com/campusrun/backend/internal/domain"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrConditionFailed is returned when a conditional write matched no
	// rows. The caller decides whether that means a lost race, a stale
	// version, or a missing record.
	ErrConditionFailed = errors.New("repository: conditional update matched no rows")
)

// TaskFilter narrows List results. Zero values match everything.
type TaskFilter struct {
	Status      domain.TaskStatus
	Participant string
}

// TaskRepository owns the task row and its timeline. AcceptOpen and
// ApplyTransition are the only write paths for Task.Status; both run the
// conditional update and the timeline append in one transaction, so the
// returned event is durable by the time the call returns.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]domain.Task, error)

	// AcceptOpen performs the atomic first-bidder-wins write:
	// status open -> accepted, accepted_by set, keyed on status='open'.
	AcceptOpen(ctx context.Context, taskID, helperID string) (*domain.Task, *domain.TaskStatusEvent, error)

	// ApplyTransition moves the task to the target status keyed on the
	// version read into task. clearHelper resets accepted_by for the
	// helper release edge.
	ApplyTransition(ctx context.Context, task *domain.Task, to domain.TaskStatus, actorID string, role domain.ActorRole, clearHelper bool) (*domain.Task, *domain.TaskStatusEvent, error)
}

// TimelineRepository reads the append-only status history. Appending happens
// only inside the TaskRepository write paths, never standalone.
type TimelineRepository interface {
	// ReadFrom returns all events with sequence > sinceSequence, ordered
	// by sequence ascending.
	ReadFrom(ctx context.Context, taskID string, sinceSequence uint64) ([]domain.TaskStatusEvent, error)
	LatestSequence(ctx context.Context, taskID string) (uint64, error)
}
