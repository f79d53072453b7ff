package ports

import (
	"context"

	"github.com/campusrun/backend/internal/domain"
)

type CreateTaskInput struct {
	Title       string
	Details     string
	RewardCents int64
	CreatedBy   string
}

// TaskService covers the marketplace surface: posting and browsing tasks.
type TaskService interface {
	CreateTask(ctx context.Context, input CreateTaskInput) (*domain.Task, error)
	GetTaskByID(ctx context.Context, id string) (*domain.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
}

// AcceptanceService arbitrates contested acceptance of an open task.
type AcceptanceService interface {
	Accept(ctx context.Context, taskID, helperID string) (*domain.Task, error)
}

// TransitionService validates and applies every non-acceptance transition.
type TransitionService interface {
	Transition(ctx context.Context, taskID, actorID string, requested domain.TaskStatus) (*domain.Task, error)
}

// Publisher fans a committed event out to subscribers. Participants are the
// per-user subscription keys (requester, helper). Publish must never fail the
// write path; delivery is at-least-once, best-effort ordered.
type Publisher interface {
	Publish(event domain.ChangeEvent, participants ...string)
}
