package services

import (
	"context"
	"sync"
	"time"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// fakeTaskRepo reproduces the storage contract in memory: conditional writes
// under one mutex, timeline append in the same critical section.
type fakeTaskRepo struct {
	mu     sync.Mutex
	tasks  map[string]*domain.Task
	events map[string][]domain.TaskStatusEvent

	// forceConflicts makes the next N ApplyTransition calls fail with
	// ErrConditionFailed, to exercise the bounded retry loop.
	forceConflicts int
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		tasks:  make(map[string]*domain.Task),
		events: make(map[string][]domain.TaskStatusEvent),
	}
}

func (f *fakeTaskRepo) Create(_ context.Context, task *domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *task
	f.tasks[task.ID] = &copied
	return nil
}

func (f *fakeTaskRepo) GetByID(_ context.Context, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copied := *task
	return &copied, nil
}

func (f *fakeTaskRepo) List(_ context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Task
	for _, task := range f.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Participant != "" && task.CreatedBy != filter.Participant &&
			(task.AcceptedBy == nil || *task.AcceptedBy != filter.Participant) {
			continue
		}
		out = append(out, *task)
	}
	return out, nil
}

func (f *fakeTaskRepo) AcceptOpen(_ context.Context, taskID, helperID string) (*domain.Task, *domain.TaskStatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.Status != domain.TaskStatusOpen || task.CreatedBy == helperID {
		return nil, nil, ports.ErrConditionFailed
	}
	helper := helperID
	task.Status = domain.TaskStatusAccepted
	task.AcceptedBy = &helper
	task.Version++
	task.UpdatedAt = time.Now()
	event := f.appendLocked(taskID, domain.TaskStatusOpen, domain.TaskStatusAccepted, helperID, domain.ActorRoleHelper)
	copied := *task
	return &copied, event, nil
}

func (f *fakeTaskRepo) ApplyTransition(_ context.Context, current *domain.Task, to domain.TaskStatus, actorID string, role domain.ActorRole, clearHelper bool) (*domain.Task, *domain.TaskStatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceConflicts > 0 {
		f.forceConflicts--
		return nil, nil, ports.ErrConditionFailed
	}
	task, ok := f.tasks[current.ID]
	if !ok || task.Version != current.Version {
		return nil, nil, ports.ErrConditionFailed
	}
	from := task.Status
	task.Status = to
	task.Version++
	task.UpdatedAt = time.Now()
	if clearHelper {
		task.AcceptedBy = nil
	}
	event := f.appendLocked(current.ID, from, to, actorID, role)
	copied := *task
	return &copied, event, nil
}

func (f *fakeTaskRepo) appendLocked(taskID string, from, to domain.TaskStatus, actorID string, role domain.ActorRole) *domain.TaskStatusEvent {
	event := domain.TaskStatusEvent{
		TaskID:     taskID,
		Sequence:   uint64(len(f.events[taskID])) + 1,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		ActorRole:  role,
		CreatedAt:  time.Now(),
	}
	f.events[taskID] = append(f.events[taskID], event)
	return &event
}

// ReadFrom lets the fake double as a timeline repository.
func (f *fakeTaskRepo) ReadFrom(_ context.Context, taskID string, since uint64) ([]domain.TaskStatusEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TaskStatusEvent
	for _, e := range f.events[taskID] {
		if e.Sequence > since {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) LatestSequence(_ context.Context, taskID string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.events[taskID])), nil
}

func (f *fakeTaskRepo) seedTask(id, createdBy string) *domain.Task {
	task := &domain.Task{
		ID:        id,
		Title:     "coffee run",
		Status:    domain.TaskStatusOpen,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.Create(context.Background(), task)
	return task
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu           sync.Mutex
	events       []domain.ChangeEvent
	participants [][]string
}

func (p *recordingPublisher) Publish(event domain.ChangeEvent, participants ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.participants = append(p.participants, participants)
}

func (p *recordingPublisher) published() []domain.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ChangeEvent, len(p.events))
	copy(out, p.events)
	return out
}

func (p *recordingPublisher) lastParticipants() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.participants) == 0 {
		return nil
	}
	return p.participants[len(p.participants)-1]
}
