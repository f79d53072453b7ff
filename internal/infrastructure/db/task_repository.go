package db

import (
	"context"
	"errors"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type taskRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepository(db *gorm.DB, log *logger.Logger) ports.TaskRepository {
	return &taskRepository{db: db, log: log}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		r.log.Errorw("task_repo_create_failed", "id", task.ID, "error", err)
		return err
	}
	r.log.Infow("task_repo_create_ok", "id", task.ID, "created_by", task.CreatedBy)
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		r.log.Errorw("task_repo_get_failed", "id", id, "error", err)
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) List(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	query := r.db.WithContext(ctx).Order("created_at desc")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Participant != "" {
		query = query.Where("(created_by = ? OR accepted_by = ?)", filter.Participant, filter.Participant)
	}

	var tasks []domain.Task
	if err := query.Find(&tasks).Error; err != nil {
		r.log.Errorw("task_repo_list_failed", "error", err)
		return nil, err
	}
	r.log.Infow("task_repo_list_ok", "count", len(tasks))
	return tasks, nil
}

// AcceptOpen is the arbitration point for contested acceptance: one
// conditional UPDATE keyed on status='open'. Exactly one concurrent caller
// sees the row; everyone else gets ErrConditionFailed. The timeline event is
// appended inside the same transaction, so a committed acceptance is always
// visible in the timeline.
func (r *taskRepository) AcceptOpen(ctx context.Context, taskID, helperID string) (*domain.Task, *domain.TaskStatusEvent, error) {
	var task domain.Task
	var event domain.TaskStatusEvent

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Task{}).
			Where("id = ? AND status = ? AND created_by <> ?", taskID, domain.TaskStatusOpen, helperID).
			Updates(map[string]interface{}{
				"status":      domain.TaskStatusAccepted,
				"accepted_by": helperID,
				"version":     gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ports.ErrConditionFailed
		}

		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			return err
		}

		seq, err := nextSequence(tx, taskID)
		if err != nil {
			return err
		}
		event = domain.TaskStatusEvent{
			TaskID:     taskID,
			Sequence:   seq,
			FromStatus: domain.TaskStatusOpen,
			ToStatus:   domain.TaskStatusAccepted,
			ActorID:    helperID,
			ActorRole:  domain.ActorRoleHelper,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		if !errors.Is(err, ports.ErrConditionFailed) {
			r.log.Errorw("task_repo_accept_failed", "id", taskID, "helper", helperID, "error", err)
		}
		return nil, nil, err
	}

	r.log.Infow("task_repo_accept_ok", "id", taskID, "helper", helperID, "sequence", event.Sequence)
	return &task, &event, nil
}

// ApplyTransition moves the task to the target status keyed on the version
// the caller read, bumping the version and appending the event in one
// transaction. A version miss returns ErrConditionFailed for the service's
// bounded retry loop.
func (r *taskRepository) ApplyTransition(ctx context.Context, current *domain.Task, to domain.TaskStatus, actorID string, role domain.ActorRole, clearHelper bool) (*domain.Task, *domain.TaskStatusEvent, error) {
	var task domain.Task
	var event domain.TaskStatusEvent

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":  to,
			"version": gorm.Expr("version + 1"),
		}
		if clearHelper {
			updates["accepted_by"] = nil
		}

		res := tx.Model(&domain.Task{}).
			Where("id = ? AND version = ?", current.ID, current.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ports.ErrConditionFailed
		}

		if err := tx.First(&task, "id = ?", current.ID).Error; err != nil {
			return err
		}

		seq, err := nextSequence(tx, current.ID)
		if err != nil {
			return err
		}
		event = domain.TaskStatusEvent{
			TaskID:     current.ID,
			Sequence:   seq,
			FromStatus: current.Status,
			ToStatus:   to,
			ActorID:    actorID,
			ActorRole:  role,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		if !errors.Is(err, ports.ErrConditionFailed) {
			r.log.Errorw("task_repo_transition_failed", "id", current.ID, "to", to, "error", err)
		}
		return nil, nil, err
	}

	r.log.Infow("task_repo_transition_ok", "id", current.ID, "from", current.Status, "to", to, "sequence", event.Sequence)
	return &task, &event, nil
}

// nextSequence computes the next per-task sequence inside the caller's
// transaction. The preceding conditional UPDATE holds the task row lock, so
// concurrent committers serialize and sequences stay gapless; the unique
// (task_id, sequence) index backstops.
func nextSequence(tx *gorm.DB, taskID string) (uint64, error) {
	var seq uint64
	err := tx.Model(&domain.TaskStatusEvent{}).
		Where("task_id = ?", taskID).
		Select("COALESCE(MAX(sequence), 0) + 1").
		Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
