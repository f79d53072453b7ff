package db

import (
	"context"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

type timelineRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTimelineRepository(db *gorm.DB, log *logger.Logger) ports.TimelineRepository {
	return &timelineRepository{db: db, log: log}
}

func (r *timelineRepository) ReadFrom(ctx context.Context, taskID string, sinceSequence uint64) ([]domain.TaskStatusEvent, error) {
	var events []domain.TaskStatusEvent
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND sequence > ?", taskID, sinceSequence).
		Order("sequence asc").
		Find(&events).Error
	if err != nil {
		r.log.Errorw("timeline_repo_read_failed", "task_id", taskID, "since", sinceSequence, "error", err)
		return nil, err
	}
	r.log.Infow("timeline_repo_read_ok", "task_id", taskID, "since", sinceSequence, "count", len(events))
	return events, nil
}

func (r *timelineRepository) LatestSequence(ctx context.Context, taskID string) (uint64, error) {
	var seq uint64
	err := r.db.WithContext(ctx).
		Model(&domain.TaskStatusEvent{}).
		Where("task_id = ?", taskID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&seq).Error
	if err != nil {
		r.log.Errorw("timeline_repo_latest_failed", "task_id", taskID, "error", err)
		return 0, err
	}
	return seq, nil
}
