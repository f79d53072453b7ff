package db

import (
	"github.com/campusrun/backend/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Task{},
		&domain.TaskStatusEvent{},
	)
	if err != nil {
		return err
	}

	return createCustomIndexes(db)
}

func createCustomIndexes(db *gorm.DB) error {
	// Per-task sequences must be gapless and unique; this index backstops
	// the in-transaction MAX(sequence)+1 computation.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_task_status_events_task_seq
		ON task_status_events (task_id, sequence)
	`).Error; err != nil {
		return err
	}

	// Open-task browsing is the hot list query.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_tasks_status_created
		ON tasks (status, created_at DESC)
	`).Error; err != nil {
		return err
	}

	return nil
}
