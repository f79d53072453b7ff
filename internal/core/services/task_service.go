package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusrun/backend/internal/core/ports"
	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
)

type TaskServiceConfig struct {
	Repository ports.TaskRepository
	Logger     *logger.Logger
}

type TaskService struct {
	repo ports.TaskRepository
	log  *logger.Logger
}

func NewTaskService(cfg TaskServiceConfig) *TaskService {
	return &TaskService{
		repo: cfg.Repository,
		log:  cfg.Logger,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, input ports.CreateTaskInput) (*domain.Task, error) {
	if strings.TrimSpace(input.Title) == "" || input.CreatedBy == "" {
		return nil, ErrTaskInvalidInput
	}
	if input.RewardCents < 0 {
		return nil, ErrTaskInvalidInput
	}

	now := time.Now()
	task := &domain.Task{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(input.Title),
		Details:     input.Details,
		RewardCents: input.RewardCents,
		Status:      domain.TaskStatusOpen,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		s.log.Errorw("task_create_failed", "created_by", input.CreatedBy, "error", err)
		return nil, err
	}
	s.log.Infow("task_created", "id", task.ID, "created_by", task.CreatedBy)
	return task, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *TaskService) GetTasks(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrTaskInvalidInput
	}
	return s.repo.List(ctx, filter)
}
