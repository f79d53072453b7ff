package dto

import (
	"strings"
	"time"

	"github.com/campusrun/backend/internal/domain"
)

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required"`
	Details     string `json:"details,omitempty"`
	RewardCents int64  `json:"reward_cents"`
}

func (r *CreateTaskRequest) Validate() []string {
	var errors []string

	if strings.TrimSpace(r.Title) == "" {
		errors = append(errors, "title is required")
	} else if len(r.Title) > 255 {
		errors = append(errors, "title must be at most 255 characters")
	}

	if r.RewardCents < 0 {
		errors = append(errors, "reward_cents must not be negative")
	}

	return errors
}

type TransitionRequest struct {
	RequestedStatus string `json:"requested_status" validate:"required"`
}

func (r *TransitionRequest) Validate() []string {
	var errors []string

	if r.RequestedStatus == "" {
		errors = append(errors, "requested_status is required")
	} else if !domain.TaskStatus(r.RequestedStatus).Valid() {
		errors = append(errors, "requested_status is not a known status")
	}

	return errors
}

func (r *TransitionRequest) Status() domain.TaskStatus {
	return domain.TaskStatus(r.RequestedStatus)
}

type TaskResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Details     string            `json:"details,omitempty"`
	RewardCents int64             `json:"reward_cents"`
	Status      domain.TaskStatus `json:"status"`
	CreatedBy   string            `json:"created_by"`
	AcceptedBy  *string           `json:"accepted_by,omitempty"`
	Version     uint64            `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func TaskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Details:     task.Details,
		RewardCents: task.RewardCents,
		Status:      task.Status,
		CreatedBy:   task.CreatedBy,
		AcceptedBy:  task.AcceptedBy,
		Version:     task.Version,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func TasksToResponse(tasks []domain.Task) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i := range tasks {
		responses[i] = TaskToResponse(&tasks[i])
	}
	return responses
}

func EventsToChanges(events []domain.TaskStatusEvent) []domain.ChangeEvent {
	changes := make([]domain.ChangeEvent, len(events))
	for i := range events {
		changes[i] = events[i].Change()
	}
	return changes
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}
