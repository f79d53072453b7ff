package domain

import "time"

// ==================== ENUMS ====================

type TaskStatus string

const (
	TaskStatusOpen      TaskStatus = "open"
	TaskStatusAccepted  TaskStatus = "accepted"
	TaskStatusStarted   TaskStatus = "started"
	TaskStatusOnTheWay  TaskStatus = "on_the_way"
	TaskStatusDelivered TaskStatus = "delivered"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusAccepted, TaskStatusStarted,
		TaskStatusOnTheWay, TaskStatusDelivered, TaskStatusCompleted, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are accepted from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCancelled
}

type ActorRole string

const (
	ActorRoleRequester ActorRole = "requester"
	ActorRoleHelper    ActorRole = "helper"
)

// ==================== ENTITIES ====================

// Task is the single shared mutable record of the lifecycle. Status moves
// only through conditional writes keyed on the current status or version.
type Task struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title       string     `gorm:"size:255;not null" json:"title"`
	Details     string     `gorm:"type:text" json:"details"`
	RewardCents int64      `gorm:"not null;default:0" json:"reward_cents"`
	Status      TaskStatus `gorm:"size:20;not null;default:'open';index" json:"status"`
	CreatedBy   string     `gorm:"size:36;not null;index" json:"created_by"`
	AcceptedBy  *string    `gorm:"size:36;index" json:"accepted_by,omitempty"`

	// Version is bumped on every committed transition and is the optimistic
	// concurrency token for the transition service.
	Version uint64 `gorm:"not null;default:0" json:"version"`
}

// RoleOf derives the actor's role from the task record itself, never from a
// caller-supplied claim. The second return is false for non-participants.
func (t *Task) RoleOf(actorID string) (ActorRole, bool) {
	if actorID == t.CreatedBy {
		return ActorRoleRequester, true
	}
	if t.AcceptedBy != nil && *t.AcceptedBy == actorID {
		return ActorRoleHelper, true
	}
	return "", false
}

// TaskStatusEvent is one timeline entry. Rows are append-only and are written
// exclusively inside the same transaction that moves Task.Status, so the
// timeline never lags the authoritative status.
type TaskStatusEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	TaskID     string     `gorm:"size:36;not null;index" json:"task_id"`
	Sequence   uint64     `gorm:"not null" json:"sequence"`
	FromStatus TaskStatus `gorm:"size:20;not null" json:"from_status"`
	ToStatus   TaskStatus `gorm:"size:20;not null" json:"to_status"`
	ActorID    string     `gorm:"size:36;not null" json:"actor_id"`
	ActorRole  ActorRole  `gorm:"size:20;not null" json:"actor_role"`
}

// ChangeEvent is the wire payload delivered to subscribers. Delivery is
// at-least-once and may reorder; sequence is the client's only ordering key.
type ChangeEvent struct {
	TaskID     string     `json:"task_id"`
	FromStatus TaskStatus `json:"from_status"`
	ToStatus   TaskStatus `json:"to_status"`
	ActorID    string     `json:"actor_id"`
	Sequence   uint64     `json:"sequence"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (e *TaskStatusEvent) Change() ChangeEvent {
	return ChangeEvent{
		TaskID:     e.TaskID,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorID:    e.ActorID,
		Sequence:   e.Sequence,
		CreatedAt:  e.CreatedAt,
	}
}
