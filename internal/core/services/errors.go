package services

import "errors"

// Task errors
var (
	ErrTaskNotFound     = errors.New("task: not found")
	ErrTaskInvalidInput = errors.New("task: invalid input")
)

// Acceptance errors
var (
	// ErrTaskNoLongerAvailable means the caller lost the acceptance race.
	// Expected under contention; the client should refresh its task list.
	ErrTaskNoLongerAvailable = errors.New("accept: task no longer available")
	ErrTaskNotAuthorized     = errors.New("lifecycle: actor not authorized for this transition")
)

// Transition errors
var (
	// ErrTaskIllegalTransition is always wrapped with the current and
	// requested status so the caller can see the rejected edge.
	ErrTaskIllegalTransition = errors.New("transition: illegal")
	// ErrTaskConflict means the bounded optimistic retry was exhausted
	// under contention. Safe for the caller to retry once.
	ErrTaskConflict = errors.New("transition: conflict, try again")
)
