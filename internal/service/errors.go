package service

import "errors"

// Common service errors
var (
	// ErrTaskNotOwned is returned when a caller queries a task that belongs
	// to a different user.
	ErrTaskNotOwned = errors.New("task does not belong to the caller")
)
