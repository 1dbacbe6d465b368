package domain

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of an avatar ingestion task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID         = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID     = errors.New("task user ID cannot be empty")
	ErrInvalidSourceURL    = errors.New("task source URL must be a valid http(s) URL")
	ErrInvalidTaskStatus   = errors.New("invalid task status")
	ErrInvalidMaxAttempts  = errors.New("task max attempts must be positive")
	ErrAttemptsExceeded    = errors.New("task attempts cannot exceed max attempts")
	ErrCompletedWithoutURL = errors.New("completed task must have a result URL and no error")
	ErrFailedWithAttempts  = errors.New("failed task must have exhausted its attempts")
)

// Task represents one avatar ingestion request and its processing state.
// Identity fields (ID, UserID, SourceURL, MaxAttempts, CreatedAt) are set at
// creation and never change; the remaining fields form the mutable status
// envelope owned by the queue store.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	SourceURL   string     `json:"source_url"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	// NotBefore gates when a pending task becomes claimable again after a
	// retryable failure. The zero value means immediately claimable.
	NotBefore time.Time `json:"not_before,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	ResultURL string    `json:"result_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTask creates a new Task for the given user and source URL.
// It generates a new UUID for the task ID, sets the status to pending with
// zero attempts, and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewTask(userID uuid.UUID, sourceURL string, maxAttempts int) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		UserID:      userID,
		SourceURL:   sourceURL,
		Status:      TaskStatusPending,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the Task against its invariants.
// Returns an error if any field or cross-field constraint fails.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if !isValidSourceURL(t.SourceURL) {
		return ErrInvalidSourceURL
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	if t.Attempts > t.MaxAttempts {
		return ErrAttemptsExceeded
	}

	if t.Status == TaskStatusCompleted && (t.ResultURL == "" || t.LastError != "") {
		return ErrCompletedWithoutURL
	}

	if t.Status == TaskStatusFailed && t.Attempts != t.MaxAttempts {
		return ErrFailedWithAttempts
	}

	return nil
}

// IsTerminal reports whether the task has reached a state that admits no
// further transitions.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// CanTransitionTo reports whether moving from the task's current status to
// the given status is a legal step in the lifecycle state machine.
func (t *Task) CanTransitionTo(next TaskStatus) bool {
	switch t.Status {
	case TaskStatusPending:
		// The only way out of pending is a worker claim. Fatal validation
		// failures surface after the claim, as processing -> failed.
		return next == TaskStatusProcessing
	case TaskStatusProcessing:
		return next == TaskStatusPending ||
			next == TaskStatusCompleted ||
			next == TaskStatusFailed
	default:
		// Terminal states admit no transitions.
		return false
	}
}

// Host returns the lowercased hostname of the task's source URL,
// or an empty string if the URL does not parse.
func (t *Task) Host() string {
	u, err := url.Parse(t.SourceURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// isValidSourceURL checks that the source URL parses and uses http or https.
func isValidSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
