package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prayerwall/api/internal/domain"
)

// StatusUpdate carries the fields a worker writes back when it transitions a
// task. Attempts is the absolute attempt count after the update; LastError
// and ResultURL replace the stored values outright, so a successful attempt
// clears a previous failure message by leaving LastError empty.
type StatusUpdate struct {
	Status    domain.TaskStatus
	Attempts  int
	NotBefore time.Time
	LastError string
	ResultURL string
}

// Stats holds the per-status task counts aggregated over the store.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// TaskStore is the single source of truth for avatar ingestion tasks.
// Implementations must be safe for concurrent use by request handlers
// (enqueue, queries) and workers (claim, status updates).
//
// All returned tasks are defensive copies; callers never hold a reference
// into the store's own state and must write changes back through
// UpdateStatus.
type TaskStore interface {
	// Enqueue creates a new pending task for the user and indexes it by id
	// and by user (most-recent-first). It never blocks on the pipeline.
	Enqueue(ctx context.Context, userID uuid.UUID, sourceURL string, maxAttempts int) (*domain.Task, error)

	// GetByID returns the task with the given id, or ErrTaskNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetLatestForUser returns the most recently created task for the user,
	// or ErrTaskNotFound when the user has none.
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (*domain.Task, error)

	// ClaimPendingBatch atomically claims up to limit pending tasks whose
	// NotBefore gate has elapsed, marking each one processing before it is
	// returned. The claim-and-mark is a single indivisible step: no two
	// callers can ever claim the same task.
	ClaimPendingBatch(ctx context.Context, limit int, now time.Time) ([]*domain.Task, error)

	// UpdateStatus applies an atomic status transition to the task.
	// Returns ErrTaskNotFound for unknown or evicted tasks and
	// ErrInvalidTransition when the move violates the state machine.
	UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) (*domain.Task, error)

	// Stats aggregates per-status counts over the store's current contents.
	// Safe to call concurrently with mutation.
	Stats(ctx context.Context) (Stats, error)

	// EvictExpired removes terminal tasks older than the retention threshold
	// and, when the store exceeds its size cap, the oldest terminal tasks
	// beyond it. Pending and processing tasks are never evicted.
	// Returns the number of tasks removed.
	EvictExpired(ctx context.Context, now time.Time) (int, error)
}

// ProfileStore updates user profile records in the relational store.
type ProfileStore interface {
	// SetAvatarURL upserts the avatar URL onto the user's profile record.
	SetAvatarURL(ctx context.Context, userID uuid.UUID, avatarURL string) error
}
