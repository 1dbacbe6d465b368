// Package memory provides the in-memory TaskStore implementation backing the
// avatar ingestion queue. Queue state is process-local and not persisted;
// a restart drops all tasks.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prayerwall/api/internal/domain"
	"github.com/prayerwall/api/internal/store"
)

// Config holds retention settings for the in-memory store.
type Config struct {
	// RetentionTTL is how long a terminal task stays queryable after its
	// last update before the eviction sweep removes it.
	RetentionTTL time.Duration

	// MaxTasks caps the number of retained tasks. When exceeded, the oldest
	// terminal tasks are evicted first. Pending and processing tasks are
	// never evicted, so the store can temporarily exceed the cap while work
	// is in flight.
	MaxTasks int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		RetentionTTL: time.Hour,
		MaxTasks:     1000,
	}
}

// TaskStore is a mutex-guarded in-memory implementation of store.TaskStore.
// A single lock covers both indexes so enqueue, claim and update are each
// one indivisible step.
type TaskStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*domain.Task
	byUser map[uuid.UUID][]uuid.UUID // most-recent-first task ids per user
	config Config
	logger *slog.Logger
}

// Ensure TaskStore implements store.TaskStore.
var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates an empty in-memory task store.
func NewTaskStore(config Config, logger *slog.Logger) *TaskStore {
	if config.RetentionTTL <= 0 {
		config.RetentionTTL = DefaultConfig().RetentionTTL
	}
	if config.MaxTasks <= 0 {
		config.MaxTasks = DefaultConfig().MaxTasks
	}

	return &TaskStore{
		byID:   make(map[uuid.UUID]*domain.Task),
		byUser: make(map[uuid.UUID][]uuid.UUID),
		config: config,
		logger: logger.With("component", "task_store"),
	}
}

// Enqueue implements store.TaskStore.Enqueue.
func (s *TaskStore) Enqueue(
	ctx context.Context,
	userID uuid.UUID,
	sourceURL string,
	maxAttempts int,
) (*domain.Task, error) {
	task, err := domain.NewTask(userID, sourceURL, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[task.ID] = task
	s.byUser[userID] = append([]uuid.UUID{task.ID}, s.byUser[userID]...)

	s.logger.Debug("task enqueued",
		"task_id", task.ID,
		"user_id", userID,
		"source_host", task.Host(),
		"store_size", len(s.byID))

	return copyTask(task), nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.byID[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return copyTask(task), nil
}

// GetLatestForUser implements store.TaskStore.GetLatestForUser.
// The per-user index is most-recent-first, so the latest task is the first
// id that is still retained.
func (s *TaskStore) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byUser[userID] {
		if task, ok := s.byID[id]; ok {
			return copyTask(task), nil
		}
	}
	return nil, store.ErrTaskNotFound
}

// ClaimPendingBatch implements store.TaskStore.ClaimPendingBatch.
// Claim-and-mark happens under the store lock: a task returned here has
// already been transitioned to processing, so no other caller can see it
// as claimable.
func (s *TaskStore) ClaimPendingBatch(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var claimable []*domain.Task
	for _, task := range s.byID {
		if task.Status == domain.TaskStatusPending && !task.NotBefore.After(now) {
			claimable = append(claimable, task)
		}
	}

	// Oldest first so no pending task starves behind newer arrivals.
	sort.Slice(claimable, func(i, j int) bool {
		return claimable[i].CreatedAt.Before(claimable[j].CreatedAt)
	})
	if len(claimable) > limit {
		claimable = claimable[:limit]
	}

	claimed := make([]*domain.Task, 0, len(claimable))
	for _, task := range claimable {
		task.Status = domain.TaskStatusProcessing
		task.UpdatedAt = now
		claimed = append(claimed, copyTask(task))
	}

	if len(claimed) > 0 {
		s.logger.Debug("claimed pending tasks", "count", len(claimed))
	}

	return claimed, nil
}

// UpdateStatus implements store.TaskStore.UpdateStatus.
func (s *TaskStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	update store.StatusUpdate,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.byID[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}

	if !task.CanTransitionTo(update.Status) {
		return nil, fmt.Errorf("%w: %s -> %s",
			store.ErrInvalidTransition, task.Status, update.Status)
	}

	// Apply to a scratch copy first so a validation failure leaves the
	// stored task untouched.
	next := copyTask(task)
	next.Status = update.Status
	next.Attempts = update.Attempts
	next.NotBefore = update.NotBefore
	next.LastError = update.LastError
	next.ResultURL = update.ResultURL
	next.UpdatedAt = time.Now().UTC()

	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrUpdateFailed, err)
	}

	*task = *next
	return copyTask(task), nil
}

// Stats implements store.TaskStore.Stats.
func (s *TaskStore) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := store.Stats{Total: len(s.byID)}
	for _, task := range s.byID {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.Pending++
		case domain.TaskStatusProcessing:
			stats.Processing++
		case domain.TaskStatusCompleted:
			stats.Completed++
		case domain.TaskStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// EvictExpired implements store.TaskStore.EvictExpired.
func (s *TaskStore) EvictExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0

	// Pass 1: terminal tasks past the retention TTL.
	cutoff := now.Add(-s.config.RetentionTTL)
	for id, task := range s.byID {
		if task.IsTerminal() && task.UpdatedAt.Before(cutoff) {
			s.removeLocked(id)
			evicted++
		}
	}

	// Pass 2: size cap, oldest terminal tasks first.
	if len(s.byID) > s.config.MaxTasks {
		var terminal []*domain.Task
		for _, task := range s.byID {
			if task.IsTerminal() {
				terminal = append(terminal, task)
			}
		}
		sort.Slice(terminal, func(i, j int) bool {
			return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
		})

		for _, task := range terminal {
			if len(s.byID) <= s.config.MaxTasks {
				break
			}
			s.removeLocked(task.ID)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Debug("evicted terminal tasks",
			"count", evicted,
			"store_size", len(s.byID))
	}

	return evicted, nil
}

// removeLocked deletes a task from both indexes. Caller must hold s.mu.
func (s *TaskStore) removeLocked(id uuid.UUID) {
	task, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)

	ids := s.byUser[task.UserID]
	for i, candidate := range ids {
		if candidate == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byUser, task.UserID)
	} else {
		s.byUser[task.UserID] = ids
	}
}

// copyTask returns a defensive copy so callers never alias store state.
func copyTask(task *domain.Task) *domain.Task {
	copied := *task
	return &copied
}
