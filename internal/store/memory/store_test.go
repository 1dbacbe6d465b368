package memory

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prayerwall/api/internal/domain"
	"github.com/prayerwall/api/internal/store"
)

const testSourceURL = "https://i.imgur.com/abc123.png"

func newTestStore(t *testing.T, cfg Config) *TaskStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTaskStore(cfg, logger)
}

func TestEnqueueAndGetByID(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()
	userID := uuid.New()

	task, err := s.Enqueue(ctx, userID, testSourceURL, 3)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, domain.TaskStatusPending, task.Status)

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, userID, got.UserID)
}

func TestEnqueueRejectsInvalidInput(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	_, err := s.Enqueue(ctx, uuid.New(), "not-a-url", 3)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	_, err = s.Enqueue(ctx, uuid.Nil, testSourceURL, 3)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestGetByIDNotFound(t *testing.T) {
	s := newTestStore(t, DefaultConfig())

	_, err := s.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestGetLatestForUser(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()
	userID := uuid.New()

	first, err := s.Enqueue(ctx, userID, testSourceURL, 3)
	require.NoError(t, err)
	second, err := s.Enqueue(ctx, userID, "https://gravatar.com/avatar/xyz.png", 3)
	require.NoError(t, err)

	// Claim the first task so it is processing; latest must still be the
	// most recently created one regardless of in-flight work.
	claimed, err := s.ClaimPendingBatch(ctx, 10, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, first.ID, claimed[0].ID, "oldest pending task should be claimed first")

	latest, err := s.GetLatestForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID, "latest should be the most recently created task")
}

func TestGetLatestForUserNone(t *testing.T) {
	s := newTestStore(t, DefaultConfig())

	_, err := s.GetLatestForUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestClaimPendingBatchMarksProcessing(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	task, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)

	claimed, err := s.ClaimPendingBatch(ctx, 1, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.TaskStatusProcessing, claimed[0].Status)

	// The stored task was marked as part of the claim.
	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)

	// A second claim finds nothing.
	again, err := s.ClaimPendingBatch(ctx, 1, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestClaimPendingBatchHonorsNotBefore(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	task, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)

	// Simulate a retryable failure that imposed a backoff delay.
	claimed, err := s.ClaimPendingBatch(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	_, err = s.UpdateStatus(ctx, task.ID, store.StatusUpdate{
		Status:    domain.TaskStatusPending,
		Attempts:  1,
		NotBefore: now.Add(30 * time.Second),
		LastError: "fetch timed out",
	})
	require.NoError(t, err)

	// Before the gate elapses the task is invisible.
	claimed, err = s.ClaimPendingBatch(ctx, 1, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Empty(t, claimed, "task must not be claimable before its NotBefore gate")

	// After the gate it is claimable again.
	claimed, err = s.ClaimPendingBatch(ctx, 1, now.Add(31*time.Second))
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, task.ID, claimed[0].ID)
}

// TestClaimExclusivity verifies that concurrent claimers never observe the
// same pending task as claimable. Run with -race.
func TestClaimExclusivity(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	const taskCount = 50
	for i := 0; i < taskCount; i++ {
		_, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
		require.NoError(t, err)
	}

	const claimers = 8
	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
	)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := s.ClaimPendingBatch(ctx, 3, time.Now().UTC())
				require.NoError(t, err)
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, task := range batch {
					claimed[task.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, taskCount, "every task should be claimed exactly once")
	for id, count := range claimed {
		assert.Equal(t, 1, count, "task %s claimed more than once", id)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	task, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)

	// pending -> completed is illegal without a claim.
	_, err = s.UpdateStatus(ctx, task.ID, store.StatusUpdate{
		Status:    domain.TaskStatusCompleted,
		Attempts:  1,
		ResultURL: "https://cdn.example.com/avatars/u.png",
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	claimed, err := s.ClaimPendingBatch(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	updated, err := s.UpdateStatus(ctx, task.ID, store.StatusUpdate{
		Status:    domain.TaskStatusCompleted,
		Attempts:  1,
		ResultURL: "https://cdn.example.com/avatars/u.png",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, updated.Status)
	assert.Equal(t, "https://cdn.example.com/avatars/u.png", updated.ResultURL)
	assert.Empty(t, updated.LastError)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt) || updated.UpdatedAt.Equal(task.UpdatedAt))

	// Terminal states admit no further transitions.
	_, err = s.UpdateStatus(ctx, task.ID, store.StatusUpdate{
		Status:   domain.TaskStatusPending,
		Attempts: 1,
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestUpdateStatusRejectsInvariantViolations(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	task, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)

	_, err = s.ClaimPendingBatch(ctx, 1, time.Now().UTC())
	require.NoError(t, err)

	// failed without exhausted attempts violates the task invariants and
	// must leave the stored task untouched.
	_, err = s.UpdateStatus(ctx, task.ID, store.StatusUpdate{
		Status:    domain.TaskStatusFailed,
		Attempts:  1,
		LastError: "boom",
	})
	assert.ErrorIs(t, err, store.ErrUpdateFailed)

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status, "failed update must not mutate the task")
}

func TestUpdateStatusEvictedTask(t *testing.T) {
	s := newTestStore(t, DefaultConfig())

	_, err := s.UpdateStatus(context.Background(), uuid.New(), store.StatusUpdate{
		Status:   domain.TaskStatusProcessing,
		Attempts: 0,
	})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestStats(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	completed, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)
	failed, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 2)
	require.NoError(t, err)

	claimed, err := s.ClaimPendingBatch(ctx, 2, now)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	_, err = s.UpdateStatus(ctx, completed.ID, store.StatusUpdate{
		Status:    domain.TaskStatusCompleted,
		Attempts:  1,
		ResultURL: "https://cdn.example.com/avatars/a.png",
	})
	require.NoError(t, err)

	_, err = s.UpdateStatus(ctx, failed.ID, store.StatusUpdate{
		Status:    domain.TaskStatusFailed,
		Attempts:  2,
		LastError: "upload rejected",
	})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Stats{
		Total:      2,
		Pending:    0,
		Processing: 0,
		Completed:  1,
		Failed:     1,
	}, stats)
}

func TestEvictExpiredRespectsTTL(t *testing.T) {
	s := newTestStore(t, Config{RetentionTTL: time.Minute, MaxTasks: 100})
	ctx := context.Background()
	now := time.Now().UTC()

	task, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)
	_, err = s.ClaimPendingBatch(ctx, 1, now)
	require.NoError(t, err)
	_, err = s.UpdateStatus(ctx, task.ID, store.StatusUpdate{
		Status:    domain.TaskStatusCompleted,
		Attempts:  1,
		ResultURL: "https://cdn.example.com/avatars/a.png",
	})
	require.NoError(t, err)

	// Within the TTL the terminal task survives.
	evicted, err := s.EvictExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, evicted)

	// Past the TTL it is removed.
	evicted, err = s.EvictExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = s.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestEvictExpiredNeverTouchesActiveTasks(t *testing.T) {
	s := newTestStore(t, Config{RetentionTTL: time.Nanosecond, MaxTasks: 1})
	ctx := context.Background()
	now := time.Now().UTC()

	pending, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)
	processing, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)

	claimed, err := s.ClaimPendingBatch(ctx, 1, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Both tasks are over any age threshold and the store is over its size
	// cap, yet neither may be evicted.
	evicted, err := s.EvictExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, evicted, "pending/processing tasks must never be evicted")

	_, err = s.GetByID(ctx, pending.ID)
	assert.NoError(t, err)
	_, err = s.GetByID(ctx, processing.ID)
	assert.NoError(t, err)
}

func TestEvictExpiredSizeCapOldestTerminalFirst(t *testing.T) {
	s := newTestStore(t, Config{RetentionTTL: time.Hour, MaxTasks: 2})
	ctx := context.Background()
	now := time.Now().UTC()

	var terminalIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		task, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
		require.NoError(t, err)
		_, err = s.ClaimPendingBatch(ctx, 1, now)
		require.NoError(t, err)
		_, err = s.UpdateStatus(ctx, task.ID, store.StatusUpdate{
			Status:    domain.TaskStatusCompleted,
			Attempts:  1,
			ResultURL: "https://cdn.example.com/avatars/a.png",
		})
		require.NoError(t, err)
		terminalIDs = append(terminalIDs, task.ID)
		time.Sleep(2 * time.Millisecond) // distinct UpdatedAt ordering
	}

	evicted, err := s.EvictExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted, "only enough terminal tasks to meet the cap are evicted")

	// The oldest terminal task is the one that went away.
	_, err = s.GetByID(ctx, terminalIDs[0])
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	_, err = s.GetByID(ctx, terminalIDs[1])
	assert.NoError(t, err)
	_, err = s.GetByID(ctx, terminalIDs[2])
	assert.NoError(t, err)
}

func TestReturnedTasksAreCopies(t *testing.T) {
	s := newTestStore(t, DefaultConfig())
	ctx := context.Background()

	task, err := s.Enqueue(ctx, uuid.New(), testSourceURL, 3)
	require.NoError(t, err)

	// Mutating the returned value must not leak into the store.
	task.Status = domain.TaskStatusCompleted
	task.ResultURL = "https://cdn.example.com/avatars/a.png"

	got, err := s.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
	assert.Empty(t, got.ResultURL)
}
