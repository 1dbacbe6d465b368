package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/prayerwall/api/internal/domain"
	"github.com/prayerwall/api/internal/platform/telemetry"
	"github.com/prayerwall/api/internal/store"
)

// StatsReport extends the raw store counts with derived ratios for
// observability endpoints.
type StatsReport struct {
	store.Stats
	CompletionRate float64 `json:"completion_rate"`
	FailureRate    float64 `json:"failure_rate"`
}

// AvatarService exposes the avatar ingestion queue to the request boundary:
// fire-and-forget submission plus read-only status and stats queries.
// All state lives in the task store; the service holds no mutable state of
// its own.
type AvatarService struct {
	tasks       store.TaskStore
	maxAttempts int
	metrics     *telemetry.IngestMetrics
	logger      *slog.Logger
}

// NewAvatarService creates an AvatarService. Metrics may be nil.
func NewAvatarService(
	tasks store.TaskStore,
	maxAttempts int,
	metrics *telemetry.IngestMetrics,
	logger *slog.Logger,
) *AvatarService {
	return &AvatarService{
		tasks:       tasks,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		logger:      logger.With("component", "avatar_service"),
	}
}

// Submit enqueues an ingestion task for the authenticated user and returns
// immediately with the created task. Processing happens asynchronously in
// the worker pool; all failure information surfaces later via the status
// queries.
func (s *AvatarService) Submit(
	ctx context.Context,
	userID uuid.UUID,
	sourceURL string,
) (*domain.Task, error) {
	task, err := s.tasks.Enqueue(ctx, userID, sourceURL, s.maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue avatar task: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TasksEnqueued.Add(ctx, 1)
	}

	s.logger.InfoContext(ctx, "avatar task submitted",
		"task_id", task.ID,
		"user_id", userID,
		"source_host", task.Host())

	return task, nil
}

// GetTaskStatus returns the task with the given id, enforcing that the
// caller owns it. Unknown ids surface as store.ErrTaskNotFound.
func (s *AvatarService) GetTaskStatus(
	ctx context.Context,
	taskID uuid.UUID,
	callerID uuid.UUID,
) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.UserID != callerID {
		return nil, ErrTaskNotOwned
	}

	return task, nil
}

// GetUserLatestTask returns the caller's most recently created task,
// or store.ErrTaskNotFound when they have none.
func (s *AvatarService) GetUserLatestTask(
	ctx context.Context,
	userID uuid.UUID,
) (*domain.Task, error) {
	return s.tasks.GetLatestForUser(ctx, userID)
}

// Stats aggregates per-status counts from the store and derives completion
// and failure ratios over the retained tasks. Pure read-side aggregation on
// a point-in-time snapshot.
func (s *AvatarService) Stats(ctx context.Context) (StatsReport, error) {
	counts, err := s.tasks.Stats(ctx)
	if err != nil {
		return StatsReport{}, fmt.Errorf("failed to aggregate task stats: %w", err)
	}

	report := StatsReport{Stats: counts}
	if counts.Total > 0 {
		report.CompletionRate = float64(counts.Completed) / float64(counts.Total)
		report.FailureRate = float64(counts.Failed) / float64(counts.Total)
	}

	return report, nil
}
