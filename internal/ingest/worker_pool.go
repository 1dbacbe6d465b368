package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prayerwall/api/internal/domain"
	"github.com/prayerwall/api/internal/platform/telemetry"
	"github.com/prayerwall/api/internal/store"
)

// WorkerPoolConfig holds configuration for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent workers claim and process
	// tasks. If zero or negative, defaults to 2.
	WorkerCount int

	// PollInterval is how long an idle worker waits before polling the
	// store for claimable work again.
	PollInterval time.Duration

	// EvictionInterval is how often the janitor sweeps terminal tasks out
	// of the store. If zero, defaults to 1 minute.
	EvictionInterval time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:      2,
		PollInterval:     250 * time.Millisecond,
		EvictionInterval: time.Minute,
	}
}

// WorkerPool runs a fixed number of workers in a continuous claim-execute
// loop against the task store. Pipeline failures never escape a worker:
// every outcome, panics included, is converted into a status transition.
type WorkerPool struct {
	store      store.TaskStore
	pipeline   *Pipeline
	backoff    BackoffPolicy
	config     WorkerPoolConfig
	metrics    *telemetry.IngestMetrics
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool. Metrics may be nil, in which case no
// counters are recorded.
func NewWorkerPool(
	taskStore store.TaskStore,
	pipeline *Pipeline,
	backoff BackoffPolicy,
	config WorkerPoolConfig,
	metrics *telemetry.IngestMetrics,
	logger *slog.Logger,
) *WorkerPool {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", DefaultWorkerPoolConfig().WorkerCount)
		config.WorkerCount = DefaultWorkerPoolConfig().WorkerCount
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWorkerPoolConfig().PollInterval
	}
	if config.EvictionInterval <= 0 {
		config.EvictionInterval = DefaultWorkerPoolConfig().EvictionInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		store:      taskStore,
		pipeline:   pipeline,
		backoff:    backoff,
		config:     config,
		metrics:    metrics,
		logger:     logger.With("component", "worker_pool"),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the worker goroutines and the eviction janitor.
func (p *WorkerPool) Start() {
	for i := 0; i < p.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.janitor()

	p.logger.Info("worker pool started", "worker_count", p.config.WorkerCount)
}

// Stop shuts the pool down and waits for in-flight work to settle.
func (p *WorkerPool) Stop() {
	p.cancelFunc()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker runs the claim-execute loop until the pool is stopped.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		select {
		case <-p.ctx.Done():
			logger.Debug("stopping worker")
			return
		default:
		}

		claimed, err := p.store.ClaimPendingBatch(p.ctx, 1, time.Now().UTC())
		if err != nil {
			logger.Error("failed to claim pending tasks", "error", err)
		}

		if len(claimed) == 0 {
			select {
			case <-p.ctx.Done():
				logger.Debug("stopping worker")
				return
			case <-time.After(p.config.PollInterval):
			}
			continue
		}

		for _, task := range claimed {
			p.processTask(task, logger)
		}
	}
}

// processTask drives one claimed task through the pipeline and writes the
// resulting transition back to the store.
func (p *WorkerPool) processTask(task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "user_id", task.UserID)
	attempts := task.Attempts + 1

	logger.Info("processing task", "attempt", attempts, "max_attempts", task.MaxAttempts)

	resultURL, err := p.runPipeline(task)
	if err == nil {
		p.transition(task, store.StatusUpdate{
			Status:    domain.TaskStatusCompleted,
			Attempts:  attempts,
			ResultURL: resultURL,
		}, logger)
		p.recordCompleted()
		logger.Info("task completed", "attempts", attempts, "result_url", resultURL)
		return
	}

	if IsFatal(err) {
		// Non-retryable: the attempt budget is considered spent so the
		// failed-implies-exhausted invariant holds uniformly.
		p.transition(task, store.StatusUpdate{
			Status:    domain.TaskStatusFailed,
			Attempts:  task.MaxAttempts,
			LastError: err.Error(),
		}, logger)
		p.recordFailed()
		logger.Warn("task failed terminally", "error", err)
		return
	}

	if attempts >= task.MaxAttempts {
		p.transition(task, store.StatusUpdate{
			Status:    domain.TaskStatusFailed,
			Attempts:  task.MaxAttempts,
			LastError: err.Error(),
		}, logger)
		p.recordFailed()
		logger.Warn("task failed after exhausting attempts",
			"attempts", attempts,
			"error", err)
		return
	}

	notBefore := p.backoff.NotBefore(time.Now().UTC(), attempts)
	p.transition(task, store.StatusUpdate{
		Status:    domain.TaskStatusPending,
		Attempts:  attempts,
		NotBefore: notBefore,
		LastError: err.Error(),
	}, logger)
	p.recordRetried()
	logger.Info("task scheduled for retry",
		"attempt", attempts,
		"not_before", notBefore,
		"error", err)
}

// runPipeline executes the pipeline, converting panics into retryable errors
// so a single bad task can never crash the pool.
func (p *WorkerPool) runPipeline(task *domain.Task) (resultURL string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panicked: %v", r)
		}
	}()

	return p.pipeline.Run(p.ctx, task)
}

// transition writes a status update back to the store. Store-level errors
// (e.g. the task was evicted meanwhile) are logged and swallowed: no error
// from processing one task may affect any other task.
func (p *WorkerPool) transition(
	task *domain.Task,
	update store.StatusUpdate,
	logger *slog.Logger,
) {
	if _, err := p.store.UpdateStatus(p.ctx, task.ID, update); err != nil {
		logger.Error("failed to update task status",
			"target_status", update.Status,
			"error", err)
	}
}

// janitor periodically evicts expired terminal tasks from the store.
func (p *WorkerPool) janitor() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			evicted, err := p.store.EvictExpired(p.ctx, time.Now().UTC())
			if err != nil {
				p.logger.Error("eviction sweep failed", "error", err)
				continue
			}
			if evicted > 0 {
				p.logger.Debug("eviction sweep completed", "evicted", evicted)
			}
		}
	}
}

// Metric helpers are nil-safe so tests can run the pool without a meter.

func (p *WorkerPool) recordCompleted() {
	if p.metrics != nil {
		p.metrics.TasksCompleted.Add(p.ctx, 1)
	}
}

func (p *WorkerPool) recordFailed() {
	if p.metrics != nil {
		p.metrics.TasksFailed.Add(p.ctx, 1)
	}
}

func (p *WorkerPool) recordRetried() {
	if p.metrics != nil {
		p.metrics.TasksRetried.Add(p.ctx, 1)
	}
}
