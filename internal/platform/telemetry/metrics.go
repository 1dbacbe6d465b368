// Package telemetry wires OpenTelemetry metrics for the ingestion pipeline.
// The counters are registered against the global meter provider so the
// instrumented packages stay decoupled from the exporter configuration
// performed at startup.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/prayerwall/api/internal/ingest"

// IngestMetrics holds the counters recorded by the queue store and worker pool.
type IngestMetrics struct {
	TasksEnqueued  metric.Int64Counter
	TasksCompleted metric.Int64Counter
	TasksFailed    metric.Int64Counter
	TasksRetried   metric.Int64Counter
}

// NewIngestMetrics creates the ingestion counters on the global meter.
func NewIngestMetrics() (*IngestMetrics, error) {
	meter := otel.Meter(instrumentationName)

	enqueued, err := meter.Int64Counter("avatar_tasks_enqueued_total",
		metric.WithDescription("Number of avatar ingestion tasks accepted into the queue"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create enqueued counter: %w", err)
	}

	completed, err := meter.Int64Counter("avatar_tasks_completed_total",
		metric.WithDescription("Number of avatar ingestion tasks that completed successfully"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create completed counter: %w", err)
	}

	failed, err := meter.Int64Counter("avatar_tasks_failed_total",
		metric.WithDescription("Number of avatar ingestion tasks that exhausted their attempts"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create failed counter: %w", err)
	}

	retried, err := meter.Int64Counter("avatar_tasks_retried_total",
		metric.WithDescription("Number of retryable failures that sent a task back to pending"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create retried counter: %w", err)
	}

	return &IngestMetrics{
		TasksEnqueued:  enqueued,
		TasksCompleted: completed,
		TasksFailed:    failed,
		TasksRetried:   retried,
	}, nil
}

// SetupMeterProvider installs a periodic-reader meter provider that exports
// metrics to stdout. Returns a shutdown function to flush on exit.
func SetupMeterProvider() (func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}
