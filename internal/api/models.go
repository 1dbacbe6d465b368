package api

import (
	"time"

	"github.com/prayerwall/api/internal/domain"
	"github.com/prayerwall/api/internal/service"
)

// SubmitAvatarRequest defines the payload for the avatar ingestion endpoint.
// The owning user comes from the authenticated context, never from the body.
type SubmitAvatarRequest struct {
	SourceURL string `json:"source_url" validate:"required,url"`
}

// TaskResponse represents the response data for an ingestion task.
type TaskResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	SourceURL   string    `json:"source_url"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	LastError   string    `json:"last_error,omitempty"`
	ResultURL   string    `json:"result_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StatsResponse represents the aggregate queue counters exposed for
// observability.
type StatsResponse struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	Processing     int     `json:"processing"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	CompletionRate float64 `json:"completion_rate"`
	FailureRate    float64 `json:"failure_rate"`
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID.String(),
		UserID:      task.UserID.String(),
		SourceURL:   task.SourceURL,
		Status:      string(task.Status),
		Attempts:    task.Attempts,
		MaxAttempts: task.MaxAttempts,
		LastError:   task.LastError,
		ResultURL:   task.ResultURL,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// statsToResponse converts a service.StatsReport to a StatsResponse.
func statsToResponse(report service.StatsReport) StatsResponse {
	return StatsResponse{
		Total:          report.Total,
		Pending:        report.Pending,
		Processing:     report.Processing,
		Completed:      report.Completed,
		Failed:         report.Failed,
		CompletionRate: report.CompletionRate,
		FailureRate:    report.FailureRate,
	}
}
