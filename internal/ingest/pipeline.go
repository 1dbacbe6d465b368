package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/prayerwall/api/internal/domain"
	"github.com/prayerwall/api/internal/store"
)

// ObjectStorage uploads avatar bytes to the hosted object store.
type ObjectStorage interface {
	// Upload stores data under key with the given content type, overwriting
	// any existing object, and returns the public URL of the result.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// extensionsByContentType maps declared image content types to the file
// extension used in the storage key. Unrecognized or absent types fall back
// to jpg.
var extensionsByContentType = map[string]string{
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/png":     "png",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

const (
	fallbackExtension   = "jpg"
	fallbackContentType = "image/jpeg"
)

// PipelineConfig holds settings for a single pipeline execution.
type PipelineConfig struct {
	// AllowedHosts is the allow-list of trusted image-host domains. A host
	// matches when it equals an entry or is a subdomain of one.
	AllowedHosts []string

	// StepTimeout bounds each of the upload and profile-update steps.
	// The fetch step carries its own timeout inside the Fetcher.
	StepTimeout time.Duration
}

// DefaultPipelineConfig returns a PipelineConfig with reasonable defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		AllowedHosts: []string{"imgur.com", "i.imgur.com", "gravatar.com", "secure.gravatar.com"},
		StepTimeout:  15 * time.Second,
	}
}

// Pipeline executes the fetch -> transform -> upload -> profile-update
// sequence for one claimed task.
type Pipeline struct {
	fetcher      Fetcher
	storage      ObjectStorage
	profiles     store.ProfileStore
	allowedHosts []string
	stepTimeout  time.Duration
	logger       *slog.Logger
}

// NewPipeline creates a Pipeline with the given collaborators.
func NewPipeline(
	fetcher Fetcher,
	storage ObjectStorage,
	profiles store.ProfileStore,
	config PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if config.StepTimeout <= 0 {
		config.StepTimeout = DefaultPipelineConfig().StepTimeout
	}

	normalized := make([]string, 0, len(config.AllowedHosts))
	for _, host := range config.AllowedHosts {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(host)))
	}

	return &Pipeline{
		fetcher:      fetcher,
		storage:      storage,
		profiles:     profiles,
		allowedHosts: normalized,
		stepTimeout:  config.StepTimeout,
		logger:       logger.With("component", "ingest_pipeline"),
	}
}

// Run executes the pipeline for the task and returns the public URL of the
// stored avatar. A *FatalError return means the failure must not be retried.
func (p *Pipeline) Run(ctx context.Context, task *domain.Task) (string, error) {
	logger := p.logger.With("task_id", task.ID, "user_id", task.UserID)

	// 1. Security boundary: reject hosts outside the allow-list outright.
	host := task.Host()
	if !p.hostAllowed(host) {
		logger.Warn("rejected source host", "host", host)
		return "", NewFatalError(fmt.Errorf("%w: %q", ErrHostNotAllowed, host))
	}

	// 2. Fetch the remote bytes. The fetcher bounds duration and size.
	result, err := p.fetcher.Fetch(ctx, task.SourceURL)
	if err != nil {
		return "", err
	}

	// 3. Derive the target extension from the declared content type.
	contentType, extension := normalizeContentType(result.ContentType)
	logger.Debug("fetched source image",
		"bytes", len(result.Data),
		"content_type", contentType)

	// 4. Upload under the deterministic per-user key, overwriting any
	// previous avatar for this user.
	key := avatarKey(task, extension)
	uploadCtx, cancelUpload := context.WithTimeout(ctx, p.stepTimeout)
	defer cancelUpload()

	publicURL, err := p.storage.Upload(uploadCtx, key, result.Data, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	// 5. Attach the public URL to the user's profile.
	upsertCtx, cancelUpsert := context.WithTimeout(ctx, p.stepTimeout)
	defer cancelUpsert()

	if err := p.profiles.SetAvatarURL(upsertCtx, task.UserID, publicURL); err != nil {
		return "", fmt.Errorf("%w: %w", ErrProfileUpdateFailed, err)
	}

	logger.Info("avatar ingested", "result_url", publicURL)
	return publicURL, nil
}

// hostAllowed reports whether host equals an allow-list entry or is a
// subdomain of one.
func (p *Pipeline) hostAllowed(host string) bool {
	if host == "" {
		return false
	}
	for _, allowed := range p.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// avatarKey builds the deterministic per-user storage key.
func avatarKey(task *domain.Task, extension string) string {
	return fmt.Sprintf("%s.%s", task.UserID, extension)
}

// normalizeContentType strips content-type parameters and resolves the
// target extension, falling back to jpg for unknown types.
func normalizeContentType(raw string) (contentType, extension string) {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil || mediaType == "" {
		return fallbackContentType, fallbackExtension
	}

	mediaType = strings.ToLower(mediaType)
	if ext, ok := extensionsByContentType[mediaType]; ok {
		return mediaType, ext
	}
	return fallbackContentType, fallbackExtension
}
