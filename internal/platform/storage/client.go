// Package storage provides an HTTP client for the hosted object-storage
// service that holds the transformed avatar images. Objects are written
// with upsert semantics so re-ingesting a user's avatar overwrites the
// previous object under the same key.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prayerwall/api/internal/config"
)

// ErrUploadRejected is returned when the storage service responds with a
// non-success status code.
var ErrUploadRejected = fmt.Errorf("storage: upload rejected")

// Client uploads objects to a bucket over the storage service's REST API
// and derives the public URL for each stored object. It implements
// ingest.ObjectStorage.
type Client struct {
	endpoint   string
	bucket     string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a storage client from configuration. The endpoint is
// the base URL of the storage service; a trailing /storage/v1 path segment
// is stripped so endpoints copied from a storage dashboard work unchanged.
func NewClient(cfg config.StorageConfig) *Client {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	endpoint = strings.TrimSuffix(endpoint, "/storage/v1")

	return &Client{
		endpoint: endpoint,
		bucket:   cfg.Bucket,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Upload stores data under key in the configured bucket, overwriting any
// existing object, and returns the public URL of the stored object.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.endpoint, c.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	// Upsert: replace the object if a previous avatar exists under this key.
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The error body is small and useful for diagnostics; cap the read
		// in case the service misbehaves.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUploadRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return c.PublicURL(key), nil
}

// PublicURL returns the publicly addressable URL for an object key in the
// configured bucket.
func (c *Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.endpoint, c.bucket, key)
}
