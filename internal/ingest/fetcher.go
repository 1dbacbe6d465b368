package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FetchResult holds the retrieved source bytes and the content type the
// remote host declared for them.
type FetchResult struct {
	Data        []byte
	ContentType string
}

// Fetcher retrieves the raw bytes of a remote image.
type Fetcher interface {
	// Fetch downloads the resource at url. Implementations must bound both
	// the request duration and the response size.
	Fetch(ctx context.Context, url string) (*FetchResult, error)
}

// HTTPFetcherConfig holds limits for the HTTP fetcher.
type HTTPFetcherConfig struct {
	// Timeout bounds the whole request, connection setup included.
	Timeout time.Duration

	// MaxBodyBytes caps the accepted response size. Larger responses are
	// rejected rather than truncated.
	MaxBodyBytes int64
}

// DefaultHTTPFetcherConfig returns an HTTPFetcherConfig with reasonable defaults.
func DefaultHTTPFetcherConfig() HTTPFetcherConfig {
	return HTTPFetcherConfig{
		Timeout:      10 * time.Second,
		MaxBodyBytes: 5 * 1024 * 1024,
	}
}

// HTTPFetcher implements Fetcher on net/http.
type HTTPFetcher struct {
	client       *http.Client
	maxBodyBytes int64
}

// Ensure HTTPFetcher implements Fetcher.
var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher with the given limits.
func NewHTTPFetcher(config HTTPFetcherConfig) *HTTPFetcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultHTTPFetcherConfig().Timeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultHTTPFetcherConfig().MaxBodyBytes
	}

	return &HTTPFetcher{
		client:       &http.Client{Timeout: config.Timeout},
		maxBodyBytes: config.MaxBodyBytes,
	}
}

// Fetch implements Fetcher.Fetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	// Read one byte past the cap to distinguish "exactly at the limit"
	// from "too large".
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if int64(len(data)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrFetchFailed, f.maxBodyBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrFetchFailed)
	}

	return &FetchResult{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
