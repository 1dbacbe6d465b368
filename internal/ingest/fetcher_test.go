package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(DefaultHTTPFetcherConfig())
	result, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), result.Data)
	assert.Equal(t, "image/png", result.ContentType)
}

func TestHTTPFetcherNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(DefaultHTTPFetcherConfig())
	_, err := fetcher.Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPFetcherBodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(HTTPFetcherConfig{Timeout: time.Second, MaxBodyBytes: 16})
	_, err := fetcher.Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestHTTPFetcherBodyExactlyAtLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 16))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(HTTPFetcherConfig{Timeout: time.Second, MaxBodyBytes: 16})
	result, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err, "a body exactly at the limit is accepted")
	assert.Len(t, result.Data, 16)
}

func TestHTTPFetcherEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(DefaultHTTPFetcherConfig())
	_, err := fetcher.Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	fetcher := NewHTTPFetcher(HTTPFetcherConfig{Timeout: 50 * time.Millisecond, MaxBodyBytes: 1024})
	_, err := fetcher.Fetch(context.Background(), server.URL)

	assert.ErrorIs(t, err, ErrFetchFailed, "a timeout is reported as a retryable fetch failure")
}

func TestHTTPFetcherInvalidURL(t *testing.T) {
	fetcher := NewHTTPFetcher(DefaultHTTPFetcherConfig())
	_, err := fetcher.Fetch(context.Background(), "://bad-url")
	assert.ErrorIs(t, err, ErrFetchFailed)
}
