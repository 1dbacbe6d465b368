package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	policy := BackoffPolicy{Base: 2 * time.Second, Max: 60 * time.Second}

	testCases := []struct {
		attempts int
		want     time.Duration
	}{
		{attempts: 0, want: 2 * time.Second}, // treated as one attempt
		{attempts: 1, want: 2 * time.Second},
		{attempts: 2, want: 4 * time.Second},
		{attempts: 3, want: 8 * time.Second},
		{attempts: 4, want: 16 * time.Second},
		{attempts: 5, want: 32 * time.Second},
		{attempts: 6, want: 60 * time.Second}, // capped
		{attempts: 20, want: 60 * time.Second},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, policy.Delay(tc.attempts),
			"unexpected delay after %d attempts", tc.attempts)
	}
}

func TestBackoffDelayCapBelowBase(t *testing.T) {
	policy := BackoffPolicy{Base: 10 * time.Second, Max: 5 * time.Second}
	assert.Equal(t, 5*time.Second, policy.Delay(1), "cap applies even to the first delay")
}

func TestBackoffNotBefore(t *testing.T) {
	policy := DefaultBackoffPolicy()
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(2*time.Second), policy.NotBefore(now, 1))
	assert.Equal(t, now.Add(4*time.Second), policy.NotBefore(now, 2))
}
