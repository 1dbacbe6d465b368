package ingest

import "time"

// BackoffPolicy computes the delay before a failed-but-retryable task
// becomes claimable again: base * 2^(attempts-1), capped at Max.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoffPolicy returns the policy used when none is configured.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base: 2 * time.Second,
		Max:  60 * time.Second,
	}
}

// Delay returns the backoff delay after the given number of attempts.
// Attempts below one are treated as one.
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := p.Base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= p.Max {
			return p.Max
		}
	}

	if delay > p.Max {
		return p.Max
	}
	return delay
}

// NotBefore returns the timestamp at which a task that has failed the given
// number of attempts becomes claimable again.
func (p BackoffPolicy) NotBefore(now time.Time, attempts int) time.Time {
	return now.Add(p.Delay(attempts))
}
