package ingest

import "errors"

// Pipeline errors
var (
	// ErrHostNotAllowed is returned when a task's source URL points at a
	// host outside the configured allow-list. This is a security boundary,
	// not a transient error: the task fails terminally without retries.
	ErrHostNotAllowed = errors.New("source host is not on the allow-list")

	// ErrFetchFailed wraps transient failures while retrieving source bytes.
	ErrFetchFailed = errors.New("failed to fetch source image")

	// ErrUploadFailed wraps transient failures while storing the image.
	ErrUploadFailed = errors.New("failed to upload avatar to object storage")

	// ErrProfileUpdateFailed wraps transient failures while attaching the
	// avatar URL to the user's profile.
	ErrProfileUpdateFailed = errors.New("failed to update profile avatar")
)

// FatalError marks a pipeline failure that must not be retried.
// The worker pool sends fatally failed tasks straight to the terminal
// failed state.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError wraps err as a non-retryable pipeline failure.
func NewFatalError(err error) *FatalError {
	return &FatalError{Err: err}
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
