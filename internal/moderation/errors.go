package moderation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat means the input could not be decoded and
	// transcoded to a provider-compatible encoding. Non-retryable without
	// a format fix; the affected image is rejected, never passed through.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrProviderUnavailable means the vision provider is not configured.
	// Library uploads fail closed on it. Distinct from a transient outage,
	// which surfaces as a provider call failure inside the result reasons.
	ErrProviderUnavailable = errors.New("moderation provider unavailable")

	// ErrTooManyImages means a batch exceeded the per-request ceiling.
	ErrTooManyImages = errors.New("too many images in batch")
)

// FetchError is returned when a remote source image cannot be retrieved
// for URL screening.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
