package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("could not read database row")
	ErrUnsupportedFile    = errors.New("unsupported file type")
	ErrMissingColumns     = errors.New("required columns missing")
	ErrLocked             = errors.New("resource is locked")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrQueueFull          = errors.New("worker queue full")

	// Row processing
	ErrMissingJobSettings     = errors.New("missing job settings; restart this job from the bulk creator")
	ErrMissingActivityContext = errors.New("missing activity context (URL unreachable/expired and no activity context provided)")
	ErrEmptyCompletion        = errors.New("completion returned no text")
)

// ScrapeError reports that a URL produced no usable page text.
type ScrapeError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scrape %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("scrape %s: %s", e.URL, e.Reason)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// CompletionError is returned once the completion client gives up on a request.
type CompletionError struct {
	RequestID  string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("completion %s failed after %d attempt(s) (status %d): %v", e.RequestID, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion %s failed after %d attempt(s): %v", e.RequestID, e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// ProviderError carries the HTTP status returned by an LLM provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether the provider failure is worth retrying.
func (e *ProviderError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
