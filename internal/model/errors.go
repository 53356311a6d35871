package model

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrMalformedResponse marks a provider answer that failed schema validation.
var ErrMalformedResponse = eris.New("malformed provider response")

// ErrCacheUnavailable marks a cache backend that cannot be read or written.
var ErrCacheUnavailable = eris.New("cache unavailable")

// ValidationError reports a lead that cannot be processed at all. It is the
// only error that turns into a per-lead error result.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the named lead field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// SourceCollectionError records why a source produced no (or partial) data.
type SourceCollectionError struct {
	Source   string
	Attempts int
	Err      error
}

func (e *SourceCollectionError) Error() string {
	return fmt.Sprintf("source %s failed after %d attempt(s): %v", e.Source, e.Attempts, e.Err)
}

func (e *SourceCollectionError) Unwrap() error { return e.Err }

// ProviderTimeoutError records a provider that did not answer in time.
type ProviderTimeoutError struct {
	Provider string
	Err      error
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider %s timed out: %v", e.Provider, e.Err)
}

func (e *ProviderTimeoutError) Unwrap() error { return e.Err }

// ProviderMalformedResponseError records a provider answer that could not be
// parsed into a judgment.
type ProviderMalformedResponseError struct {
	Provider string
	Err      error
}

func (e *ProviderMalformedResponseError) Error() string {
	return fmt.Sprintf("provider %s returned a malformed response: %v", e.Provider, e.Err)
}

func (e *ProviderMalformedResponseError) Unwrap() error { return e.Err }

// CacheUnavailableError records a cache failure that was degraded to a miss.
type CacheUnavailableError struct {
	Op  string
	Err error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheUnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCacheUnavailable) match any CacheUnavailableError.
func (e *CacheUnavailableError) Is(target error) bool {
	return target == ErrCacheUnavailable
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
