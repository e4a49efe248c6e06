package ports

import (
	"errors"
	"fmt"
)

// Failures reported by model backends and supporting stores. Adapters wrap
// them so callers can classify with errors.Is regardless of provider.
var (
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timed out")
	// ErrInvalidResponse covers empty completions and embeddings whose count
	// does not match the input.
	ErrInvalidResponse      = errors.New("invalid response")
	ErrAuthenticationFailed = errors.New("authentication failed")

	ErrCacheCorrupted = errors.New("cache corrupted")
	ErrConfigNotFound = errors.New("configuration not found")

	// ErrUnknownTerm is returned by lexical resources with no entry for a
	// term or phrase key.
	ErrUnknownTerm       = errors.New("unknown term")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// ModelError is a failure from a text generator, embedder or annotator.
type ModelError struct {
	Model     string
	Operation string
	Err       error
}

// NewModelError wraps err with the model and operation that produced it.
func NewModelError(model, operation string, err error) *ModelError {
	return &ModelError{Model: model, Operation: operation, Err: err}
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Model, e.Operation, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient: rate limiting, an
// unavailable service (including an open circuit) or a timeout.
func (e *ModelError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// CacheError is a failed CacheStore operation on Key.
type CacheError struct {
	Key       string
	Operation string
	Err       error
}

// NewCacheError creates a CacheError.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{Key: key, Operation: operation, Err: err}
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Operation, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// ConfigError names the configuration key or file a problem was found in.
type ConfigError struct {
	ConfigKey string
	Err       error
}

// NewConfigError creates a ConfigError.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{ConfigKey: key, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.ConfigKey, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
