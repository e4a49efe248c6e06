package domain

import (
	"errors"
	"fmt"
)

// Hard failures that abort a generation run. Soft failures never surface as
// errors from the pipeline; they are counted in RunStats instead.
var (
	// ErrEmptyInput indicates that the source text was empty or whitespace.
	ErrEmptyInput = errors.New("empty input")

	// ErrUnusableInput indicates that the source text produced no sentences
	// long enough to segment after preprocessing.
	ErrUnusableInput = errors.New("no valid content to process for question generation")

	// ErrModelsUnavailable indicates that the shared model handles could not
	// be initialized.
	ErrModelsUnavailable = errors.New("models unavailable")

	// ErrInvalidItem indicates that an assembled item violates its structural
	// invariants.
	ErrInvalidItem = errors.New("invalid item")

	// ErrInvalidRequest indicates that a generation request failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrJobNotFound indicates that a polled job id is unknown.
	ErrJobNotFound = errors.New("job not found")
)

// StageError records a soft failure inside a single pipeline stage.
// The pipeline logs and counts these but keeps going.
type StageError struct {
	// Stage names the pipeline component that failed.
	Stage string

	// Subject is the candidate, segment or question being processed.
	Subject string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for StageError.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage error: stage=%s, subject=%q, err=%v", e.Stage, e.Subject, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }

// NewStageError creates a new StageError with the given details.
func NewStageError(stage, subject string, err error) *StageError {
	return &StageError{
		Stage:   stage,
		Subject: subject,
		Err:     err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string

	// Kind is the sentinel the error matches. Nil means ErrInvalidItem.
	Kind error
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns Kind, defaulting to ErrInvalidItem.
func (e *ValidationError) Unwrap() error {
	if e.Kind != nil {
		return e.Kind
	}
	return ErrInvalidItem
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
