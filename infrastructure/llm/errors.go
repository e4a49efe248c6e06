package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/go-qgen/internal/ports"
)

var (
	// ErrEmptyAPIKey is returned by provider factories given no key.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse means a call succeeded but carried no completion text.
	ErrEmptyResponse = errors.New("empty response from API")
)

// ErrorType classifies a provider failure. The value doubles as the status
// label on request metrics; ErrorTypeUnknown is empty.
type ErrorType string

const (
	ErrorTypeUnknown        ErrorType = ""
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeBadRequest     ErrorType = "bad_request"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeContentPolicy  ErrorType = "content_policy"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeEmptyResponse  ErrorType = "empty_response"
)

// Retryable reports whether a request failing this way may succeed on a
// later attempt.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// ProviderError is a provider failure normalized across SDKs.
type ProviderError struct {
	Type     ErrorType
	Provider string
	// StatusCode is the HTTP status, or zero when the call never got one.
	StatusCode   int
	Message      string
	WrappedError error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Type != ErrorTypeUnknown {
		msg += " [" + string(e.Type) + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.WrappedError != nil {
		msg += ": " + e.WrappedError.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.WrappedError }

// Is lets callers outside this package match failures against the ports
// sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError || e.Type == ErrorTypeNetwork
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ports.ErrAuthenticationFailed:
		return e.Type == ErrorTypeAuthentication
	case ports.ErrInvalidResponse:
		return e.Type == ErrorTypeEmptyResponse
	}
	return false
}

// IsRetryable reports whether RetryMiddleware should try again.
func (e *ProviderError) IsRetryable() bool { return e.Type.Retryable() }

// errorTypeOf returns the classification of err, or ErrorTypeUnknown when
// err is not a ProviderError.
func errorTypeOf(err error) ErrorType {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrorTypeUnknown
}

// ErrorClassifier builds ProviderErrors for one provider.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError maps an HTTP status onto an ErrorType. Authentication
// and rate limit failures get a fixed message.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	errType := ErrorTypeUnknown
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		errType, message = ErrorTypeAuthentication, ec.Provider+" authentication failed"
	case statusCode == http.StatusTooManyRequests:
		errType, message = ErrorTypeRateLimit, ec.Provider+" rate limit exceeded"
	case statusCode == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case statusCode >= 400 && statusCode < 500:
		errType = ErrorTypeBadRequest
	case statusCode >= 500:
		errType = ErrorTypeServerError
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError classifies a context failure. Deadlines are
// retryable, cancellation is not.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "request canceled", err)
	}
	return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
}

// EmptyResponseError reports a call that produced no text.
func (ec *ErrorClassifier) EmptyResponseError() *ProviderError {
	return NewProviderError(ec.Provider, ErrorTypeEmptyResponse, 0, "no completion text", ErrEmptyResponse)
}
