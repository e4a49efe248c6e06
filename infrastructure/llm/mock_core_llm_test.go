package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MockCoreLLM is a scriptable CoreLLM for middleware and generator tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Texts         []string
	TokensIn      int
	TokensOut     int
	Err           error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail with Err.
	FailUntilAttempt int

	CallCount   int
	LastRequest Request
	Contexts    []context.Context
}

func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Texts:     []string{"test response"},
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

func (m *MockCoreLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastRequest = req
	m.Contexts = append(m.Contexts, ctx)
	delay, err := m.ResponseDelay, m.Err
	failUntil := m.FailUntilAttempt
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	if err == nil && failUntil > 0 {
		err = errors.New("simulated failure")
	}
	if err != nil && (failUntil == 0 || call <= failUntil) {
		return Response{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return Response{Texts: append([]string(nil), m.Texts...), TokensIn: m.TokensIn, TokensOut: m.TokensOut}, nil
}

func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// retryableErr is a transient provider failure.
func retryableErr() error {
	return NewProviderError("test", ErrorTypeServerError, 503, "unavailable", nil)
}
