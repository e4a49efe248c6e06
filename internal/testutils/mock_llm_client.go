package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ahrav/go-qgen/internal/ports"
)

// MockGenerator implements ports.TextGenerator with scripted completions
// selected by prompt pattern. It records every call so tests can assert on
// the prompts the pipeline sent.
type MockGenerator struct {
	mu sync.Mutex

	// model is the mock model identifier.
	model string
	// responses are checked in insertion order.
	responses []MockResponse
	// fallback is returned when no pattern matches.
	fallback []string
	// fn, when set, replaces fallback.
	fn func(prompt string) []string
	// err, when set, fails every call.
	err   error
	calls []MockCall
}

// MockResponse defines a pre-configured response pattern for the mock.
type MockResponse struct {
	// Pattern is matched case-insensitively as a substring of the prompt.
	Pattern string
	// Completions are returned in order, truncated to the requested count.
	Completions []string
}

// MockCall is one recorded Generate call.
type MockCall struct {
	Prompt  string
	Options ports.GenerationOptions
}

// NewMockGenerator creates a MockGenerator with no scripted responses.
// Unmatched prompts return no completions.
func NewMockGenerator(model string) *MockGenerator {
	return &MockGenerator{model: model}
}

// AddResponse adds a response pattern. Earlier patterns win.
func (m *MockGenerator) AddResponse(r MockResponse) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// SetFallback sets the completions returned when no pattern matches.
func (m *MockGenerator) SetFallback(completions ...string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = completions
	return m
}

// SetFunc computes completions for prompts no pattern matches.
func (m *MockGenerator) SetFunc(fn func(prompt string) []string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// SetError makes every subsequent call fail with err. Nil clears it.
func (m *MockGenerator) SetError(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Generate implements ports.TextGenerator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ports.GenerationOptions) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if prompt == "" {
		return nil, errors.New("prompt cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Prompt: prompt, Options: opts})
	if m.err != nil {
		return nil, m.err
	}

	out, matched := m.match(prompt)
	if !matched && m.fn != nil {
		out = m.fn(prompt)
	}

	n := max(1, opts.Candidates)
	if len(out) > n {
		out = out[:n]
	}
	return append([]string(nil), out...), nil
}

func (m *MockGenerator) match(prompt string) ([]string, bool) {
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Completions, true
		}
	}
	return m.fallback, false
}

// Model implements ports.TextGenerator.
func (m *MockGenerator) Model() string { return m.model }

// Calls returns a copy of the recorded calls.
func (m *MockGenerator) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of recorded calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls, scripted responses and the error.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses, m.fallback, m.fn, m.err, m.calls = nil, nil, nil, nil, nil
}

var _ ports.TextGenerator = (*MockGenerator)(nil)
