// Package llm adapts hosted large language models to the text generation
// and embedding ports used by the question generation pipeline.
//
// Providers (OpenAI, Anthropic, Google) sit behind the CoreLLM interface.
// Cross-cutting concerns such as retries, circuit breaking, rate limiting,
// per-request timeouts, tracing and metrics are layered on top as
// Middleware, so the pipeline never sees provider-specific behavior.
//
// Basic usage:
//
//	gen, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.RetryMiddleware(llm.DefaultRetryConfig()),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	        llm.RateLimitMiddleware(10, 20),
//	    },
//	})
//	questions, err := gen.Generate(ctx, prompt, ports.GenerationOptions{Candidates: 5})
package llm

import (
	"context"
	"fmt"
	"time"
)

// Request is a single provider call.
type Request struct {
	// Prompt is the user message.
	Prompt string

	// System is an optional system instruction.
	System string

	// Candidates is the number of alternative completions wanted.
	// Providers without native support issue one call per candidate.
	Candidates int

	// MaxTokens bounds each completion. Zero uses DefaultMaxTokens.
	MaxTokens int

	// Temperature controls sampling. Nil uses the provider default.
	Temperature *float64
}

// Response carries the completions of one Request with aggregate usage.
type Response struct {
	Texts     []string
	TokensIn  int
	TokensOut int
}

// CoreLLM defines the minimal interface that LLM providers must implement.
// This interface abstracts the core functionality needed to make requests
// to different LLM services, allowing the middleware system to wrap
// any conforming implementation.
type CoreLLM interface {
	// DoRequest sends the request to the provider and returns every
	// completion it produced along with token usage.
	DoRequest(ctx context.Context, req Request) (Response, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use. Each provider has its own default.
	Model string

	// BaseURL overrides the provider's API endpoint. Tests point it at an
	// httptest server.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero means no timeout.
	Timeout time.Duration

	// Middleware is applied in order: the first entry is the outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
// This pattern allows composition of features like rate limiting, circuit breaking,
// metrics collection, and custom behavior without modifying core provider logic.
type Middleware func(CoreLLM) CoreLLM

// Chain wraps core with middleware so that the first middleware is the
// outermost layer.
func Chain(core CoreLLM, middleware ...Middleware) CoreLLM {
	for i := len(middleware) - 1; i >= 0; i-- {
		core = middleware[i](core)
	}
	return core
}

// NewCore builds the provider registered under providerType and wraps it
// in the configured middleware.
func NewCore(providerType string, config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return Chain(core, config.Middleware...), nil
}

// NewClient builds a Generator backed by the named provider.
func NewClient(providerType string, config ClientConfig) (*Generator, error) {
	core, err := NewCore(providerType, config)
	if err != nil {
		return nil, err
	}
	return NewGenerator(core, DefaultSystemPrompt), nil
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories is populated from provider init functions.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under providerType,
// replacing any previous registration.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
