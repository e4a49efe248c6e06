package llm

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// Registry resolves "provider/model" specs to Generators, reading API keys
// from the environment. Generators are created lazily and cached per spec,
// so the question and answer roles share one client when they name the
// same model.
type Registry struct {
	mu sync.RWMutex

	providers         map[string]ProviderConfig
	clients           map[string]*Generator // keyed by "provider/model"
	defaultProvider   string
	defaultMiddleware []Middleware // outermost, ahead of provider middleware
	defaultTimeout    time.Duration
	systemPrompt      string
	getenv            func(string) string
}

// ProviderConfig describes one provider entry.
type ProviderConfig struct {
	// Type names the registered factory: openai, anthropic or google.
	Type         string
	EnvVar       string
	DefaultModel string
	// SupportedModels restricts the accepted models. Empty allows any.
	SupportedModels []string
	BaseURL         string
	// Middleware wraps only this provider, inside DefaultMiddleware. The
	// builder gives each provider its own breaker and rate limiter here.
	Middleware []Middleware
}

// RegistryConfig configures NewRegistry.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
	// DefaultProvider must be a key of Providers.
	DefaultProvider   string
	DefaultTimeout    time.Duration
	DefaultMiddleware []Middleware
	// SystemPrompt overrides DefaultSystemPrompt when non-empty.
	SystemPrompt string
	// Getenv overrides os.Getenv for API key lookup.
	Getenv func(string) string
}

// DefaultProviders provides standard provider configurations.
var DefaultProviders = map[string]ProviderConfig{
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// NewRegistry validates config and returns an empty registry.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}
	if _, exists := config.Providers[config.DefaultProvider]; !exists {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	system := config.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	getenv := config.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	return &Registry{
		providers:         config.Providers,
		clients:           make(map[string]*Generator),
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
		systemPrompt:      system,
		getenv:            getenv,
	}, nil
}

// GetDefaultClient returns the generator for the default provider and its
// default model.
func (r *Registry) GetDefaultClient() (*Generator, error) {
	return r.GetClient(r.defaultProvider)
}

// GetClient retrieves a generator by spec. Supported formats:
//   - "provider": the provider's default model
//   - "provider/model": the given model
func (r *Registry) GetClient(spec string) (*Generator, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty; use GetDefaultClient() for default provider")
	}

	provider, model := r.parseSpec(spec)
	key := provider + "/" + model

	r.mu.RLock()
	if client, exists := r.clients[key]; exists {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[key]; exists {
		return client, nil
	}

	core, err := r.createCore(provider, model)
	if err != nil {
		return nil, err
	}
	client := NewGenerator(core, r.systemPrompt)
	r.clients[key] = client
	return client, nil
}

// Embedder builds an OpenAI embedder with the key of the "openai" provider.
func (r *Registry) Embedder(model string) (*OpenAIEmbedder, error) {
	pc, ok := r.providers["openai"]
	if !ok {
		return nil, fmt.Errorf("embeddings require the %q provider", "openai")
	}
	apiKey := r.getenv(pc.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", pc.EnvVar, "openai")
	}
	return NewOpenAIEmbedder(ClientConfig{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: pc.BaseURL,
		Timeout: r.defaultTimeout,
	})
}

// parseSpec splits "provider/model", filling the provider's default model
// when the model is omitted.
func (r *Registry) parseSpec(spec string) (provider, model string) {
	provider, model, _ = strings.Cut(spec, "/")
	if model == "" {
		if pc, ok := r.providers[provider]; ok {
			model = pc.DefaultModel
		}
	}
	return provider, model
}

func (r *Registry) createCore(provider, model string) (CoreLLM, error) {
	pc, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	if len(pc.SupportedModels) > 0 && !slices.Contains(pc.SupportedModels, model) {
		return nil, fmt.Errorf("model %q is not supported by provider %q. Supported models: %v",
			model, provider, pc.SupportedModels)
	}

	apiKey := r.getenv(pc.EnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", pc.EnvVar, provider)
	}

	middleware := append(slices.Clone(r.defaultMiddleware), pc.Middleware...)
	return NewCore(pc.Type, ClientConfig{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    pc.BaseURL,
		Timeout:    r.defaultTimeout,
		Middleware: middleware,
	})
}
