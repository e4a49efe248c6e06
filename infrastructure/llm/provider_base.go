package llm

import (
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultMaxTokens is used when a request leaves MaxTokens unset.
	DefaultMaxTokens = 256

	// MinTimeout is the minimum allowed duration for a request timeout.
	MinTimeout = 1 * time.Second
	// MaxTimeout is the maximum allowed duration for a request timeout.
	MaxTimeout = 10 * time.Minute

	// charsPerToken approximates English tokenization when a provider
	// omits usage counts.
	charsPerToken = 4
)

// BaseProvider holds the state every provider shares.
type BaseProvider struct {
	model      string
	classifier *ErrorClassifier
}

func newBaseProvider(name, model string) BaseProvider {
	return BaseProvider{model: model, classifier: &ErrorClassifier{Provider: name}}
}

// GetModel returns the configured model name.
func (b *BaseProvider) GetModel() string { return b.model }

// EstimateTokens approximates the token count of text at four characters
// per token.
func EstimateTokens(text string) int {
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// tokenCount prefers the provider-reported count and falls back to an
// estimate over texts.
func tokenCount(reported int, texts ...string) int {
	if reported > 0 {
		return reported
	}
	n := 0
	for _, t := range texts {
		n += EstimateTokens(t)
	}
	return n
}

// normalize fills request defaults.
func normalize(req Request) Request {
	if req.Candidates < 1 {
		req.Candidates = 1
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	return req
}

// ValidateBaseURL validates and normalizes a base URL string.
// It ensures the URL has a valid scheme (http or https) and a host.
// An empty string is considered valid and returns no error, allowing for default URLs.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. Zero or
// negative values return zero, meaning no client timeout.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return min(max(timeout, MinTimeout), MaxTimeout)
}

func clampFloat64(val, lo, hi float64) float64 {
	return min(max(val, lo), hi)
}
