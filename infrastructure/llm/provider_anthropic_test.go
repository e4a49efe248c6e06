package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-qgen/internal/ports"
)

// mockUsage provides a mock structure for token usage information in test responses.
type mockUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// mockContent provides a mock structure for content blocks in test responses.
type mockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// mockResponse provides a mock structure for a successful API response in tests.
type mockResponse struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []mockContent `json:"content"`
	Model   string        `json:"model"`
	Usage   mockUsage     `json:"usage"`
}

func anthropicReply(text string) mockResponse {
	return mockResponse{
		ID:      "msg_test_id",
		Type:    "message",
		Role:    "assistant",
		Content: []mockContent{{Type: "text", Text: text}},
		Model:   AnthropicDefaultModel,
		Usage:   mockUsage{InputTokens: 10, OutputTokens: 15},
	}
}

func TestNewAnthropicProvider(t *testing.T) {
	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key"})
	require.NoError(t, err)
	assert.Equal(t, AnthropicDefaultModel, provider.GetModel())

	_, err = newAnthropicProvider(ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	_, err = newAnthropicProvider(ClientConfig{APIKey: "k", BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestAnthropicProvider_DoRequest_SamplesEachCandidate(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)

		var reqBody map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, AnthropicDefaultModel, reqBody["model"])
		assert.Equal(t, float64(DefaultMaxTokens), reqBody["max_tokens"])
		assert.Equal(t, 1.0, reqBody["temperature"], "temperature is clamped to 1")

		system := reqBody["system"].([]any)
		require.Len(t, system, 1)
		assert.Equal(t, "Be brief.", system[0].(map[string]any)["text"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(anthropicReply(fmt.Sprintf("Question %d?", n))))
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-api-key", BaseURL: server.URL})
	require.NoError(t, err)

	temp := 1.5
	resp, err := provider.DoRequest(context.Background(), Request{
		Prompt:      "Hello, world!",
		System:      "Be brief.",
		Candidates:  3,
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Question 1?", "Question 2?", "Question 3?"}, resp.Texts)
	assert.Equal(t, 30, resp.TokensIn)
	assert.Equal(t, 45, resp.TokensOut)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicProvider_DoRequest_KeepsPartialResults(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"type": "error", "error": {"type": "rate_limit_error", "message": "slow down"}}`)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(anthropicReply("Only one?")))
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := provider.DoRequest(context.Background(), Request{Prompt: "p", Candidates: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"Only one?"}, resp.Texts)
	assert.Equal(t, int32(2), calls.Load(), "sampling stops at the first failure")
}

func TestAnthropicProvider_ErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errType    string
		sentinel   error
	}{
		{"authentication", 401, "authentication_error", ports.ErrAuthenticationFailed},
		{"rate limit", 429, "rate_limit_error", ports.ErrRateLimited},
		{"overloaded", 503, "overloaded_error", ports.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				fmt.Fprintf(w, `{"type": "error", "error": {"type": %q, "message": "nope"}}`, tt.errType)
			}))
			defer server.Close()

			provider, err := newAnthropicProvider(ClientConfig{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = provider.DoRequest(context.Background(), Request{Prompt: "p"})
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, int32(1), calls.Load(), "the SDK does not retry on its own")
		})
	}
}

func TestAnthropicProvider_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(anthropicReply("")))
	}))
	defer server.Close()

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = provider.DoRequest(context.Background(), Request{Prompt: "p", Candidates: 2})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
