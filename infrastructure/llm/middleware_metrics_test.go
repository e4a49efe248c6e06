package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware_RecordsSuccessfulRequests(t *testing.T) {
	collector := newMockMetricsCollector()
	wrapped := MetricsMiddleware("openai", collector)(NewMockCoreLLM())

	_, err := wrapped.DoRequest(context.Background(), Request{})
	require.NoError(t, err)

	assert.Contains(t, collector.histograms, "llm_latency_seconds")
	assert.Equal(t, 1.0, collector.counters["llm_requests_total:"])
	assert.Equal(t, 10.0, collector.counters["llm_tokens_total:input"])
	assert.Equal(t, 20.0, collector.counters["llm_tokens_total:output"])

	first := collector.labels[0]
	assert.Equal(t, "openai", first["provider"])
	assert.Equal(t, "test-model", first["model"])
	assert.Equal(t, "success", first["status"])
	assert.NotContains(t, first, "token_type", "label maps are not shared between series")
}

func TestMetricsMiddleware_Status(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		delay time.Duration
		want  string
	}{
		{"error", errors.New("boom"), 0, "error"},
		{"circuit open", ErrCircuitOpen, 0, "circuit_open"},
		{"classified", NewProviderError("openai", ErrorTypeRateLimit, 429, "", nil), 0, "rate_limit"},
		{"timeout", nil, time.Second, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := newMockMetricsCollector()
			mock := NewMockCoreLLM()
			mock.Err = tt.err
			mock.ResponseDelay = tt.delay
			wrapped := MetricsMiddleware("openai", collector)(mock)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err := wrapped.DoRequest(ctx, Request{})
			require.Error(t, err)

			require.Len(t, collector.labels, 1, "no token counters on failure")
			assert.Equal(t, tt.want, collector.labels[0]["status"])
		})
	}
}

func TestMetricsMiddleware_NilCollector(t *testing.T) {
	wrapped := MetricsMiddleware("openai", nil)(NewMockCoreLLM())
	_, err := wrapped.DoRequest(context.Background(), Request{})
	assert.NoError(t, err)
	assert.Equal(t, "test-model", wrapped.GetModel())
}
