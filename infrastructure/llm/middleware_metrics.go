package llm

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/ahrav/go-qgen/internal/ports"
)

// metricsLLM records latency, request counts and token usage per call.
type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that reports to collector under the
// given provider label.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, provider: provider, collector: collector}
	}
}

// DoRequest executes the request and records llm_latency_seconds,
// llm_requests_total and llm_tokens_total.
func (m *metricsLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := m.next.DoRequest(ctx, req)
	if m.collector == nil {
		return resp, err
	}

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(ctx, err),
	}
	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensOut), withLabel(labels, "token_type", "output"))
	}
	return resp, err
}

func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	if t := errorTypeOf(err); t != ErrorTypeUnknown {
		return string(t)
	}
	return "error"
}

func withLabel(labels map[string]string, k, v string) map[string]string {
	out := maps.Clone(labels)
	out[k] = v
	return out
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }
