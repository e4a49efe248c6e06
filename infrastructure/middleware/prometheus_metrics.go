// Package middleware provides cross-cutting concerns for the question
// generation service.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-qgen/infrastructure/llm"
	"github.com/ahrav/go-qgen/internal/ports"
)

// Metric names understood by PrometheusMetrics. Anything else lands in the
// generic operation series.
const (
	MetricItemsAccepted = "items_accepted_total"
	MetricItemsRejected = "items_rejected_total"
	MetricStageFailures = "stage_failures_total"
	MetricJobsRunning   = "jobs_running"
	MetricLLMLatency    = "llm_latency_seconds"
	MetricLLMRequests   = "llm_requests_total"
	MetricLLMTokens     = "llm_tokens_total"
)

// PrometheusMetrics implements ports.MetricsCollector using Prometheus.
// It covers generation runs, job execution and LLM traffic.
type PrometheusMetrics struct {
	runLatency       *prometheus.HistogramVec
	itemsAccepted    *prometheus.CounterVec
	itemsRejected    *prometheus.CounterVec
	stageFailures    *prometheus.CounterVec
	llmLatency       *prometheus.HistogramVec
	llmRequests      *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
	circuitState     *prometheus.GaugeVec
	circuitEvents    *prometheus.CounterVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	histograms       *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		runLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qgen_operation_duration_seconds",
				Help:    "Duration of generation runs and other timed operations.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation", "status"},
		),
		itemsAccepted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgen_items_accepted_total",
				Help: "Question items accepted into results.",
			},
			[]string{"kind"},
		),
		itemsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgen_items_rejected_total",
				Help: "Candidate items rejected, by reason.",
			},
			[]string{"reason"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgen_stage_failures_total",
				Help: "Soft failures absorbed by the pipeline, by stage.",
			},
			[]string{"stage"},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qgen_llm_request_duration_seconds",
				Help:    "LLM request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgen_llm_requests_total",
				Help: "LLM requests by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgen_llm_tokens_total",
				Help: "Tokens consumed by LLM requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qgen_llm_circuit_state",
				Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"provider"},
		),
		circuitEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgen_llm_circuit_events_total",
				Help: "Circuit breaker outcomes.",
			},
			[]string{"provider", "event"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qgen_operations_total",
				Help: "Counters without a dedicated series.",
			},
			[]string{"operation"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "qgen_system_state",
				Help: "Current system state values.",
			},
			[]string{"metric"},
		),
		histograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qgen_observations",
				Help:    "Histograms without a dedicated series.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records the duration of operation. The "status" label
// defaults to "success".
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.runLatency.WithLabelValues(operation, labelOr(labels, "status", "success")).Observe(duration.Seconds())
}

// RecordCounter adds value to the series named by metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricItemsAccepted:
		pm.itemsAccepted.WithLabelValues(labelOr(labels, "kind", "unknown")).Add(value)
	case MetricItemsRejected:
		pm.itemsRejected.WithLabelValues(labelOr(labels, "reason", "unknown")).Add(value)
	case MetricStageFailures:
		pm.stageFailures.WithLabelValues(labelOr(labels, "stage", "unknown")).Add(value)
	case MetricLLMRequests:
		pm.llmRequests.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Add(value)
	case MetricLLMTokens:
		pm.llmTokens.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "token_type", "unknown"),
		).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets a system state gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in the series named by metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricLLMLatency:
		pm.llmLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Observe(value)
	default:
		pm.histograms.WithLabelValues(metric).Observe(value)
	}
}

// CircuitBreaker returns llm.CircuitBreakerMetrics reporting under provider.
func (pm *PrometheusMetrics) CircuitBreaker(provider string) llm.CircuitBreakerMetrics {
	return &circuitMetrics{pm: pm, provider: provider}
}

type circuitMetrics struct {
	pm       *PrometheusMetrics
	provider string
}

func (c *circuitMetrics) RecordState(state llm.CircuitBreakerState) {
	c.pm.circuitState.WithLabelValues(c.provider).Set(float64(state))
}
func (c *circuitMetrics) RecordTrip() { c.pm.circuitEvents.WithLabelValues(c.provider, "trip").Inc() }
func (c *circuitMetrics) RecordSuccess() {
	c.pm.circuitEvents.WithLabelValues(c.provider, "success").Inc()
}
func (c *circuitMetrics) RecordFailure() {
	c.pm.circuitEvents.WithLabelValues(c.provider, "failure").Inc()
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return fallback
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
