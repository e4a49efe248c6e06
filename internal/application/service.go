package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/generation"
	"github.com/ahrav/go-qgen/internal/logger"
	"github.com/ahrav/go-qgen/internal/ports"
)

// Metric names recorded per run.
const (
	MetricRun           = "generation_run"
	MetricItemsAccepted = "items_accepted_total"
	MetricItemsRejected = "items_rejected_total"
	MetricStageFailures = "stage_failures_total"
)

// Service is the library entry point: it resolves models and runs the
// generation pipeline.
type Service struct {
	cfg     generation.Config
	seed    int64
	models  *ModelRegistry
	metrics ports.MetricsCollector
	log     *zap.Logger

	mu       sync.Mutex
	pipeline *generation.Pipeline
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceMetrics records run outcomes to collector.
func WithServiceMetrics(collector ports.MetricsCollector) ServiceOption {
	return func(s *Service) { s.metrics = collector }
}

// WithDefaultSeed seeds requests that carry no seed of their own.
func WithDefaultSeed(seed int64) ServiceOption {
	return func(s *Service) { s.seed = seed }
}

// NewService validates cfg and returns a Service resolving models from
// registry.
func NewService(cfg generation.Config, registry *ModelRegistry, log *zap.Logger, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, fmt.Errorf("model registry is required")
	}
	s := &Service{
		cfg:    cfg,
		models: registry,
		log:    logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate runs one request. Invalid requests fail before any model is
// loaded.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Seed == 0 {
		req.Seed = s.seed
	}

	p, err := s.pipelineFor(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := p.Generate(ctx, req)
	s.record(time.Since(start), res, err)
	return res, err
}

func (s *Service) pipelineFor(ctx context.Context) (*generation.Pipeline, error) {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	if p != nil {
		return p, nil
	}

	models, err := s.models.Models(ctx)
	if err != nil {
		return nil, err
	}
	p, err = generation.NewPipeline(s.cfg, models, s.log.Named("pipeline"))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pipeline == nil {
		s.pipeline = p
	}
	return s.pipeline, nil
}

func (s *Service) record(elapsed time.Duration, res *domain.GenerationResult, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case res.Empty():
		status = "empty"
	}
	s.metrics.RecordLatency(MetricRun, elapsed, map[string]string{"status": status})
	if err != nil {
		return
	}

	s.metrics.RecordCounter(MetricItemsAccepted, float64(len(res.MCQs)), map[string]string{"kind": "mcq"})
	s.metrics.RecordCounter(MetricItemsAccepted, float64(len(res.Descriptive)), map[string]string{"kind": "descriptive"})
	if res.Stats == nil {
		return
	}
	for reason, n := range res.Stats.Rejections {
		s.metrics.RecordCounter(MetricItemsRejected, float64(n), map[string]string{"reason": reason})
	}
	for stage, n := range res.Stats.Failures {
		s.metrics.RecordCounter(MetricStageFailures, float64(n), map[string]string{"stage": stage})
	}
}
