package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
	"github.com/ahrav/go-qgen/internal/generation"
	"github.com/ahrav/go-qgen/internal/logger"
	"github.com/ahrav/go-qgen/internal/ports"
)

// MetricJobsRunning is the gauge of jobs in flight.
const MetricJobsRunning = "jobs_running"

// errNothingGenerated is the failure recorded for a run that accepted no
// items.
const errNothingGenerated = "failed to generate any questions"

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is the pollable record of one background generation request.
type Job struct {
	ID        string                   `json:"id"`
	Status    JobStatus                `json:"status"`
	Result    *domain.GenerationResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// JobStore persists job records.
type JobStore interface {
	Save(ctx context.Context, job *Job) error
	// Load returns domain.ErrJobNotFound for unknown ids.
	Load(ctx context.Context, id string) (*Job, error)
}

// CacheJobStore keeps jobs as JSON in a ports.CacheStore, so the same
// store works in memory or in Redis.
type CacheJobStore struct {
	store ports.CacheStore
	ttl   time.Duration
}

// NewCacheJobStore creates a job store. Records expire after ttl; zero
// keeps them forever.
func NewCacheJobStore(store ports.CacheStore, ttl time.Duration) *CacheJobStore {
	return &CacheJobStore{store: store, ttl: ttl}
}

// Save implements JobStore.
func (s *CacheJobStore) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	return s.store.Set(ctx, jobKey(job.ID), data, s.ttl)
}

// Load implements JobStore.
func (s *CacheJobStore) Load(ctx context.Context, id string) (*Job, error) {
	data, ok, err := s.store.Get(ctx, jobKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, ports.NewCacheError(jobKey(id), "Load", fmt.Errorf("%w: %w", ports.ErrCacheCorrupted, err))
	}
	return &job, nil
}

func jobKey(id string) string { return "job:" + id }

// RequestGenerator runs one generation request. Service implements it.
type RequestGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// JobRunner runs each submitted request on its own goroutine and records
// its status as pending, then completed or failed.
type JobRunner struct {
	gen     RequestGenerator
	store   JobStore
	cfg     JobsConfig
	metrics ports.MetricsCollector
	log     *zap.Logger
	now     func() time.Time

	wg      sync.WaitGroup
	running atomic.Int64
}

// NewJobRunner creates a JobRunner. metrics may be nil.
func NewJobRunner(gen RequestGenerator, store JobStore, cfg JobsConfig, metrics ports.MetricsCollector, log *zap.Logger) *JobRunner {
	return &JobRunner{
		gen:     gen,
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		log:     logger.OrNop(log).Named("jobs"),
		now:     time.Now,
	}
}

// Submit validates req, records a pending job and starts it. The returned
// id is used with Status.
func (r *JobRunner) Submit(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if words := generation.WordCount(req.Text); r.cfg.MaxInputWords > 0 && words > r.cfg.MaxInputWords {
		return "", fmt.Errorf("%w: text has %d words, limit is %d", domain.ErrInvalidRequest, words, r.cfg.MaxInputWords)
	}

	now := r.now()
	job := &Job{ID: uuid.NewString(), Status: JobPending, CreatedAt: now, UpdatedAt: now}
	if err := r.store.Save(ctx, job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}

	r.wg.Add(1)
	go r.run(job, req)
	r.log.Info("job submitted", zap.String("job_id", job.ID),
		zap.Int("mcq_count", req.MCQCount), zap.Int("descriptive_count", req.DescriptiveCount))
	return job.ID, nil
}

// Status returns the current record of job id.
func (r *JobRunner) Status(ctx context.Context, id string) (*Job, error) {
	return r.store.Load(ctx, id)
}

// Wait blocks until every submitted job has finished or ctx ends.
func (r *JobRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running returns the number of jobs in flight.
func (r *JobRunner) Running() int64 { return r.running.Load() }

func (r *JobRunner) run(job *Job, req domain.GenerationRequest) {
	defer r.wg.Done()
	r.gauge(r.running.Add(1))
	defer func() { r.gauge(r.running.Add(-1)) }()

	log := r.log.With(zap.String("job_id", job.ID))
	ctx := context.Background()
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	res, err := r.generate(ctx, req)
	switch {
	case err != nil:
		job.Status, job.Error = JobFailed, err.Error()
		log.Warn("job failed", zap.Error(err))
	case res.Empty():
		job.Status, job.Error = JobFailed, errNothingGenerated
		job.Result = res
		log.Warn("job produced no items")
	default:
		job.Status, job.Result = JobCompleted, res
		log.Info("job completed", zap.Int("mcqs", len(res.MCQs)), zap.Int("descriptive", len(res.Descriptive)))
	}
	job.UpdatedAt = r.now()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Save(saveCtx, job); err != nil {
		log.Error("failed to save job", zap.Error(err))
	}
}

// generate converts a panic in the pipeline into a job failure.
func (r *JobRunner) generate(ctx context.Context, req domain.GenerationRequest) (res *domain.GenerationResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("generation panicked: %v", p)
		}
	}()
	return r.gen.Generate(ctx, req)
}

func (r *JobRunner) gauge(n int64) {
	if r.metrics != nil {
		r.metrics.RecordGauge(MetricJobsRunning, float64(n), nil)
	}
}
