package domain

import (
	"strings"
	"sync"
)

// GenerationRequest asks for a batch of questions over one source text.
type GenerationRequest struct {
	Text             string `json:"text" validate:"required"`
	MCQCount         int    `json:"mcq_count" validate:"min=0,max=100"`
	DescriptiveCount int    `json:"descriptive_count" validate:"min=0,max=100"`
	// Seed fixes the run's random source. Zero means derive one.
	Seed int64 `json:"seed,omitempty"`
}

// Validate performs the cheap request checks that need no models.
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyInput
	}
	verr := NewValidationError("request")
	verr.Kind = ErrInvalidRequest
	if r.MCQCount < 0 {
		verr.AddError("mcq count must not be negative")
	}
	if r.DescriptiveCount < 0 {
		verr.AddError("descriptive count must not be negative")
	}
	if r.MCQCount == 0 && r.DescriptiveCount == 0 {
		verr.AddError("at least one question must be requested")
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// GenerationResult carries every item accepted during one run.
type GenerationResult struct {
	MCQs        []MCQItem         `json:"mcqs"`
	Descriptive []DescriptiveItem `json:"descriptive"`
	Stats       *RunStats         `json:"stats"`
}

// Empty reports whether the run produced no items of either type.
func (r *GenerationResult) Empty() bool {
	return r == nil || (len(r.MCQs) == 0 && len(r.Descriptive) == 0)
}

// RunStats counts what happened to each candidate and segment during a run.
// It separates soft failures (a stage errored) from ordinary empty outcomes
// and quality rejections.
type RunStats struct {
	mu sync.Mutex

	// Failures counts soft failures per stage.
	Failures map[string]int `json:"failures"`
	// Empty counts stages that ran cleanly but produced nothing.
	Empty map[string]int `json:"empty"`
	// Rejections counts rejected items per reason.
	Rejections map[string]int `json:"rejections"`

	MCQAttempts         int `json:"mcq_attempts"`
	DescriptiveAttempts int `json:"descriptive_attempts"`
}

// NewRunStats returns zeroed stats.
func NewRunStats() *RunStats {
	return &RunStats{
		Failures:   make(map[string]int),
		Empty:      make(map[string]int),
		Rejections: make(map[string]int),
	}
}

// Fail records a soft failure in stage.
func (s *RunStats) Fail(stage string) {
	s.mu.Lock()
	s.Failures[stage]++
	s.mu.Unlock()
}

// Nothing records a stage that produced no output.
func (s *RunStats) Nothing(stage string) {
	s.mu.Lock()
	s.Empty[stage]++
	s.mu.Unlock()
}

// Reject records a rejected item.
func (s *RunStats) Reject(reason string) {
	s.mu.Lock()
	s.Rejections[reason]++
	s.mu.Unlock()
}

// TotalFailures sums soft failures across stages.
func (s *RunStats) TotalFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.Failures {
		n += v
	}
	return n
}
