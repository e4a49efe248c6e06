package generation

import (
	"go.uber.org/zap"

	"github.com/ahrav/go-qgen/internal/domain"
)

// Status classifies the result of a best-effort pipeline step.
type Status int

const (
	// StatusOK means the step produced a usable value.
	StatusOK Status = iota
	// StatusEmpty means the step ran cleanly but found nothing.
	StatusEmpty
	// StatusFailed means the step errored and its value is a degraded
	// fallback (possibly empty).
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome carries a step's value alongside how it was obtained, so the
// caller can tell "nothing found" apart from "step crashed".
type Outcome[T any] struct {
	Value  T
	Status Status
	Err    error
}

// OK wraps a successful value.
func OK[T any](v T) Outcome[T] { return Outcome[T]{Value: v, Status: StatusOK} }

// Empty wraps a clean but empty value.
func Empty[T any](v T) Outcome[T] { return Outcome[T]{Value: v, Status: StatusEmpty} }

// Failed wraps a degraded value with the error that caused it.
func Failed[T any](v T, err error) Outcome[T] {
	return Outcome[T]{Value: v, Status: StatusFailed, Err: err}
}

// note counts the outcome in stats and logs failures.
func (o Outcome[T]) note(stats *domain.RunStats, log *zap.Logger, stage, subject string) {
	switch o.Status {
	case StatusFailed:
		if stats != nil {
			stats.Fail(stage)
		}
		log.Warn("stage failed, continuing",
			zap.String("stage", stage),
			zap.String("subject", subject),
			zap.Error(domain.NewStageError(stage, subject, o.Err)))
	case StatusEmpty:
		if stats != nil {
			stats.Nothing(stage)
		}
	}
}
