package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-qgen/internal/ports"
)

// ErrCircuitOpen is returned without calling the provider while its breaker
// is open. It matches ports.ErrServiceUnavailable.
var ErrCircuitOpen = fmt.Errorf("%w: circuit breaker is open", ports.ErrServiceUnavailable)

// CircuitBreakerState is the state of one provider's breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	// StateHalfOpen admits a single probe after the cooldown.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CircuitBreakerMetrics receives breaker events for one provider.
type CircuitBreakerMetrics interface {
	RecordState(state CircuitBreakerState)
	// RecordTrip counts requests rejected by an open breaker.
	RecordTrip()
	RecordSuccess()
	RecordFailure()
}

// CircuitBreaker opens after maxFailures consecutive provider failures and
// stays open for the cooldown.
//
// Cancellation and classified client errors such as a content policy block
// do not count as failures.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       CircuitBreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool
	now         func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Call runs fn unless the breaker is open. The lock is not held while fn
// runs.
func (cb *CircuitBreaker) Call(fn func() error) error {
	probe, ok := cb.admit()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn()
	cb.settle(probe, err)
	return err
}

func (cb *CircuitBreaker) admit() (probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false, false
		}
		cb.state = StateHalfOpen
	}
	if cb.probing {
		return false, false
	}
	cb.probing = true
	return true, true
}

func (cb *CircuitBreaker) settle(probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}

	switch {
	case err == nil:
		cb.failures = 0
		cb.state = StateClosed
	case !countsAsFailure(err):
		switch {
		case !probe:
		case errors.Is(err, context.Canceled):
			// The probe never finished; the next caller probes again.
			cb.state = StateOpen
		default:
			cb.failures = 0
			cb.state = StateClosed
		}
	default:
		cb.failures++
		if probe || cb.failures >= cb.maxFailures {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	}
}

func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Type != ErrorTypeUnknown {
		return pe.Type.Retryable() || pe.Type == ErrorTypeAuthentication
	}
	return true
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerLLM struct {
	next    CoreLLM
	cb      *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware guards a provider with a breaker.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics is CircuitBreakerMiddleware reporting
// to metrics, which may be nil. Every client built from the returned
// middleware shares one breaker.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{next: next, cb: cb, metrics: metrics}
	}
}

func (c *circuitBreakerLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := c.cb.Call(func() error {
		var err error
		resp, err = c.next.DoRequest(ctx, req)
		return err
	})

	if c.metrics != nil {
		switch {
		case err == nil:
			c.metrics.RecordSuccess()
		case errors.Is(err, ErrCircuitOpen):
			c.metrics.RecordTrip()
		default:
			c.metrics.RecordFailure()
		}
		c.metrics.RecordState(c.cb.GetState())
	}
	return resp, err
}

func (c *circuitBreakerLLM) GetModel() string { return c.next.GetModel() }
