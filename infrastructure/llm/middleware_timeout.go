package llm

import (
	"context"
	"errors"
	"time"
)

type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware bounds every call with its own deadline. Placed inside
// RetryMiddleware each attempt gets a fresh one.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

// DoRequest reports an expired per-call deadline as a retryable
// ErrorTypeTimeout unless the caller's own context has ended.
func (t *timeoutLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.next.DoRequest(callCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) &&
		errorTypeOf(err) == ErrorTypeUnknown {
		return Response{}, NewProviderError(t.next.GetModel(), ErrorTypeTimeout, 0, "call exceeded "+t.timeout.String(), err)
	}
	return resp, err
}

func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }
