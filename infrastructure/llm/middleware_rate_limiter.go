package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-qgen/internal/ports"
)

type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware paces calls with a token bucket of limit calls per
// second and the given burst. Every client built from the returned
// middleware draws from the same bucket, so all models of one provider
// share its quota.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, max(burst, 1))
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

// DoRequest takes one token per call regardless of req.Candidates. A wait
// that cannot finish before ctx ends fails with ports.ErrRateLimited
// without reaching the provider.
func (r *rateLimitedLLM) DoRequest(ctx context.Context, req Request) (Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("%w: local rate limit: %w", ports.ErrRateLimited, err)
	}
	return r.next.DoRequest(ctx, req)
}

func (r *rateLimitedLLM) GetModel() string { return r.next.GetModel() }
