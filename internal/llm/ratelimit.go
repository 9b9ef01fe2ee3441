package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient spaces out completion calls to stay under a provider's
// requests-per-minute quota.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimitedClient allows requestsPerMinute calls with a burst of one.
// requestsPerMinute <= 0 returns inner unchanged.
func NewRateLimitedClient(inner Client, requestsPerMinute int) Client {
	if requestsPerMinute <= 0 {
		return inner
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

func (r *RateLimitedClient) Name() string { return r.inner.Name() }

func (r *RateLimitedClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, prompt)
}
