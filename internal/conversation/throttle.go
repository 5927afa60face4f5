package conversation

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// ThrottledLLMClient spaces out calls to an upstream LLM provider so that
// bursts of classifier traffic stay inside the provider's rate limits.
type ThrottledLLMClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewThrottledLLMClient wraps inner with a rate limiter. minDelay is the
// minimum spacing between consecutive requests and perMinute caps the
// sustained request rate. Zero values disable the corresponding constraint.
func NewThrottledLLMClient(inner LLMClient, minDelay time.Duration, perMinute int) *ThrottledLLMClient {
	interval := minDelay
	if perMinute > 0 {
		byRate := time.Minute / time.Duration(perMinute)
		if byRate > interval {
			interval = byRate
		}
	}

	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	return &ThrottledLLMClient{inner: inner, limiter: limiter}
}

// Complete blocks until the limiter admits the request, then delegates.
func (c *ThrottledLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return LLMResponse{}, err
		}
	}
	return c.inner.Complete(ctx, req)
}
