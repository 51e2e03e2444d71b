package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// WrapRateLimitToEmbedder makes every embedding call wait for a token from
// limiter. A nil limiter returns e unchanged.
func WrapRateLimitToEmbedder(e IEmbedder, limiter *rate.Limiter) IEmbedder {
	if e == nil || limiter == nil {
		return e
	}
	return &rateLimitedEmbedder{next: e, limiter: limiter}
}

func WrapRateLimitToGenerator(g IGenerator, limiter *rate.Limiter) IGenerator {
	if g == nil || limiter == nil {
		return g
	}
	return &rateLimitedGenerator{next: g, limiter: limiter}
}

func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, texts, taskType)
}

func (r *rateLimitedEmbedder) ModelName() string {
	return r.next.ModelName()
}

type rateLimitedGenerator struct {
	next    IGenerator
	limiter *rate.Limiter
}

func (r *rateLimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, prompt)
}
