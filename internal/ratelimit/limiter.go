package ratelimit

import "context"

// RateLimiter throttles outbound deliveries per push-service host.
type RateLimiter interface {
	Allow(ctx context.Context, host string) (bool, error)
	Wait(ctx context.Context, host string) error
}
