package cache

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// breakerCache wraps another Cache with a circuit breaker so an
// unreachable Redis degrades to cache misses instead of stalling every
// dashboard request on a connection timeout.
type breakerCache struct {
	inner Cache
	cb    *gobreaker.CircuitBreaker[string]
}

// WithBreaker guards the given cache. After a run of consecutive failures
// the breaker opens and calls fail fast until the cool-down elapses.
func WithBreaker(inner Cache, name string) Cache {
	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &breakerCache{inner: inner, cb: cb}
}

func (b *breakerCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (string, error) {
		return "", b.inner.Set(ctx, key, value, ttl)
	})
	return err
}

func (b *breakerCache) Get(ctx context.Context, key string) (string, error) {
	return b.cb.Execute(func() (string, error) {
		return b.inner.Get(ctx, key)
	})
}

func (b *breakerCache) GenerateKey(operation, key string) string {
	return b.inner.GenerateKey(operation, key)
}
