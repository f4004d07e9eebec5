package redisstore

import (
	"context"
	"time"

	"github.com/mohammed-shakir/streetview-viewport/internal/cache"
)

// timeoutAdapter bounds every operation so a slow Redis never stalls a search.
type timeoutAdapter struct {
	inner   cache.Interface
	timeout time.Duration
}

// WithOpTimeout wraps c so each call runs under its own deadline.
func WithOpTimeout(c cache.Interface, t time.Duration) cache.Interface {
	if t <= 0 {
		return c
	}
	return &timeoutAdapter{inner: c, timeout: t}
}

func (a *timeoutAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

func (a *timeoutAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.inner.Get(ctx, key)
}

func (a *timeoutAdapter) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.inner.MGet(ctx, keys)
}

func (a *timeoutAdapter) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.inner.Set(ctx, key, val, ttl)
}

func (a *timeoutAdapter) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()
	return a.inner.Del(ctx, keys...)
}
