// Package cache defines the key/value contract shared by the response cache and preference stores.
package cache

import (
	"context"
	"time"
)

type Interface interface {
	// Get reports found=false for a missing key; err is reserved for backend failures.
	Get(ctx context.Context, key string) (val []byte, found bool, err error)
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
