// Package response caches raw upstream response bodies in a bounded in-process
// LRU, optionally backed by a shared Redis tier.
package response

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/streetview-viewport/internal/cache"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
)

const (
	defaultSize = 512
	defaultTTL  = 5 * time.Minute
)

type Config struct {
	Size int
	TTL  time.Duration
}

type Store struct {
	l1  *expirable.LRU[string, []byte]
	l2  cache.Interface
	ttl time.Duration
	log *slog.Logger
}

// New builds a store. l2 may be nil.
func New(cfg Config, l2 cache.Interface, log *slog.Logger) *Store {
	size := cfg.Size
	if size <= 0 {
		size = defaultSize
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		l1:  expirable.NewLRU[string, []byte](size, nil, ttl),
		l2:  l2,
		ttl: ttl,
		log: log,
	}
}

// Get checks L1 then L2; an L2 hit is promoted into L1.
// L2 errors are logged and treated as misses.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if b, ok := s.l1.Get(key); ok {
		observability.IncResponseCache("l1", true)
		return b, true
	}
	observability.IncResponseCache("l1", false)

	if s.l2 == nil {
		return nil, false
	}
	b, ok, err := s.l2.Get(ctx, key)
	if err != nil {
		s.log.Warn("response cache l2 get failed", "key", key, "err", err)
		return nil, false
	}
	observability.IncResponseCache("l2", ok)
	if !ok {
		return nil, false
	}
	s.l1.Add(key, b)
	return b, true
}

func (s *Store) Put(ctx context.Context, key string, body []byte) {
	s.l1.Add(key, body)
	if s.l2 == nil {
		return
	}
	if err := s.l2.Set(ctx, key, body, s.ttl); err != nil {
		s.log.Warn("response cache l2 set failed", "key", key, "err", err)
	}
}

// Delete evicts keys from both tiers.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		s.l1.Remove(k)
	}
	if s.l2 == nil || len(keys) == 0 {
		return nil
	}
	if err := s.l2.Del(ctx, keys...); err != nil {
		return fmt.Errorf("response cache l2 del: %w", err)
	}
	return nil
}

func (s *Store) Len() int { return s.l1.Len() }
