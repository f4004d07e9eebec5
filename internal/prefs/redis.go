package prefs

import (
	"context"

	"github.com/mohammed-shakir/streetview-viewport/internal/cache"
	"github.com/mohammed-shakir/streetview-viewport/internal/cache/keys"
)

type redisBackend struct {
	cli     cache.Interface
	session string
	closer  func() error
}

// NewRedis stores preferences under pref:<session>:<name> without expiry.
// closer may be nil when the client is shared.
func NewRedis(cli cache.Interface, session string, closer func() error) Store {
	return newStore(&redisBackend{cli: cli, session: session, closer: closer})
}

func (r *redisBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.cli.Get(ctx, keys.PrefKey(r.session, key))
}

func (r *redisBackend) set(ctx context.Context, key string, val []byte) error {
	return r.cli.Set(ctx, keys.PrefKey(r.session, key), val, 0)
}

func (r *redisBackend) close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
