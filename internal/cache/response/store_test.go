package response

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/streetview-viewport/internal/cache/redisstore"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_L1Only(t *testing.T) {
	s := New(Config{Size: 2, TTL: time.Minute}, nil, quietLogger())
	ctx := context.Background()

	if _, ok := s.Get(ctx, "a"); ok {
		t.Fatalf("empty store should miss")
	}
	s.Put(ctx, "a", []byte("1"))
	s.Put(ctx, "b", []byte("2"))
	s.Put(ctx, "c", []byte("3"))

	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if _, ok := s.Get(ctx, "a"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	if b, ok := s.Get(ctx, "c"); !ok || string(b) != "3" {
		t.Fatalf("Get c = %q %v", b, ok)
	}
}

func TestStore_L2PromotesIntoL1(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	writer := New(Config{TTL: time.Minute}, rc, quietLogger())
	writer.Put(ctx, "resp:photo:1", []byte(`{"ok":true}`))

	if ttl := mr.TTL("resp:photo:1"); ttl != time.Minute {
		t.Fatalf("l2 ttl = %v, want 1m", ttl)
	}

	reader := New(Config{TTL: time.Minute}, rc, quietLogger())
	if reader.Len() != 0 {
		t.Fatalf("fresh reader should have empty l1")
	}
	b, ok := reader.Get(ctx, "resp:photo:1")
	if !ok || string(b) != `{"ok":true}` {
		t.Fatalf("Get = %q %v", b, ok)
	}
	if reader.Len() != 1 {
		t.Fatalf("l2 hit should be promoted into l1")
	}
}

func TestStore_L2FailureIsAMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	mr.Close()

	s := New(Config{}, rc, quietLogger())
	if _, ok := s.Get(ctx, "missing"); ok {
		t.Fatalf("expected miss when l2 is down")
	}
	s.Put(ctx, "k", []byte("v"))
	if b, ok := s.Get(ctx, "k"); !ok || string(b) != "v" {
		t.Fatalf("l1 should still serve after l2 failure")
	}
}

func TestStore_DeleteEvictsBothTiers(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	s := New(Config{TTL: time.Minute}, rc, quietLogger())
	s.Put(ctx, "resp:detection:1", []byte("a"))
	s.Put(ctx, "resp:detection:2", []byte("b"))

	if err := s.Delete(ctx, "resp:detection:1", "resp:detection:missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get(ctx, "resp:detection:1"); ok {
		t.Fatalf("deleted key still served")
	}
	if mr.Exists("resp:detection:1") {
		t.Fatalf("deleted key still in l2")
	}
	if _, ok := s.Get(ctx, "resp:detection:2"); !ok {
		t.Fatalf("unrelated key evicted")
	}
}
