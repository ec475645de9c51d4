package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), server.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewRedisStore error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, server
}

func testStoreRoundTrip(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss for unknown key, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "catalog", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	value, ok, err := store.Get(ctx, "catalog")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(value) != "payload" {
		t.Errorf("expected payload, got %q", value)
	}

	if err := store.Delete(ctx, "catalog"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "catalog"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	testStoreRoundTrip(t, NewMemoryStore())
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, _ := newTestRedisStore(t)
	testStoreRoundTrip(t, store)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	if err := store.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	now = now.Add(9 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("expected entry to be alive before ttl")
	}

	now = now.Add(time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected entry to expire at ttl")
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	store, server := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	server.FastForward(11 * time.Second)
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected expired key, got ok=%v err=%v", ok, err)
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, Options{Type: "memory"})
	if err != nil {
		t.Fatalf("NewStore(memory) error: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", store)
	}

	server := miniredis.RunT(t)
	store, err = NewStore(ctx, Options{Type: "redis", Address: server.Addr()})
	if err != nil {
		t.Fatalf("NewStore(redis) error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, ok := store.(*RedisStore); !ok {
		t.Errorf("expected *RedisStore, got %T", store)
	}

	if _, err := NewStore(ctx, Options{Type: "memcached"}); err == nil {
		t.Error("expected error for unsupported cache type")
	}
	if _, err := NewStore(ctx, Options{Type: "redis"}); err == nil {
		t.Error("expected error for redis without address")
	}
}
