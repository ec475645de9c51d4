package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is a byte oriented key/value cache with per-entry expiry
type Store interface {
	// Get returns the cached value and true, or false when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Options struct {
	Type     string
	Address  string
	Password string
	DB       int
}

// NewStore creates the cache backend selected by opts.Type
func NewStore(ctx context.Context, opts Options) (store Store, err error) {
	switch opts.Type {
	case "", "memory":
		store = NewMemoryStore()
	case "redis":
		store, err = NewRedisStore(ctx, opts.Address, opts.Password, opts.DB)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", opts.Type)
	}

	slog.Info("cache initialized", "type", opts.Type)
	return store, nil
}
