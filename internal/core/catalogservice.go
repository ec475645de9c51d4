package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jo-hoe/securecam/internal/backend/cache"
	"github.com/jo-hoe/securecam/internal/backend/catalog"
	"github.com/jo-hoe/securecam/internal/backend/metrics"
)

type scanFunc func(ctx context.Context, opts catalog.ScanOptions) (*catalog.Catalog, error)

// CatalogService serves the scanned camera catalog from a cache store and
// rescans the camera directory once the cached entry has expired.
type CatalogService struct {
	store   cache.Store
	key     string
	ttl     time.Duration
	options catalog.ScanOptions
	scan    scanFunc

	// serializes rescans so concurrent misses scan the directory once
	mu sync.Mutex

	// last cached bytes and their decoded catalog, shared read-only between requests
	decodedMu sync.RWMutex
	raw       []byte
	decoded   *catalog.Catalog
}

func NewCatalogService(store cache.Store, key string, ttl time.Duration, options catalog.ScanOptions) *CatalogService {
	return &CatalogService{
		store:   store,
		key:     key,
		ttl:     ttl,
		options: options,
		scan:    catalog.Scan,
	}
}

// Catalog returns the cached catalog, scanning the camera directory when the entry is missing or expired
func (service *CatalogService) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	if cached, ok := service.cached(ctx); ok {
		metrics.CatalogCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}

	service.mu.Lock()
	defer service.mu.Unlock()

	// another request may have refreshed the entry while this one waited
	if cached, ok := service.cached(ctx); ok {
		metrics.CatalogCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CatalogCacheLookups.WithLabelValues("miss").Inc()

	start := time.Now()
	result, err := service.scan(ctx, service.options)
	metrics.CatalogScanSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CatalogScans.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to scan cameras: %w", err)
	}
	metrics.CatalogScans.WithLabelValues("success").Inc()

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := service.store.Set(ctx, service.key, data, service.ttl); err != nil {
		// serve the fresh scan even if it could not be cached
		slog.Warn("failed to cache catalog", "key", service.key, "error", err)
	}
	service.remember(data, result)

	slog.Info("camera catalog refreshed",
		"cameras", len(result.Cameras),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// Refresh drops the cached catalog so the next call to Catalog rescans
func (service *CatalogService) Refresh(ctx context.Context) error {
	if err := service.store.Delete(ctx, service.key); err != nil {
		return fmt.Errorf("failed to drop cached catalog: %w", err)
	}
	return nil
}

func (service *CatalogService) cached(ctx context.Context) (*catalog.Catalog, bool) {
	data, ok, err := service.store.Get(ctx, service.key)
	if err != nil {
		metrics.CatalogCacheLookups.WithLabelValues("error").Inc()
		slog.Warn("failed to read cached catalog", "key", service.key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	service.decodedMu.RLock()
	decoded := service.decoded
	unchanged := decoded != nil && bytes.Equal(service.raw, data)
	service.decodedMu.RUnlock()
	if unchanged {
		return decoded, true
	}

	var result catalog.Catalog
	if err := json.Unmarshal(data, &result); err != nil {
		slog.Warn("discarding undecodable cached catalog", "key", service.key, "error", err)
		return nil, false
	}
	service.remember(data, &result)
	return &result, true
}

func (service *CatalogService) remember(data []byte, decoded *catalog.Catalog) {
	service.decodedMu.Lock()
	service.raw = data
	service.decoded = decoded
	service.decodedMu.Unlock()
}
