package domain

import (
	"context"
	"time"
)

// Cache stores computed reports keyed by upload digest so an identical
// re-upload returns the cached report without rescoring. Supports two-phase
// caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetReport retrieves a cached report by upload digest.
	GetReport(ctx context.Context, digest string) (*Report, error)

	// SetReport caches a report under its upload digest.
	SetReport(ctx context.Context, digest string, report *Report, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis

	// ReportTTL is how long computed reports stay cached.
	ReportTTL time.Duration
}
