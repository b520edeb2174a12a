package ratelimit

import (
	"sync"
	"time"
)

// Config describes the quota of one bucket key.
type Config struct {
	Limit  int
	Window time.Duration
	Burst  int
}

// Registry hands out one bucket per key, for example a provider and model
// pair or a client address. Buckets live for the lifetime of the registry.
type Registry struct {
	mu       sync.RWMutex
	buckets  map[string]*TokenBucket
	defaults Config
}

func NewRegistry(defaults Config) *Registry {
	return &Registry{
		buckets:  make(map[string]*TokenBucket),
		defaults: defaults,
	}
}

// Bucket returns the bucket for key using the registry defaults.
func (r *Registry) Bucket(key string) *TokenBucket {
	return r.BucketWith(key, r.defaults)
}

// BucketWith returns the bucket for key, creating it with cfg on first use.
func (r *Registry) BucketWith(key string, cfg Config) *TokenBucket {
	r.mu.RLock()
	bucket, exists := r.buckets[key]
	r.mu.RUnlock()
	if exists {
		return bucket
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if existing, ok := r.buckets[key]; ok {
		return existing
	}
	bucket = NewTokenBucket(cfg.Limit, cfg.Window, cfg.Burst)
	r.buckets[key] = bucket
	return bucket
}

// Allow consumes a token from the bucket for key and reports its status.
func (r *Registry) Allow(key string) (bool, Info) {
	bucket := r.Bucket(key)
	allowed := bucket.Allow()
	info := bucket.Status()
	info.Allowed = allowed
	return allowed, info
}
