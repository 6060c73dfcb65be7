// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

// Package cache provides the in-memory TTL caches backing Selene's retrieval
// and context-assembly layers, plus the deterministic cache key generator.
package cache

import (
	"sync"
	"time"
)

// =============================================================================
// Entry
// =============================================================================

// entry is a single cached value with its creation time and lifetime.
// Age is measured from creation only; reads never refresh it.
type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// =============================================================================
// TTLCache
// =============================================================================

// Stats is a point-in-time snapshot of a cache's occupancy and hit accounting.
type Stats struct {
	Size       int     `json:"size"`
	MaxSize    int     `json:"max_size"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	TTLSeconds float64 `json:"ttl_seconds"`
}

// TTLCache is a bounded in-memory cache with per-entry expiration.
//
// # Description
//
// Expiration is lazy: entries are checked on read and removed when stale.
// There is no background sweeper, so an idle cache holds expired entries
// until the next lookup or eviction touches them. When full, inserting a
// new key evicts the entry with the oldest creation time. This is not LRU;
// a frequently read entry is evicted as readily as a cold one.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A single mutex guards the map,
// which is adequate at the sizes Selene runs (tens to low hundreds of
// entries per tier).
type TTLCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxSize    int
	defaultTTL time.Duration
	hits       uint64
	misses     uint64
	now        func() time.Time
}

// Option customizes a TTLCache at construction.
type Option func(*TTLCache)

// WithClock substitutes the time source. Tests use this to step through
// expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// New creates a TTLCache holding at most maxSize entries, each living for
// defaultTTL unless SetWithTTL overrides it. A non-positive maxSize falls
// back to 1 and a non-positive defaultTTL to one minute.
func New(maxSize int, defaultTTL time.Duration, opts ...Option) *TTLCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	c := &TTLCache{
		entries:    make(map[string]*entry),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key. An entry past its TTL is removed
// and reported as a miss, exactly as if it had never been stored.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Set stores value under key with the cache's default TTL.
func (c *TTLCache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with an entry-specific TTL.
//
// Overwriting an existing key replaces the entry in place with a fresh
// creation time and never triggers eviction. Inserting a new key into a
// full cache evicts the oldest-created entry first.
func (c *TTLCache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
	}
}

// evictOldestLocked removes the entry with the earliest creation time.
// Caller must hold c.mu.
func (c *TTLCache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
		found     bool
	)
	for k, e := range c.entries {
		if !found || e.createdAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.createdAt
			found = true
		}
	}
	if found {
		delete(c.entries, oldestKey)
	}
}

// Delete removes key if present.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry. Hit and miss counters are cumulative over the
// cache's lifetime and survive a clear.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len reports the current number of entries, including any that have
// expired but not yet been touched by a read.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache's current state.
func (c *TTLCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rate float64
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:       len(c.entries),
		MaxSize:    c.maxSize,
		Hits:       c.hits,
		Misses:     c.misses,
		HitRate:    rate,
		TTLSeconds: c.defaultTTL.Seconds(),
	}
}
