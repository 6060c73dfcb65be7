// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// TestTTLCache_Get_ExpiredEntryIsMiss tests that an entry past its TTL is
// treated as a miss and removed from the cache on the read that finds it.
func TestTTLCache_Get_ExpiredEntryIsMiss(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := New(10, 5*time.Minute, WithClock(clock.Now))

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatal("Expected hit before expiry")
	}

	clock.Advance(5*time.Minute + time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry removed, len=%d", c.Len())
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
}

// TestTTLCache_Get_ExactTTLBoundaryIsHit tests that an entry aged exactly
// its TTL is still fresh; expiry requires strictly more than the TTL.
func TestTTLCache_Get_ExactTTLBoundaryIsHit(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := New(10, time.Minute, WithClock(clock.Now))

	c.Set("k", 1)
	clock.Advance(time.Minute)
	if _, ok := c.Get("k"); !ok {
		t.Error("Expected hit at exact TTL boundary")
	}
}

// TestTTLCache_Set_EvictsOldestAtCapacity tests that inserting a new key
// into a full cache evicts the entry with the oldest creation time, and
// that size never exceeds the maximum.
func TestTTLCache_Set_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := New(3, time.Hour, WithClock(clock.Now))

	c.Set("a", 1)
	clock.Advance(time.Second)
	c.Set("b", 2)
	clock.Advance(time.Second)
	c.Set("c", 3)

	// Reading "a" must not protect it; eviction is by creation time, not
	// recency of use.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Expected hit on a")
	}

	clock.Advance(time.Second)
	c.Set("d", 4)

	if c.Len() != 3 {
		t.Fatalf("Expected size 3 after eviction, got %d", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("Expected oldest entry a to be evicted")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("Expected %q to survive eviction", k)
		}
	}
}

// TestTTLCache_Set_OverwriteDoesNotEvict tests that replacing an existing
// key in a full cache keeps every other entry in place.
func TestTTLCache_Set_OverwriteDoesNotEvict(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := New(2, time.Hour, WithClock(clock.Now))

	c.Set("a", 1)
	clock.Advance(time.Second)
	c.Set("b", 2)
	clock.Advance(time.Second)
	c.Set("a", 10)

	if c.Len() != 2 {
		t.Fatalf("Expected size 2, got %d", c.Len())
	}
	v, ok := c.Get("a")
	if !ok || v.(int) != 10 {
		t.Errorf("Expected overwritten value 10, got %v (ok=%v)", v, ok)
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("Expected b untouched by overwrite")
	}
}

// TestTTLCache_SetWithTTL_PerEntryOverride tests that a per-entry TTL
// overrides the cache default in both directions.
func TestTTLCache_SetWithTTL_PerEntryOverride(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	c := New(10, time.Minute, WithClock(clock.Now))

	c.SetWithTTL("short", 1, 10*time.Second)
	c.SetWithTTL("long", 2, time.Hour)

	clock.Advance(30 * time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("Expected short-lived entry expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("Expected long-lived entry fresh")
	}
}

// TestTTLCache_Stats_HitRate tests hit/miss accounting: two hits and one
// miss must yield a hit rate of 2/3.
func TestTTLCache_Stats_HitRate(t *testing.T) {
	t.Parallel()
	c := New(10, time.Minute)

	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("absent")

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Fatalf("Expected 2 hits / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
	want := 2.0 / 3.0
	if diff := stats.HitRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected hit rate %.6f, got %.6f", want, stats.HitRate)
	}
}

// TestTTLCache_Stats_EmptyCache tests that a cache with no lookups reports
// a zero hit rate instead of dividing by zero.
func TestTTLCache_Stats_EmptyCache(t *testing.T) {
	t.Parallel()
	c := New(5, 30*time.Second)

	stats := c.Stats()
	if stats.HitRate != 0 {
		t.Errorf("Expected zero hit rate, got %f", stats.HitRate)
	}
	if stats.Size != 0 || stats.MaxSize != 5 {
		t.Errorf("Unexpected size accounting: %+v", stats)
	}
	if stats.TTLSeconds != 30 {
		t.Errorf("Expected ttl_seconds 30, got %f", stats.TTLSeconds)
	}
}

// TestTTLCache_Clear_KeepsCounters tests that Clear drops entries but
// preserves the lifetime hit/miss counters.
func TestTTLCache_Clear_KeepsCounters(t *testing.T) {
	t.Parallel()
	c := New(10, time.Minute)

	c.Set("k", "v")
	c.Get("k")
	c.Get("absent")
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache after clear, len=%d", c.Len())
	}
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected counters to survive clear, got %d / %d", stats.Hits, stats.Misses)
	}
}

// TestTTLCache_Delete tests removal of a single key.
func TestTTLCache_Delete(t *testing.T) {
	t.Parallel()
	c := New(10, time.Minute)

	c.Set("k", "v")
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("Expected miss after delete")
	}
}

// TestTTLCache_ConcurrentAccess exercises the cache from many goroutines.
// Run with -race; the assertion is only that the size bound holds.
func TestTTLCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	c := New(50, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%75)
				c.Set(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("Size bound violated: %d > 50", c.Len())
	}
}
