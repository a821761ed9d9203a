package cache

import (
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	c := New[string](2)
	if c == nil {
		t.Fatalf("expected cache instance")
	}

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c.Set("key", "value", now.Add(time.Hour), now)

	got, ok := c.Get("key", now)
	if !ok {
		t.Fatalf("expected cached value to be present")
	}

	if got != "value" {
		t.Fatalf("unexpected value: %q", got)
	}
}

func TestLRUExpiresEntries(t *testing.T) {
	c := New[int](2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	c.Set("key", 1, now.Add(time.Minute), now)

	if _, ok := c.Get("key", now.Add(2*time.Minute)); ok {
		t.Fatalf("expected cache entry to expire")
	}

	if c.Len() != 0 {
		t.Fatalf("expected expired cache entry to be removed")
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string](2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)

	c.Set("a", "value-a", expiresAt, now)
	c.Set("b", "value-b", expiresAt, now)

	if _, ok := c.Get("a", now); !ok {
		t.Fatalf("expected entry a to exist before eviction check")
	}

	c.Set("c", "value-c", expiresAt, now)

	if _, ok := c.Get("a", now); !ok {
		t.Fatalf("expected entry a to remain after evicting least recently used")
	}

	if _, ok := c.Get("b", now); ok {
		t.Fatalf("expected entry b to be evicted")
	}
}

func TestLRUSetEvictsExpiredEntries(t *testing.T) {
	c := New[string](4)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	c.Set("old", "value", now.Add(time.Minute), now)
	c.Set("new", "value", now.Add(time.Hour), now.Add(2*time.Minute))

	if c.Len() != 1 {
		t.Fatalf("expected expired entry to be evicted on set, got %d entries", c.Len())
	}
}

func TestLRUIgnoresAlreadyExpired(t *testing.T) {
	c := New[string](2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	c.Set("key", "value", now, now)

	if c.Len() != 0 {
		t.Fatalf("expected entry expiring now to be ignored")
	}
}

func TestNilCacheMisses(t *testing.T) {
	var c *LRU[string]

	c.Set("key", "value", time.Now().Add(time.Hour), time.Now())

	if _, ok := c.Get("key", time.Now()); ok {
		t.Fatalf("expected nil cache to miss")
	}

	if New[string](0) != nil {
		t.Fatalf("expected nil cache for zero size")
	}
}
