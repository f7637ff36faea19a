package cache

import (
	"testing"
	"time"
)

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("2025-01", "jan")
	c.Set("2025-02", "feb")
	c.Set("2025-03", "mar")
	c.Get("2025-01") // 2025-02 becomes the oldest
	c.Set("2025-04", "apr")

	if _, found := c.Get("2025-02"); found {
		t.Error("2025-02 should have been evicted")
	}
	for _, key := range []string{"2025-01", "2025-03", "2025-04"} {
		if _, found := c.Get(key); !found {
			t.Errorf("%s should still exist", key)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(30 * time.Second)
	c.Set("c", 3)

	if v, found := c.Get("a"); !found || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, found)
	}

	now = now.Add(45 * time.Second)
	if _, found := c.Get("a"); found {
		t.Error("a should have expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (only b left to expire)", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheOverwrite(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("k", "old")
	c.Set("k", "new")

	if v, _ := c.Get("k"); v != "new" {
		t.Errorf("Get(k) = %q, want new", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheClearAndStats(t *testing.T) {
	c := NewLRUCache[int](5, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 2 {
		t.Errorf("Stats() = %+v", stats)
	}

	if n := c.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if _, found := c.Get("b"); found {
		t.Error("b should be gone after Clear")
	}
	c.Set("c", 3)
	if c.Size() != 1 {
		t.Errorf("cache unusable after Clear, Size() = %d", c.Size())
	}
}

func TestManagerCleanNow(t *testing.T) {
	c := NewLRUCache[int](5, time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(2 * time.Minute)

	m := NewManager()
	m.Register("rollups", c)
	if removed := m.CleanNow(); removed != 2 {
		t.Errorf("CleanNow() = %d, want 2", removed)
	}
}

func TestManagerStop(t *testing.T) {
	t.Run("never started", func(t *testing.T) {
		m := NewManager()
		done := make(chan struct{})
		go func() {
			m.Stop()
			m.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Stop blocked without a running cleanup loop")
		}
	})

	t.Run("running", func(t *testing.T) {
		m := NewManager()
		m.Register("rollups", NewLRUCache[int](1, time.Millisecond))
		m.StartCleanup(5 * time.Millisecond)
		m.StartCleanup(5 * time.Millisecond)
		time.Sleep(20 * time.Millisecond)
		m.Stop()
	})
}
