package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int64, string](2, time.Minute)
	c.Set(1, "one")
	c.Set(2, "two")
	if _, ok := c.Get(1); !ok {
		t.Fatalf("expected key 1")
	}
	c.Set(3, "three")

	if _, ok := c.Get(2); ok {
		t.Fatalf("key 2 should have been evicted")
	}
	if v, ok := c.Get(1); !ok || v != "one" {
		t.Fatalf("key 1 lost: %q %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int64, int](10, time.Second).WithClock(clock.Now)
	c.Set(1, 10)
	c.Set(2, 20)

	clock.Advance(500 * time.Millisecond)
	c.Set(2, 21)
	clock.Advance(600 * time.Millisecond)

	if _, ok := c.Get(1); ok {
		t.Fatalf("key 1 should have expired")
	}
	if v, ok := c.Get(2); !ok || v != 21 {
		t.Fatalf("refreshed key 2 missing: %d %v", v, ok)
	}

	clock.Advance(time.Second)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("cleaned %d, want 1", n)
	}
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c := NewLRUCache[string, int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Size() != 1 {
		t.Fatalf("size below minimum capacity: %d", c.Size())
	}
	c.Delete("b")
	if c.Size() != 0 {
		t.Fatalf("delete failed")
	}
	c.Set("c", 3)
	c.Purge()
	if _, ok := c.Get("c"); ok || c.Size() != 0 {
		t.Fatalf("purge failed")
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int, int](5, time.Millisecond).WithClock(clock.Now)
	c.Set(1, 1)
	c.Set(2, 2)
	clock.Advance(time.Second)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("cleaned %d, want 2", n)
	}

	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
