package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be cached")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s should be cached", k)
		}
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
	hits, misses := c.Stats()
	if hits != 3 || misses != 1 {
		t.Fatalf("stats = %d/%d", hits, misses)
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Second).WithClock(clock.now)
	c.Set("a", 1)
	c.Set("b", 2)

	clock.t = clock.t.Add(500 * time.Millisecond)
	c.Set("b", 3)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a should still be valid")
	}

	clock.t = clock.t.Add(600 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should have expired")
	}
	if v, ok := c.Get("b"); !ok || v != 3 {
		t.Fatalf("b was refreshed and should be valid, got %v %v", v, ok)
	}

	clock.t = clock.t.Add(time.Second)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUDelete(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Size() != 1 {
		t.Fatalf("zero max size should hold one entry, got %d", c.Size())
	}
	c.Delete("b")
	c.Delete("missing")
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestManagerCleanNowAndStop(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](10, time.Second).WithClock(clock.now)
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	clock.t = clock.t.Add(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()

	idle := NewManager(nil)
	idle.Stop()
}
