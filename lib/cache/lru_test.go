package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := NewLRUCache(16, time.Minute)

	if _, loaded := c.Get("/widget?feq_name=bolt"); loaded {
		t.Errorf("Expected miss on empty cache")
	}

	if err := c.Set("/widget?feq_name=bolt", []byte("response")); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	value, loaded := c.Get("/widget?feq_name=bolt")
	if !loaded {
		t.Fatalf("Expected hit after Set")
	}
	if string(value) != "response" {
		t.Errorf("Expected cached value response, got %q", value)
	}

	c.Set("/widget?feq_name=bolt", []byte("updated"))
	value, _ = c.Get("/widget?feq_name=bolt")
	if string(value) != "updated" {
		t.Errorf("Expected replaced value, got %q", value)
	}
}

func TestValueIsolation(t *testing.T) {
	c := NewLRUCache(16, time.Minute)

	buf := []byte("original")
	c.Set("key", buf)
	buf[0] = 'X'

	value, _ := c.Get("key")
	if string(value) != "original" {
		t.Errorf("Expected cached value to be isolated from the caller's buffer, got %q", value)
	}
}

func TestExpiry(t *testing.T) {
	c := NewLRUCache(16, 50*time.Millisecond)

	c.Set("key", []byte("value"))
	if _, loaded := c.Get("key"); !loaded {
		t.Fatalf("Expected hit before expiry")
	}

	time.Sleep(100 * time.Millisecond)

	if _, loaded := c.Get("key"); loaded {
		t.Errorf("Expected entry to expire")
	}
}

func TestEviction(t *testing.T) {
	c := NewLRUCache(2, time.Minute)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	hits := 0
	for _, key := range []string{"a", "b", "c"} {
		if _, loaded := c.Get(key); loaded {
			hits++
		}
	}
	if hits > 2 {
		t.Errorf("Expected at most 2 live entries after exceeding capacity, got %d", hits)
	}
	if _, loaded := c.Get("c"); !loaded {
		t.Errorf("Expected the most recent entry to survive eviction")
	}
}

func TestPurge(t *testing.T) {
	c := NewLRUCache(16, time.Minute)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Purge()

	if _, loaded := c.Get("a"); loaded {
		t.Errorf("Expected cache to be empty after Purge")
	}
	if _, loaded := c.Get("b"); loaded {
		t.Errorf("Expected cache to be empty after Purge")
	}
}
