package cache

import (
	"testing"
	"time"
)

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryWithClock(func() time.Time { return now })

	c.Set("models", []string{"a", "b"}, 10*time.Minute)

	v, ok := c.Get("models")
	if !ok {
		t.Fatal("expected hit")
	}
	if got := v.([]string); len(got) != 2 {
		t.Errorf("got %v", got)
	}

	now = now.Add(11 * time.Minute)
	if _, ok := c.Get("models"); ok {
		t.Error("expected entry to expire")
	}

	// expired entry was dropped; a re-set works again
	c.Set("models", []string{"c"}, time.Minute)
	if _, ok := c.Get("models"); !ok {
		t.Error("expected hit after re-set")
	}
}

func TestMemoryMiss(t *testing.T) {
	c := NewMemory()
	if _, ok := c.Get("absent"); ok {
		t.Error("unexpected hit")
	}
}
