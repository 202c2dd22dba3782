package clock

import (
	"testing"
	"time"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected %v, got %v", start, c.Now())
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("expected 90s since start, got %v", got)
	}

	later := start.Add(time.Hour)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("Set did not take effect: %v", c.Now())
	}
}

func TestOrReal(t *testing.T) {
	if _, ok := OrReal(nil).(*RealClock); !ok {
		t.Error("nil clock should fall back to RealClock")
	}

	m := NewMockClock(time.Unix(0, 0))
	if OrReal(m) != m {
		t.Error("non-nil clock should be returned unchanged")
	}
}
