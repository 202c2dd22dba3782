package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"grimm.is/ipfeed/internal/clock"
)

func newTestLimiter(limit int) (*Limiter, *clock.MockClock) {
	clk := clock.NewMockClock(time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC))
	return New(limit, time.Minute, clk), clk
}

func TestLimiter_Allow(t *testing.T) {
	l, _ := newTestLimiter(3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("192.0.2.1"), "request %d", i+1)
	}
	assert.False(t, l.Allow("192.0.2.1"))
	assert.True(t, l.Allow("192.0.2.2"), "keys are independent")
}

func TestLimiter_Refill(t *testing.T) {
	l, clk := newTestLimiter(2)

	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	clk.Advance(20 * time.Second)
	assert.Equal(t, 40*time.Second, l.RetryAfter("k"))
	assert.False(t, l.Allow("k"))

	clk.Advance(40 * time.Second)
	assert.Zero(t, l.RetryAfter("k"))
	assert.True(t, l.Allow("k"))
}

func TestLimiter_AllowN(t *testing.T) {
	l, _ := newTestLimiter(5)

	assert.True(t, l.AllowN("k", 3))
	assert.False(t, l.AllowN("k", 3))
	assert.True(t, l.AllowN("k", 2))
	assert.False(t, l.Allow("k"))
}

func TestLimiter_Disabled(t *testing.T) {
	tests := []struct {
		name string
		l    *Limiter
	}{
		{"nil", nil},
		{"zero limit", New(0, time.Minute, nil)},
		{"zero window", New(10, 0, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.l.Enabled())
			for i := 0; i < 100; i++ {
				assert.True(t, tt.l.Allow("k"))
			}
			assert.Zero(t, tt.l.RetryAfter("k"))
		})
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, clk := newTestLimiter(1)

	l.Allow("a")
	clk.Advance(30 * time.Second)
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	clk.Advance(30 * time.Second)
	assert.Equal(t, 1, l.CleanupExpired())
	assert.Equal(t, 1, l.Len())

	l.Reset("b")
	assert.Equal(t, 0, l.Len())
}
