package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
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
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSlidingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(2, time.Minute, clock.Now, time.Hour)
	defer l.Close()

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "ключи независимы")

	clock.Advance(30 * time.Second)
	assert.False(t, l.Allow("a"))

	clock.Advance(31 * time.Second)
	assert.True(t, l.Allow("a"))
}

func TestReleaseFreesSlot(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(1, time.Minute, clock.Now)
	defer l.Close()

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Release("a")
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	l.Release("ghost")
	assert.True(t, l.Allow("ghost"))
}

func TestSweepDropsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newLimiter(5, time.Minute, clock.Now, time.Hour)
	defer l.Close()

	l.Allow("a")
	clock.Advance(2 * time.Minute)
	l.Allow("b")
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.requests, "a")
	assert.Contains(t, l.requests, "b")
}

func TestDisabledLimiter(t *testing.T) {
	l := New(0, time.Minute, nil)
	defer l.Close()
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("a"))
	}
	l.Close()
}
