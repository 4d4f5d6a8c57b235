// Package testutil provides common utility functions for testing.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/iwvelando/espp-forecast/internal/animation"
)

// ManualClock is a virtual clock. Scheduled calls fire synchronously on the
// goroutine calling Advance, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Duration
	seq      int
	fn       func()
	stopped  bool
	fired    bool
}

// NewManualClock returns a clock at virtual time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc schedules f to run once the clock has advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) animation.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, deadline: c.now + d, seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward by d, firing every call that comes due,
// including calls scheduled by earlier calls within the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.deadline
		next.fired = true
		c.mu.Unlock()

		next.fn()
	}
}

// Now returns the elapsed virtual time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of scheduled calls that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *ManualClock) nextDueLocked(target time.Duration) *manualTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline == c.timers[j].deadline {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline < c.timers[j].deadline
	})
	if len(c.timers) == 0 || c.timers[0].deadline > target {
		return nil
	}
	return c.timers[0]
}
