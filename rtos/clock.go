package rtos

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock is the tick source spec.md §4.2 calls TickClock: a monotonic
// unsigned tick counter plus sleep_for/wait_for helpers built on the
// thread's timed suspend. Subtraction between two Now() readings is modular,
// which plain uint64 arithmetic already gives for free on wraparound.
//
// A real Clock derives its ticks from wall-clock time, matching the
// teacher's System.StartTick (a time.Ticker driving an atomic counter).
// NewManualClock instead only advances via Tick/AdvanceTo/Run, for
// deterministic tests in the style of hal's gpio_signal_test.go
// injected-clock closures.
type Clock struct {
	tickDur time.Duration
	manual  bool
	seq     atomic.Uint64
	epoch   time.Time
}

// NewClock creates a wall-clock-driven Clock with the given tick period.
func NewClock(tickDur time.Duration) *Clock {
	if tickDur <= 0 {
		tickDur = time.Millisecond
	}
	return &Clock{tickDur: tickDur, epoch: time.Now()}
}

// NewManualClock creates a Clock whose tick counter only advances via
// Tick/AdvanceTo/Run, for tests that want to drive time explicitly.
func NewManualClock(tickDur time.Duration) *Clock {
	c := NewClock(tickDur)
	c.manual = true
	return c
}

// Now returns the current tick count.
func (c *Clock) Now() uint64 {
	if c.manual {
		return c.seq.Load()
	}
	return uint64(time.Since(c.epoch) / c.tickDur)
}

// Elapsed returns the number of ticks since start, wrapping modularly.
func (c *Clock) Elapsed(start uint64) uint64 { return c.Now() - start }

// TickDuration returns the wall-clock duration of one tick.
func (c *Clock) TickDuration() time.Duration { return c.tickDur }

// Tick advances a manual clock by one tick and returns the new count.
func (c *Clock) Tick() uint64 { return c.seq.Add(1) }

// AdvanceTo sets a manual clock's tick count directly.
func (c *Clock) AdvanceTo(tick uint64) { c.seq.Store(tick) }

// Run drives a manual clock's tick counter at period until ctx is done —
// the Go-native substitute for a hardware SysTick ISR, grounded on the
// teacher's System.StartTick.
func (c *Clock) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = c.tickDur
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.seq.Add(1)
		}
	}
}

// SleepFor suspends self for a true relative delay of ticks ticks,
// re-suspending across any spurious early wakeup, and returns EINTR if
// self is interrupted before the delay elapses. A zero timeout is
// treated as one tick, matching the original's timed-operation helpers.
func (c *Clock) SleepFor(self *Thread, ticks uint64) error {
	if ticks == 0 {
		ticks = 1
	}
	start := c.Now()
	for {
		elapsed := c.Elapsed(start)
		if elapsed >= ticks {
			return nil
		}
		remaining := ticks - elapsed
		self.suspendTimeout(c.tickDur * time.Duration(remaining))
		if self.Interrupted() {
			return EINTR
		}
	}
}

// WaitFor suspends self once until ticks ticks elapse or any wakeup
// arrives, whichever comes first, without re-suspending after an early
// wakeup. TimedSigWait and the message queue's timed operations do not
// call it; they run their own timed suspend loop.
func (c *Clock) WaitFor(self *Thread, ticks uint64) error {
	if ticks == 0 {
		ticks = 1
	}
	self.suspendTimeout(c.tickDur * time.Duration(ticks))
	if self.Interrupted() {
		return EINTR
	}
	return nil
}
