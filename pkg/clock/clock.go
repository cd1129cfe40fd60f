// Package clock abstracts wall-clock time and delayed callbacks so that timer
// arithmetic can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time and schedules callbacks
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback created by AfterFunc
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was stopped.
	Stop() bool
}

// Real is the Clock backed by package time
type Real struct{}

// New returns the system clock
func New() Clock {
	return Real{}
}

// Now returns the current time
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f in its own goroutine after d
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Ticker calls a function every period until stopped. Each firing schedules
// the next one on the clock before running fn, so callers that need mutual
// exclusion between firings must provide it.
type Ticker struct {
	clock  Clock
	period time.Duration
	fn     func()

	mu      sync.Mutex
	timer   Timer
	stopped bool
}

// NewTicker starts calling fn every period on c
func NewTicker(c Clock, period time.Duration, fn func()) *Ticker {
	t := &Ticker{
		clock:  c,
		period: period,
		fn:     fn,
	}
	t.mu.Lock()
	t.timer = c.AfterFunc(period, t.tick)
	t.mu.Unlock()
	return t
}

// Period returns the ticker period
func (t *Ticker) Period() time.Duration {
	return t.period
}

func (t *Ticker) tick() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer = t.clock.AfterFunc(t.period, t.tick)
	t.mu.Unlock()

	t.fn()
}

// Stop cancels future firings. A firing already in progress is not waited for.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Stopped reports whether Stop was called
func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
