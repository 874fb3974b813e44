package app

import (
	"sync"
	"time"
)

// Countdown is a single owned, cancelable ticking clock. It decrements once
// per interval, reports each new value through onTick, and fires onExpire
// exactly once when the counter reaches zero. A countdown started with no
// seconds left expires immediately. After expiry or Stop no further
// callbacks are invoked.
type Countdown struct {
	interval time.Duration
	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	remaining int
	stopped   bool
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewCountdown builds a countdown over totalSeconds with a one-second tick.
// The caller must invoke Start to begin ticking and Stop on teardown.
func NewCountdown(totalSeconds int, onTick func(int), onExpire func()) *Countdown {
	return NewCountdownWithInterval(totalSeconds, time.Second, onTick, onExpire)
}

// NewCountdownWithInterval is test-only for fast deterministic ticking.
func NewCountdownWithInterval(totalSeconds int, interval time.Duration, onTick func(int), onExpire func()) *Countdown {
	return &Countdown{
		interval:  interval,
		onTick:    onTick,
		onExpire:  onExpire,
		remaining: totalSeconds,
		stop:      make(chan struct{}),
	}
}

// Start launches the ticking goroutine. Call once.
func (c *Countdown) Start() {
	go c.run()
}

func (c *Countdown) run() {
	// A countdown whose total is already zero (or negative) has nothing to
	// tick through; it expires right away.
	c.mu.Lock()
	spent := !c.stopped && c.remaining <= 0
	if spent {
		c.remaining = 0
		c.stopped = true
	}
	c.mu.Unlock()
	if spent {
		if c.onTick != nil {
			c.onTick(0)
		}
		c.stopOnce.Do(func() { close(c.stop) })
		if c.onExpire != nil {
			c.onExpire()
		}
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			remaining, expired := c.decrement()
			if expired {
				return
			}
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if remaining == 0 {
				c.Stop()
				if c.onExpire != nil {
					c.onExpire()
				}
				return
			}
		}
	}
}

// decrement moves the counter down one step. It returns expired=true when
// the countdown was already stopped or spent, which suppresses callbacks
// for ticks that raced with Stop.
func (c *Countdown) decrement() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.remaining <= 0 {
		return 0, true
	}
	c.remaining--
	return c.remaining, false
}

// Stop cancels the countdown. Idempotent; no callbacks fire afterwards.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.stopOnce.Do(func() { close(c.stop) })
}

// Remaining returns the seconds left for display.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}
