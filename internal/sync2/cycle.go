// Package sync2 provides small concurrency primitives shared across
// Satellite's background passes.
package sync2

import (
	"context"
	"sync"
	"time"
)

// Cycle runs Fn on a fixed interval until Close is called. It supports
// Pause/Restart, and TriggerWait to queue an extra iteration ahead of the
// next tick.
type Cycle struct {
	interval time.Duration

	mu      sync.Mutex
	paused  bool
	closed  bool
	trigger chan struct{}
	done    chan struct{}
}

// NewCycle returns a Cycle that fires every interval once Start is called.
func NewCycle(interval time.Duration) *Cycle {
	return &Cycle{
		interval: interval,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start runs fn on every tick until ctx is cancelled or Close is called.
// fn's error is ignored beyond being handed to onError, if non-nil, so a
// single failed pass never kills the loop.
func (c *Cycle) Start(ctx context.Context, onError func(error), fn func(ctx context.Context) error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-c.trigger:
		case <-ticker.C:
		}

		c.mu.Lock()
		paused := c.paused
		c.mu.Unlock()
		if paused {
			continue
		}

		if err := fn(ctx); err != nil && onError != nil {
			onError(err)
		}
	}
}

// Pause stops further ticks from running fn until Restart is called.
func (c *Cycle) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Restart resumes a paused Cycle.
func (c *Cycle) Restart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// TriggerWait queues one extra iteration, bypassing the ticker, and returns
// without waiting for it to run. A trigger that is already queued absorbs
// this one, and a paused Cycle skips the triggered iteration.
func (c *Cycle) TriggerWait() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Close stops the Cycle permanently.
func (c *Cycle) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}
