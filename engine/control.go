package engine

import (
	"sync/atomic"
	"time"
)

// Control is the cooperative stop/pause signal shared by a scan: polled
// at file boundaries, BFS iterations and between regex evaluations.
type Control struct {
	stop  atomic.Bool
	pause atomic.Bool
}

// Stop raises the stop flag; in-flight work returns at its next poll.
func (c *Control) Stop() { c.stop.Store(true) }

// Pause raises the pause flag; workers spin-sleep until Resume or Stop.
func (c *Control) Pause() { c.pause.Store(true) }

// Resume clears the pause flag.
func (c *Control) Resume() { c.pause.Store(false) }

// Stopped reports the current stop state.
func (c *Control) Stopped() bool { return c.stop.Load() }

// WaitIfPaused spin-sleeps in 100ms increments while paused, returning
// early if stop is raised meanwhile.
func (c *Control) WaitIfPaused() {
	for c.pause.Load() && !c.stop.Load() {
		time.Sleep(100 * time.Millisecond)
	}
}

// ShouldStop is the poll function passed to chainfinder and the line
// pass: it waits out any pause, then reports the stop state.
func (c *Control) ShouldStop() bool {
	c.WaitIfPaused()
	return c.stop.Load()
}
