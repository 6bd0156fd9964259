// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package testtime provides a virtual monotonic clock which doubles as a
// timer base, so that time driven code can be exercised deterministically
// in tests and simulations.
package testtime

import (
	"sync"
	"time"

	"github.com/snapcore/dlsched/hrtimer"
	"github.com/snapcore/dlsched/timeutil"
)

// Clock is a virtual clock. Time only moves when Advance, AdvanceTo or
// Set are called. Callbacks scheduled on the clock run on the goroutine
// advancing it, one at a time, with the clock reading their expiry.
type Clock struct {
	mu        sync.Mutex
	now       int64
	seq       uint64
	pending   []*event
	fireCount int
}

var _ hrtimer.Base = (*Clock)(nil)

type event struct {
	clock   *Clock
	expires int64
	seq     uint64
	fn      func()
}

// NewClock returns a clock reading start.
func NewClock(start int64) *Clock {
	return &Clock{now: start}
}

// Now returns the current virtual time.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t without firing anything, even if t is after
// pending expiries. It is meant to set up wraparound tests.
func (c *Clock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Schedule implements hrtimer.Base.
func (c *Clock) Schedule(expires int64, fn func()) hrtimer.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	ev := &event{clock: c, expires: expires, seq: c.seq, fn: fn}
	c.pending = append(c.pending, ev)
	return ev
}

// Stop implements hrtimer.Handle.
func (ev *event) Stop() bool {
	c := ev.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == ev {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, see AdvanceTo.
func (c *Clock) Advance(d time.Duration) {
	c.AdvanceTo(c.Now() + int64(d))
}

// AdvanceTo moves the clock forward to t, running every callback which
// expires at or before t in expiry order. Callbacks scheduled by other
// callbacks run too if they expire in time. The clock never moves
// backwards.
func (c *Clock) AdvanceTo(t int64) {
	for {
		c.mu.Lock()
		ev := c.popDueLocked(t)
		if ev == nil {
			if timeutil.After(t, c.now) {
				c.now = t
			}
			c.mu.Unlock()
			return
		}
		c.now = timeutil.Max(c.now, ev.expires)
		c.fireCount++
		c.mu.Unlock()

		ev.fn()
	}
}

func (c *Clock) popDueLocked(t int64) *event {
	idx := -1
	for i, ev := range c.pending {
		if timeutil.After(ev.expires, t) {
			continue
		}
		if idx < 0 || timeutil.Before(ev.expires, c.pending[idx].expires) ||
			(ev.expires == c.pending[idx].expires && ev.seq < c.pending[idx].seq) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	ev := c.pending[idx]
	c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
	return ev
}

// NextExpiry returns the earliest pending expiry.
func (c *Clock) NextExpiry() (expires int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, ev := range c.pending {
		if i == 0 || timeutil.Before(ev.expires, expires) {
			expires = ev.expires
		}
	}
	return expires, len(c.pending) > 0
}

// Pending returns how many callbacks are scheduled and not yet run.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// FireCount returns how many callbacks were run so far.
func (c *Clock) FireCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fireCount
}
