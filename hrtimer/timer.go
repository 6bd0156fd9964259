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

// Package hrtimer provides one-shot timers armed for an absolute
// expiry time on a monotonic clock.
//
// Timer callbacks are never run by the goroutine arming or cancelling
// the timer, so a callback can take the same locks that are held around
// Start and Cancel.
package hrtimer

import (
	"errors"
	"sync"

	"github.com/snapcore/dlsched/timeutil"
)

// ErrExpired is returned by Start when the requested expiry is not in
// the future of the timer base clock.
var ErrExpired = errors.New("timer expiry is not in the future")

// Handle is a scheduled callback of a Base.
type Handle interface {
	// Stop prevents the callback from running. It returns false if
	// the callback already ran or was stopped.
	Stop() bool
}

// Base is the clock timers are armed against.
type Base interface {
	timeutil.Clock
	// Schedule arranges for fn to be called once the clock reaches
	// expires. fn must not be called from within Schedule.
	Schedule(expires int64, fn func()) Handle
}

// Timer is a one-shot timer bound to a single callback.
//
// Every arming and every cancellation starts a new generation. The
// callback is passed the generation that expired, so that once it holds
// its own locks it can tell with Current whether the timer was re-armed
// or cancelled in the meantime.
type Timer struct {
	base Base
	fn   func(gen uint64)

	mu      sync.Mutex
	idle    sync.Cond
	handle  Handle
	expires int64
	gen     uint64
	active  bool
	running int
}

// New returns an inactive timer which calls fn when it expires.
func New(base Base, fn func(gen uint64)) *Timer {
	t := &Timer{
		base: base,
		fn:   fn,
	}
	t.idle.L = &t.mu
	return t
}

// Start arms the timer for the absolute time expires, cancelling any
// previous arming. It returns ErrExpired, leaving the timer inactive,
// when expires is not after the current time of the base.
func (t *Timer) Start(expires int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	if !timeutil.Before(t.base.Now(), expires) {
		return ErrExpired
	}

	t.gen++
	gen := t.gen
	t.expires = expires
	t.active = true
	t.handle = t.base.Schedule(expires, func() { t.fire(gen) })
	return nil
}

// Cancel deactivates the timer. It returns whether the timer was active.
// Cancelling an inactive timer does nothing.
//
// A callback which already started running is not waited for, see Wait.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked()
}

func (t *Timer) cancelLocked() bool {
	t.gen++
	if !t.active {
		return false
	}
	t.active = false
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	return true
}

// Wait blocks until no callback of the timer is running. It must not be
// called from the callback itself or with a lock the callback takes.
func (t *Timer) Wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.running > 0 {
		t.idle.Wait()
	}
}

// Active returns whether the timer is armed.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Generation returns the current generation of the timer.
func (t *Timer) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// Current returns whether gen is still the latest generation, that is
// the timer was neither armed again nor cancelled since.
func (t *Timer) Current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen == gen
}

// Expires returns the expiry the timer was last armed for.
func (t *Timer) Expires() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expires
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if !t.active || t.gen != gen {
		// cancelled or re-armed after this expiry was scheduled
		t.mu.Unlock()
		return
	}
	t.active = false
	t.handle = nil
	t.running++
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running--
		if t.running == 0 {
			t.idle.Broadcast()
		}
		t.mu.Unlock()
	}()
	t.fn(gen)
}
