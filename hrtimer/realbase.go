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

package hrtimer

import (
	"time"

	"gopkg.in/tomb.v2"

	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/timeutil"
)

// RealBase is a Base backed by runtime timers. Expired callbacks are
// run one at a time, in expiry order as far as the runtime delivers
// them, by a dispatcher goroutine owned by the base.
type RealBase struct {
	clock timeutil.Clock
	fired chan func()
	tomb  tomb.Tomb
}

var timeAfterFunc = time.AfterFunc

// NewRealBase starts a base reading time from clock.
func NewRealBase(clock timeutil.Clock) *RealBase {
	b := &RealBase{
		clock: clock,
		fired: make(chan func(), 64),
	}
	b.tomb.Go(b.dispatch)
	return b
}

// Now returns the current time of the base clock.
func (b *RealBase) Now() int64 {
	return b.clock.Now()
}

// Schedule implements Base.
func (b *RealBase) Schedule(expires int64, fn func()) Handle {
	d := time.Duration(timeutil.Since(b.clock.Now(), expires))
	return realHandle{timeAfterFunc(d, func() {
		select {
		case b.fired <- fn:
		case <-b.tomb.Dying():
		}
	})}
}

func (b *RealBase) dispatch() error {
	for {
		select {
		case fn := <-b.fired:
			fn()
		case <-b.tomb.Dying():
			if n := len(b.fired); n > 0 {
				logger.Debugf("timer base stopping with %d expired callbacks undelivered", n)
			}
			return nil
		}
	}
}

// Stop stops the dispatcher. Timers expiring afterwards never run their
// callbacks.
func (b *RealBase) Stop() error {
	b.tomb.Kill(nil)
	return b.tomb.Wait()
}

type realHandle struct {
	t *time.Timer
}

func (h realHandle) Stop() bool {
	return h.t.Stop()
}
