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

package timeutil

import (
	"golang.org/x/sys/unix"
)

// Clock is a source of monotonic time expressed in nanoseconds.
//
// Values returned by a Clock are only meaningful relative to each other
// and may wrap around; they must be compared with Before and After.
type Clock interface {
	Now() int64
}

// MonotonicClock reads CLOCK_MONOTONIC.
type MonotonicClock struct{}

var clockGettime = unix.ClockGettime

// Now returns the current CLOCK_MONOTONIC time in nanoseconds.
func (MonotonicClock) Now() int64 {
	var ts unix.Timespec
	if err := clockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// CLOCK_MONOTONIC is always available on linux
		panic("internal error: cannot read monotonic clock: " + err.Error())
	}
	return ts.Nano()
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() int64

func (f ClockFunc) Now() int64 {
	return f()
}
