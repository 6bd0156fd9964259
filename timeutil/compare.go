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

// Before reports whether a is before b. The comparison is done on the
// signed difference so that it keeps working when the time values wrap
// past the int64 boundary, as long as a and b are less than 2^63ns
// apart.
func Before(a, b int64) bool {
	return a-b < 0
}

// After reports whether a is after b, see Before.
func After(a, b int64) bool {
	return b-a < 0
}

// Max returns the later of a and b, see Before.
func Max(a, b int64) int64 {
	if Before(a, b) {
		return b
	}
	return a
}

// Since returns b-a clamped to zero, i.e. the time elapsed from a to b
// or zero if b is not after a.
func Since(a, b int64) int64 {
	if d := b - a; d > 0 {
		return d
	}
	return 0
}
