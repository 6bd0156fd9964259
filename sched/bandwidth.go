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

package sched

import (
	"fmt"
	"math/bits"
)

// Bandwidths are fixed point fractions with bwShift fractional bits.
const (
	bwShift = 20
	bwUnit  = uint64(1) << bwShift
)

// toRatio returns runtime/period as a fixed point fraction. runtime must
// not exceed period.
func toRatio(period, runtime int64) uint64 {
	if period <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(runtime), bwUnit)
	q, _ := bits.Div64(hi, lo, uint64(period))
	return q
}

func bwPercent(bw uint64) float64 {
	return float64(bw) * 100 / float64(bwUnit)
}

// bandwidth tracks the sum of the reservations admitted on a domain.
type bandwidth struct {
	total     uint64
	max       uint64
	unlimited bool
}

// admit replaces a reservation of old by one of new, if it fits.
func (b *bandwidth) admit(old, new uint64) error {
	if !b.unlimited && b.total-old+new > b.max {
		return fmt.Errorf("%w: %.2f%% requested, %.2f%% available", ErrBandwidthExceeded,
			bwPercent(new), bwPercent(b.max-(b.total-old)))
	}
	b.total = b.total - old + new
	return nil
}

func (b *bandwidth) release(bw uint64) {
	if bw > b.total {
		b.total = 0
		return
	}
	b.total -= bw
}

// mulLess reports whether a*b < c*d for non-negative operands, without
// overflowing.
func mulLess(a, b, c, d int64) bool {
	hi1, lo1 := bits.Mul64(uint64(a), uint64(b))
	hi2, lo2 := bits.Mul64(uint64(c), uint64(d))
	return hi1 < hi2 || (hi1 == hi2 && lo1 < lo2)
}
