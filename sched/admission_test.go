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

package sched_test

import (
	"math"
	"time"

	. "gopkg.in/check.v1"

	"github.com/snapcore/dlsched/sched"
	"github.com/snapcore/dlsched/testutil"
)

type admissionSuite struct {
	baseSuite
}

var _ = Suite(&admissionSuite{})

func (s *admissionSuite) TestParamsValidate(c *C) {
	for _, tc := range []struct {
		p   sched.Params
		err string
	}{
		{sched.Params{Runtime: time.Millisecond, Deadline: 0}, "invalid deadline parameters: deadline must be positive"},
		{sched.Params{Runtime: time.Millisecond, Deadline: -time.Second}, "invalid deadline parameters: deadline must be positive"},
		{sched.Params{Runtime: 0, Deadline: time.Second}, `invalid deadline parameters: runtime 0s is below the minimum of 1µs`},
		{sched.Params{Runtime: 500 * time.Nanosecond, Deadline: time.Second}, `invalid deadline parameters: runtime 500ns is below the minimum of 1µs`},
		{sched.Params{Runtime: 2 * time.Second, Deadline: time.Second}, `invalid deadline parameters: runtime 2s exceeds deadline 1s`},
		{sched.Params{Runtime: time.Second, Deadline: math.MaxInt64}, `invalid deadline parameters: deadline .* is too long`},
		{sched.Params{Runtime: time.Second, Deadline: time.Second}, ""},
		{sched.Params{Runtime: time.Microsecond, Deadline: time.Second}, ""},
	} {
		err := tc.p.Validate(sched.DefaultMinRuntime)
		if tc.err == "" {
			c.Check(err, IsNil, Commentf("%+v", tc.p))
			continue
		}
		c.Check(err, ErrorMatches, tc.err, Commentf("%+v", tc.p))
		c.Check(err, testutil.ErrorIs, sched.ErrInvalidParams)
	}
}

func (s *admissionSuite) TestBandwidthCeiling(c *C) {
	s.addDeadlineTask(c, 1, "A", 50*time.Millisecond, 100*time.Millisecond)
	b := s.addDeadlineTask(c, 2, "B", 40*time.Millisecond, 100*time.Millisecond)

	t := sched.NewTask(3, "C")
	err := s.d.AddDeadlineTask(t, sched.Params{Runtime: 10 * time.Millisecond, Deadline: 100 * time.Millisecond})
	c.Check(err, testutil.ErrorIs, sched.ErrBandwidthExceeded)
	c.Check(err, ErrorMatches, `cannot add task C \(3\) to domain 0: not enough deadline bandwidth: 10.00% requested, 5.00% available`)
	c.Check(t.Domain(), IsNil)

	c.Assert(s.d.Exit(b), IsNil)
	c.Assert(s.d.AddDeadlineTask(t, sched.Params{Runtime: 10 * time.Millisecond, Deadline: 100 * time.Millisecond}), IsNil)
	c.Check(t.Domain(), Equals, s.d)
}

func (s *admissionSuite) TestSetParamsRechecksBandwidth(c *C) {
	a := s.addDeadlineTask(c, 1, "A", 50*time.Millisecond, 100*time.Millisecond)
	s.addDeadlineTask(c, 2, "B", 40*time.Millisecond, 100*time.Millisecond)

	err := s.d.SetParams(a, sched.Params{Runtime: 60 * time.Millisecond, Deadline: 100 * time.Millisecond})
	c.Check(err, testutil.ErrorIs, sched.ErrBandwidthExceeded)
	c.Check(a.Info().SchedRuntime, Equals, 50*time.Millisecond)

	// giving back bandwidth always works
	err = s.d.SetParams(a, sched.Params{Runtime: 10 * time.Millisecond, Deadline: 100 * time.Millisecond})
	c.Check(err, IsNil)
	c.Check(near(s.d.Snapshot().Bandwidth, 50), Equals, true)
}

func (s *admissionSuite) TestUnlimitedBandwidth(c *C) {
	s.setUpScheduler(c, 0, sched.Config{BandwidthRuntime: -1})
	for i := 0; i < 4; i++ {
		s.addDeadlineTask(c, i, "t", 50*time.Millisecond, 100*time.Millisecond)
	}
	info := s.d.Snapshot()
	c.Check(info.Bandwidth, Equals, 200.0)
	c.Check(info.MaxBandwidth, Equals, -1.0)
}

func (s *admissionSuite) TestCustomMinRuntime(c *C) {
	s.setUpScheduler(c, 0, sched.Config{MinRuntime: time.Millisecond})
	err := s.d.AddDeadlineTask(sched.NewTask(1, "A"), sched.Params{Runtime: 500 * time.Microsecond, Deadline: time.Second})
	c.Check(err, ErrorMatches, `cannot add task A \(1\): invalid deadline parameters: runtime 500µs is below the minimum of 1ms`)
}

func (s *admissionSuite) TestAddTwice(c *C) {
	a := s.addDeadlineTask(c, 1, "A", 10*time.Millisecond, 100*time.Millisecond)
	err := s.d.AddDeadlineTask(a, sched.Params{Runtime: 10 * time.Millisecond, Deadline: 100 * time.Millisecond})
	c.Check(err, testutil.ErrorIs, sched.ErrTaskAttached)

	other := sched.NewTask(1, "other")
	err = s.d.AddDeadlineTask(other, sched.Params{Runtime: 10 * time.Millisecond, Deadline: 100 * time.Millisecond})
	c.Check(err, ErrorMatches, `cannot add task other \(1\): task ID 1 is in use`)
	c.Check(near(s.d.Snapshot().Bandwidth, 10), Equals, true)
}

func (s *admissionSuite) TestNewConfigErrors(c *C) {
	_, err := sched.New(sched.Config{BandwidthRuntime: 2 * time.Second, BandwidthPeriod: time.Second, Timers: s.clock})
	c.Check(err, ErrorMatches, `cannot create scheduler: bandwidth runtime 2s exceeds period 1s`)

	_, err = sched.New(sched.Config{
		Classes: []sched.Class{&fifoClass{name: "a", prio: 5}, &fifoClass{name: "b", prio: 5}},
		Clock:   s.clock,
		Timers:  s.clock,
	})
	c.Check(err, ErrorMatches, `cannot create scheduler: classes "a" and "b" have the same priority`)
}

func (s *admissionSuite) TestDomains(c *C) {
	s.setUpScheduler(c, 0, sched.Config{Domains: 3})
	c.Check(s.s.Domains(), HasLen, 3)
	d, err := s.s.Domain(2)
	c.Assert(err, IsNil)
	c.Check(d.ID, Equals, 2)
	_, err = s.s.Domain(3)
	c.Check(err, testutil.ErrorIs, sched.ErrNoDomain)
	c.Check(s.s.Classes(), DeepEquals, []sched.Class{sched.DeadlineClass, sched.IdleClass})
	c.Check(s.s.Class("deadline"), Equals, sched.DeadlineClass)
	c.Check(s.s.Class("nope"), IsNil)
}

type bandwidthSuite struct{}

var _ = Suite(&bandwidthSuite{})

func (s *bandwidthSuite) TestToRatio(c *C) {
	c.Check(sched.ToRatio(100, 50), Equals, uint64(1<<19))
	c.Check(sched.ToRatio(100, 100), Equals, uint64(1<<20))
	c.Check(sched.ToRatio(0, 100), Equals, uint64(0))
	// no overflow for long reservations
	c.Check(sched.ToRatio(int64(1<<62), int64(1<<61)), Equals, uint64(1<<19))
}

func (s *bandwidthSuite) TestMulLess(c *C) {
	c.Check(sched.MulLess(2, 3, 1, 7), Equals, true)
	c.Check(sched.MulLess(2, 3, 3, 2), Equals, false)
	c.Check(sched.MulLess(1, 7, 2, 3), Equals, false)
	// products beyond 64 bits
	big := int64(1 << 62)
	c.Check(sched.MulLess(big, big, big, big+1), Equals, true)
	c.Check(sched.MulLess(big, big+1, big, big), Equals, false)
}
