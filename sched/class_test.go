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
	"sync"
	"time"

	. "gopkg.in/check.v1"

	"github.com/snapcore/dlsched/hrtimer"
	"github.com/snapcore/dlsched/sched"
	"github.com/snapcore/dlsched/testutil"
	"github.com/snapcore/dlsched/timeutil"
	"github.com/snapcore/dlsched/trace"
)

// fifoClass runs its tasks in wakeup order.
type fifoClass struct {
	name   string
	prio   int
	queues map[*sched.Domain][]*sched.Task
}

func newFifoClass() *fifoClass {
	return &fifoClass{name: "fifo", prio: 10}
}

func (f *fifoClass) Name() string  { return f.name }
func (f *fifoClass) Priority() int { return f.prio }

func (f *fifoClass) push(d *sched.Domain, t *sched.Task) {
	if f.queues == nil {
		f.queues = make(map[*sched.Domain][]*sched.Task)
	}
	f.queues[d] = append(f.queues[d], t)
}

func (f *fifoClass) remove(d *sched.Domain, t *sched.Task) {
	q := f.queues[d]
	for i, qt := range q {
		if qt == t {
			f.queues[d] = append(q[:i:i], q[i+1:]...)
			return
		}
	}
}

func (f *fifoClass) Enqueue(d *sched.Domain, t *sched.Task, wakeup bool) {
	if t != d.CurrentLocked() {
		f.push(d, t)
	}
}

func (f *fifoClass) Dequeue(d *sched.Domain, t *sched.Task, sleep bool) {
	f.remove(d, t)
}

func (f *fifoClass) Yield(d *sched.Domain)                       {}
func (f *fifoClass) CheckPreempt(d *sched.Domain, t *sched.Task) {}

func (f *fifoClass) PickNext(d *sched.Domain) *sched.Task {
	q := f.queues[d]
	if len(q) == 0 {
		return nil
	}
	f.queues[d] = q[1:]
	return q[0]
}

func (f *fifoClass) PutPrev(d *sched.Domain, t *sched.Task) {
	if t.RunnableLocked() {
		f.push(d, t)
	}
}

func (f *fifoClass) SetCurr(d *sched.Domain) {
	f.remove(d, d.CurrentLocked())
}

func (f *fifoClass) Tick(d *sched.Domain, t *sched.Task)                       {}
func (f *fifoClass) SwitchedFrom(d *sched.Domain, t *sched.Task, running bool) {}
func (f *fifoClass) SwitchedTo(d *sched.Domain, t *sched.Task, running bool)   {}
func (f *fifoClass) LoadBalance(d, busiest *sched.Domain) int                  { return 0 }
func (f *fifoClass) MoveOneTask(d, busiest *sched.Domain) bool                 { return false }

type classSuite struct {
	baseSuite
	fifo *fifoClass
}

var _ = Suite(&classSuite{})

func (s *classSuite) SetUpTest(c *C) {
	s.baseSuite.SetUpTest(c)
	s.fifo = newFifoClass()
	s.setUpScheduler(c, 0, sched.Config{Classes: []sched.Class{s.fifo}})
}

func (s *classSuite) addFifoTask(c *C, id int, name string) *sched.Task {
	t := sched.NewTask(id, name)
	c.Assert(s.d.AddTask(t, s.fifo), IsNil)
	return t
}

func (s *classSuite) TestClassOrder(c *C) {
	c.Check(s.s.Classes(), DeepEquals, []sched.Class{sched.DeadlineClass, s.fifo, sched.IdleClass})
}

func (s *classSuite) TestAddTaskUnknownClass(c *C) {
	t := sched.NewTask(1, "A")
	c.Check(s.d.AddTask(t, sched.DeadlineClass), testutil.ErrorIs, sched.ErrUnknownClass)
	c.Check(s.d.AddTask(t, sched.IdleClass), testutil.ErrorIs, sched.ErrUnknownClass)
	c.Check(s.d.AddTask(t, newFifoClass()), testutil.ErrorIs, sched.ErrUnknownClass)
}

func (s *classSuite) TestDeadlineRunsBeforeOtherClasses(c *C) {
	f := s.addFifoTask(c, 1, "F")
	s.wakeup(c, f)
	c.Assert(s.d.Schedule(), Equals, f)

	a := s.addDeadlineTask(c, 2, "A", 20*time.Millisecond, 100*time.Millisecond)
	s.wakeup(c, a)
	c.Check(s.d.NeedResched(), Equals, true)
	c.Assert(s.d.Schedule(), Equals, a)

	s.clock.AdvanceTo(20 * ms)
	s.d.Tick()
	c.Assert(s.d.Schedule(), Equals, f)

	s.clock.AdvanceTo(100 * ms)
	c.Check(s.d.NeedResched(), Equals, true)
	c.Assert(s.d.Schedule(), Equals, a)
	c.Check(a.Info().Deadline, Equals, 200*ms)
}

func (s *classSuite) TestSetParamsMovesIntoDeadlineClass(c *C) {
	f := s.addFifoTask(c, 1, "F")
	g := s.addFifoTask(c, 2, "G")
	s.wakeup(c, f, g)
	c.Assert(s.d.Schedule(), Equals, f)

	s.clock.AdvanceTo(10 * ms)
	err := s.d.SetParams(g, sched.Params{Runtime: 20 * time.Millisecond, Deadline: 100 * time.Millisecond})
	c.Assert(err, IsNil)
	info := g.Info()
	c.Check(info.Class, Equals, "deadline")
	c.Check(info.Deadline, Equals, 110*ms)
	c.Check(info.Queued, Equals, true)
	c.Check(s.d.NeedResched(), Equals, true)
	c.Check(s.d.Schedule(), Equals, g)
	c.Check(s.d.Schedule(), Equals, g)
}

func (s *classSuite) TestSetParamsOnRunningTask(c *C) {
	f := s.addFifoTask(c, 1, "F")
	s.wakeup(c, f)
	c.Assert(s.d.Schedule(), Equals, f)

	err := s.d.SetParams(f, sched.Params{Runtime: 20 * time.Millisecond, Deadline: 100 * time.Millisecond})
	c.Assert(err, IsNil)
	c.Check(s.d.QueuedTasks(), HasLen, 0)
	c.Check(s.d.Schedule(), Equals, f)

	s.clock.AdvanceTo(20 * ms)
	s.d.Tick()
	info := f.Info()
	c.Check(info.Flags, Equals, sched.FlagThrottled)
	c.Check(info.SumExecRuntime, Equals, 20*time.Millisecond)
}

func (s *classSuite) TestSetClassLeavesDeadlineClass(c *C) {
	a := s.addDeadlineTask(c, 1, "A", 20*time.Millisecond, 100*time.Millisecond)
	s.wakeup(c, a)
	s.d.Schedule()
	s.clock.AdvanceTo(20 * ms)
	s.d.Tick()
	c.Assert(s.clock.Pending(), Equals, 1)

	c.Assert(s.d.SetClass(a, s.fifo), IsNil)
	c.Check(s.clock.Pending(), Equals, 0)
	c.Check(s.d.Snapshot().Bandwidth, Equals, 0.0)
	info := a.Info()
	c.Check(info.Class, Equals, "fifo")
	c.Check(info.Flags, Equals, sched.Flags(0))
	c.Check(s.d.NeedResched(), Equals, true)
	c.Check(s.d.Schedule(), Equals, a)

	c.Check(s.d.SetClass(a, sched.DeadlineClass), testutil.ErrorIs, sched.ErrUnknownClass)
}

func (s *classSuite) TestFifoYieldRotates(c *C) {
	f := s.addFifoTask(c, 1, "F")
	g := s.addFifoTask(c, 2, "G")
	s.wakeup(c, f, g)
	c.Assert(s.d.Schedule(), Equals, f)
	s.d.Yield()
	c.Check(s.d.Schedule(), Equals, g)
	s.d.Yield()
	c.Check(s.d.Schedule(), Equals, f)
}

type migrateSuite struct {
	baseSuite
	d1 *sched.Domain
}

var _ = Suite(&migrateSuite{})

func (s *migrateSuite) SetUpTest(c *C) {
	s.baseSuite.SetUpTest(c)
	s.setUpScheduler(c, 0, sched.Config{Domains: 2})
	s.d1 = s.s.Domains()[1]
}

func (s *migrateSuite) TestMigrateQueued(c *C) {
	a := s.addDeadlineTask(c, 1, "A", 20*time.Millisecond, 100*time.Millisecond)
	b := s.addDeadlineTask(c, 2, "B", 30*time.Millisecond, 150*time.Millisecond)
	s.wakeup(c, a, b)
	c.Assert(s.d.Schedule(), Equals, a)

	c.Assert(s.s.Migrate(b, s.d1), IsNil)
	c.Check(b.Domain(), Equals, s.d1)
	c.Check(s.d.NrRunning(), Equals, 1)
	c.Check(s.d1.NrRunning(), Equals, 1)
	c.Check(s.d1.NeedResched(), Equals, true)
	c.Check(s.d1.Schedule(), Equals, b)
	c.Check(near(s.d.Snapshot().Bandwidth, 20), Equals, true)
	c.Check(near(s.d1.Snapshot().Bandwidth, 20), Equals, true)
	c.Check(s.steps(trace.KindMigrate), DeepEquals, []step{{0, "B", trace.KindMigrate}})

	// same domain is a no-op
	c.Check(s.s.Migrate(b, s.d1), IsNil)
}

func (s *migrateSuite) TestMigrateRunning(c *C) {
	a := s.addDeadlineTask(c, 1, "A", 20*time.Millisecond, 100*time.Millisecond)
	s.wakeup(c, a)
	s.d.Schedule()
	c.Check(s.s.Migrate(a, s.d1), testutil.ErrorIs, sched.ErrTaskRunning)
	c.Check(s.s.Migrate(sched.NewTask(5, "x"), s.d1), testutil.ErrorIs, sched.ErrNotAttached)
}

func (s *migrateSuite) TestMigrateNeedsBandwidth(c *C) {
	a := s.addDeadlineTask(c, 1, "A", 60*time.Millisecond, 100*time.Millisecond)
	b := sched.NewTask(2, "B")
	c.Assert(s.d1.AddDeadlineTask(b, sched.Params{Runtime: 60 * time.Millisecond, Deadline: 100 * time.Millisecond}), IsNil)
	c.Check(s.s.Migrate(a, s.d1), testutil.ErrorIs, sched.ErrBandwidthExceeded)
	c.Check(a.Domain(), Equals, s.d)
}

func (s *migrateSuite) TestMigrateThrottled(c *C) {
	a := s.addDeadlineTask(c, 1, "A", 20*time.Millisecond, 100*time.Millisecond)
	s.wakeup(c, a)
	s.d.Schedule()
	s.clock.AdvanceTo(20 * ms)
	s.d.Tick()
	c.Assert(s.d.Schedule().Name, Equals, "idle/0")
	c.Assert(s.d1.Schedule().Name, Equals, "idle/1")

	c.Assert(s.s.Migrate(a, s.d1), IsNil)
	c.Check(s.d1.QueuedTasks(), HasLen, 0)
	c.Check(s.d1.NeedResched(), Equals, false)

	s.clock.AdvanceTo(100 * ms)
	c.Check(s.d.QueuedTasks(), HasLen, 0)
	c.Check(s.d1.QueuedTasks(), DeepEquals, []*sched.Task{a})
	c.Check(s.d1.NeedResched(), Equals, true)
	c.Check(s.d1.Schedule(), Equals, a)
	c.Check(a.Info().Deadline, Equals, 200*ms)
}

func (s *migrateSuite) TestBalanceIsNoop(c *C) {
	for i := 0; i < 3; i++ {
		s.wakeup(c, s.addDeadlineTask(c, i, "t", time.Millisecond, 100*time.Millisecond))
	}
	c.Check(s.s.Balance(), Equals, 0)
	c.Check(s.d.NrRunning(), Equals, 3)
	c.Check(s.d1.NrRunning(), Equals, 0)
}

type realTimeSuite struct{}

var _ = Suite(&realTimeSuite{})

func (s *realTimeSuite) TestExitRacesWithReplenishment(c *C) {
	s1, err := sched.New(sched.Config{Domains: 2})
	c.Assert(err, IsNil)
	defer s1.Close()
	d0 := s1.Domains()[0]
	d1 := s1.Domains()[1]

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		t := sched.NewTask(i, "rt")
		d := d0
		if i%2 == 1 {
			d = d1
		}
		c.Assert(d.AddDeadlineTask(t, sched.Params{Runtime: 10 * time.Microsecond, Deadline: time.Millisecond}), IsNil)
		c.Assert(d.Wakeup(t), IsNil)
		wg.Add(1)
		go func(t *sched.Task) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				d := t.Domain()
				if d.Schedule() == t {
					time.Sleep(20 * time.Microsecond)
					d.Tick()
				}
				if j%5 == 4 {
					other := d0
					if d == d0 {
						other = d1
					}
					s1.Migrate(t, other)
				}
			}
			c.Check(t.Domain().Exit(t), IsNil)
		}(t)
	}
	wg.Wait()
	for _, d := range s1.Domains() {
		c.Check(d.Tasks(), HasLen, 0)
		c.Check(d.Snapshot().Bandwidth, Equals, 0.0)
	}
}

func (s *realTimeSuite) TestRealTimerReplenishes(c *C) {
	clock := timeutil.MonotonicClock{}
	base := hrtimer.NewRealBase(clock)
	defer base.Stop()
	s1, err := sched.New(sched.Config{Clock: clock, Timers: base})
	c.Assert(err, IsNil)
	d := s1.Domains()[0]
	t := sched.NewTask(1, "A")
	c.Assert(d.AddDeadlineTask(t, sched.Params{Runtime: time.Millisecond, Deadline: 100 * time.Millisecond}), IsNil)
	c.Assert(d.Wakeup(t), IsNil)
	c.Assert(d.Schedule(), Equals, t)
	time.Sleep(2 * time.Millisecond)
	d.Tick()
	c.Assert(t.Info().Flags&sched.FlagThrottled, Equals, sched.FlagThrottled)
	d.Schedule()

	deadline := time.Now().Add(testutil.HostScaledTimeout(5 * time.Second))
	for t.Info().Flags&sched.FlagThrottled != 0 {
		if time.Now().After(deadline) {
			c.Fatal("replenishment timer did not fire")
		}
		time.Sleep(time.Millisecond)
	}
	c.Check(t.Info().Queued, Equals, true)
	c.Check(d.NeedResched(), Equals, true)
}
