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
	"time"

	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/timeutil"
	"github.com/snapcore/dlsched/trace"
)

// DeadlineClass schedules tasks by earliest absolute deadline, each
// task limited to its reserved bandwidth. It is always the first class
// of a scheduler.
var DeadlineClass Class = deadlineClass{}

type deadlineClass struct{}

func (deadlineClass) Name() string  { return "deadline" }
func (deadlineClass) Priority() int { return 0 }

func (deadlineClass) Enqueue(d *Domain, t *Task, wakeup bool) {
	if t.dl.Flags&FlagThrottled != 0 {
		// the replenishment timer queues it
		return
	}
	d.updateDeadlineEntity(t)
	if t != d.curr {
		d.enqueueDeadlineEntity(t)
	}
}

func (deadlineClass) Dequeue(d *Domain, t *Task, sleep bool) {
	d.updateCurrDeadline()
	d.dequeueDeadlineEntity(t)
}

func (deadlineClass) Yield(d *Domain) {
	d.updateCurrDeadline()
}

func (deadlineClass) CheckPreempt(d *Domain, t *Task) {
	if deadlineLess(t, d.curr) {
		d.trace(trace.KindPreempt, t)
		d.ReschedLocked()
	}
}

func (deadlineClass) PickNext(d *Domain) *Task {
	n := d.dl.First()
	if n == nil {
		return nil
	}
	t := n.Value
	d.dequeueDeadlineEntity(t)
	t.execStart = d.clock
	d.trace(trace.KindPick, t)
	return t
}

func (deadlineClass) PutPrev(d *Domain, t *Task) {
	d.updateCurrDeadline()
	if t.onRQ && t.dl.Flags&FlagThrottled == 0 && !t.dl.node.Linked() {
		d.enqueueDeadlineEntity(t)
	}
}

func (deadlineClass) SetCurr(d *Domain) {
	t := d.curr
	t.execStart = d.clock
	d.dequeueDeadlineEntity(t)
}

func (deadlineClass) Tick(d *Domain, t *Task) {
	d.updateCurrDeadline()
}

func (deadlineClass) SwitchedFrom(d *Domain, t *Task, running bool) {
	d.destroyDeadlineEntity(t)
}

func (deadlineClass) SwitchedTo(d *Domain, t *Task, running bool) {
	if t.onRQ && !running {
		d.checkPreemptCurr(t)
	}
}

func (deadlineClass) LoadBalance(d, busiest *Domain) int {
	// TODO: pull tasks once a global admission test guarantees the
	// pulled reservations fit on the destination
	return 0
}

func (deadlineClass) MoveOneTask(d, busiest *Domain) bool {
	return false
}

// updateCurrDeadline charges the running deadline task for the time it
// ran since it was last charged and throttles it when its runtime is
// exhausted.
func (d *Domain) updateCurrDeadline() {
	curr := d.curr
	if curr.class != DeadlineClass {
		return
	}
	if curr.dl.Flags&FlagThrottled != 0 {
		// not running, only waiting to be switched out
		curr.execStart = d.clock
		d.ReschedLocked()
		return
	}
	delta := timeutil.Since(curr.execStart, d.clock)
	curr.execStart = d.clock
	curr.sumExecRuntime += delta
	curr.dl.Runtime -= delta
	if d.deadlineRuntimeExceeded(curr) {
		d.ReschedLocked()
	}
}

// deadlineRuntimeExceeded throttles t if it ran out of runtime and
// reports whether it is throttled. If the replenishment timer cannot be
// armed the entity is replenished right away.
func (d *Domain) deadlineRuntimeExceeded(t *Task) bool {
	dl := &t.dl
	if dl.Runtime > 0 || dl.Flags&FlagBoosted != 0 {
		return false
	}
	if dl.Flags&FlagThrottled != 0 {
		return true
	}

	if timeutil.Before(dl.Deadline, d.clock) {
		dl.Flags |= FlagDMiss
		dl.nrDMiss++
		d.trace(trace.KindDeadlineMiss, t)
		if d.missLimit.Allow() {
			logger.Noticef("deadline task %s on domain %d missed its deadline by %v",
				t, d.ID, time.Duration(d.clock-dl.Deadline))
		}
	}
	if dl.Runtime < 0 {
		dl.Flags |= FlagRORun
		dl.nrRORun++
		d.trace(trace.KindOverrun, t)
	}

	d.dequeueDeadlineEntity(t)
	if err := dl.timer.Start(dl.Deadline); err != nil {
		logger.Debugf("cannot arm replenishment timer of task %s: %v", t, err)
		d.replenishDeadlineEntity(t)
		if t.onRQ && t != d.curr {
			d.enqueueDeadlineEntity(t)
		}
		return true
	}
	dl.Flags |= FlagThrottled
	dl.nrThrottled++
	d.trace(trace.KindThrottle, t)
	return true
}

// replenishDeadlineEntity postpones the deadline by whole periods,
// adding a full runtime for each, until the entity has runtime left.
func (d *Domain) replenishDeadlineEntity(t *Task) {
	dl := &t.dl
	if dl.Flags&FlagNew != 0 {
		d.setupNewDeadlineEntity(t)
		return
	}
	for dl.Runtime <= 0 {
		dl.Deadline += dl.SchedDeadline
		dl.Runtime += dl.SchedRuntime
	}
	dl.nrReplenish++
	if dl.Runtime > dl.SchedRuntime {
		logger.Noticef("internal error: task %s replenished to %v, above its reservation of %v",
			t, time.Duration(dl.Runtime), time.Duration(dl.SchedRuntime))
	}
	if timeutil.Before(dl.Deadline, d.clock) {
		dl.Flags |= FlagDMiss
		dl.nrDMiss++
		if d.missLimit.Allow() {
			logger.Noticef("deadline task %s on domain %d replenished with a deadline in the past, the domain is overloaded", t, d.ID)
		}
	}
	d.trace(trace.KindReplenish, t)
}

func (d *Domain) setupNewDeadlineEntity(t *Task) {
	dl := &t.dl
	dl.Deadline = timeutil.Max(dl.Deadline, d.clock) + dl.SchedDeadline
	dl.Runtime = dl.SchedRuntime
	dl.Flags &^= FlagNew
}

// deadlineOverflow reports whether running for the remaining runtime
// before the current deadline would use more than the reserved
// bandwidth, that is SchedDeadline*Runtime > (Deadline-now)*SchedRuntime.
// The deadline must not be before now.
func (d *Domain) deadlineOverflow(dl *DeadlineEntity) bool {
	if dl.Runtime <= 0 {
		return false
	}
	return mulLess(dl.Deadline-d.clock, dl.SchedRuntime, dl.SchedDeadline, dl.Runtime)
}

// updateDeadlineEntity gives t a fresh deadline and a full runtime when
// the current ones cannot be used within the reserved bandwidth.
func (d *Domain) updateDeadlineEntity(t *Task) {
	dl := &t.dl
	if dl.Flags&FlagNew != 0 {
		d.setupNewDeadlineEntity(t)
		return
	}
	if timeutil.Before(dl.Deadline, d.clock) || dl.Runtime <= 0 || d.deadlineOverflow(dl) {
		dl.Deadline = d.clock + dl.SchedDeadline
		dl.Runtime = dl.SchedRuntime
	}
}

func (d *Domain) enqueueDeadlineEntity(t *Task) {
	if t.dl.node.Linked() {
		logger.Panicf("internal error: deadline task %s is already queued", t)
	}
	if t.dl.Flags&FlagThrottled != 0 {
		logger.Panicf("internal error: cannot queue throttled deadline task %s", t)
	}
	d.dl.Insert(&t.dl.node)
	d.trace(trace.KindEnqueue, t)
}

func (d *Domain) dequeueDeadlineEntity(t *Task) {
	if !t.dl.node.Linked() {
		return
	}
	d.dl.Remove(&t.dl.node)
	d.trace(trace.KindDequeue, t)
}

// destroyDeadlineEntity takes t out of the deadline class for good. The
// caller waits for a running replenishment callback after unlocking.
func (d *Domain) destroyDeadlineEntity(t *Task) {
	t.dl.timer.Cancel()
	t.dl.Flags &^= FlagThrottled
	d.dequeueDeadlineEntity(t)
	d.bw.release(t.dl.bw)
	t.dl.bw = 0
}

// replenishTimerFired runs when the replenishment timer of a throttled
// task expires. gen is the timer generation that expired; if the timer
// was armed again or cancelled while the callback waited for the domain
// lock, the throttling it was armed for is over and nothing is done.
func replenishTimerFired(t *Task, gen uint64) {
	d := t.lockDomain()
	if d == nil {
		return
	}
	defer d.mu.Unlock()

	dl := &t.dl
	if !dl.timer.Current(gen) {
		logger.Debugf("ignoring stale replenishment timer of task %s", t)
		return
	}
	if t.dead || t.class != DeadlineClass || dl.Flags&FlagThrottled == 0 {
		return
	}
	d.updateClock()
	dl.Flags &^= FlagThrottled
	d.trace(trace.KindUnthrottle, t)
	if t == d.curr {
		t.execStart = d.clock
	}
	if !t.onRQ {
		return
	}
	d.replenishDeadlineEntity(t)
	if t != d.curr {
		d.enqueueDeadlineEntity(t)
		d.checkPreemptCurr(t)
	}
}
