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
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapcore/dlsched/hrtimer"
	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/rbtree"
	"github.com/snapcore/dlsched/timeutil"
	"github.com/snapcore/dlsched/trace"
)

// Domain is a scheduling domain: one processor worth of tasks with its
// own ready queues and clock. All state is protected by mu.
type Domain struct {
	ID int
	s  *Scheduler

	mu sync.Mutex
	// clock only moves forward and is updated from the scheduler clock
	// at the start of every operation
	clock       int64
	curr        *Task
	idle        *Task
	needResched bool
	nrRunning   int
	nrSwitches  uint64
	tasks       map[int]*Task

	dl        *rbtree.Tree[*Task]
	bw        bandwidth
	missLimit *rate.Limiter
}

func deadlineLess(a, b *Task) bool {
	return timeutil.Before(a.dl.Deadline, b.dl.Deadline)
}

func newDomain(s *Scheduler, id int, now int64, bw bandwidth, missInterval time.Duration) *Domain {
	d := &Domain{
		ID:        id,
		s:         s,
		clock:     now,
		tasks:     make(map[int]*Task),
		dl:        rbtree.New(deadlineLess),
		bw:        bw,
		missLimit: newMissLimiter(missInterval),
	}
	d.idle = NewTask(-1, fmt.Sprintf("idle/%d", id))
	d.idle.class = IdleClass
	d.idle.domain.Store(d)
	d.curr = d.idle
	return d
}

func (d *Domain) String() string {
	return fmt.Sprintf("domain %d", d.ID)
}

// ClockLocked returns the domain clock. The domain must be locked.
func (d *Domain) ClockLocked() int64 {
	return d.clock
}

// CurrentLocked returns the running task. The domain must be locked.
func (d *Domain) CurrentLocked() *Task {
	return d.curr
}

// ReschedLocked requests a call to Schedule. The domain must be locked.
func (d *Domain) ReschedLocked() {
	d.needResched = true
}

func (d *Domain) updateClock() {
	if now := d.s.clock.Now(); timeutil.After(now, d.clock) {
		d.clock = now
	}
}

func (d *Domain) trace(kind trace.Kind, t *Task) {
	if d.s.tracer == nil {
		return
	}
	d.s.tracer.Trace(trace.Event{
		Time:     d.clock,
		Domain:   d.ID,
		Task:     t.ID,
		Name:     t.Name,
		Kind:     kind,
		Runtime:  t.dl.Runtime,
		Deadline: t.dl.Deadline,
	})
}

func (d *Domain) checkAttached(t *Task) error {
	if t.domain.Load() != d || t == d.idle {
		return ErrNotAttached
	}
	return nil
}

func (d *Domain) attachLocked(t *Task, c Class) {
	t.class = c
	t.dead = false
	t.onRQ = false
	d.tasks[t.ID] = t
	t.domain.Store(d)
}

// AddTask attaches a sleeping task of a class other than the deadline
// class.
func (d *Domain) AddTask(t *Task, c Class) error {
	if c == DeadlineClass || c == IdleClass || !d.s.hasClass(c) {
		return fmt.Errorf("cannot add task %s: %w", t, ErrUnknownClass)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.domain.Load() != nil {
		return fmt.Errorf("cannot add task %s: %w", t, ErrTaskAttached)
	}
	if _, ok := d.tasks[t.ID]; ok {
		return fmt.Errorf("cannot add task %s: task ID %d is in use", t, t.ID)
	}
	d.attachLocked(t, c)
	return nil
}

// AddDeadlineTask attaches a sleeping task to the deadline class with
// the given reservation, if the domain has enough bandwidth left for it.
func (d *Domain) AddDeadlineTask(t *Task, p Params) error {
	if err := p.Validate(d.s.minRuntime); err != nil {
		return fmt.Errorf("cannot add task %s: %w", t, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.domain.Load() != nil {
		return fmt.Errorf("cannot add task %s: %w", t, ErrTaskAttached)
	}
	if _, ok := d.tasks[t.ID]; ok {
		return fmt.Errorf("cannot add task %s: task ID %d is in use", t, t.ID)
	}
	if err := d.bw.admit(0, p.bandwidth()); err != nil {
		return fmt.Errorf("cannot add task %s to domain %d: %w", t, d.ID, err)
	}
	d.updateClock()
	d.initDeadlineEntity(t, p)
	d.attachLocked(t, DeadlineClass)
	logger.Debugf("admitted deadline task %s on domain %d, runtime %v deadline %v", t, d.ID, p.Runtime, p.Deadline)
	return nil
}

// initDeadlineEntity sets up the reservation of t. The entity stays NEW
// until its next enqueue.
func (d *Domain) initDeadlineEntity(t *Task, p Params) {
	dl := &t.dl
	dl.SchedRuntime = int64(p.Runtime)
	dl.SchedDeadline = int64(p.Deadline)
	dl.Runtime = 0
	dl.Deadline = d.clock
	dl.Flags = FlagNew | dl.Flags&FlagBoosted
	dl.bw = p.bandwidth()
	if dl.timer == nil {
		dl.timer = hrtimer.New(d.s.timers, func(gen uint64) { replenishTimerFired(t, gen) })
	}
}

// SetParams changes the reservation of a task, moving it into the
// deadline class if needed. The entity starts over as NEW.
func (d *Domain) SetParams(t *Task, p Params) error {
	if err := p.Validate(d.s.minRuntime); err != nil {
		return fmt.Errorf("cannot set parameters of task %s: %w", t, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAttached(t); err != nil {
		return fmt.Errorf("cannot set parameters of task %s: %w", t, err)
	}
	var old uint64
	if t.class == DeadlineClass {
		old = t.dl.bw
	}
	if err := d.bw.admit(old, p.bandwidth()); err != nil {
		return fmt.Errorf("cannot set parameters of task %s: %w", t, err)
	}
	d.updateClock()

	if t.class != DeadlineClass {
		d.initDeadlineEntity(t, p)
		d.switchClassLocked(t, DeadlineClass)
		return nil
	}

	queued, running := t.onRQ, t == d.curr
	if queued {
		d.deactivate(t, false)
	}
	t.dl.timer.Cancel()
	d.initDeadlineEntity(t, p)
	if running {
		t.execStart = d.clock
	}
	if queued {
		d.activate(t, false)
		if !running {
			d.checkPreemptCurr(t)
		}
	}
	if running {
		d.ReschedLocked()
	}
	return nil
}

// SetClass moves a task to a class other than the deadline class. Use
// SetParams to move a task into the deadline class.
func (d *Domain) SetClass(t *Task, c Class) error {
	if c == DeadlineClass || c == IdleClass || !d.s.hasClass(c) {
		return fmt.Errorf("cannot set class of task %s: %w", t, ErrUnknownClass)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAttached(t); err != nil {
		return fmt.Errorf("cannot set class of task %s: %w", t, err)
	}
	if t.class == c {
		return nil
	}
	d.updateClock()
	d.switchClassLocked(t, c)
	return nil
}

func (d *Domain) switchClassLocked(t *Task, c Class) {
	queued, running := t.onRQ, t == d.curr
	if queued {
		d.deactivate(t, false)
	}
	if running {
		t.class.PutPrev(d, t)
	}
	old := t.class
	t.class = c
	old.SwitchedFrom(d, t, running)
	if running {
		c.SetCurr(d)
	}
	if queued {
		d.activate(t, false)
	}
	c.SwitchedTo(d, t, running)
	if running {
		d.ReschedLocked()
	}
}

func (d *Domain) activate(t *Task, wakeup bool) {
	t.onRQ = true
	d.nrRunning++
	t.class.Enqueue(d, t, wakeup)
}

func (d *Domain) deactivate(t *Task, sleep bool) {
	t.class.Dequeue(d, t, sleep)
	t.onRQ = false
	d.nrRunning--
}

// checkPreemptCurr requests a reschedule if t should run instead of the
// running task.
func (d *Domain) checkPreemptCurr(t *Task) {
	curr := d.curr
	switch {
	case t.class == curr.class:
		t.class.CheckPreempt(d, t)
	case t.class.Priority() < curr.class.Priority():
		d.ReschedLocked()
	}
}

// CheckPreempt requests a reschedule if the runnable task t should
// preempt the running task, and reports whether one is pending.
func (d *Domain) CheckPreempt(t *Task) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAttached(t); err != nil {
		return false, fmt.Errorf("cannot check preemption by task %s: %w", t, err)
	}
	if t.onRQ && t != d.curr {
		d.updateClock()
		d.checkPreemptCurr(t)
	}
	return d.needResched, nil
}

// Wakeup makes a sleeping task runnable.
func (d *Domain) Wakeup(t *Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAttached(t); err != nil {
		return fmt.Errorf("cannot wake up task %s: %w", t, err)
	}
	if t.onRQ {
		return nil
	}
	d.updateClock()
	d.activate(t, true)
	if t != d.curr && !t.throttledLocked() {
		d.checkPreemptCurr(t)
	}
	return nil
}

// Sleep blocks a runnable task. A running task keeps running until the
// next Schedule.
func (d *Domain) Sleep(t *Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkAttached(t); err != nil {
		return fmt.Errorf("cannot put task %s to sleep: %w", t, err)
	}
	if !t.onRQ {
		return nil
	}
	d.updateClock()
	d.deactivate(t, true)
	if t == d.curr {
		d.ReschedLocked()
	}
	return nil
}

// Schedule picks the task to run next, makes it the running task and
// returns it. The idle task is returned when nothing is runnable.
func (d *Domain) Schedule() *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateClock()

	prev := d.curr
	prev.class.PutPrev(d, prev)
	next := d.pickNextTask()
	d.needResched = false
	if next != prev {
		d.nrSwitches++
		logger.Debugf("domain %d: switch from %s to %s at %v", d.ID, prev, next, time.Duration(d.clock))
	}
	d.curr = next
	return next
}

func (d *Domain) pickNextTask() *Task {
	for _, c := range d.s.classes {
		if t := c.PickNext(d); t != nil {
			return t
		}
	}
	logger.Panicf("internal error: domain %d has no task to run", d.ID)
	return nil
}

// Tick charges the running task for the time since the last
// accounting.
func (d *Domain) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateClock()
	d.curr.class.Tick(d, d.curr)
}

// Yield gives up the rest of the current slot of the running task.
func (d *Domain) Yield() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateClock()
	d.curr.class.Yield(d)
	d.ReschedLocked()
}

// Exit detaches a task for good. A replenishment callback racing with
// the exit is waited for before returning.
func (d *Domain) Exit(t *Task) error {
	d.mu.Lock()
	if err := d.checkAttached(t); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("cannot exit task %s: %w", t, err)
	}
	d.updateClock()
	if t.onRQ {
		d.deactivate(t, true)
	}
	if t == d.curr {
		t.class.PutPrev(d, t)
		d.curr = d.idle
		d.ReschedLocked()
	}
	if t.class == DeadlineClass {
		d.destroyDeadlineEntity(t)
	}
	d.trace(trace.KindExit, t)
	delete(d.tasks, t.ID)
	t.dead = true
	t.domain.Store(nil)
	timer := t.dl.timer
	d.mu.Unlock()

	if timer != nil {
		timer.Wait()
	}
	return nil
}

// Current returns the running task.
func (d *Domain) Current() *Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.curr
}

// NeedResched reports whether Schedule should be called.
func (d *Domain) NeedResched() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.needResched
}

// NrRunning returns the number of runnable tasks.
func (d *Domain) NrRunning() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nrRunning
}

// Tasks returns the attached tasks, ordered by ID.
func (d *Domain) Tasks() []*Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sortedTasksLocked()
}
