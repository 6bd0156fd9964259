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
	"strings"
	"sync/atomic"
	"time"

	"github.com/snapcore/dlsched/hrtimer"
	"github.com/snapcore/dlsched/rbtree"
)

// Flags describe the state of a deadline entity.
type Flags uint32

const (
	// FlagNew marks an entity whose deadline and runtime are set up on
	// its first enqueue.
	FlagNew Flags = 1 << iota
	// FlagThrottled marks an entity that used up its runtime and waits
	// for the replenishment timer.
	FlagThrottled
	// FlagDMiss records that the entity was found past its deadline.
	FlagDMiss
	// FlagRORun records that the entity overran its runtime.
	FlagRORun
	// FlagBoosted exempts the entity from throttling.
	FlagBoosted
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagNew, "new"},
	{FlagThrottled, "throttled"},
	{FlagDMiss, "dmiss"},
	{FlagRORun, "rorun"},
	{FlagBoosted, "boosted"},
}

// Strings returns the names of the set flags.
func (f Flags) Strings() []string {
	var out []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	return strings.Join(f.Strings(), "|")
}

// Params are the reservation parameters of a deadline task: the task
// may run for Runtime within every Deadline long period.
type Params struct {
	Runtime  time.Duration `yaml:"runtime" json:"runtime"`
	Deadline time.Duration `yaml:"deadline" json:"deadline"`
}

// maxDeadline keeps absolute deadlines well within the wraparound
// window of the clock.
const maxDeadline = time.Duration(1 << 62)

// Validate checks the parameters against a minimum runtime.
func (p Params) Validate(minRuntime time.Duration) error {
	switch {
	case p.Deadline <= 0:
		return fmt.Errorf("%w: deadline must be positive", ErrInvalidParams)
	case p.Deadline > maxDeadline:
		return fmt.Errorf("%w: deadline %v is too long", ErrInvalidParams, p.Deadline)
	case p.Runtime < minRuntime || p.Runtime <= 0:
		return fmt.Errorf("%w: runtime %v is below the minimum of %v", ErrInvalidParams, p.Runtime, minRuntime)
	case p.Runtime > p.Deadline:
		return fmt.Errorf("%w: runtime %v exceeds deadline %v", ErrInvalidParams, p.Runtime, p.Deadline)
	}
	return nil
}

func (p Params) bandwidth() uint64 {
	return toRatio(int64(p.Deadline), int64(p.Runtime))
}

// DeadlineEntity is the per-task state of the deadline class. Times are
// nanoseconds of the scheduler clock.
type DeadlineEntity struct {
	// Runtime is the remaining budget in the current period.
	Runtime int64
	// Deadline is the current absolute deadline.
	Deadline int64
	// SchedRuntime and SchedDeadline are the reservation.
	SchedRuntime  int64
	SchedDeadline int64
	Flags         Flags

	node  rbtree.Node[*Task]
	timer *hrtimer.Timer
	bw    uint64

	nrThrottled uint64
	nrDMiss     uint64
	nrRORun     uint64
	nrReplenish uint64
}

// Task is a schedulable entity. A task belongs to at most one domain at
// a time and is scheduled by exactly one class.
type Task struct {
	ID   int
	Name string

	// domain is read without any lock by timer callbacks
	domain atomic.Pointer[Domain]
	class  Class

	onRQ bool
	dead bool

	execStart      int64
	sumExecRuntime int64

	dl DeadlineEntity
}

// NewTask returns a detached task.
func NewTask(id int, name string) *Task {
	t := &Task{ID: id, Name: name}
	t.dl.node.Value = t
	return t
}

func (t *Task) String() string {
	return fmt.Sprintf("%s (%d)", t.Name, t.ID)
}

// Domain returns the domain the task is attached to, or nil.
func (t *Task) Domain() *Domain {
	return t.domain.Load()
}

// lockDomain locks the domain of the task and returns it, or returns
// nil for a detached task. The task may be migrated until its domain is
// locked, so the back-reference is checked again with the lock held.
func (t *Task) lockDomain() *Domain {
	for {
		d := t.domain.Load()
		if d == nil {
			return nil
		}
		d.mu.Lock()
		if t.domain.Load() == d {
			return d
		}
		d.mu.Unlock()
	}
}

// Info returns a snapshot of the task.
func (t *Task) Info() TaskInfo {
	d := t.lockDomain()
	if d == nil {
		return t.infoLocked(nil)
	}
	defer d.mu.Unlock()
	return t.infoLocked(d)
}

// SetBoosted sets or clears the exemption of a deadline task from
// throttling.
func (t *Task) SetBoosted(boosted bool) error {
	d := t.lockDomain()
	if d == nil {
		return fmt.Errorf("cannot boost task %s: %w", t, ErrNotAttached)
	}
	defer d.mu.Unlock()
	if t.class != DeadlineClass {
		return fmt.Errorf("cannot boost task %s: not a deadline task", t)
	}
	if boosted {
		t.dl.Flags |= FlagBoosted
		return nil
	}
	t.dl.Flags &^= FlagBoosted
	if t == d.curr {
		d.updateClock()
		d.updateCurrDeadline()
	}
	return nil
}

// RunnableLocked reports whether t is runnable. The domain of t must be
// locked.
func (t *Task) RunnableLocked() bool {
	return t.onRQ
}

// throttledLocked reports whether t is a deadline task waiting for its
// replenishment timer.
func (t *Task) throttledLocked() bool {
	return t.class == DeadlineClass && t.dl.Flags&FlagThrottled != 0
}
