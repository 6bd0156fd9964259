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

// Class is a scheduling class. All hooks are called with the domain
// locked; implementations use the *Locked accessors of Domain and must
// not call methods that lock the domain.
type Class interface {
	Name() string
	// Priority orders the classes of a scheduler, lower values are
	// asked for a task first.
	Priority() int

	// Enqueue makes a runnable task eligible for picking. wakeup is set
	// when the task was sleeping.
	Enqueue(d *Domain, t *Task, wakeup bool)
	// Dequeue removes a task from the runnable set. sleep is set when
	// the task blocks.
	Dequeue(d *Domain, t *Task, sleep bool)
	// Yield gives up the remainder of the current slot of the running
	// task.
	Yield(d *Domain)
	// CheckPreempt is called when t of this class becomes runnable while
	// a task of the same class is running.
	CheckPreempt(d *Domain, t *Task)
	// PickNext removes and returns the task to run next, or nil.
	PickNext(d *Domain) *Task
	// PutPrev is called on the running task before it is switched out.
	PutPrev(d *Domain, t *Task)
	// SetCurr is called when the running task changes class or
	// parameters.
	SetCurr(d *Domain)
	// Tick is the periodic accounting hook for the running task.
	Tick(d *Domain, t *Task)

	SwitchedFrom(d *Domain, t *Task, running bool)
	SwitchedTo(d *Domain, t *Task, running bool)

	// LoadBalance pulls tasks from busiest into d and returns how many
	// were moved. Both domains are locked.
	LoadBalance(d, busiest *Domain) int
	// MoveOneTask pulls a single task from busiest into d.
	MoveOneTask(d, busiest *Domain) bool
}

// IdleClass runs the per-domain idle task when nothing else is
// runnable. It is always the last class of a scheduler.
var IdleClass Class = idleClass{}

const idlePriority = 1 << 30

type idleClass struct{}

func (idleClass) Name() string  { return "idle" }
func (idleClass) Priority() int { return idlePriority }

func (idleClass) Enqueue(d *Domain, t *Task, wakeup bool) {}
func (idleClass) Dequeue(d *Domain, t *Task, sleep bool)  {}
func (idleClass) Yield(d *Domain)                         {}

func (idleClass) CheckPreempt(d *Domain, t *Task) {
	d.ReschedLocked()
}

func (idleClass) PickNext(d *Domain) *Task {
	return d.idle
}

func (idleClass) PutPrev(d *Domain, t *Task)                    {}
func (idleClass) SetCurr(d *Domain)                             {}
func (idleClass) Tick(d *Domain, t *Task)                       {}
func (idleClass) SwitchedFrom(d *Domain, t *Task, running bool) {}
func (idleClass) SwitchedTo(d *Domain, t *Task, running bool)   {}
func (idleClass) LoadBalance(d, busiest *Domain) int            { return 0 }
func (idleClass) MoveOneTask(d, busiest *Domain) bool           { return false }
