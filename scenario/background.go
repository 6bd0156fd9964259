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

package scenario

import (
	"time"

	"github.com/snapcore/dlsched/sched"
)

// backgroundSlice is how long a background task runs before the next
// one in line gets a turn.
const backgroundSlice = 10 * time.Millisecond

// BackgroundClass is a round-robin class below the deadline class for
// best effort work. It is only touched with the respective domain
// locked, so per-domain state needs no further locking.
type BackgroundClass struct {
	domains map[*sched.Domain]*bgQueue
}

type bgQueue struct {
	tasks      []*sched.Task
	sliceStart int64
}

// NewBackgroundClass returns a class with no queued tasks.
func NewBackgroundClass() *BackgroundClass {
	return &BackgroundClass{domains: make(map[*sched.Domain]*bgQueue)}
}

// register creates the queues of all domains of s up front, the map itself
// is not protected by any domain lock.
func (b *BackgroundClass) register(s *sched.Scheduler) {
	for _, d := range s.Domains() {
		b.domains[d] = &bgQueue{}
	}
}

func (b *BackgroundClass) Name() string  { return ClassBackground }
func (b *BackgroundClass) Priority() int { return 100 }

func (q *bgQueue) remove(t *sched.Task) {
	for i, qt := range q.tasks {
		if qt == t {
			q.tasks = append(q.tasks[:i:i], q.tasks[i+1:]...)
			return
		}
	}
}

func (b *BackgroundClass) Enqueue(d *sched.Domain, t *sched.Task, wakeup bool) {
	if t != d.CurrentLocked() {
		q := b.domains[d]
		q.tasks = append(q.tasks, t)
	}
}

func (b *BackgroundClass) Dequeue(d *sched.Domain, t *sched.Task, sleep bool) {
	b.domains[d].remove(t)
}

func (b *BackgroundClass) Yield(d *sched.Domain) {}

func (b *BackgroundClass) CheckPreempt(d *sched.Domain, t *sched.Task) {}

func (b *BackgroundClass) PickNext(d *sched.Domain) *sched.Task {
	q := b.domains[d]
	if len(q.tasks) == 0 {
		return nil
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	q.sliceStart = d.ClockLocked()
	return t
}

func (b *BackgroundClass) PutPrev(d *sched.Domain, t *sched.Task) {
	if t.RunnableLocked() {
		q := b.domains[d]
		q.tasks = append(q.tasks, t)
	}
}

func (b *BackgroundClass) SetCurr(d *sched.Domain) {
	q := b.domains[d]
	q.remove(d.CurrentLocked())
	q.sliceStart = d.ClockLocked()
}

func (b *BackgroundClass) Tick(d *sched.Domain, t *sched.Task) {
	q := b.domains[d]
	if len(q.tasks) > 0 && d.ClockLocked()-q.sliceStart >= int64(backgroundSlice) {
		d.ReschedLocked()
	}
}

func (b *BackgroundClass) SwitchedFrom(d *sched.Domain, t *sched.Task, running bool) {}
func (b *BackgroundClass) SwitchedTo(d *sched.Domain, t *sched.Task, running bool)   {}

func (b *BackgroundClass) LoadBalance(d, busiest *sched.Domain) int  { return 0 }
func (b *BackgroundClass) MoveOneTask(d, busiest *sched.Domain) bool { return false }
