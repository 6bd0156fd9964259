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

var (
	MulLess = mulLess
	ToRatio = toRatio
)

// QueuedTasks returns the deadline ready queue in order.
func (d *Domain) QueuedTasks() []*Task {
	d.mu.Lock()
	defer d.mu.Unlock()
	var tasks []*Task
	d.dl.Each(func(t *Task) bool {
		tasks = append(tasks, t)
		return true
	})
	return tasks
}

func (t *Task) TimerActive() bool {
	return t.dl.timer != nil && t.dl.timer.Active()
}

// PendingReplenishment returns the replenishment callback for the current
// arming of the timer of t, to be run at a later point.
func (t *Task) PendingReplenishment() func() {
	gen := t.dl.timer.Generation()
	return func() { replenishTimerFired(t, gen) }
}
