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
	"sort"
	"time"
)

// TaskInfo is a point in time view of a task.
type TaskInfo struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Class    string `json:"class,omitempty"`
	Domain   int    `json:"domain"`
	Runnable bool   `json:"runnable"`
	Running  bool   `json:"running"`
	Queued   bool   `json:"queued"`

	Runtime       int64         `json:"runtime"`
	Deadline      int64         `json:"deadline"`
	SchedRuntime  time.Duration `json:"sched-runtime,omitempty"`
	SchedDeadline time.Duration `json:"sched-deadline,omitempty"`
	Flags         Flags         `json:"-"`
	FlagNames     []string      `json:"flags,omitempty"`

	SumExecRuntime time.Duration `json:"sum-exec-runtime"`
	Throttled      uint64        `json:"nr-throttled"`
	DeadlineMisses uint64        `json:"nr-deadline-misses"`
	Overruns       uint64        `json:"nr-overruns"`
	Replenishments uint64        `json:"nr-replenishments"`
}

// DomainInfo is a point in time view of a domain.
type DomainInfo struct {
	ID         int     `json:"id"`
	Clock      int64   `json:"clock"`
	Current    string  `json:"current"`
	NrRunning  int     `json:"nr-running"`
	NrQueued   int     `json:"nr-queued"`
	NrSwitches uint64  `json:"nr-switches"`
	Bandwidth  float64 `json:"bandwidth"`
	// MaxBandwidth is negative when admission control is off.
	MaxBandwidth float64    `json:"max-bandwidth"`
	Tasks        []TaskInfo `json:"tasks"`
}

func (t *Task) infoLocked(d *Domain) TaskInfo {
	info := TaskInfo{
		ID:             t.ID,
		Name:           t.Name,
		Domain:         -1,
		Runnable:       t.onRQ,
		SumExecRuntime: time.Duration(t.sumExecRuntime),
	}
	if t.class != nil {
		info.Class = t.class.Name()
	}
	if d != nil {
		info.Domain = d.ID
		info.Running = t == d.curr
	}
	if t.class == DeadlineClass {
		dl := &t.dl
		info.Queued = dl.node.Linked()
		info.Runtime = dl.Runtime
		info.Deadline = dl.Deadline
		info.SchedRuntime = time.Duration(dl.SchedRuntime)
		info.SchedDeadline = time.Duration(dl.SchedDeadline)
		info.Flags = dl.Flags
		info.FlagNames = dl.Flags.Strings()
		info.Throttled = dl.nrThrottled
		info.DeadlineMisses = dl.nrDMiss
		info.Overruns = dl.nrRORun
		info.Replenishments = dl.nrReplenish
	}
	return info
}

func (d *Domain) sortedTasksLocked() []*Task {
	tasks := make([]*Task, 0, len(d.tasks))
	for _, t := range d.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// Snapshot returns the state of the domain and its tasks.
func (d *Domain) Snapshot() DomainInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	info := DomainInfo{
		ID:           d.ID,
		Clock:        d.clock,
		Current:      d.curr.Name,
		NrRunning:    d.nrRunning,
		NrQueued:     d.dl.Len(),
		NrSwitches:   d.nrSwitches,
		Bandwidth:    bwPercent(d.bw.total),
		MaxBandwidth: bwPercent(d.bw.max),
	}
	if d.bw.unlimited {
		info.MaxBandwidth = -1
	}
	for _, t := range d.sortedTasksLocked() {
		info.Tasks = append(info.Tasks, t.infoLocked(d))
	}
	return info
}
