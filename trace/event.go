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

// Package trace records scheduling events for diagnostics and keeps
// recorded runs in a bolt database.
package trace

import (
	"fmt"
	"sync"
	"time"
)

// Kind is the kind of a scheduling event.
type Kind string

const (
	KindEnqueue      Kind = "enqueue"
	KindDequeue      Kind = "dequeue"
	KindPick         Kind = "pick"
	KindPreempt      Kind = "preempt"
	KindThrottle     Kind = "throttle"
	KindReplenish    Kind = "replenish"
	KindUnthrottle   Kind = "unthrottle"
	KindDeadlineMiss Kind = "dmiss"
	KindOverrun      Kind = "rorun"
	KindExit         Kind = "exit"
	KindMigrate      Kind = "migrate"

	// job level events, emitted by workload drivers
	KindJobRelease  Kind = "release"
	KindJobComplete Kind = "complete"
	KindJobMiss     Kind = "job-miss"
)

// Event is a single scheduling event. Runtime and Deadline are the
// values of the task's deadline entity right after the event.
type Event struct {
	Time     int64  `json:"time"`
	Domain   int    `json:"domain"`
	Task     int    `json:"task"`
	Name     string `json:"name,omitempty"`
	Kind     Kind   `json:"kind"`
	Runtime  int64  `json:"runtime"`
	Deadline int64  `json:"deadline"`
}

func (ev Event) String() string {
	return fmt.Sprintf("%v d%d %s(%d) %s runtime=%v deadline=%v",
		time.Duration(ev.Time), ev.Domain, ev.Name, ev.Task, ev.Kind,
		time.Duration(ev.Runtime), time.Duration(ev.Deadline))
}

// Tracer receives events. Trace is called with scheduler locks held and
// must neither block for long nor call back into the scheduler.
type Tracer interface {
	Trace(ev Event)
}

// Recorder is a Tracer keeping events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Trace implements Tracer.
func (r *Recorder) Trace(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events, optionally only those
// of the given kinds.
func (r *Recorder) Events(kinds ...Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.events))
	for _, ev := range r.events {
		if len(kinds) == 0 || hasKind(kinds, ev.Kind) {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func hasKind(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
