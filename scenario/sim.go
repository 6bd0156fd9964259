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
	"errors"
	"fmt"
	"time"

	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/sched"
	"github.com/snapcore/dlsched/testtime"
	"github.com/snapcore/dlsched/timeutil"
	"github.com/snapcore/dlsched/trace"
)

// TaskStats are the job level results of one task.
type TaskStats struct {
	Name   string `json:"name"`
	Class  string `json:"class"`
	Domain int    `json:"domain"`

	Released  int `json:"released"`
	Completed int `json:"completed"`
	// Missed counts jobs completed after their deadline and jobs still
	// unfinished past their deadline at the end of the run.
	Missed      int           `json:"missed"`
	MaxLateness time.Duration `json:"max-lateness"`
	Exec        time.Duration `json:"exec"`

	Throttled      uint64 `json:"nr-throttled"`
	DeadlineMisses uint64 `json:"nr-deadline-misses"`
	Overruns       uint64 `json:"nr-overruns"`
	Exited         bool   `json:"exited,omitempty"`
}

// Result of a simulation.
type Result struct {
	Name      string             `json:"name"`
	Start     int64              `json:"start"`
	Duration  time.Duration      `json:"duration"`
	Tasks     []TaskStats        `json:"tasks"`
	JobMisses int                `json:"job-misses"`
	Domains   []sched.DomainInfo `json:"domains"`
	Events    []trace.Event      `json:"-"`
}

type job struct {
	// background jobs have no deadline
	deadline    int64
	hasDeadline bool
	remaining   int64
}

type simTask struct {
	def      *Task
	t        *sched.Task
	stats    TaskStats
	runnable bool
	exited   bool
	migrated bool

	nextRelease int64
	jobs        []job
}

type simulator struct {
	sc    *Scenario
	clock *testtime.Clock
	rec   *trace.Recorder
	s     *sched.Scheduler
	bg    *BackgroundClass
	tasks []*simTask
	byID  map[int]*simTask
}

// Run simulates the scenario. Time advances in ticks; the task running
// at the start of a tick is charged the whole tick.
func Run(sc *Scenario) (*Result, error) {
	sim, err := newSimulator(sc)
	if err != nil {
		return nil, err
	}
	defer sim.s.Close()

	start := sc.Start
	end := start + int64(sc.Duration)
	for now := start; timeutil.Before(now, end); now = sim.clock.Now() {
		if err := sim.step(now); err != nil {
			return nil, err
		}
	}
	return sim.result(end), nil
}

func newSimulator(sc *Scenario) (*simulator, error) {
	sim := &simulator{
		sc:    sc,
		clock: testtime.NewClock(sc.Start),
		rec:   trace.NewRecorder(),
		bg:    NewBackgroundClass(),
		byID:  make(map[int]*simTask),
	}
	cfg := sc.Config()
	cfg.Clock = sim.clock
	cfg.Timers = sim.clock
	cfg.Tracer = sim.rec
	cfg.Classes = []sched.Class{sim.bg}
	s, err := sched.New(cfg)
	if err != nil {
		return nil, err
	}
	sim.s = s
	sim.bg.register(s)

	for i, def := range sc.Tasks {
		st := &simTask{
			def:         def,
			t:           sched.NewTask(i+1, def.Name),
			nextRelease: sc.Start + int64(def.Offset),
		}
		st.stats.Name = def.Name
		st.stats.Class = def.Class
		d, err := s.Domain(def.Domain)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := sim.add(d, st); err != nil {
			s.Close()
			return nil, err
		}
		sim.tasks = append(sim.tasks, st)
		sim.byID[st.t.ID] = st
	}
	return sim, nil
}

func (sim *simulator) add(d *sched.Domain, st *simTask) error {
	if st.def.Class == ClassBackground {
		return d.AddTask(st.t, sim.bg)
	}
	if err := d.AddDeadlineTask(st.t, st.def.params()); err != nil {
		return err
	}
	if st.def.Boosted {
		return st.t.SetBoosted(true)
	}
	return nil
}

func (sim *simulator) jobEvent(st *simTask, kind trace.Kind, at int64, deadline int64) {
	domain := -1
	if d := st.t.Domain(); d != nil {
		domain = d.ID
	}
	sim.rec.Trace(trace.Event{
		Time:     at,
		Domain:   domain,
		Task:     st.t.ID,
		Name:     st.t.Name,
		Kind:     kind,
		Deadline: deadline,
	})
}

func (sim *simulator) step(now int64) error {
	start := sim.sc.Start
	for _, st := range sim.tasks {
		if st.exited {
			continue
		}
		def := st.def
		if def.ExitAfter > 0 && !timeutil.Before(now, start+int64(def.ExitAfter)) {
			if err := st.t.Domain().Exit(st.t); err != nil {
				return err
			}
			st.exited = true
			st.runnable = false
			continue
		}
		if def.MigrateTo != nil && !st.migrated && !timeutil.Before(now, start+int64(def.MigrateAfter)) {
			sim.migrate(st)
		}
		sim.release(st, now)
		if len(st.jobs) > 0 && !st.runnable {
			if err := st.t.Domain().Wakeup(st.t); err != nil {
				return err
			}
			st.runnable = true
		}
	}

	domains := sim.s.Domains()
	running := make([]*sched.Task, len(domains))
	for i, d := range domains {
		if d.NeedResched() {
			d.Schedule()
		}
		running[i] = d.Current()
	}

	sim.clock.Advance(sim.sc.Tick)
	end := sim.clock.Now()

	for i, d := range domains {
		d.Tick()
		if st := sim.byID[running[i].ID]; st != nil && !st.exited {
			sim.charge(st, end)
		}
	}
	for _, st := range sim.tasks {
		if st.runnable && len(st.jobs) == 0 {
			if err := st.t.Domain().Sleep(st.t); err != nil {
				return err
			}
			st.runnable = false
		}
	}
	return nil
}

func (sim *simulator) migrate(st *simTask) {
	dst, err := sim.s.Domain(*st.def.MigrateTo)
	if err != nil {
		st.migrated = true
		return
	}
	err = sim.s.Migrate(st.t, dst)
	switch {
	case errors.Is(err, sched.ErrTaskRunning):
		// retried on the next tick
	case err != nil:
		logger.Noticef("cannot migrate task %s: %v", st.t, err)
		st.migrated = true
	default:
		st.migrated = true
	}
}

func (sim *simulator) release(st *simTask, now int64) {
	def := st.def
	for !timeutil.After(st.nextRelease, now) {
		if def.Jobs > 0 && st.stats.Released >= def.Jobs {
			return
		}
		j := job{remaining: int64(def.Exec)}
		if def.Class == ClassDeadline {
			j.deadline = st.nextRelease + int64(def.Deadline)
			j.hasDeadline = true
		}
		st.jobs = append(st.jobs, j)
		st.stats.Released++
		sim.jobEvent(st, trace.KindJobRelease, st.nextRelease, j.deadline)
		if def.Period == 0 {
			return
		}
		st.nextRelease += int64(def.Period)
	}
}

// charge credits a tick of execution to the pending jobs of st.
func (sim *simulator) charge(st *simTask, end int64) {
	budget := int64(sim.sc.Tick)
	st.stats.Exec += sim.sc.Tick
	for budget > 0 && len(st.jobs) > 0 {
		j := &st.jobs[0]
		used := j.remaining
		if used > budget {
			used = budget
		}
		j.remaining -= used
		budget -= used
		if j.remaining > 0 {
			break
		}
		st.stats.Completed++
		sim.jobEvent(st, trace.KindJobComplete, end, j.deadline)
		if j.hasDeadline && timeutil.After(end, j.deadline) {
			sim.miss(st, end, j.deadline)
		}
		st.jobs = st.jobs[1:]
	}
}

func (sim *simulator) miss(st *simTask, at, deadline int64) {
	st.stats.Missed++
	if late := time.Duration(at - deadline); late > st.stats.MaxLateness {
		st.stats.MaxLateness = late
	}
	sim.jobEvent(st, trace.KindJobMiss, at, deadline)
}

func (sim *simulator) result(end int64) *Result {
	res := &Result{
		Name:     sim.sc.Name,
		Start:    sim.sc.Start,
		Duration: sim.sc.Duration,
	}
	for _, st := range sim.tasks {
		for _, j := range st.jobs {
			if j.hasDeadline && timeutil.After(end, j.deadline) {
				sim.miss(st, end, j.deadline)
			}
		}
		info := st.t.Info()
		st.stats.Domain = info.Domain
		st.stats.Throttled = info.Throttled
		st.stats.DeadlineMisses = info.DeadlineMisses
		st.stats.Overruns = info.Overruns
		st.stats.Exited = st.exited
		res.Tasks = append(res.Tasks, st.stats)
		res.JobMisses += st.stats.Missed
	}
	res.Domains = sim.s.Snapshot()
	res.Events = sim.rec.Events()
	logger.Debugf("simulated %q for %v: %d events, %d job misses", res.Name, res.Duration, len(res.Events), res.JobMisses)
	return res
}

// String summarizes the result in one line.
func (r *Result) String() string {
	return fmt.Sprintf("%s: %d tasks, %d job misses in %v", r.Name, len(r.Tasks), r.JobMisses, r.Duration)
}
