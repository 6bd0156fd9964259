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

// Package sched implements earliest deadline first scheduling with
// constant bandwidth server reservations on a set of scheduling
// domains.
package sched

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/snapcore/dlsched/hrtimer"
	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/osutil"
	"github.com/snapcore/dlsched/timeutil"
	"github.com/snapcore/dlsched/trace"
)

const (
	DefaultBandwidthRuntime = 950 * time.Millisecond
	DefaultBandwidthPeriod  = time.Second
	DefaultMinRuntime       = time.Microsecond
)

// Config of a Scheduler. The zero value is usable.
type Config struct {
	// Domains is the number of scheduling domains, at least one.
	Domains int
	// BandwidthRuntime out of every BandwidthPeriod is the share of each
	// domain that deadline reservations may take. A negative
	// BandwidthRuntime disables admission control.
	BandwidthRuntime time.Duration
	BandwidthPeriod  time.Duration
	// MinRuntime is the smallest accepted reservation runtime.
	MinRuntime time.Duration

	// Clock defaults to the monotonic clock.
	Clock timeutil.Clock
	// Timers defaults to a real timer base on Clock, owned and stopped
	// by the scheduler.
	Timers hrtimer.Base
	Tracer trace.Tracer

	// Classes are registered in addition to the deadline and idle
	// classes.
	Classes []Class

	// MissNoticeInterval rate limits deadline miss notices per domain.
	// Defaults to $DLSCHED_MISS_NOTICE_INTERVAL or one second.
	MissNoticeInterval time.Duration
}

// Scheduler is a set of domains sharing a clock, timers and classes.
type Scheduler struct {
	clock     timeutil.Clock
	timers    hrtimer.Base
	ownTimers *hrtimer.RealBase
	tracer    trace.Tracer

	classes    []Class
	domains    []*Domain
	minRuntime time.Duration
}

// New returns a scheduler for the configuration.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Domains <= 0 {
		cfg.Domains = 1
	}
	if cfg.BandwidthPeriod == 0 {
		cfg.BandwidthPeriod = DefaultBandwidthPeriod
	}
	if cfg.BandwidthRuntime == 0 {
		cfg.BandwidthRuntime = DefaultBandwidthRuntime
	}
	if cfg.MinRuntime <= 0 {
		cfg.MinRuntime = DefaultMinRuntime
	}
	if cfg.MissNoticeInterval <= 0 {
		cfg.MissNoticeInterval = osutil.GetenvDuration("DLSCHED_MISS_NOTICE_INTERVAL", time.Second)
	}
	if cfg.BandwidthPeriod < 0 {
		return nil, fmt.Errorf("cannot create scheduler: invalid bandwidth period %v", cfg.BandwidthPeriod)
	}
	if cfg.BandwidthRuntime > cfg.BandwidthPeriod {
		return nil, fmt.Errorf("cannot create scheduler: bandwidth runtime %v exceeds period %v", cfg.BandwidthRuntime, cfg.BandwidthPeriod)
	}

	s := &Scheduler{
		clock:      cfg.Clock,
		timers:     cfg.Timers,
		tracer:     cfg.Tracer,
		minRuntime: cfg.MinRuntime,
	}
	if s.clock == nil {
		s.clock = timeutil.MonotonicClock{}
	}
	if s.timers == nil {
		s.ownTimers = hrtimer.NewRealBase(s.clock)
		s.timers = s.ownTimers
	}

	classes, err := sortClasses(cfg.Classes)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.classes = classes

	bw := bandwidth{unlimited: cfg.BandwidthRuntime < 0}
	if !bw.unlimited {
		bw.max = toRatio(int64(cfg.BandwidthPeriod), int64(cfg.BandwidthRuntime))
	}
	now := s.clock.Now()
	for i := 0; i < cfg.Domains; i++ {
		s.domains = append(s.domains, newDomain(s, i, now, bw, cfg.MissNoticeInterval))
	}
	logger.Debugf("scheduler with %d domains and classes %v", len(s.domains), classNames(s.classes))
	return s, nil
}

func sortClasses(extra []Class) ([]Class, error) {
	classes := []Class{DeadlineClass}
	for _, c := range extra {
		if c == nil || c == DeadlineClass || c == IdleClass {
			continue
		}
		classes = append(classes, c)
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].Priority() < classes[j].Priority()
	})
	for i := 1; i < len(classes); i++ {
		if classes[i].Priority() == classes[i-1].Priority() {
			return nil, fmt.Errorf("cannot create scheduler: classes %q and %q have the same priority",
				classes[i-1].Name(), classes[i].Name())
		}
	}
	if classes[len(classes)-1].Priority() >= idlePriority {
		return nil, fmt.Errorf("cannot create scheduler: class %q does not run before the idle class", classes[len(classes)-1].Name())
	}
	return append(classes, IdleClass), nil
}

func classNames(classes []Class) []string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name()
	}
	return names
}

// Close stops the timer base if the scheduler created it.
func (s *Scheduler) Close() error {
	if s.ownTimers != nil {
		return s.ownTimers.Stop()
	}
	return nil
}

// Now returns the time of the scheduler clock.
func (s *Scheduler) Now() int64 {
	return s.clock.Now()
}

// Domains returns all domains, ordered by ID.
func (s *Scheduler) Domains() []*Domain {
	return append([]*Domain(nil), s.domains...)
}

// Domain returns the domain with the given ID.
func (s *Scheduler) Domain(id int) (*Domain, error) {
	if id < 0 || id >= len(s.domains) {
		return nil, fmt.Errorf("cannot find domain %d: %w", id, ErrNoDomain)
	}
	return s.domains[id], nil
}

// Classes returns the registered classes in picking order.
func (s *Scheduler) Classes() []Class {
	return append([]Class(nil), s.classes...)
}

// Class returns the registered class with the given name, or nil.
func (s *Scheduler) Class(name string) Class {
	for _, c := range s.classes {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (s *Scheduler) hasClass(c Class) bool {
	for _, k := range s.classes {
		if k == c {
			return true
		}
	}
	return false
}

// lockPair locks two distinct domains in ID order.
func lockPair(a, b *Domain) {
	if a.ID > b.ID {
		a, b = b, a
	}
	a.mu.Lock()
	b.mu.Lock()
}

func unlockPair(a, b *Domain) {
	a.mu.Unlock()
	b.mu.Unlock()
}

// Migrate moves a task that is not running to the domain dst. The
// reservation of a deadline task moves along and must be admitted on
// dst.
func (s *Scheduler) Migrate(t *Task, dst *Domain) error {
	var src *Domain
	for {
		src = t.domain.Load()
		if src == nil {
			return fmt.Errorf("cannot migrate task %s: %w", t, ErrNotAttached)
		}
		if src == dst {
			return nil
		}
		lockPair(src, dst)
		if t.domain.Load() == src {
			break
		}
		unlockPair(src, dst)
	}
	defer unlockPair(src, dst)

	if t == src.curr {
		return fmt.Errorf("cannot migrate task %s: %w", t, ErrTaskRunning)
	}
	isDeadline := t.class == DeadlineClass
	if isDeadline {
		if err := dst.bw.admit(0, t.dl.bw); err != nil {
			return fmt.Errorf("cannot migrate task %s to domain %d: %w", t, dst.ID, err)
		}
		src.bw.release(t.dl.bw)
	}

	src.updateClock()
	dst.updateClock()
	queued := t.onRQ
	if queued {
		src.deactivate(t, false)
	}
	delete(src.tasks, t.ID)
	dst.tasks[t.ID] = t
	t.domain.Store(dst)
	dst.trace(trace.KindMigrate, t)
	if queued {
		dst.activate(t, false)
		if !t.throttledLocked() {
			dst.checkPreemptCurr(t)
		}
	}
	logger.Debugf("migrated task %s from domain %d to domain %d", t, src.ID, dst.ID)
	return nil
}

// Balance asks every class of every domain to pull work from the
// busiest domain and returns the number of moved tasks.
func (s *Scheduler) Balance() int {
	moved := 0
	for _, d := range s.domains {
		busiest := s.busiest(d)
		if busiest == nil {
			continue
		}
		lockPair(d, busiest)
		for _, c := range s.classes {
			moved += c.LoadBalance(d, busiest)
		}
		unlockPair(d, busiest)
	}
	return moved
}

func (s *Scheduler) busiest(than *Domain) *Domain {
	var busiest *Domain
	max := than.NrRunning()
	for _, d := range s.domains {
		if d == than {
			continue
		}
		if n := d.NrRunning(); n > max {
			busiest, max = d, n
		}
	}
	return busiest
}

// Snapshot returns the state of all domains.
func (s *Scheduler) Snapshot() []DomainInfo {
	infos := make([]DomainInfo, len(s.domains))
	for i, d := range s.domains {
		infos[i] = d.Snapshot()
	}
	return infos
}

func newMissLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval), 1)
}
