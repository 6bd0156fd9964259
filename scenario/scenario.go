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

// Package scenario describes deadline workloads in YAML and simulates
// them on a virtual clock.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snapcore/dlsched/sched"
)

const (
	ClassDeadline   = "deadline"
	ClassBackground = "background"

	defaultTick = time.Millisecond
)

// Bandwidth is the admission ceiling of every domain. A negative
// runtime disables admission control.
type Bandwidth struct {
	Runtime time.Duration `yaml:"runtime"`
	Period  time.Duration `yaml:"period"`
}

// Task describes one periodic task of a scenario.
type Task struct {
	Name   string `yaml:"name"`
	Domain int    `yaml:"domain"`
	// Class is "deadline" (the default) or "background".
	Class string `yaml:"class"`

	// Runtime and Deadline are the reservation of a deadline task.
	Runtime  time.Duration `yaml:"runtime"`
	Deadline time.Duration `yaml:"deadline"`
	Boosted  bool          `yaml:"boosted"`

	// Period between job releases, defaults to Deadline.
	Period time.Duration `yaml:"period"`
	// Exec is the execution time each job needs.
	Exec time.Duration `yaml:"exec"`
	// Offset of the first release from the start.
	Offset time.Duration `yaml:"offset"`
	// Jobs limits the number of releases, zero means no limit.
	Jobs int `yaml:"jobs"`
	// Exit the task after this long, zero means never.
	ExitAfter time.Duration `yaml:"exit-after"`
	// MigrateTo moves the task to another domain after MigrateAfter.
	MigrateTo    *int          `yaml:"migrate-to"`
	MigrateAfter time.Duration `yaml:"migrate-after"`
}

func (t *Task) params() sched.Params {
	return sched.Params{Runtime: t.Runtime, Deadline: t.Deadline}
}

// Scenario is a workload and the scheduler configuration to run it on.
type Scenario struct {
	Name     string        `yaml:"name"`
	Duration time.Duration `yaml:"duration"`
	Tick     time.Duration `yaml:"tick"`
	// Start is the initial reading of the virtual clock in nanoseconds.
	Start     int64     `yaml:"start"`
	Domains   int       `yaml:"domains"`
	Bandwidth Bandwidth `yaml:"bandwidth"`
	Tasks     []*Task   `yaml:"tasks"`
}

// Load reads a scenario from a file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read scenario: %v", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Parse decodes and validates a scenario, filling in defaults.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("cannot parse scenario: empty document")
		}
		return nil, fmt.Errorf("cannot parse scenario: %v", err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %v", err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if sc.Tick == 0 {
		sc.Tick = defaultTick
	}
	if sc.Tick < 0 {
		return fmt.Errorf("tick must be positive")
	}
	if sc.Domains == 0 {
		sc.Domains = 1
	}
	if sc.Domains < 0 {
		return fmt.Errorf("domains must be positive")
	}
	if len(sc.Tasks) == 0 {
		return fmt.Errorf("no tasks")
	}
	seen := make(map[string]bool, len(sc.Tasks))
	for i, t := range sc.Tasks {
		if t == nil {
			return fmt.Errorf("task #%d is empty", i)
		}
		if t.Name == "" {
			return fmt.Errorf("task #%d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("task %q is defined twice", t.Name)
		}
		seen[t.Name] = true
		if err := sc.validateTask(t); err != nil {
			return fmt.Errorf("task %q: %v", t.Name, err)
		}
	}
	return nil
}

func (sc *Scenario) validateTask(t *Task) error {
	if t.Domain < 0 || t.Domain >= sc.Domains {
		return fmt.Errorf("no domain %d", t.Domain)
	}
	if t.MigrateTo != nil && (*t.MigrateTo < 0 || *t.MigrateTo >= sc.Domains) {
		return fmt.Errorf("cannot migrate to missing domain %d", *t.MigrateTo)
	}
	switch t.Class {
	case "":
		t.Class = ClassDeadline
		fallthrough
	case ClassDeadline:
		if err := t.params().Validate(sched.DefaultMinRuntime); err != nil {
			return err
		}
		if t.Period == 0 {
			t.Period = t.Deadline
		}
	case ClassBackground:
		if t.Runtime != 0 || t.Deadline != 0 || t.Boosted {
			return fmt.Errorf("background tasks take no reservation")
		}
		if t.Period == 0 && t.Jobs != 1 {
			return fmt.Errorf("period is required")
		}
	default:
		return fmt.Errorf("unknown class %q", t.Class)
	}
	if t.Exec <= 0 {
		return fmt.Errorf("exec must be positive")
	}
	if t.Period < 0 || t.Offset < 0 || t.Jobs < 0 || t.ExitAfter < 0 || t.MigrateAfter < 0 {
		return fmt.Errorf("period, offset, jobs and timings must not be negative")
	}
	return nil
}

// Config returns the scheduler configuration of the scenario, without
// clock, timers and tracer.
func (sc *Scenario) Config() sched.Config {
	return sched.Config{
		Domains:          sc.Domains,
		BandwidthRuntime: sc.Bandwidth.Runtime,
		BandwidthPeriod:  sc.Bandwidth.Period,
	}
}
