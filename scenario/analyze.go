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

	"github.com/snapcore/dlsched/sched"
	"github.com/snapcore/dlsched/testtime"
)

// DomainLoad is the static load of one domain of a scenario.
type DomainLoad struct {
	Domain int `json:"domain"`
	// Reserved is the admitted bandwidth in percent, Ceiling the
	// admission limit or -1 without one.
	Reserved float64 `json:"reserved"`
	Ceiling  float64 `json:"ceiling"`
	// Demand is the sum of exec/period of the deadline tasks in percent.
	Demand float64 `json:"demand"`
	// Rejected lists the tasks that failed admission.
	Rejected []string `json:"rejected,omitempty"`
	// Underprovisioned lists the tasks whose jobs need more than the
	// runtime of one reservation period.
	Underprovisioned []string `json:"underprovisioned,omitempty"`
}

// Analyze runs admission control for the tasks of the scenario in order
// without simulating them.
func Analyze(sc *Scenario) ([]DomainLoad, error) {
	clock := testtime.NewClock(sc.Start)
	cfg := sc.Config()
	cfg.Clock = clock
	cfg.Timers = clock
	s, err := sched.New(cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	loads := make([]DomainLoad, sc.Domains)
	for i, def := range sc.Tasks {
		if def.Class != ClassDeadline {
			continue
		}
		load := &loads[def.Domain]
		if def.Period > 0 {
			load.Demand += float64(def.Exec) * 100 / float64(def.Period)
		}
		if def.Exec > def.Runtime {
			load.Underprovisioned = append(load.Underprovisioned, def.Name)
		}
		d, err := s.Domain(def.Domain)
		if err != nil {
			return nil, err
		}
		err = d.AddDeadlineTask(sched.NewTask(i+1, def.Name), def.params())
		switch {
		case errors.Is(err, sched.ErrBandwidthExceeded):
			load.Rejected = append(load.Rejected, def.Name)
		case err != nil:
			return nil, err
		}
	}
	for i, info := range s.Snapshot() {
		loads[i].Domain = info.ID
		loads[i].Reserved = info.Bandwidth
		loads[i].Ceiling = info.MaxBandwidth
	}
	return loads, nil
}
