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

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/jessevdk/go-flags"
	"github.com/kr/pretty"

	"github.com/snapcore/dlsched/scenario"
	"github.com/snapcore/dlsched/trace"
)

type cmdRun struct {
	dbMixin
	Name   string `long:"name" value-name:"<run>" description:"Name to store the run under (defaults to the scenario name)"`
	NoSave bool   `long:"no-save" description:"Do not store the recorded events"`
	Dump   bool   `long:"dump" description:"Dump the final state of the domains"`
	Listen string `long:"listen" value-name:"<address>" description:"Serve the final state on this address until interrupted"`

	Positional struct {
		Scenario string `positional-arg-name:"<scenario>"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("run", "Run a scenario", `
The run command simulates the scenario, prints per task statistics and
stores the recorded scheduling events.
`, func() flags.Commander { return &cmdRun{} })
}

func (x *cmdRun) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	path := x.Positional.Scenario
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	if sc.Name == "" {
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	res, err := scenario.Run(sc)
	if err != nil {
		return err
	}

	fmt.Fprintf(Stdout, "%s\n", res)
	printStats(res.Tasks)
	if x.Dump {
		pretty.Fprintf(Stdout, "%# v\n", res.Domains)
	}

	var store *trace.Store
	if !x.NoSave {
		store, err = x.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		name := x.Name
		if name == "" {
			name = sc.Name
		}
		info := trace.RunInfo{
			Name:      name,
			Created:   timeNow(),
			Scenario:  path,
			Duration:  res.Duration,
			JobMisses: res.JobMisses,
		}
		if err := store.Save(info, res.Events); err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "saved %d events as %q\n", len(res.Events), name)
	}

	if x.Listen != "" {
		return serve(x.Listen, domainsSource(res.Domains), store)
	}
	return nil
}

func printStats(tasks []scenario.TaskStats) {
	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Task\tClass\tDomain\tJobs\tMissed\tMax-late\tExec\tThrottled\tDmiss\tRorun\n")
	for _, t := range tasks {
		name := t.Name
		if t.Exited {
			name += "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%d\t%v\t%v\t%d\t%d\t%d\n",
			name, t.Class, t.Domain, t.Completed, t.Released, t.Missed,
			t.MaxLateness, t.Exec, t.Throttled, t.DeadlineMisses, t.Overruns)
	}
}
