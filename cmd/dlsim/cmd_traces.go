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
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/dlsched/trace"
)

type cmdTraces struct {
	dbMixin
}

type cmdShow struct {
	dbMixin
	Kinds []string `long:"kind" value-name:"<kind>" description:"Only show events of this kind (can be repeated, or comma separated)"`

	Positional struct {
		Run string `positional-arg-name:"<run>"`
	} `positional-args:"yes" required:"yes"`
}

type cmdForget struct {
	dbMixin

	Positional struct {
		Runs []string `positional-arg-name:"<run>" required:"1"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("traces", "List the stored runs", "", func() flags.Commander { return &cmdTraces{} })
	addCommand("show", "Show the events of a stored run", `
The show command prints the scheduling events recorded for a run, one
per line.
`, func() flags.Commander { return &cmdShow{} })
	addCommand("forget", "Remove stored runs", "", func() flags.Commander { return &cmdForget{} })
}

func (x *cmdTraces) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	store, err := x.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(Stdout, "no trace runs yet\n")
		return nil
	}

	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Name\tCreated\tDuration\tEvents\tJob-misses\tScenario\n")
	for _, r := range runs {
		scenario := r.Scenario
		if scenario == "" {
			scenario = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%d\t%d\t%s\n", r.Name, r.Created.Format(time.RFC3339),
			r.Duration, r.Events, r.JobMisses, scenario)
	}
	return nil
}

func (x *cmdShow) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	var kinds []trace.Kind
	for _, k := range x.Kinds {
		for _, kind := range strings.Split(k, ",") {
			if kind != "" {
				kinds = append(kinds, trace.Kind(kind))
			}
		}
	}

	store, err := x.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	_, events, err := store.Load(x.Positional.Run, kinds...)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(Stdout, "%s\n", ev)
	}
	return nil
}

func (x *cmdForget) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	store, err := x.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	for _, name := range x.Positional.Runs {
		if err := store.Delete(name); err != nil {
			return fmt.Errorf("cannot forget %q: %w", name, err)
		}
	}
	return nil
}
