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

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/dlsched/scenario"
)

type cmdCheck struct {
	Positional struct {
		Scenario string `positional-arg-name:"<scenario>"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	addCommand("check", "Check that the tasks of a scenario can be admitted", `
The check command runs admission control for the deadline tasks of the
scenario and reports the reserved bandwidth and the demand of each
domain. It fails if a task cannot be admitted.
`, func() flags.Commander { return &cmdCheck{} })
}

func listOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

func (x *cmdCheck) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	sc, err := scenario.Load(x.Positional.Scenario)
	if err != nil {
		return err
	}
	loads, err := scenario.Analyze(sc)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(Stdout, 5, 3, 2, ' ', 0)
	fmt.Fprintf(w, "Domain\tReserved\tCeiling\tDemand\tRejected\tUnderprovisioned\n")
	var rejected []string
	for _, l := range loads {
		ceiling := "unlimited"
		if l.Ceiling >= 0 {
			ceiling = fmt.Sprintf("%.2f%%", l.Ceiling)
		}
		fmt.Fprintf(w, "%d\t%.2f%%\t%s\t%.2f%%\t%s\t%s\n", l.Domain, l.Reserved, ceiling, l.Demand,
			listOrDash(l.Rejected), listOrDash(l.Underprovisioned))
		rejected = append(rejected, l.Rejected...)
	}
	w.Flush()

	if len(rejected) > 0 {
		return fmt.Errorf("cannot admit %s: not enough deadline bandwidth", strings.Join(rejected, ", "))
	}
	return nil
}
