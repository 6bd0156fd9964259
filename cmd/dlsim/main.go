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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/dlsched/dirs"
	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/trace"
)

var (
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	timeNow = time.Now
)

// ErrExtraArgs is returned if extra arguments to a command are found
var ErrExtraArgs = errors.New("too many arguments for command")

type options struct{}

var optionsData options

const (
	shortHelp = "Simulate deadline scheduling workloads"
	longHelp  = `
dlsim runs workload scenarios on an EDF/CBS deadline scheduler with a
virtual clock, keeps the recorded scheduling events and serves them
for inspection.
`
)

type cmdInfo struct {
	name, shortHelp, longHelp string
	builder                   func() flags.Commander
}

var commands []*cmdInfo

// addCommand registers a command so that every parser built by Parser
// gets a pristine instance of it.
func addCommand(name, shortHelp, longHelp string, builder func() flags.Commander) *cmdInfo {
	info := &cmdInfo{
		name:      name,
		shortHelp: shortHelp,
		longHelp:  longHelp,
		builder:   builder,
	}
	commands = append(commands, info)
	return info
}

// Parser creates and populates a fresh parser.
func Parser() *flags.Parser {
	parser := flags.NewParser(&optionsData, flags.HelpFlag|flags.PassDoubleDash)
	parser.ShortDescription = shortHelp
	parser.LongDescription = longHelp
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.shortHelp, strings.TrimSpace(c.longHelp), c.builder()); err != nil {
			logger.Panicf("cannot add command %q: %v", c.name, err)
		}
	}
	return parser
}

func init() {
	err := logger.SimpleSetup()
	if err != nil {
		fmt.Fprintf(Stderr, "WARNING: failed to activate logging: %v\n", err)
	}
}

func main() {
	if err := parseArgs(os.Args[1:]); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(Stdout, err)
			return
		}
		fmt.Fprintf(Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) error {
	_, err := Parser().ParseArgs(args)
	return err
}

// dbMixin is embedded by the commands using the trace store.
type dbMixin struct {
	DB string `long:"db" value-name:"<path>" description:"Trace database to use"`
}

func (x *dbMixin) openStore() (*trace.Store, error) {
	path := x.DB
	if path == "" {
		path = dirs.TraceDB
	}
	return trace.Open(path)
}
