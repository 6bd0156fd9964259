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

package main_test

import (
	"os"
	"path/filepath"
	"strings"

	. "gopkg.in/check.v1"

	"github.com/snapcore/dlsched/dirs"
	"github.com/snapcore/dlsched/trace"

	dlsim "github.com/snapcore/dlsched/cmd/dlsim"
)

const twoTasksStats = `Task  Class     Domain  Jobs  Missed  Max-late  Exec  Throttled  Dmiss  Rorun
A     deadline  0       3/3   0       0s        60ms  3          0      0
B     deadline  0       2/2   0       0s        60ms  2          0      0
`

func (s *dlsimSuite) TestRun(c *C) {
	path := s.writeScenario(c, "two.yaml", twoTasks)

	err := dlsim.ParseArgs([]string{"run", path})
	c.Assert(err, IsNil)
	out := s.stdout.String()
	c.Check(strings.HasPrefix(out, "two-tasks: 2 tasks, 0 job misses in 300ms\n"+twoTasksStats), Equals, true, Commentf(out))
	c.Check(out, Matches, `(?s).*\nsaved \d+ events as "two-tasks"\n`)
	c.Check(s.stderr.String(), Equals, "")

	store, err := trace.Open(dirs.TraceDB)
	c.Assert(err, IsNil)
	defer store.Close()
	runs, err := store.Runs()
	c.Assert(err, IsNil)
	c.Assert(runs, HasLen, 1)
	c.Check(runs[0].Name, Equals, "two-tasks")
	c.Check(runs[0].Scenario, Equals, path)
	c.Check(runs[0].Created.Equal(created), Equals, true)
	c.Check(runs[0].Events > 0, Equals, true)

	_, throttles, err := store.Load("two-tasks", trace.KindThrottle)
	c.Assert(err, IsNil)
	c.Check(throttles, HasLen, 5)
}

func (s *dlsimSuite) TestRunNamedInCustomDB(c *C) {
	path := s.writeScenario(c, "two.yaml", twoTasks)
	db := filepath.Join(s.dir, "other", "runs.db")

	err := dlsim.ParseArgs([]string{"run", "--db", db, "--name", "first", path})
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Matches, `(?s).*saved \d+ events as "first"\n`)

	_, err = os.Stat(db)
	c.Check(err, IsNil)
	_, err = os.Stat(dirs.TraceDB)
	c.Check(os.IsNotExist(err), Equals, true)
}

func (s *dlsimSuite) TestRunNameFromFile(c *C) {
	path := s.writeScenario(c, "unnamed.yaml", `
duration: 10ms
tasks:
  - {name: A, runtime: 1ms, deadline: 10ms, exec: 1ms}
`)
	err := dlsim.ParseArgs([]string{"run", "--no-save", path})
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Matches, `unnamed: 1 tasks, 0 job misses in 10ms\n(?s).*`)
	c.Check(s.stdout.String(), Not(Matches), `(?s).*saved.*`)
	_, err = os.Stat(dirs.TraceDB)
	c.Check(os.IsNotExist(err), Equals, true)
}

func (s *dlsimSuite) TestRunDump(c *C) {
	path := s.writeScenario(c, "two.yaml", twoTasks)
	err := dlsim.ParseArgs([]string{"run", "--no-save", "--dump", path})
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Matches, `(?s).*sched.DomainInfo\{.*Current: +".*`)
}

func (s *dlsimSuite) TestRunErrors(c *C) {
	err := dlsim.ParseArgs([]string{"run"})
	c.Check(err, ErrorMatches, "the required argument `<scenario>` was not provided")

	err = dlsim.ParseArgs([]string{"run", filepath.Join(s.dir, "missing.yaml")})
	c.Check(err, ErrorMatches, "cannot read scenario: .*no such file or directory")

	path := s.writeScenario(c, "full.yaml", `
duration: 100ms
tasks:
  - {name: A, runtime: 60ms, deadline: 100ms, exec: 1ms}
  - {name: B, runtime: 60ms, deadline: 100ms, exec: 1ms}
`)
	err = dlsim.ParseArgs([]string{"run", path})
	c.Check(err, ErrorMatches, `cannot add task B \(2\) to domain 0: not enough deadline bandwidth: .*`)
}

func (s *dlsimSuite) TestExitedTasksAreMarked(c *C) {
	path := s.writeScenario(c, "exit.yaml", `
duration: 100ms
tasks:
  - {name: A, runtime: 10ms, deadline: 50ms, exec: 10ms, exit-after: 60ms}
`)
	err := dlsim.ParseArgs([]string{"run", "--no-save", path})
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Matches, `(?s).*\nA\*  +deadline .*`)
}
