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
	. "gopkg.in/check.v1"

	dlsim "github.com/snapcore/dlsched/cmd/dlsim"
)

func (s *dlsimSuite) TestCheck(c *C) {
	path := s.writeScenario(c, "check.yaml", `
duration: 1s
domains: 2
tasks:
  - {name: A, runtime: 50ms, deadline: 100ms, exec: 50ms}
  - {name: B, runtime: 40ms, deadline: 100ms, exec: 40ms}
  - {name: C, runtime: 10ms, deadline: 100ms, exec: 20ms}
  - {name: D, domain: 1, runtime: 25ms, deadline: 100ms, exec: 10ms, period: 200ms}
  - {name: bg, class: background, exec: 1s, jobs: 1}
`)
	err := dlsim.ParseArgs([]string{"check", path})
	c.Check(err, ErrorMatches, "cannot admit C: not enough deadline bandwidth")
	c.Check(s.stdout.String(), Equals, `Domain  Reserved  Ceiling  Demand   Rejected  Underprovisioned
0       90.00%    95.00%   110.00%  C         C
1       25.00%    95.00%   5.00%    -         -
`)
}

func (s *dlsimSuite) TestCheckUnlimited(c *C) {
	path := s.writeScenario(c, "check.yaml", `
duration: 1s
bandwidth: {runtime: -1s}
tasks:
  - {name: A, runtime: 50ms, deadline: 100ms, exec: 50ms}
  - {name: B, runtime: 50ms, deadline: 100ms, exec: 50ms}
`)
	err := dlsim.ParseArgs([]string{"check", path})
	c.Assert(err, IsNil)
	c.Check(s.stdout.String(), Equals, `Domain  Reserved  Ceiling    Demand   Rejected  Underprovisioned
0       100.00%   unlimited  100.00%  -         -
`)
}

func (s *dlsimSuite) TestCheckInvalid(c *C) {
	path := s.writeScenario(c, "check.yaml", `
duration: 1s
tasks:
  - {name: A, runtime: 200ms, deadline: 100ms, exec: 50ms}
`)
	err := dlsim.ParseArgs([]string{"check", path})
	c.Check(err, ErrorMatches, `invalid scenario: .*runtime 200ms exceeds deadline 100ms`)
	c.Check(s.stdout.String(), Equals, "")
}
