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

package introspect

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gorilla/mux"

	"github.com/snapcore/dlsched/sched"
	"github.com/snapcore/dlsched/trace"
)

var api = []*Command{
	domainsCmd,
	domainCmd,
	tasksCmd,
	taskCmd,
	tracesCmd,
	traceCmd,
}

var (
	domainsCmd = &Command{
		Path: "/v1/domains",
		GET:  getDomains,
	}

	domainCmd = &Command{
		Path: "/v1/domains/{id}",
		GET:  getDomain,
	}

	tasksCmd = &Command{
		Path: "/v1/tasks",
		GET:  getTasks,
	}

	taskCmd = &Command{
		Path: "/v1/tasks/{id}",
		GET:  getTask,
	}

	tracesCmd = &Command{
		Path: "/v1/traces",
		GET:  getTraces,
	}

	traceCmd = &Command{
		Path: "/v1/traces/{name}",
		GET:  getTrace,
	}
)

func getDomains(c *Command, r *http.Request) Response {
	return SyncResponse(c.s.source.Snapshot())
}

func getDomain(c *Command, r *http.Request) Response {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return BadRequest("invalid domain id %q", mux.Vars(r)["id"])
	}
	for _, info := range c.s.source.Snapshot() {
		if info.ID == id {
			return SyncResponse(info)
		}
	}
	return NotFound("cannot find domain %d", id)
}

func splitQuery(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func hasAnyFlag(info *sched.TaskInfo, flags []string) bool {
	for _, want := range flags {
		for _, have := range info.FlagNames {
			if want == have {
				return true
			}
		}
	}
	return false
}

// getTasks lists the tasks of all domains. The name parameter is a glob
// the task names must match, flags a list of which at least one must be
// set.
func getTasks(c *Command, r *http.Request) Response {
	pattern := r.URL.Query().Get("name")
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return BadRequest("invalid name pattern %q", pattern)
	}
	flags := splitQuery(r, "flags")

	tasks := []sched.TaskInfo{}
	for _, d := range c.s.source.Snapshot() {
		for i := range d.Tasks {
			info := &d.Tasks[i]
			if pattern != "" {
				if ok, _ := doublestar.Match(pattern, info.Name); !ok {
					continue
				}
			}
			if len(flags) > 0 && !hasAnyFlag(info, flags) {
				continue
			}
			tasks = append(tasks, *info)
		}
	}
	return SyncResponse(tasks)
}

func getTask(c *Command, r *http.Request) Response {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return BadRequest("invalid task id %q", mux.Vars(r)["id"])
	}
	for _, d := range c.s.source.Snapshot() {
		for _, info := range d.Tasks {
			if info.ID == id {
				return SyncResponse(info)
			}
		}
	}
	return NotFound("cannot find task %d", id)
}

func getTraces(c *Command, r *http.Request) Response {
	if c.s.store == nil {
		return NotFound("no trace store")
	}
	runs, err := c.s.store.Runs()
	if err != nil {
		return InternalError("cannot list trace runs: %v", err)
	}
	if runs == nil {
		runs = []trace.RunInfo{}
	}
	return SyncResponse(runs)
}

type traceResult struct {
	Info   trace.RunInfo `json:"info"`
	Events []trace.Event `json:"events"`
}

func getTrace(c *Command, r *http.Request) Response {
	if c.s.store == nil {
		return NotFound("no trace store")
	}
	var kinds []trace.Kind
	for _, k := range splitQuery(r, "kind") {
		kinds = append(kinds, trace.Kind(k))
	}
	name := mux.Vars(r)["name"]
	info, events, err := c.s.store.Load(name, kinds...)
	if errors.Is(err, trace.ErrRunNotFound) {
		return NotFound("%v", err)
	}
	if err != nil {
		return InternalError("%v", err)
	}
	if events == nil {
		events = []trace.Event{}
	}
	return SyncResponse(traceResult{Info: info, Events: events})
}
