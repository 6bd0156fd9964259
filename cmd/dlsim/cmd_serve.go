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
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/snapcore/dlsched/introspect"
	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/sched"
	"github.com/snapcore/dlsched/trace"
)

type cmdServe struct {
	dbMixin
	Listen string `long:"listen" value-name:"<address>" description:"Address or socket path to listen on, unless socket activated"`
}

func init() {
	addCommand("serve", "Serve the stored runs over HTTP", `
The serve command serves the stored runs on the introspection API until
interrupted.
`, func() flags.Commander { return &cmdServe{} })
}

// domainsSource serves a fixed set of domain snapshots.
type domainsSource []sched.DomainInfo

func (ds domainsSource) Snapshot() []sched.DomainInfo {
	return ds
}

var waitForStop = func(srv *introspect.Server) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case sig := <-ch:
		logger.Noticef("exiting on %s signal", sig)
	case <-srv.Dying():
	}
}

func serve(addr string, source introspect.Source, store *trace.Store) error {
	srv := introspect.New(source, store)
	if err := srv.Init(addr); err != nil {
		return err
	}
	srv.Start()
	fmt.Fprintf(Stdout, "serving on %s\n", srv.Addr())
	waitForStop(srv)
	return srv.Stop()
}

func (x *cmdServe) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}
	store, err := x.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	return serve(x.Listen, domainsSource{}, store)
}
