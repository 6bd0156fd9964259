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

// Package introspect serves the state of a scheduler and stored traces
// over HTTP.
package introspect

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-systemd/activation"
	"github.com/gorilla/mux"
	"gopkg.in/tomb.v2"

	"github.com/snapcore/dlsched/logger"
	"github.com/snapcore/dlsched/sched"
	"github.com/snapcore/dlsched/trace"
)

// Source provides the domain state to serve, *sched.Scheduler is one.
type Source interface {
	Snapshot() []sched.DomainInfo
}

// A Server listens for requests and routes them to the right command.
type Server struct {
	source   Source
	store    *trace.Store
	listener net.Listener
	tomb     tomb.Tomb
	router   *mux.Router
}

// A ResponseFunc handles one of the individual verbs for a method
type ResponseFunc func(*Command, *http.Request) Response

// A Command routes a request to an individual per-verb ResponseFunc
type Command struct {
	Path string
	GET  ResponseFunc

	s *Server
}

func (c *Command) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var rsp Response = BadMethod("method %q not allowed", r.Method)
	if r.Method == "GET" && c.GET != nil {
		rsp = c.GET(c, r)
	}
	rsp.ServeHTTP(w, r)
}

type wrappedWriter struct {
	w http.ResponseWriter
	s int
}

func (w *wrappedWriter) Header() http.Header {
	return w.w.Header()
}

func (w *wrappedWriter) Write(bs []byte) (int, error) {
	return w.w.Write(bs)
}

func (w *wrappedWriter) WriteHeader(s int) {
	w.w.WriteHeader(s)
	w.s = s
}

func logit(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &wrappedWriter{w: w}
		t0 := time.Now()
		handler.ServeHTTP(ww, r)
		logger.Debugf("%s %s %s %s %d", r.RemoteAddr, r.Method, r.URL, time.Since(t0), ww.s)
	})
}

// New returns a server for the source. store may be nil.
func New(source Source, store *trace.Store) *Server {
	s := &Server{source: source, store: store}
	s.addRoutes()
	return s
}

func (s *Server) addRoutes() {
	s.router = mux.NewRouter()
	for _, c := range api {
		c := *c
		c.s = s
		s.router.Handle(c.Path, &c).Name(c.Path)
	}
	s.router.NotFoundHandler = NotFound("not found")
}

// Handler returns the request handler of the server.
func (s *Server) Handler() http.Handler {
	return logit(s.router)
}

var activationListeners = activation.Listeners

// getListener returns the first socket passed by systemd, or listens on
// addr: a path for a unix socket, otherwise a TCP address.
func getListener(addr string) (net.Listener, error) {
	listeners, err := activationListeners()
	if err != nil {
		return nil, err
	}
	for _, l := range listeners {
		if l != nil {
			logger.Debugf("using activated socket %q", l.Addr())
			return l, nil
		}
	}
	if addr == "" {
		return nil, fmt.Errorf("no activated socket and no address to listen on")
	}
	if strings.HasPrefix(addr, "/") {
		if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return net.Listen("unix", addr)
	}
	return net.Listen("tcp", addr)
}

// Init sets up the listener of the server.
func (s *Server) Init(addr string) error {
	l, err := getListener(addr)
	if err != nil {
		return fmt.Errorf("cannot listen for introspection requests: %v", err)
	}
	s.listener = l
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start serves requests until Stop is called.
func (s *Server) Start() {
	s.tomb.Go(func() error {
		if err := http.Serve(s.listener, s.Handler()); err != nil && s.tomb.Err() == tomb.ErrStillAlive {
			return err
		}
		return nil
	})
	logger.Noticef("serving introspection requests on %s", s.listener.Addr())
}

// Stop shuts down the server.
func (s *Server) Stop() error {
	s.tomb.Kill(nil)
	s.listener.Close()
	return s.tomb.Wait()
}

// Dying is closed once the server is asked to stop.
func (s *Server) Dying() <-chan struct{} {
	return s.tomb.Dying()
}
