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

package sched

import (
	"errors"
)

var (
	// ErrInvalidParams is returned when deadline parameters are rejected.
	ErrInvalidParams = errors.New("invalid deadline parameters")
	// ErrBandwidthExceeded is returned when admitting a reservation would
	// take the domain over its bandwidth ceiling.
	ErrBandwidthExceeded = errors.New("not enough deadline bandwidth")
	// ErrTaskAttached is returned when adding a task that already belongs
	// to a domain.
	ErrTaskAttached = errors.New("task is already attached to a domain")
	// ErrNotAttached is returned when operating on a task that does not
	// belong to the domain.
	ErrNotAttached = errors.New("task is not attached to this domain")
	ErrTaskRunning = errors.New("task is running")
	ErrNoDomain    = errors.New("no such domain")
	// ErrUnknownClass is returned for classes not registered with the
	// scheduler, and for the deadline class where parameters are needed.
	ErrUnknownClass = errors.New("unknown scheduling class")
)
