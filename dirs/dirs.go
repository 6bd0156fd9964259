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

// Package dirs holds the locations of the files used by dlsim.
package dirs

import (
	"os"
	"path/filepath"
)

// the various file paths
var (
	GlobalRootDir string

	StateDir string
	TraceDB  string
)

// StateDirEnv names the environment variable overriding StateDir.
const StateDirEnv = "DLSIM_STATE_DIR"

// SetRootDir allows settings a different root directory, used by tests.
// An empty rootdir means "/".
func SetRootDir(rootdir string) {
	if rootdir == "" {
		rootdir = "/"
	}
	GlobalRootDir = rootdir

	StateDir = filepath.Join(rootdir, "/var/lib/dlsim")
	if dir := os.Getenv(StateDirEnv); dir != "" {
		StateDir = dir
	}
	TraceDB = filepath.Join(StateDir, "traces.db")
}

func init() {
	SetRootDir(os.Getenv("DLSIM_ROOT"))
}
