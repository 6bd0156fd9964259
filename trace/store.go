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

package trace

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	runsBucket   = []byte("runs")
	infoKey      = []byte("info")
	eventsBucket = []byte("events")
)

// ErrRunNotFound is returned when loading a run that is not stored.
var ErrRunNotFound = errors.New("trace run not found")

// RunInfo describes a stored run.
type RunInfo struct {
	Name      string        `json:"name"`
	Created   time.Time     `json:"created"`
	Scenario  string        `json:"scenario,omitempty"`
	Duration  time.Duration `json:"duration"`
	Events    int           `json:"events"`
	JobMisses int           `json:"job-misses"`
}

// Store keeps runs in a bolt database, one bucket per run.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("cannot create trace store directory: %v", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("cannot open trace store %q: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize trace store %q: %v", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func eventKey(seq int) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(seq))
	return key[:]
}

// Save stores the events of a run, replacing a previous run of the same
// name. The Events count of info is set from events.
func (s *Store) Save(info RunInfo, events []Event) error {
	if info.Name == "" {
		return fmt.Errorf("cannot save trace run: empty name")
	}
	info.Events = len(events)
	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket(runsBucket)
		if runs.Bucket([]byte(info.Name)) != nil {
			if err := runs.DeleteBucket([]byte(info.Name)); err != nil {
				return err
			}
		}
		run, err := runs.CreateBucket([]byte(info.Name))
		if err != nil {
			return fmt.Errorf("cannot save trace run %q: %v", info.Name, err)
		}
		data, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := run.Put(infoKey, data); err != nil {
			return err
		}
		evs, err := run.CreateBucket(eventsBucket)
		if err != nil {
			return err
		}
		for i, ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if err := evs.Put(eventKey(i), data); err != nil {
				return fmt.Errorf("cannot save trace run %q: %v", info.Name, err)
			}
		}
		return nil
	})
}

func readInfo(run *bolt.Bucket) (RunInfo, error) {
	var info RunInfo
	if err := json.Unmarshal(run.Get(infoKey), &info); err != nil {
		return info, fmt.Errorf("cannot decode trace run information: %v", err)
	}
	return info, nil
}

// Runs returns the stored runs ordered by name.
func (s *Store) Runs() ([]RunInfo, error) {
	var infos []RunInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(name, v []byte) error {
			run := tx.Bucket(runsBucket).Bucket(name)
			if run == nil {
				return nil
			}
			info, err := readInfo(run)
			if err != nil {
				return err
			}
			infos = append(infos, info)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Load returns a stored run and its events, optionally only those of
// the given kinds.
func (s *Store) Load(name string, kinds ...Kind) (RunInfo, []Event, error) {
	var info RunInfo
	var events []Event
	err := s.db.View(func(tx *bolt.Tx) error {
		run := tx.Bucket(runsBucket).Bucket([]byte(name))
		if run == nil {
			return fmt.Errorf("cannot load trace run %q: %w", name, ErrRunNotFound)
		}
		var err error
		if info, err = readInfo(run); err != nil {
			return err
		}
		return run.Bucket(eventsBucket).ForEach(func(k, v []byte) error {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("cannot decode trace event: %v", err)
			}
			if len(kinds) == 0 || hasKind(kinds, ev.Kind) {
				events = append(events, ev)
			}
			return nil
		})
	})
	return info, events, err
}

// Delete removes a stored run.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.Bucket(runsBucket).DeleteBucket([]byte(name))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("cannot delete trace run %q: %w", name, ErrRunNotFound)
		}
		return err
	})
}
