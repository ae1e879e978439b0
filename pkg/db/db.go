/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db is the sqlite-backed local state store: a durable mirror of
// remote devices and cats, curfew schedules, an append-only event log, and a
// small key/value cache.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

const timeFormat = time.RFC3339

// Store owns the sqlite handle and exposes the per-entity repositories.
type Store struct {
	db *sql.DB

	Devices   DeviceStore
	Cats      CatStore
	Schedules ScheduleStore
	Events    EventStore
	Cache     CacheStore
}

// Open opens (creating if needed) the sqlite database at path, applies
// pragmas and pending migrations, and returns the store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; sqlite serializes writes anyway and a single connection
	// avoids table-lock contention between pollers and triggers.
	handle.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := handle.Exec(pragma); err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := migrate(handle); err != nil {
		_ = handle.Close()
		return nil, err
	}

	s := &Store{db: handle}
	s.Devices = &deviceRepo{db: handle}
	s.Cats = &catRepo{db: handle}
	s.Schedules = &scheduleRepo{db: handle}
	s.Events = &eventRepo{db: handle}
	s.Cache = &cacheRepo{db: handle}

	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}

	return *v
}

func nullFloat64(v *float64) interface{} {
	if v == nil {
		return nil
	}

	return *v
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeFormat, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", errInvalidTimestamp, raw)
	}

	return t, nil
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}
