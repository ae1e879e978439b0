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

package db

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
CREATE TABLE IF NOT EXISTS devices (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	product_id INTEGER,
	battery_level REAL,
	battery_voltage REAL,
	online INTEGER DEFAULT 1,
	lock_mode INTEGER DEFAULT 0,
	signal_strength REAL,
	raw_data TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cats (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	tag_id INTEGER NOT NULL,
	device_id INTEGER REFERENCES devices(id),
	location TEXT DEFAULT 'unknown',
	current_profile INTEGER DEFAULT 2,
	curfew_active INTEGER DEFAULT 0,
	raw_data TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS curfew_schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cat_id INTEGER NOT NULL REFERENCES cats(id),
	name TEXT NOT NULL,
	days_of_week TEXT NOT NULL DEFAULT '[]',
	lock_time TEXT NOT NULL,
	unlock_time TEXT NOT NULL,
	enabled INTEGER DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS event_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	cat_id INTEGER REFERENCES cats(id),
	device_id INTEGER REFERENCES devices(id),
	details TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_log_type ON event_log(event_type);
CREATE INDEX IF NOT EXISTS idx_event_log_cat ON event_log(cat_id);
CREATE INDEX IF NOT EXISTS idx_event_log_created ON event_log(created_at);

CREATE TABLE IF NOT EXISTS state_cache (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`,
	},
}

func migrate(handle *sql.DB) error {
	_, err := handle.Exec(`
CREATE TABLE IF NOT EXISTS _migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	applied_at TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]bool)

	rows, err := handle.Query("SELECT version FROM _migrations")
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}

		applied[version] = true
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		tx, err := handle.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO _migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.version, m.name, now(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
