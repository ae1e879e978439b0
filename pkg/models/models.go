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

// Package models holds the local mirror of remote pet-flap state.
package models

import "time"

// Device is the local mirror of one flap device. Identity is the remote
// device id; no local-only devices exist.
type Device struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	ProductID      int       `json:"product_id"`
	BatteryLevel   *float64  `json:"battery_level,omitempty"`
	BatteryVoltage *float64  `json:"battery_voltage,omitempty"`
	Online         bool      `json:"online"`
	LockMode       int       `json:"lock_mode"`
	SignalStrength *float64  `json:"signal_strength,omitempty"`
	RawData        string    `json:"-"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Cat is the local mirror of one animal. DeviceID is nil when no device's
// tag list carries the cat's tag.
type Cat struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	TagID          int64     `json:"tag_id"`
	DeviceID       *int64    `json:"device_id,omitempty"`
	Location       string    `json:"location"`
	CurrentProfile int       `json:"current_profile"`
	CurfewActive   bool      `json:"curfew_active"`
	RawData        string    `json:"-"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CurfewSchedule is one per-cat lock/unlock rule. Times are "HH:MM" in the
// process-wide configured timezone. Days use 0=Sunday through 6=Saturday.
type CurfewSchedule struct {
	ID         int64     `json:"id"`
	CatID      int64     `json:"cat_id"`
	Name       string    `json:"name"`
	DaysOfWeek []int     `json:"days_of_week"`
	LockTime   string    `json:"lock_time"`
	UnlockTime string    `json:"unlock_time"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Overnight reports whether the lock window wraps past midnight. "HH:MM"
// compares correctly as text at minute resolution.
func (s *CurfewSchedule) Overnight() bool {
	return s.LockTime > s.UnlockTime
}

// Event is one append-only audit log row.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"event_type"`
	CatID     *int64    `json:"cat_id,omitempty"`
	DeviceID  *int64    `json:"device_id,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CacheEntry is one key/value row with upsert semantics.
type CacheEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
