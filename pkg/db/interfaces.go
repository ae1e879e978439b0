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
	"context"

	"github.com/petgate/curfewd/pkg/models"
)

// DeviceStore is the durable mirror of remote flap devices.
type DeviceStore interface {
	Upsert(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id int64) (*models.Device, error)
	GetAll(ctx context.Context) ([]*models.Device, error)
	UpdateLockMode(ctx context.Context, id int64, lockMode int) error
}

// CatStore is the durable mirror of remote animals.
type CatStore interface {
	Upsert(ctx context.Context, cat *models.Cat) error
	GetByID(ctx context.Context, id int64) (*models.Cat, error)
	GetAll(ctx context.Context) ([]*models.Cat, error)
	UpdateProfile(ctx context.Context, id int64, profile int, curfewActive bool) error
}

// ScheduleStore holds per-cat curfew schedules.
type ScheduleStore interface {
	Create(ctx context.Context, schedule *models.CurfewSchedule) (*models.CurfewSchedule, error)
	Update(ctx context.Context, id int64, fields ScheduleUpdate) (*models.CurfewSchedule, error)
	Delete(ctx context.Context, id int64) error
	Toggle(ctx context.Context, id int64) (*models.CurfewSchedule, error)
	GetByID(ctx context.Context, id int64) (*models.CurfewSchedule, error)
	GetByCatID(ctx context.Context, catID int64) ([]*models.CurfewSchedule, error)
	GetEnabled(ctx context.Context) ([]*models.CurfewSchedule, error)
	GetAll(ctx context.Context) ([]*models.CurfewSchedule, error)
}

// ScheduleUpdate carries the mutable schedule fields; nil means unchanged.
type ScheduleUpdate struct {
	Name       *string
	DaysOfWeek []int
	LockTime   *string
	UnlockTime *string
}

// EventStore is the append-only audit trail.
type EventStore interface {
	Append(ctx context.Context, eventType string, details map[string]interface{}, catID, deviceID *int64) error
	List(ctx context.Context, filter EventFilter) ([]*models.Event, error)
	Count(ctx context.Context, filter EventFilter) (int, error)
}

// EventFilter narrows event reads. Zero values mean no filtering.
type EventFilter struct {
	EventType string
	CatID     int64
	Limit     int
	Offset    int
}

// CacheStore is a generic key/value cache with upsert semantics.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
