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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petgate/curfewd/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "store_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func float64Ptr(v float64) *float64 { return &v }

func int64Ptr(v int64) *int64 { return &v }

func TestOpenCreatesSchema(t *testing.T) {
	store := openTestStore(t)

	// A fresh database answers queries on every table.
	devices, err := store.Devices.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)

	cats, err := store.Cats.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cats)

	schedules, err := store.Schedules.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schedules)

	count, err := store.Events.Count(context.Background(), EventFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Devices.Upsert(context.Background(), &models.Device{ID: 1, Name: "Flap"}))
	require.NoError(t, store.Close())

	// Re-running migrations against an existing file must not fail or wipe data.
	store, err = Open(path)
	require.NoError(t, err)

	defer func() { _ = store.Close() }()

	device, err := store.Devices.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Flap", device.Name)
}

func TestDeviceRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("upsert then read", func(t *testing.T) {
		device := &models.Device{
			ID:             200,
			Name:           "Back Door Flap",
			ProductID:      models.ProductCatFlapConnect,
			BatteryLevel:   float64Ptr(50),
			BatteryVoltage: float64Ptr(5.2),
			SignalStrength: float64Ptr(-60),
			Online:         true,
			LockMode:       models.LockModeUnlocked,
			RawData:        `{"id":200}`,
		}

		require.NoError(t, store.Devices.Upsert(ctx, device))

		got, err := store.Devices.GetByID(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, "Back Door Flap", got.Name)
		assert.Equal(t, models.ProductCatFlapConnect, got.ProductID)
		require.NotNil(t, got.BatteryLevel)
		assert.InDelta(t, 50, *got.BatteryLevel, 0.01)
		assert.True(t, got.Online)
		assert.False(t, got.UpdatedAt.IsZero())
	})

	t.Run("upsert replaces in place", func(t *testing.T) {
		require.NoError(t, store.Devices.Upsert(ctx, &models.Device{
			ID: 200, Name: "Renamed Flap", ProductID: models.ProductCatFlapConnect, Online: false,
		}))

		got, err := store.Devices.GetByID(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, "Renamed Flap", got.Name)
		assert.False(t, got.Online)

		all, err := store.Devices.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("update lock mode", func(t *testing.T) {
		require.NoError(t, store.Devices.UpdateLockMode(ctx, 200, models.LockModeLockedAll))

		got, err := store.Devices.GetByID(ctx, 200)
		require.NoError(t, err)
		assert.Equal(t, models.LockModeLockedAll, got.LockMode)
	})

	t.Run("missing rows surface ErrNotFound", func(t *testing.T) {
		_, err := store.Devices.GetByID(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)

		err = store.Devices.UpdateLockMode(ctx, 999, models.LockModeUnlocked)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCatRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Cats reference devices.
	require.NoError(t, store.Devices.Upsert(ctx, &models.Device{
		ID: 200, Name: "Flap", ProductID: models.ProductCatFlapConnect,
	}))

	require.NoError(t, store.Cats.Upsert(ctx, &models.Cat{
		ID:             10,
		Name:           "Whiskers",
		TagID:          500,
		DeviceID:       int64Ptr(200),
		Location:       models.LocationInside,
		CurrentProfile: models.ProfileFullAccess,
	}))

	t.Run("round trip", func(t *testing.T) {
		cat, err := store.Cats.GetByID(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, "Whiskers", cat.Name)
		assert.Equal(t, int64(500), cat.TagID)
		require.NotNil(t, cat.DeviceID)
		assert.Equal(t, int64(200), *cat.DeviceID)
		assert.False(t, cat.CurfewActive)
	})

	t.Run("update profile flips curfew flag", func(t *testing.T) {
		require.NoError(t, store.Cats.UpdateProfile(ctx, 10, models.ProfileIndoorOnly, true))

		cat, err := store.Cats.GetByID(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, models.ProfileIndoorOnly, cat.CurrentProfile)
		assert.True(t, cat.CurfewActive)
	})

	t.Run("nil device id round trips", func(t *testing.T) {
		require.NoError(t, store.Cats.Upsert(ctx, &models.Cat{
			ID: 11, Name: "Mittens", TagID: 501, Location: models.LocationUnknown,
			CurrentProfile: models.ProfileFullAccess,
		}))

		cat, err := store.Cats.GetByID(ctx, 11)
		require.NoError(t, err)
		assert.Nil(t, cat.DeviceID)
	})

	t.Run("missing rows surface ErrNotFound", func(t *testing.T) {
		_, err := store.Cats.GetByID(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)

		err = store.Cats.UpdateProfile(ctx, 999, models.ProfileFullAccess, false)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestScheduleRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Schedules reference cats.
	for _, cat := range []*models.Cat{
		{ID: 10, Name: "Whiskers", TagID: 500, Location: models.LocationInside, CurrentProfile: models.ProfileFullAccess},
		{ID: 11, Name: "Mittens", TagID: 501, Location: models.LocationInside, CurrentProfile: models.ProfileFullAccess},
	} {
		require.NoError(t, store.Cats.Upsert(ctx, cat))
	}

	created, err := store.Schedules.Create(ctx, &models.CurfewSchedule{
		CatID:      10,
		Name:       "Night curfew",
		DaysOfWeek: []int{1, 2, 3, 4, 5},
		LockTime:   "21:00",
		UnlockTime: "07:00",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	t.Run("create enables and timestamps", func(t *testing.T) {
		assert.True(t, created.Enabled)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, created.DaysOfWeek)
		assert.False(t, created.CreatedAt.IsZero())
		assert.True(t, created.Overnight())
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		name := "Weeknight curfew"
		updated, err := store.Schedules.Update(ctx, created.ID, ScheduleUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Weeknight curfew", updated.Name)
		assert.Equal(t, "21:00", updated.LockTime)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, updated.DaysOfWeek)
	})

	t.Run("empty update is a read", func(t *testing.T) {
		got, err := store.Schedules.Update(ctx, created.ID, ScheduleUpdate{})
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("toggle flips enabled", func(t *testing.T) {
		toggled, err := store.Schedules.Toggle(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, toggled.Enabled)

		enabled, err := store.Schedules.GetEnabled(ctx)
		require.NoError(t, err)
		assert.Empty(t, enabled)

		toggled, err = store.Schedules.Toggle(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, toggled.Enabled)
	})

	t.Run("get by cat id", func(t *testing.T) {
		other, err := store.Schedules.Create(ctx, &models.CurfewSchedule{
			CatID: 11, Name: "Other cat", DaysOfWeek: []int{0, 6},
			LockTime: "18:00", UnlockTime: "08:00",
		})
		require.NoError(t, err)

		forCat, err := store.Schedules.GetByCatID(ctx, 11)
		require.NoError(t, err)
		require.Len(t, forCat, 1)
		assert.Equal(t, other.ID, forCat[0].ID)

		all, err := store.Schedules.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		require.NoError(t, store.Schedules.Delete(ctx, created.ID))

		_, err := store.Schedules.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, store.Schedules.Delete(ctx, created.ID), ErrNotFound)
	})

	t.Run("updating a missing schedule fails", func(t *testing.T) {
		name := "ghost"
		_, err := store.Schedules.Update(ctx, 9999, ScheduleUpdate{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestEventRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	catID := int64(10)
	deviceID := int64(200)

	// Events reference cats and devices.
	require.NoError(t, store.Devices.Upsert(ctx, &models.Device{
		ID: deviceID, Name: "Flap", ProductID: models.ProductCatFlapConnect,
	}))
	require.NoError(t, store.Cats.Upsert(ctx, &models.Cat{
		ID: catID, Name: "Whiskers", TagID: 500, Location: models.LocationInside,
		CurrentProfile: models.ProfileFullAccess,
	}))

	require.NoError(t, store.Events.Append(ctx, models.EventCatDiscovered,
		map[string]interface{}{"name": "Whiskers"}, &catID, nil))
	require.NoError(t, store.Events.Append(ctx, models.EventDeviceDiscovered,
		map[string]interface{}{"name": "Flap"}, nil, &deviceID))
	require.NoError(t, store.Events.Append(ctx, models.EventCurfewActivated,
		nil, &catID, &deviceID))

	t.Run("list returns newest first", func(t *testing.T) {
		events, err := store.Events.List(ctx, EventFilter{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, models.EventCurfewActivated, events[0].Type)
		assert.Equal(t, models.EventCatDiscovered, events[2].Type)
	})

	t.Run("filter by type", func(t *testing.T) {
		events, err := store.Events.List(ctx, EventFilter{EventType: models.EventDeviceDiscovered})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Nil(t, events[0].CatID)
		require.NotNil(t, events[0].DeviceID)
		assert.Equal(t, deviceID, *events[0].DeviceID)
		assert.Contains(t, events[0].Details, "Flap")
	})

	t.Run("filter by cat", func(t *testing.T) {
		count, err := store.Events.Count(ctx, EventFilter{CatID: catID})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("limit and offset page the log", func(t *testing.T) {
		first, err := store.Events.List(ctx, EventFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := store.Events.List(ctx, EventFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.NotEqual(t, first[0].ID, second[0].ID)
	})
}

func TestCacheRepo(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	t.Run("missing key surfaces ErrNotFound", func(t *testing.T) {
		_, err := store.Cache.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, store.Cache.Set(ctx, models.CacheKeyAuthToken, "tok-1"))

		value, err := store.Cache.Get(ctx, models.CacheKeyAuthToken)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", value)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, store.Cache.Set(ctx, models.CacheKeyAuthToken, "tok-2"))

		value, err := store.Cache.Get(ctx, models.CacheKeyAuthToken)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", value)
	})

	t.Run("delete removes the key", func(t *testing.T) {
		require.NoError(t, store.Cache.Delete(ctx, models.CacheKeyAuthToken))

		_, err := store.Cache.Get(ctx, models.CacheKeyAuthToken)
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing key is not an error.
		assert.NoError(t, store.Cache.Delete(ctx, models.CacheKeyAuthToken))
	})
}
