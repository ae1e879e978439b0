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

// Package sync keeps the local state store in step with the remote system:
// a periodic full-snapshot poll that upserts devices and cats, detects
// transitions against the previously stored rows, and records them as
// domain events.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/petgate/curfewd/pkg/db"
	"github.com/petgate/curfewd/pkg/logger"
	"github.com/petgate/curfewd/pkg/models"
	"github.com/petgate/curfewd/pkg/surehub"
)

// DefaultPollInterval is used when the configured interval is zero.
const DefaultPollInterval = 60 * time.Second

// Battery voltage bounds for 4xAA packs: ~4.0V dead, ~6.4V new.
const (
	batteryEmptyVoltage = 4.0
	batteryVoltageRange = 2.4
)

// Service is the state synchronizer.
type Service struct {
	client    DashboardFetcher
	devices   db.DeviceStore
	cats      db.CatStore
	events    db.EventStore
	cache     db.CacheStore
	publisher StatePublisher
	interval  time.Duration
	clock     Clock
	log       logger.Logger
}

// NewService creates a synchronizer. publisher may be nil.
func NewService(
	client DashboardFetcher,
	store *db.Store,
	publisher StatePublisher,
	interval time.Duration,
	log logger.Logger,
) *Service {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Service{
		client:    client,
		devices:   store.Devices,
		cats:      store.Cats,
		events:    store.Events,
		cache:     store.Cache,
		publisher: publisher,
		interval:  interval,
		clock:     realClock{},
		log:       log.WithComponent("state-sync"),
	}
}

// Run drives Poll on a fixed interval until ctx is cancelled. Polls run
// sequentially on this goroutine, so a slow poll delays the next tick rather
// than overlapping it; ticks that fire during a poll are dropped by the
// ticker. Failures are logged and never stop future polls.
func (s *Service) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("Starting poll loop")

	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Poll loop stopped")
			return
		case <-ticker.Chan():
			s.log.Debug().Msg("Poll tick")

			if err := s.Poll(ctx); err != nil {
				s.log.Error().Err(err).Msg("Poll failed")
			}
		}
	}
}

// Poll fetches the dashboard snapshot and reconciles it into the local
// store. Remote failures propagate to the caller.
func (s *Service) Poll(ctx context.Context) error {
	dashboard, err := s.client.GetDashboard(ctx)
	if err != nil {
		return fmt.Errorf("dashboard fetch failed: %w", err)
	}

	data := dashboard.Data

	if len(data.Households) > 0 {
		householdID := strconv.FormatInt(data.Households[0].ID, 10)
		if err := s.cache.Set(ctx, models.CacheKeyHouseholdID, householdID); err != nil {
			return err
		}
	}

	for i := range data.Devices {
		device := &data.Devices[i]
		if !models.IsFlapProduct(device.ProductID) {
			continue
		}

		if err := s.syncDevice(ctx, device); err != nil {
			return err
		}
	}

	catLocations := make(map[string]string, len(data.Pets))

	for i := range data.Pets {
		pet := &data.Pets[i]

		if err := s.syncPet(ctx, pet, data.Devices); err != nil {
			return err
		}

		catLocations[pet.Name] = locationOf(pet)
	}

	if err := s.cache.Set(ctx, models.CacheKeyLastPoll,
		s.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	s.log.Info().
		Interface("cats", catLocations).
		Int("device_count", len(data.Devices)).
		Msg("Poll complete")

	if s.publisher != nil {
		s.publisher.PublishState(ctx)
	}

	return nil
}

func (s *Service) syncDevice(ctx context.Context, device *surehub.Device) error {
	// Read the row as it exists right before this poll's write; change
	// detection must not compare against an earlier poll cycle.
	existing, err := s.devices.GetByID(ctx, device.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	mirror := deviceMirror(device)

	if err := s.devices.Upsert(ctx, mirror); err != nil {
		return err
	}

	if existing == nil {
		s.log.Info().
			Int64("device_id", device.ID).
			Str("name", device.Name).
			Bool("online", mirror.Online).
			Msg("Device discovered")

		return s.events.Append(ctx, models.EventDeviceDiscovered,
			map[string]interface{}{"name": device.Name, "product_id": device.ProductID},
			nil, &device.ID)
	}

	if existing.Online != mirror.Online {
		eventType := models.EventDeviceOffline
		if mirror.Online {
			eventType = models.EventDeviceOnline
		}

		s.log.Info().
			Int64("device_id", device.ID).
			Str("name", device.Name).
			Bool("online", mirror.Online).
			Msg("Device status changed")

		return s.events.Append(ctx, eventType,
			map[string]interface{}{"name": device.Name},
			nil, &device.ID)
	}

	return nil
}

func (s *Service) syncPet(ctx context.Context, pet *surehub.Pet, devices []surehub.Device) error {
	existing, err := s.cats.GetByID(ctx, pet.ID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return err
	}

	location := locationOf(pet)
	deviceID, profile := resolveCatDevice(pet, devices)

	raw, err := json.Marshal(pet)
	if err != nil {
		return err
	}

	cat := &models.Cat{
		ID:             pet.ID,
		Name:           pet.Name,
		TagID:          pet.TagID,
		DeviceID:       deviceID,
		Location:       location,
		CurrentProfile: profile,
		CurfewActive:   profile == models.ProfileIndoorOnly,
		RawData:        string(raw),
	}

	if err := s.cats.Upsert(ctx, cat); err != nil {
		return err
	}

	if existing == nil {
		s.log.Info().
			Int64("cat_id", pet.ID).
			Str("name", pet.Name).
			Int64("tag_id", pet.TagID).
			Str("location", location).
			Msg("Cat discovered")

		return s.events.Append(ctx, models.EventCatDiscovered,
			map[string]interface{}{"name": pet.Name, "tag_id": pet.TagID},
			&pet.ID, deviceID)
	}

	if existing.Location != location {
		s.log.Info().
			Int64("cat_id", pet.ID).
			Str("name", pet.Name).
			Str("from", existing.Location).
			Str("to", location).
			Msg("Cat movement detected")

		return s.events.Append(ctx, models.EventCatMovement,
			map[string]interface{}{"name": pet.Name, "from": existing.Location, "to": location},
			&pet.ID, deviceID)
	}

	return nil
}

// resolveCatDevice walks the snapshot's devices in order and returns the
// first whose tag list contains the pet's tag, along with the profile that
// device enforces. Absence means no device and the full-access default.
func resolveCatDevice(pet *surehub.Pet, devices []surehub.Device) (*int64, int) {
	for i := range devices {
		for _, tag := range devices[i].Tags {
			if tag.ID == pet.TagID {
				return &devices[i].ID, tag.Profile
			}
		}
	}

	return nil, models.ProfileFullAccess
}

func locationOf(pet *surehub.Pet) string {
	switch pet.Status.Activity.Where {
	case surehub.WhereInside:
		return models.LocationInside
	case surehub.WhereOutside:
		return models.LocationOutside
	default:
		return models.LocationUnknown
	}
}

func deviceMirror(device *surehub.Device) *models.Device {
	mirror := &models.Device{
		ID:        device.ID,
		Name:      device.Name,
		ProductID: device.ProductID,
		Online:    device.Status.Online,
	}

	if device.Status.Battery != nil {
		voltage := *device.Status.Battery
		mirror.BatteryVoltage = &voltage

		percent := math.Round((voltage - batteryEmptyVoltage) / batteryVoltageRange * 100)
		percent = math.Max(0, math.Min(100, percent))
		mirror.BatteryLevel = &percent
	}

	if device.Control != nil {
		mirror.LockMode = device.Control.Locking
	}

	signal := device.Status.Signal.DeviceRSSI
	mirror.SignalStrength = &signal

	if raw, err := json.Marshal(device); err == nil {
		mirror.RawData = string(raw)
	}

	return mirror
}
