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

// Package curfew applies target access profiles to individual cats,
// idempotently and with failures recorded in the event log.
package curfew

import (
	"context"
	"sync"

	"github.com/petgate/curfewd/pkg/db"
	"github.com/petgate/curfewd/pkg/logger"
	"github.com/petgate/curfewd/pkg/models"
)

// ProfileSetter is the remote write this service depends on.
type ProfileSetter interface {
	SetTagProfile(ctx context.Context, deviceID, tagID int64, profile int) error
}

// Service transitions one cat between full-access and indoor-only. Failures
// resolve to a boolean result plus a curfew_error event so that callers keep
// operating other cats and schedules.
type Service struct {
	client ProfileSetter
	cats   db.CatStore
	events db.EventStore
	log    logger.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewService creates a transition service.
func NewService(client ProfileSetter, cats db.CatStore, events db.EventStore, log logger.Logger) *Service {
	return &Service{
		client: client,
		cats:   cats,
		events: events,
		log:    log.WithComponent("curfew-service"),
		locks:  make(map[int64]*sync.Mutex),
	}
}

// catLock returns the mutex serializing transitions for one cat id.
// Transitions for distinct cats proceed in parallel.
func (s *Service) catLock(catID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[catID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[catID] = lock
	}

	return lock
}

// Activate sets the cat's profile to indoor-only. Returns true on success or
// when the curfew is already active.
func (s *Service) Activate(ctx context.Context, catID int64) bool {
	return s.transition(ctx, catID, models.ProfileIndoorOnly)
}

// Deactivate sets the cat's profile to full-access. Returns true on success
// or when the curfew is already inactive.
func (s *Service) Deactivate(ctx context.Context, catID int64) bool {
	return s.transition(ctx, catID, models.ProfileFullAccess)
}

func (s *Service) transition(ctx context.Context, catID int64, targetProfile int) bool {
	lock := s.catLock(catID)
	lock.Lock()
	defer lock.Unlock()

	// Always re-read under the lock: a concurrent transition or poll may
	// have changed the stored profile since the caller decided to act.
	cat, err := s.cats.GetByID(ctx, catID)
	if err != nil {
		s.log.Warn().Err(err).Int64("cat_id", catID).Msg("Cat not found")
		return false
	}

	if cat.DeviceID == nil {
		s.log.Warn().
			Int64("cat_id", catID).
			Str("name", cat.Name).
			Msg("Cat has no associated device")

		return false
	}

	activating := targetProfile == models.ProfileIndoorOnly

	if cat.CurrentProfile == targetProfile {
		s.log.Info().
			Int64("cat_id", catID).
			Str("name", cat.Name).
			Bool("curfew_active", activating).
			Msg("Profile already set, skipping")

		return true
	}

	if err := s.client.SetTagProfile(ctx, *cat.DeviceID, cat.TagID, targetProfile); err != nil {
		return s.recordFailure(ctx, cat, activating, err)
	}

	if err := s.cats.UpdateProfile(ctx, catID, targetProfile, activating); err != nil {
		return s.recordFailure(ctx, cat, activating, err)
	}

	eventType := models.EventCurfewDeactivated
	if activating {
		eventType = models.EventCurfewActivated
	}

	if err := s.events.Append(ctx, eventType,
		map[string]interface{}{"name": cat.Name, "profile": targetProfile},
		&catID, cat.DeviceID); err != nil {
		s.log.Warn().Err(err).Int64("cat_id", catID).Msg("Failed to record curfew event")
	}

	s.log.Info().
		Int64("cat_id", catID).
		Str("name", cat.Name).
		Int64("device_id", *cat.DeviceID).
		Int64("tag_id", cat.TagID).
		Bool("curfew_active", activating).
		Msg("Curfew transition applied")

	return true
}

func (s *Service) recordFailure(ctx context.Context, cat *models.Cat, activating bool, cause error) bool {
	action := "deactivate"
	if activating {
		action = "activate"
	}

	s.log.Error().
		Err(cause).
		Int64("cat_id", cat.ID).
		Str("name", cat.Name).
		Str("action", action).
		Msg("Curfew transition failed")

	if err := s.events.Append(ctx, models.EventCurfewError,
		map[string]interface{}{"name": cat.Name, "action": action, "error": cause.Error()},
		&cat.ID, cat.DeviceID); err != nil {
		s.log.Warn().Err(err).Int64("cat_id", cat.ID).Msg("Failed to record curfew error event")
	}

	return false
}
