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

// Package scheduler owns one lock/unlock trigger pair per enabled curfew
// schedule, fires them at the right wall-clock moments in the configured
// timezone, and reconciles actual state against schedule intent at startup.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/petgate/curfewd/pkg/db"
	"github.com/petgate/curfewd/pkg/logger"
	"github.com/petgate/curfewd/pkg/models"
)

var errInvalidTime = errors.New("invalid time of day")

// TransitionService applies curfew state to one cat.
type TransitionService interface {
	Activate(ctx context.Context, catID int64) bool
	Deactivate(ctx context.Context, catID int64) bool
}

// Clock abstracts wall-clock reads for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type trigger struct {
	stop chan struct{}
	done chan struct{}
}

type jobPair struct {
	lock   *trigger
	unlock *trigger
}

// Service is the schedule engine.
type Service struct {
	schedules db.ScheduleStore
	curfew    TransitionService
	events    db.EventStore
	tz        *time.Location
	clock     Clock
	log       logger.Logger

	mu   sync.Mutex // guards jobs; held across remove-then-insert
	jobs map[int64]*jobPair
}

// NewService creates a schedule engine evaluating triggers in tz.
func NewService(
	schedules db.ScheduleStore,
	curfew TransitionService,
	events db.EventStore,
	tz *time.Location,
	log logger.Logger,
) *Service {
	s := &Service{
		schedules: schedules,
		curfew:    curfew,
		events:    events,
		tz:        tz,
		clock:     realClock{},
		log:       log.WithComponent("scheduler"),
		jobs:      make(map[int64]*jobPair),
	}

	return s
}

// InitializeAll clears every active trigger pair and reinstalls one for each
// currently enabled schedule.
func (s *Service) InitializeAll(ctx context.Context) error {
	s.log.Info().Msg("Initializing scheduler")
	s.StopAll()

	enabled, err := s.schedules.GetEnabled(ctx)
	if err != nil {
		return err
	}

	for _, schedule := range enabled {
		if err := s.CreateJobs(ctx, schedule.ID); err != nil {
			return err
		}
	}

	s.log.Info().Int("active_jobs", s.ActiveJobCount()).Msg("Scheduler initialized")

	return nil
}

// CreateJobs (re)installs the trigger pair for one schedule, replacing any
// existing pair. A disabled, empty-day or missing schedule removes the pair
// and installs nothing.
func (s *Service) CreateJobs(ctx context.Context, scheduleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopJobsLocked(scheduleID)

	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}

		return err
	}

	if !schedule.Enabled || len(schedule.DaysOfWeek) == 0 {
		return nil
	}

	lockAt, err := parseClockTime(schedule.LockTime)
	if err != nil {
		return err
	}

	unlockAt, err := parseClockTime(schedule.UnlockTime)
	if err != nil {
		return err
	}

	lockDays := schedule.DaysOfWeek
	unlockOn := unlockDays(schedule.DaysOfWeek, schedule.Overnight())

	s.log.Info().
		Int64("schedule_id", schedule.ID).
		Int64("cat_id", schedule.CatID).
		Str("name", schedule.Name).
		Str("lock_time", schedule.LockTime).
		Str("unlock_time", schedule.UnlockTime).
		Bool("overnight", schedule.Overnight()).
		Msg("Installing trigger pair")

	catID := schedule.CatID
	scheduleName := schedule.Name

	pair := &jobPair{
		lock: s.startTrigger(lockDays, lockAt, func(fireCtx context.Context) {
			s.log.Info().
				Int64("schedule_id", scheduleID).
				Int64("cat_id", catID).
				Str("name", scheduleName).
				Msg("Trigger: activating curfew")

			success := s.curfew.Activate(fireCtx, catID)
			s.appendTriggerEvent(fireCtx, models.EventCronLock, scheduleID, scheduleName, catID, success)
		}),
		unlock: s.startTrigger(unlockOn, unlockAt, func(fireCtx context.Context) {
			s.log.Info().
				Int64("schedule_id", scheduleID).
				Int64("cat_id", catID).
				Str("name", scheduleName).
				Msg("Trigger: deactivating curfew")

			success := s.curfew.Deactivate(fireCtx, catID)
			s.appendTriggerEvent(fireCtx, models.EventCronUnlock, scheduleID, scheduleName, catID, success)
		}),
	}

	s.jobs[scheduleID] = pair

	return nil
}

func (s *Service) appendTriggerEvent(ctx context.Context, eventType string, scheduleID int64, name string, catID int64, success bool) {
	err := s.events.Append(ctx, eventType,
		map[string]interface{}{"schedule_id": scheduleID, "name": name, "success": success},
		&catID, nil)
	if err != nil {
		s.log.Warn().Err(err).Int64("schedule_id", scheduleID).Msg("Failed to record trigger event")
	}
}

// startTrigger runs one repeating day-of-week/time-of-day trigger. Each fire
// completes before the next one is armed, so a trigger cannot re-enter
// itself.
func (s *Service) startTrigger(days []int, at clockTime, fire func(ctx context.Context)) *trigger {
	t := &trigger{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(t.done)

		for {
			next := nextFireTime(s.clock.Now().In(s.tz), days, at)
			timer := time.NewTimer(time.Until(next))

			select {
			case <-t.stop:
				timer.Stop()
				return
			case <-timer.C:
				fire(context.Background())
			}
		}
	}()

	return t
}

// StopJobs cancels and removes the trigger pair for one schedule.
func (s *Service) StopJobs(scheduleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopJobsLocked(scheduleID)
}

func (s *Service) stopJobsLocked(scheduleID int64) {
	pair, ok := s.jobs[scheduleID]
	if !ok {
		return
	}

	close(pair.lock.stop)
	close(pair.unlock.stop)
	<-pair.lock.done
	<-pair.unlock.done

	delete(s.jobs, scheduleID)
}

// StopAll cancels every active trigger pair.
func (s *Service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.jobs {
		s.stopJobsLocked(id)
	}
}

// ActiveJobCount reports the number of installed trigger pairs, used as a
// liveness proxy by health reporting.
func (s *Service) ActiveJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}

// ApplyCurrentState evaluates all enabled schedules against the current
// wall-clock instant and applies the intended state: a cat is in curfew if
// any one of its schedules' windows contains the instant. Every cat with at
// least one enabled schedule receives exactly one transition call; the
// transition service's idempotence avoids redundant remote writes.
func (s *Service) ApplyCurrentState(ctx context.Context) error {
	s.log.Info().Msg("Evaluating current curfew state")

	enabled, err := s.schedules.GetEnabled(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now().In(s.tz)
	currentDay := int(now.Weekday())
	currentTime := now.Format("15:04")

	byCat := make(map[int64][]*models.CurfewSchedule)

	var catOrder []int64

	for _, schedule := range enabled {
		if _, seen := byCat[schedule.CatID]; !seen {
			catOrder = append(catOrder, schedule.CatID)
		}

		byCat[schedule.CatID] = append(byCat[schedule.CatID], schedule)
	}

	for _, catID := range catOrder {
		shouldBeLocked := false

		for _, schedule := range byCat[catID] {
			if inCurfewWindow(schedule.DaysOfWeek, schedule.LockTime, schedule.UnlockTime, currentDay, currentTime) {
				shouldBeLocked = true
				break
			}
		}

		if shouldBeLocked {
			s.log.Info().Int64("cat_id", catID).Msg("Startup: curfew should be active now")
			s.curfew.Activate(ctx, catID)
		} else {
			s.log.Info().Int64("cat_id", catID).Msg("Startup: curfew should be inactive now")
			s.curfew.Deactivate(ctx, catID)
		}
	}

	return nil
}
