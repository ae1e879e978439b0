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

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// clockTime is a minute-resolution time of day.
type clockTime struct {
	hour   int
	minute int
}

func parseClockTime(raw string) (clockTime, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return clockTime{}, fmt.Errorf("%w: %q", errInvalidTime, raw)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return clockTime{}, fmt.Errorf("%w: %q", errInvalidTime, raw)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return clockTime{}, fmt.Errorf("%w: %q", errInvalidTime, raw)
	}

	return clockTime{hour: hour, minute: minute}, nil
}

// inCurfewWindow reports whether day/now falls inside the window described
// by days, lockTime and unlockTime. Times are "HH:MM" strings, which compare
// correctly as text; the upper bound is exclusive. An overnight window
// (lock > unlock) is contained when today is a listed day past lock time, or
// when yesterday was a listed day and unlock time has not yet been reached.
func inCurfewWindow(days []int, lockTime, unlockTime string, day int, now string) bool {
	if lockTime > unlockTime {
		yesterday := (day + 6) % 7

		if containsDay(days, day) && now >= lockTime {
			return true
		}

		if containsDay(days, yesterday) && now < unlockTime {
			return true
		}

		return false
	}

	return containsDay(days, day) && now >= lockTime && now < unlockTime
}

func containsDay(days []int, day int) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}

	return false
}

// unlockDays returns the days the unlock trigger fires on. For an overnight
// window the unlock moment falls on the calendar day after each lock day,
// which is exactly the "yesterday was a listed day" branch of
// inCurfewWindow shifted forward.
func unlockDays(days []int, overnight bool) []int {
	if !overnight {
		return days
	}

	shifted := make([]int, len(days))
	for i, d := range days {
		shifted[i] = (d + 1) % 7
	}

	return shifted
}

// nextFireTime returns the earliest instant strictly after now that falls on
// one of the listed days at the given time of day, in now's location.
func nextFireTime(now time.Time, days []int, at clockTime) time.Time {
	for offset := 0; offset <= 7; offset++ {
		day := now.AddDate(0, 0, offset)
		candidate := time.Date(day.Year(), day.Month(), day.Day(),
			at.hour, at.minute, 0, 0, now.Location())

		if containsDay(days, int(candidate.Weekday())) && candidate.After(now) {
			return candidate
		}
	}

	// Unreachable with a non-empty day set; callers never install triggers
	// for empty sets.
	return now.AddDate(0, 0, 7)
}
