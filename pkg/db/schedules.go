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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/petgate/curfewd/pkg/models"
)

type scheduleRepo struct {
	db *sql.DB
}

func (r *scheduleRepo) Create(ctx context.Context, schedule *models.CurfewSchedule) (*models.CurfewSchedule, error) {
	days, err := json.Marshal(schedule.DaysOfWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to encode days of week: %w", err)
	}

	ts := now()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO curfew_schedules (cat_id, name, days_of_week, lock_time, unlock_time, enabled, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		schedule.CatID, schedule.Name, string(days),
		schedule.LockTime, schedule.UnlockTime, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *scheduleRepo) Update(ctx context.Context, id int64, fields ScheduleUpdate) (*models.CurfewSchedule, error) {
	var (
		sets []string
		args []interface{}
	)

	if fields.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *fields.Name)
	}

	if fields.DaysOfWeek != nil {
		days, err := json.Marshal(fields.DaysOfWeek)
		if err != nil {
			return nil, fmt.Errorf("failed to encode days of week: %w", err)
		}

		sets = append(sets, "days_of_week = ?")
		args = append(args, string(days))
	}

	if fields.LockTime != nil {
		sets = append(sets, "lock_time = ?")
		args = append(args, *fields.LockTime)
	}

	if fields.UnlockTime != nil {
		sets = append(sets, "unlock_time = ?")
		args = append(args, *fields.UnlockTime)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = ?")
		args = append(args, now(), id)

		res, err := r.db.ExecContext(ctx,
			"UPDATE curfew_schedules SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("failed to update schedule %d: %w", id, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}

		if affected == 0 {
			return nil, ErrNotFound
		}
	}

	return r.GetByID(ctx, id)
}

func (r *scheduleRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM curfew_schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *scheduleRepo) Toggle(ctx context.Context, id int64) (*models.CurfewSchedule, error) {
	_, err := r.db.ExecContext(ctx, `
UPDATE curfew_schedules
SET enabled = CASE WHEN enabled = 1 THEN 0 ELSE 1 END, updated_at = ?
WHERE id = ?`, now(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle schedule %d: %w", id, err)
	}

	return r.GetByID(ctx, id)
}

func (r *scheduleRepo) GetByID(ctx context.Context, id int64) (*models.CurfewSchedule, error) {
	row := r.db.QueryRowContext(ctx, scheduleSelect+" WHERE id = ?", id)

	schedule, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return schedule, err
}

func (r *scheduleRepo) GetByCatID(ctx context.Context, catID int64) ([]*models.CurfewSchedule, error) {
	return r.query(ctx, scheduleSelect+" WHERE cat_id = ? ORDER BY lock_time", catID)
}

func (r *scheduleRepo) GetEnabled(ctx context.Context) ([]*models.CurfewSchedule, error) {
	return r.query(ctx, scheduleSelect+" WHERE enabled = 1 ORDER BY cat_id, lock_time")
}

func (r *scheduleRepo) GetAll(ctx context.Context) ([]*models.CurfewSchedule, error) {
	return r.query(ctx, scheduleSelect+" ORDER BY cat_id, lock_time")
}

const scheduleSelect = `
SELECT id, cat_id, name, days_of_week, lock_time, unlock_time, enabled, created_at, updated_at
FROM curfew_schedules`

func (r *scheduleRepo) query(ctx context.Context, query string, args ...interface{}) ([]*models.CurfewSchedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.CurfewSchedule

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}

func scanSchedule(row rowScanner) (*models.CurfewSchedule, error) {
	var (
		schedule  models.CurfewSchedule
		days      string
		createdAt string
		updatedAt string
	)

	err := row.Scan(&schedule.ID, &schedule.CatID, &schedule.Name, &days,
		&schedule.LockTime, &schedule.UnlockTime, &schedule.Enabled,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(days), &schedule.DaysOfWeek); err != nil {
		return nil, fmt.Errorf("failed to decode days of week for schedule %d: %w", schedule.ID, err)
	}

	schedule.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	schedule.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &schedule, nil
}
