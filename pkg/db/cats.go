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
	"errors"
	"fmt"

	"github.com/petgate/curfewd/pkg/models"
)

type catRepo struct {
	db *sql.DB
}

func (r *catRepo) Upsert(ctx context.Context, cat *models.Cat) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO cats (id, name, tag_id, device_id, location, current_profile, curfew_active, raw_data, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	tag_id = excluded.tag_id,
	device_id = excluded.device_id,
	location = excluded.location,
	current_profile = excluded.current_profile,
	curfew_active = excluded.curfew_active,
	raw_data = excluded.raw_data,
	updated_at = excluded.updated_at`,
		cat.ID, cat.Name, cat.TagID, nullInt64(cat.DeviceID), cat.Location,
		cat.CurrentProfile, cat.CurfewActive, cat.RawData, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cat %d: %w", cat.ID, err)
	}

	return nil
}

func (r *catRepo) GetByID(ctx context.Context, id int64) (*models.Cat, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, tag_id, device_id, location, current_profile, curfew_active, raw_data, updated_at
FROM cats WHERE id = ?`, id)

	cat, err := scanCat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return cat, err
}

func (r *catRepo) GetAll(ctx context.Context) ([]*models.Cat, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, tag_id, device_id, location, current_profile, curfew_active, raw_data, updated_at
FROM cats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cats: %w", err)
	}
	defer rows.Close()

	var cats []*models.Cat

	for rows.Next() {
		cat, err := scanCat(rows)
		if err != nil {
			return nil, err
		}

		cats = append(cats, cat)
	}

	return cats, rows.Err()
}

func (r *catRepo) UpdateProfile(ctx context.Context, id int64, profile int, curfewActive bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cats SET current_profile = ?, curfew_active = ?, updated_at = ? WHERE id = ?",
		profile, curfewActive, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update profile for cat %d: %w", id, err)
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

func scanCat(row rowScanner) (*models.Cat, error) {
	var (
		cat       models.Cat
		deviceID  sql.NullInt64
		rawData   sql.NullString
		updatedAt string
	)

	err := row.Scan(&cat.ID, &cat.Name, &cat.TagID, &deviceID, &cat.Location,
		&cat.CurrentProfile, &cat.CurfewActive, &rawData, &updatedAt)
	if err != nil {
		return nil, err
	}

	if deviceID.Valid {
		cat.DeviceID = &deviceID.Int64
	}

	cat.RawData = rawData.String

	cat.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &cat, nil
}
