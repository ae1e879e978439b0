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
	"fmt"

	"github.com/petgate/curfewd/pkg/models"
)

type eventRepo struct {
	db *sql.DB
}

func (r *eventRepo) Append(ctx context.Context, eventType string, details map[string]interface{}, catID, deviceID *int64) error {
	var detailsJSON interface{}

	if details != nil {
		encoded, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}

		detailsJSON = string(encoded)
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO event_log (event_type, cat_id, device_id, details, created_at) VALUES (?, ?, ?, ?, ?)",
		eventType, nullInt64(catID), nullInt64(deviceID), detailsJSON, now())
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}

	return nil
}

func (r *eventRepo) List(ctx context.Context, filter EventFilter) ([]*models.Event, error) {
	query := "SELECT id, event_type, cat_id, device_id, details, created_at FROM event_log WHERE 1=1"

	var args []interface{}

	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, filter.EventType)
	}

	if filter.CatID != 0 {
		query += " AND cat_id = ?"
		args = append(args, filter.CatID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event

	for rows.Next() {
		var (
			event     models.Event
			catID     sql.NullInt64
			deviceID  sql.NullInt64
			details   sql.NullString
			createdAt string
		)

		if err := rows.Scan(&event.ID, &event.Type, &catID, &deviceID, &details, &createdAt); err != nil {
			return nil, err
		}

		if catID.Valid {
			event.CatID = &catID.Int64
		}

		if deviceID.Valid {
			event.DeviceID = &deviceID.Int64
		}

		event.Details = details.String

		event.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}

func (r *eventRepo) Count(ctx context.Context, filter EventFilter) (int, error) {
	query := "SELECT COUNT(*) FROM event_log WHERE 1=1"

	var args []interface{}

	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, filter.EventType)
	}

	if filter.CatID != 0 {
		query += " AND cat_id = ?"
		args = append(args, filter.CatID)
	}

	var count int

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}
