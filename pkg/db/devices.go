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

type deviceRepo struct {
	db *sql.DB
}

func (r *deviceRepo) Upsert(ctx context.Context, device *models.Device) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO devices (id, name, product_id, battery_level, battery_voltage, online, lock_mode, signal_strength, raw_data, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	product_id = excluded.product_id,
	battery_level = excluded.battery_level,
	battery_voltage = excluded.battery_voltage,
	online = excluded.online,
	lock_mode = excluded.lock_mode,
	signal_strength = excluded.signal_strength,
	raw_data = excluded.raw_data,
	updated_at = excluded.updated_at`,
		device.ID, device.Name, device.ProductID,
		nullFloat64(device.BatteryLevel), nullFloat64(device.BatteryVoltage),
		device.Online, device.LockMode, nullFloat64(device.SignalStrength),
		device.RawData, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert device %d: %w", device.ID, err)
	}

	return nil
}

func (r *deviceRepo) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, product_id, battery_level, battery_voltage, online, lock_mode, signal_strength, raw_data, updated_at
FROM devices WHERE id = ?`, id)

	device, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	return device, err
}

func (r *deviceRepo) GetAll(ctx context.Context) ([]*models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, product_id, battery_level, battery_voltage, online, lock_mode, signal_strength, raw_data, updated_at
FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*models.Device

	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}

		devices = append(devices, device)
	}

	return devices, rows.Err()
}

func (r *deviceRepo) UpdateLockMode(ctx context.Context, id int64, lockMode int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE devices SET lock_mode = ?, updated_at = ? WHERE id = ?",
		lockMode, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update lock mode for device %d: %w", id, err)
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

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		device    models.Device
		productID sql.NullInt64
		battery   sql.NullFloat64
		voltage   sql.NullFloat64
		signal    sql.NullFloat64
		rawData   sql.NullString
		updatedAt string
	)

	err := row.Scan(&device.ID, &device.Name, &productID, &battery, &voltage,
		&device.Online, &device.LockMode, &signal, &rawData, &updatedAt)
	if err != nil {
		return nil, err
	}

	if productID.Valid {
		device.ProductID = int(productID.Int64)
	}

	if battery.Valid {
		device.BatteryLevel = &battery.Float64
	}

	if voltage.Valid {
		device.BatteryVoltage = &voltage.Float64
	}

	if signal.Valid {
		device.SignalStrength = &signal.Float64
	}

	device.RawData = rawData.String

	device.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &device, nil
}
