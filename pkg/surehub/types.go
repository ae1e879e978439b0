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

package surehub

// AuthResponse is the login endpoint response.
type AuthResponse struct {
	Data struct {
		Token string `json:"token"`
		User  struct {
			ID           int64  `json:"id"`
			EmailAddress string `json:"email_address"`
			Name         string `json:"name"`
		} `json:"user"`
	} `json:"data"`
}

// Dashboard is the full remote snapshot: households, devices, pets and tags.
type Dashboard struct {
	Data struct {
		Households []Household `json:"households"`
		Pets       []Pet       `json:"pets"`
		Devices    []Device    `json:"devices"`
		Tags       []Tag       `json:"tags"`
	} `json:"data"`
}

type Household struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TimezoneID int    `json:"timezone_id"`
}

type Device struct {
	ID          int64          `json:"id"`
	HouseholdID int64          `json:"household_id"`
	Name        string         `json:"name"`
	ProductID   int            `json:"product_id"`
	Serial      string         `json:"serial_number"`
	MacAddress  string         `json:"mac_address"`
	Status      DeviceStatus   `json:"status"`
	Control     *DeviceControl `json:"control,omitempty"`
	Tags        []DeviceTag    `json:"tags,omitempty"`
}

type DeviceStatus struct {
	Battery *float64 `json:"battery"`
	Online  bool     `json:"online"`
	Signal  struct {
		DeviceRSSI float64 `json:"device_rssi"`
		HubRSSI    float64 `json:"hub_rssi"`
	} `json:"signal"`
}

type DeviceControl struct {
	Locking     int  `json:"locking"`
	FastPolling bool `json:"fast_polling"`
}

// DeviceTag is one entry in a device's access-control list.
type DeviceTag struct {
	ID      int64 `json:"id"`
	TagID   int64 `json:"tag_id"`
	Profile int   `json:"profile"`
}

type Tag struct {
	ID  int64  `json:"id"`
	Tag string `json:"tag"`
}

type Pet struct {
	ID          int64  `json:"id"`
	HouseholdID int64  `json:"household_id"`
	Name        string `json:"name"`
	TagID       int64  `json:"tag_id"`
	Status      struct {
		Activity struct {
			TagID    int64  `json:"tag_id"`
			DeviceID int64  `json:"device_id"`
			Where    int    `json:"where"`
			Since    string `json:"since"`
		} `json:"activity"`
	} `json:"status"`
}

// Remote activity "where" values.
const (
	WhereInside  = 1
	WhereOutside = 2
)

type tagProfileResponse struct {
	Data struct {
		ID      int64 `json:"id"`
		TagID   int64 `json:"tag_id"`
		Profile int   `json:"profile"`
	} `json:"data"`
}

type controlResponse struct {
	Data struct {
		Locking int `json:"locking"`
	} `json:"data"`
}
