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

package models

// Lock modes for the device as a whole.
const (
	LockModeUnlocked  = 0
	LockModeLockedIn  = 1
	LockModeLockedOut = 2
	LockModeLockedAll = 3
)

// LockModeNames maps lock modes to display names.
var LockModeNames = map[int]string{
	LockModeUnlocked:  "unlocked",
	LockModeLockedIn:  "locked_in",
	LockModeLockedOut: "locked_out",
	LockModeLockedAll: "locked_all",
}

// Tag profiles: per-cat access control enforced by a device.
const (
	// ProfileKeepCurrent leaves the device-side setting untouched (unmanaged).
	ProfileKeepCurrent = 0
	// ProfileFullAccess lets the cat enter and exit.
	ProfileFullAccess = 2
	// ProfileIndoorOnly lets the cat enter but not exit.
	ProfileIndoorOnly = 3
)

// ProfileNames maps tag profiles to display names.
var ProfileNames = map[int]string{
	ProfileKeepCurrent: "keep_current",
	ProfileFullAccess:  "full_access",
	ProfileIndoorOnly:  "indoor_only",
}

// Remote product ids.
const (
	ProductHub            = 1
	ProductRepeater       = 2
	ProductPetFlap        = 3
	ProductPetFlapConnect = 6
	ProductCatFlapConnect = 13
)

// IsFlapProduct reports whether a product id is a flap-type device rather
// than a hub or repeater.
func IsFlapProduct(productID int) bool {
	switch productID {
	case ProductPetFlap, ProductPetFlapConnect, ProductCatFlapConnect:
		return true
	default:
		return false
	}
}

// Cat locations derived from the remote activity "where" field.
const (
	LocationInside  = "inside"
	LocationOutside = "outside"
	LocationUnknown = "unknown"
)

// Event types recorded in the audit log.
const (
	EventDeviceDiscovered  = "device_discovered"
	EventDeviceOnline      = "device_online"
	EventDeviceOffline     = "device_offline"
	EventCatDiscovered     = "cat_discovered"
	EventCatMovement       = "cat_movement"
	EventCurfewActivated   = "curfew_activated"
	EventCurfewDeactivated = "curfew_deactivated"
	EventCurfewError       = "curfew_error"
	EventCronLock          = "cron_lock"
	EventCronUnlock        = "cron_unlock"
)

// Cache keys.
const (
	CacheKeyAuthToken   = "auth_token"
	CacheKeyHouseholdID = "household_id"
	CacheKeyLastPoll    = "last_poll"
)
