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

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed is returned when the remote rejects the credentials.
	ErrAuthFailed = errors.New("authentication failed")
)

// APIError is a non-2xx remote response other than the transparently
// handled 401 case.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API %s %s failed: %d %s", e.Method, e.Path, e.StatusCode, e.Body)
}
