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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petgate/curfewd/pkg/db"
	"github.com/petgate/curfewd/pkg/logger"
	"github.com/petgate/curfewd/pkg/models"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]string)}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries[key]
	if !ok {
		return "", db.ErrNotFound
	}

	return value, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value

	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

func (c *memoryCache) token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries[models.CacheKeyAuthToken]

	return value, ok
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(payload))
}

func loginPayload(token string) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"token": token,
			"user":  map[string]interface{}{"id": 42, "name": "Test User"},
		},
	}
}

func TestLogin(t *testing.T) {
	t.Run("posts credentials and caches the token", func(t *testing.T) {
		var loginBody map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/auth/login", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&loginBody))
			writeJSON(t, w, http.StatusOK, loginPayload("tok-1"))
		}))
		defer server.Close()

		cache := newMemoryCache()
		client := NewClient(server.URL, "user@example.com", "hunter2", cache, logger.NewTestLogger())

		require.NoError(t, client.Login(context.Background()))

		assert.Equal(t, "user@example.com", loginBody["email_address"])
		assert.Equal(t, "hunter2", loginBody["password"])
		assert.NotEmpty(t, loginBody["device_id"])

		cached, ok := cache.token()
		require.True(t, ok)
		assert.Equal(t, "tok-1", cached)
	})

	t.Run("reuses a cached token without a remote call", func(t *testing.T) {
		var loginCalls int

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/login" {
				loginCalls++
				writeJSON(t, w, http.StatusOK, loginPayload("fresh"))

				return
			}

			require.Equal(t, "Bearer cached-tok", r.Header.Get("Authorization"))
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{}})
		}))
		defer server.Close()

		cache := newMemoryCache()
		require.NoError(t, cache.Set(context.Background(), models.CacheKeyAuthToken, "cached-tok"))

		client := NewClient(server.URL, "user@example.com", "hunter2", cache, logger.NewTestLogger())

		_, err := client.GetDashboard(context.Background())
		require.NoError(t, err)
		assert.Zero(t, loginCalls)
	})

	t.Run("rejected credentials wrap ErrAuthFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(server.URL, "user@example.com", "wrong", newMemoryCache(), logger.NewTestLogger())

		err := client.Login(context.Background())
		require.Error(t, err)
		assert.True(t, IsAuthError(err))
		assert.ErrorIs(t, err, ErrAuthFailed)
	})
}

func TestDoAuthRetry(t *testing.T) {
	t.Run("401 triggers one re-login and one resend", func(t *testing.T) {
		var loginCalls, dashboardCalls int

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/login":
				loginCalls++
				writeJSON(t, w, http.StatusOK, loginPayload("tok-2"))
			case "/me/start":
				dashboardCalls++
				if r.Header.Get("Authorization") == "Bearer stale" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}

				require.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
				writeJSON(t, w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{}})
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		}))
		defer server.Close()

		cache := newMemoryCache()
		require.NoError(t, cache.Set(context.Background(), models.CacheKeyAuthToken, "stale"))

		client := NewClient(server.URL, "user@example.com", "hunter2", cache, logger.NewTestLogger())

		_, err := client.GetDashboard(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, loginCalls)
		assert.Equal(t, 2, dashboardCalls)

		// The stale cached token must be gone, replaced by the fresh one.
		cached, ok := cache.token()
		require.True(t, ok)
		assert.Equal(t, "tok-2", cached)
	})

	t.Run("second 401 surfaces as APIError without further retries", func(t *testing.T) {
		var loginCalls, dashboardCalls int

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/login":
				loginCalls++
				writeJSON(t, w, http.StatusOK, loginPayload("tok-3"))
			case "/me/start":
				dashboardCalls++
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer server.Close()

		client := NewClient(server.URL, "user@example.com", "hunter2", newMemoryCache(), logger.NewTestLogger())

		_, err := client.GetDashboard(context.Background())
		require.Error(t, err)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

		// Initial login plus exactly one re-login; exactly one resend.
		assert.Equal(t, 2, loginCalls)
		assert.Equal(t, 2, dashboardCalls)
	})
}

func TestDoServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			writeJSON(t, w, http.StatusOK, loginPayload("tok"))
			return
		}

		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user@example.com", "hunter2", newMemoryCache(), logger.NewTestLogger())

	_, err := client.GetDashboard(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.Equal(t, "/me/start", apiErr.Path)
	assert.Contains(t, apiErr.Body, "boom")
}

func TestSetTagProfile(t *testing.T) {
	var gotPath string

	var gotBody map[string]int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			writeJSON(t, w, http.StatusOK, loginPayload("tok"))
			return
		}

		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"id": 1, "tag_id": 500, "profile": 3},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "user@example.com", "hunter2", newMemoryCache(), logger.NewTestLogger())

	require.NoError(t, client.SetTagProfile(context.Background(), 200, 500, models.ProfileIndoorOnly))
	assert.Equal(t, "/device/200/tag/500", gotPath)
	assert.Equal(t, map[string]int{"profile": models.ProfileIndoorOnly}, gotBody)
}

func TestSetDeviceLock(t *testing.T) {
	var gotPath string

	var gotBody map[string]int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/login" {
			writeJSON(t, w, http.StatusOK, loginPayload("tok"))
			return
		}

		require.Equal(t, http.MethodPut, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(t, w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{"locking": 3},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "user@example.com", "hunter2", newMemoryCache(), logger.NewTestLogger())

	require.NoError(t, client.SetDeviceLock(context.Background(), 200, models.LockModeLockedAll))
	assert.Equal(t, "/device/200/control", gotPath)
	assert.Equal(t, map[string]int{"locking": models.LockModeLockedAll}, gotBody)
}

func TestClearToken(t *testing.T) {
	cache := newMemoryCache()
	require.NoError(t, cache.Set(context.Background(), models.CacheKeyAuthToken, "tok"))

	client := NewClient("http://unused", "user@example.com", "hunter2", cache, logger.NewTestLogger())
	require.NoError(t, client.Login(context.Background()))

	client.ClearToken(context.Background())

	_, ok := cache.token()
	assert.False(t, ok)
}
