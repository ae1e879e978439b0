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

// Package surehub is the session client for the Sure Petcare device-control
// API: bearer-token auth with transparent re-authentication, the dashboard
// snapshot, and per-tag / per-device writes.
package surehub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/petgate/curfewd/pkg/db"
	"github.com/petgate/curfewd/pkg/logger"
	"github.com/petgate/curfewd/pkg/models"
)

const (
	// DefaultBaseURL is the production device-control API.
	DefaultBaseURL = "https://app.api.surehub.io/api"

	endpointLogin     = "/auth/login"
	endpointDashboard = "/me/start"

	// loginDeviceID identifies this service in the login request.
	loginDeviceID = "curfewd-service"

	defaultTimeout = 30 * time.Second
)

// Client owns the authenticated session token. The token is single-writer:
// only Login and ClearToken mutate it, both under the mutex.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client
	cache      db.CacheStore
	log        logger.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a session client. A cached token from a previous process
// is reused on the first request and trusted until the remote rejects it.
func NewClient(baseURL, email, password string, cache db.CacheStore, log logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL:    baseURL,
		email:      email,
		password:   password,
		httpClient: &http.Client{Timeout: defaultTimeout},
		cache:      cache,
		log:        log.WithComponent("surehub-client"),
	}
}

// Login authenticates against the remote API. A token cached from an earlier
// session is reused without a remote call; there is no expiry prediction.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	if cached, err := c.cache.Get(ctx, models.CacheKeyAuthToken); err == nil && cached != "" {
		c.token = cached
		c.log.Info().Msg("Using cached auth token")

		return nil
	}

	c.log.Info().Msg("Logging in to Sure Petcare API")

	payload, err := json.Marshal(map[string]string{
		"email_address": c.email,
		"password":      c.password,
		"device_id":     loginDeviceID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+endpointLogin, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %d %s", ErrAuthFailed, resp.StatusCode, string(body))
	}

	var auth AuthResponse

	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}

	c.token = auth.Data.Token

	if err := c.cache.Set(ctx, models.CacheKeyAuthToken, c.token); err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist auth token")
	}

	c.log.Info().
		Int64("user_id", auth.Data.User.ID).
		Str("name", auth.Data.User.Name).
		Msg("Logged in successfully")

	return nil
}

// ClearToken invalidates both the in-memory and the persisted token, forcing
// a fresh login on the next request.
func (c *Client) ClearToken(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""

	if err := c.cache.Delete(ctx, models.CacheKeyAuthToken); err != nil {
		c.log.Warn().Err(err).Msg("Failed to delete cached auth token")
	}
}

// do sends one authenticated request. A 401 clears the token, re-logs-in
// exactly once and resends exactly once; any other non-2xx is an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	c.mu.Lock()
	if c.token == "" {
		if err := c.loginLocked(ctx); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	token := c.token
	c.mu.Unlock()

	c.log.Debug().Str("method", method).Str("path", path).Msg("API request")

	resp, err := c.send(ctx, method, path, token, body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.log.Info().Msg("Token expired, re-authenticating")

		c.mu.Lock()
		c.token = ""

		if err := c.cache.Delete(ctx, models.CacheKeyAuthToken); err != nil {
			c.log.Warn().Err(err).Msg("Failed to delete cached auth token")
		}

		if err := c.loginLocked(ctx); err != nil {
			c.mu.Unlock()
			return err
		}
		token = c.token
		c.mu.Unlock()

		resp, err = c.send(ctx, method, path, token, body)
		if err != nil {
			return err
		}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)

		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(raw),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}

	return nil
}

func (c *Client) send(ctx context.Context, method, path, token string, body interface{}) (*http.Response, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}

	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// GetDashboard fetches the full remote snapshot.
func (c *Client) GetDashboard(ctx context.Context) (*Dashboard, error) {
	var dashboard Dashboard

	if err := c.do(ctx, http.MethodGet, endpointDashboard, nil, &dashboard); err != nil {
		return nil, err
	}

	return &dashboard, nil
}

// SetTagProfile sets one animal tag's access profile on one device.
func (c *Client) SetTagProfile(ctx context.Context, deviceID, tagID int64, profile int) error {
	c.log.Info().
		Int64("device_id", deviceID).
		Int64("tag_id", tagID).
		Int("profile", profile).
		Msg("Setting tag profile")

	path := fmt.Sprintf("/device/%d/tag/%d", deviceID, tagID)

	var resp tagProfileResponse

	return c.do(ctx, http.MethodPut, path, map[string]int{"profile": profile}, &resp)
}

// SetDeviceLock sets the whole-device lock mode.
func (c *Client) SetDeviceLock(ctx context.Context, deviceID int64, lockMode int) error {
	c.log.Info().
		Int64("device_id", deviceID).
		Int("lock_mode", lockMode).
		Msg("Setting device lock mode")

	path := fmt.Sprintf("/device/%d/control", deviceID)

	var resp controlResponse

	return c.do(ctx, http.MethodPut, path, map[string]int{"locking": lockMode}, &resp)
}

// IsAuthError reports whether err represents rejected credentials.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}
