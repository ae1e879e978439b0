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

// Package config loads process configuration from a JSON file with
// environment variable overrides for credentials and the broker.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/petgate/curfewd/pkg/broker"
	"github.com/petgate/curfewd/pkg/logger"
)

var errMissingCredentials = errors.New("surehub email and password are required")

// SureHubConfig configures the remote device-control API session.
type SureHubConfig struct {
	BaseURL             string `json:"base_url,omitempty"`
	Email               string `json:"email"`
	Password            string `json:"password"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
}

// DBConfig configures the local state store.
type DBConfig struct {
	Path string `json:"path"`
}

// Config is the full process configuration.
type Config struct {
	SureHub  SureHubConfig `json:"surehub"`
	Broker   broker.Config `json:"broker"`
	DB       DBConfig      `json:"db"`
	Timezone string        `json:"timezone"`
	Logging  logger.Config `json:"logging"`
}

// Load reads the JSON config file at path (if it exists), applies
// environment overrides, then validates and defaults the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)

		switch {
		case err == nil:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
			}
		case os.IsNotExist(err):
			// Config can come entirely from the environment.
		default:
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SUREHUB_EMAIL"); v != "" {
		cfg.SureHub.Email = v
	}

	if v := os.Getenv("SUREHUB_PASSWORD"); v != "" {
		cfg.SureHub.Password = v
	}

	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SureHub.PollIntervalSeconds = n
		}
	}

	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.Broker.Enabled = true
		cfg.Broker.URL = v
	}

	if v := os.Getenv("NATS_USERNAME"); v != "" {
		cfg.Broker.Username = v
	}

	if v := os.Getenv("NATS_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DB.Path = v
	}

	if v := os.Getenv("TZ"); v != "" {
		cfg.Timezone = v
	}
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.SureHub.Email == "" || c.SureHub.Password == "" {
		return errMissingCredentials
	}

	if c.SureHub.PollIntervalSeconds <= 0 {
		c.SureHub.PollIntervalSeconds = 60
	}

	if c.DB.Path == "" {
		c.DB.Path = "data/curfew.db"
	}

	if c.Timezone == "" {
		c.Timezone = "Europe/Amsterdam"
	}

	if c.Broker.Enabled && c.Broker.URL == "" {
		c.Broker.URL = "nats://localhost:4222"
	}

	if c.Broker.SubjectPrefix == "" {
		c.Broker.SubjectPrefix = "curfewd"
	}

	return nil
}
