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

package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/petgate/curfewd/pkg/broker"
	"github.com/petgate/curfewd/pkg/config"
	"github.com/petgate/curfewd/pkg/curfew"
	"github.com/petgate/curfewd/pkg/db"
	"github.com/petgate/curfewd/pkg/logger"
	"github.com/petgate/curfewd/pkg/scheduler"
	"github.com/petgate/curfewd/pkg/surehub"
	syncsvc "github.com/petgate/curfewd/pkg/sync"
	"github.com/petgate/curfewd/pkg/version"
)

func main() {
	configPath := flag.String("config", "/etc/curfewd/curfewd.json", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logr.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Invalid timezone")
	}

	store, err := db.Open(cfg.DB.Path)
	if err != nil {
		logr.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("Failed to open state store")
	}

	client := surehub.NewClient(cfg.SureHub.BaseURL, cfg.SureHub.Email, cfg.SureHub.Password, store.Cache, logr)
	curfewService := curfew.NewService(client, store.Cats, store.Events, logr)
	engine := scheduler.NewService(store.Schedules, curfewService, store.Events, tz, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher, err := broker.Connect(cfg.Broker, store.Cats, store.Devices, logr)
	if err != nil {
		// The broker is an observer; run without it rather than failing.
		logr.Warn().Err(err).Msg("Broker connection failed, continuing without broker")
		publisher = nil
	}

	var statePublisher syncsvc.StatePublisher
	if publisher != nil {
		statePublisher = publisher
	}

	synchronizer := syncsvc.NewService(client, store, statePublisher,
		time.Duration(cfg.SureHub.PollIntervalSeconds)*time.Second, logr)

	logr.Info().Str("version", version.GetFullVersion()).Msg("Starting initial sync")

	if err := synchronizer.Poll(ctx); err != nil {
		logr.Fatal().Err(err).Msg("Initial sync failed")
	}

	if publisher != nil {
		publisher.PublishDiscovery(ctx)
		publisher.PublishState(ctx)
	}

	if err := engine.InitializeAll(ctx); err != nil {
		logr.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}

	if err := engine.ApplyCurrentState(ctx); err != nil {
		logr.Fatal().Err(err).Msg("Failed to apply current curfew state")
	}

	pollDone := make(chan struct{})

	go func() {
		defer close(pollDone)
		synchronizer.Run(ctx)
	}()

	logr.Info().
		Int("active_jobs", engine.ActiveJobCount()).
		Dur("poll_interval", time.Duration(cfg.SureHub.PollIntervalSeconds)*time.Second).
		Msg("Curfew service running")

	<-ctx.Done()
	logr.Info().Msg("Shutting down")

	// Stop everything that issues writes before closing shared resources.
	<-pollDone
	engine.StopAll()

	if publisher != nil {
		publisher.Close()
	}

	if err := store.Close(); err != nil {
		logr.Error().Err(err).Msg("Failed to close state store")
	}
}
