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

// Package broker publishes mirrored state to NATS so dashboards and home
// automation can subscribe: a retained-style status subject, per-cat curfew
// and location subjects, per-device battery/signal/online subjects, and
// Home-Assistant-style discovery payloads.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/petgate/curfewd/pkg/db"
	"github.com/petgate/curfewd/pkg/logger"
)

// Config for the broker connection.
type Config struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	SubjectPrefix string `json:"subject_prefix"`
}

// Publisher mirrors store state onto NATS subjects. All publish failures are
// logged and swallowed; the broker is an observer, never a dependency.
type Publisher struct {
	conn    *nats.Conn
	prefix  string
	cats    db.CatStore
	devices db.DeviceStore
	log     logger.Logger
}

// Connect dials the broker and announces the service online. Returns a nil
// Publisher without error when the broker is disabled.
func Connect(config Config, cats db.CatStore, devices db.DeviceStore, log logger.Logger) (*Publisher, error) {
	blog := log.WithComponent("broker")

	if !config.Enabled {
		blog.Info().Msg("Broker disabled, skipping")
		return nil, nil
	}

	prefix := config.SubjectPrefix
	if prefix == "" {
		prefix = "curfewd"
	}

	opts := []nats.Option{
		nats.Name("curfewd-" + uuid.NewString()),
	}

	if config.Username != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	blog.Info().Str("url", config.URL).Msg("Connecting to broker")

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("broker connect failed: %w", err)
	}

	p := &Publisher{
		conn:    conn,
		prefix:  prefix,
		cats:    cats,
		devices: devices,
		log:     blog,
	}

	p.publish(p.subject("status"), []byte("online"))

	return p, nil
}

func (p *Publisher) subject(parts ...string) string {
	return p.prefix + "." + strings.Join(parts, ".")
}

func (p *Publisher) publish(subject string, payload []byte) {
	if err := p.conn.Publish(subject, payload); err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("Publish failed")
	}
}

func (p *Publisher) publishJSON(subject string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn().Err(err).Str("subject", subject).Msg("Failed to encode payload")
		return
	}

	p.publish(subject, data)
}

// PublishState mirrors the current store state onto the per-entity subjects.
func (p *Publisher) PublishState(ctx context.Context) {
	cats, err := p.cats.GetAll(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to read cats for publish")
		return
	}

	for _, cat := range cats {
		id := strconv.FormatInt(cat.ID, 10)

		p.publish(p.subject("cats", id, "curfew"), onOff(cat.CurfewActive))
		p.publish(p.subject("cats", id, "location"), []byte(cat.Location))
	}

	devices, err := p.devices.GetAll(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to read devices for publish")
		return
	}

	for _, device := range devices {
		id := strconv.FormatInt(device.ID, 10)

		battery := 0.0
		if device.BatteryLevel != nil {
			battery = *device.BatteryLevel
		}

		signal := 0.0
		if device.SignalStrength != nil {
			signal = *device.SignalStrength
		}

		p.publish(p.subject("devices", id, "battery"), []byte(strconv.FormatFloat(battery, 'f', -1, 64)))
		p.publish(p.subject("devices", id, "signal"), []byte(strconv.FormatFloat(signal, 'f', -1, 64)))
		p.publish(p.subject("devices", id, "online"), onOff(device.Online))
	}
}

// PublishDiscovery announces Home-Assistant-style discovery configs for all
// known cats and devices.
func (p *Publisher) PublishDiscovery(ctx context.Context) {
	cats, err := p.cats.GetAll(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to read cats for discovery")
		return
	}

	for _, cat := range cats {
		id := strconv.FormatInt(cat.ID, 10)

		p.discoveryConfig("binary_sensor", "cat_"+id+"_curfew", map[string]interface{}{
			"name":         cat.Name + " Curfew",
			"unique_id":    "curfewd_cat_" + id + "_curfew",
			"state_topic":  p.subject("cats", id, "curfew"),
			"payload_on":   "ON",
			"payload_off":  "OFF",
			"device_class": "lock",
			"icon":         "mdi:cat",
			"device":       p.catDevice(id, cat.Name),
		})

		p.discoveryConfig("sensor", "cat_"+id+"_location", map[string]interface{}{
			"name":        cat.Name + " Location",
			"unique_id":   "curfewd_cat_" + id + "_location",
			"state_topic": p.subject("cats", id, "location"),
			"icon":        "mdi:map-marker",
			"device":      p.catDevice(id, cat.Name),
		})
	}

	devices, err := p.devices.GetAll(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to read devices for discovery")
		return
	}

	for _, device := range devices {
		id := strconv.FormatInt(device.ID, 10)

		p.discoveryConfig("sensor", "device_"+id+"_battery", map[string]interface{}{
			"name":                device.Name + " Battery",
			"unique_id":           "curfewd_device_" + id + "_battery",
			"state_topic":         p.subject("devices", id, "battery"),
			"unit_of_measurement": "%",
			"device_class":        "battery",
			"device":              p.flapDevice(id, device.Name),
		})

		p.discoveryConfig("sensor", "device_"+id+"_signal", map[string]interface{}{
			"name":                device.Name + " Signal",
			"unique_id":           "curfewd_device_" + id + "_signal",
			"state_topic":         p.subject("devices", id, "signal"),
			"unit_of_measurement": "dBm",
			"device_class":        "signal_strength",
			"device":              p.flapDevice(id, device.Name),
		})

		p.discoveryConfig("binary_sensor", "device_"+id+"_online", map[string]interface{}{
			"name":         device.Name + " Online",
			"unique_id":    "curfewd_device_" + id + "_online",
			"state_topic":  p.subject("devices", id, "online"),
			"payload_on":   "ON",
			"payload_off":  "OFF",
			"device_class": "connectivity",
			"device":       p.flapDevice(id, device.Name),
		})
	}

	p.log.Info().
		Int("cats", len(cats)).
		Int("devices", len(devices)).
		Msg("Discovery published")
}

func (p *Publisher) discoveryConfig(component, objectID string, config map[string]interface{}) {
	p.publishJSON("homeassistant."+component+"."+objectID+".config", config)
}

func (p *Publisher) catDevice(id, name string) map[string]interface{} {
	return map[string]interface{}{
		"identifiers":  []string{"curfewd_cat_" + id},
		"name":         name + " (Curfew)",
		"manufacturer": "Sure Petcare",
		"model":        "Cat",
	}
}

func (p *Publisher) flapDevice(id, name string) map[string]interface{} {
	return map[string]interface{}{
		"identifiers":  []string{"curfewd_device_" + id},
		"name":         name + " (Curfew)",
		"manufacturer": "Sure Petcare",
		"model":        "Cat Flap Connect",
	}
}

// Close announces the service offline and drains the connection.
func (p *Publisher) Close() {
	p.publish(p.subject("status"), []byte("offline"))

	if err := p.conn.Drain(); err != nil {
		p.log.Warn().Err(err).Msg("Broker drain failed")
	}

	p.log.Info().Msg("Broker disconnected")
}

func onOff(v bool) []byte {
	if v {
		return []byte("ON")
	}

	return []byte("OFF")
}
