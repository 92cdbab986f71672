// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package mqtt

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ember-works/pyrostat/pkg/tison"
)

// Home Assistant select options. Index order matches the wire mode codes,
// offset by one.
var modeOptions = []string{"Power Level", "Temperature"}

// deviceInfo is the HA device block shared by every entity.
type deviceInfo struct {
	Name         string `json:"name"`
	Identifiers  string `json:"identifiers"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	ViaDevice    string `json:"via_device"`
	SW           string `json:"sw"`
}

// entityConfig is one HA MQTT discovery payload. Zero fields are omitted
// so the same struct serves buttons, sensors, selects and numbers.
type entityConfig struct {
	Device            deviceInfo `json:"device"`
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	Icon              string     `json:"icon,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	Unit              string     `json:"unit_of_measurement,omitempty"`
	ExpireAfter       int        `json:"expire_after,omitempty"`
	StateTopic        string     `json:"state_topic,omitempty"`
	CommandTopic      string     `json:"command_topic,omitempty"`
	AvailabilityTopic string     `json:"availability_topic,omitempty"`
	EnabledByDefault  bool       `json:"enabled_by_default,omitempty"`
	Options           []string   `json:"options,omitempty"`
	Min               float64    `json:"min,omitempty"`
	Max               float64    `json:"max,omitempty"`
	Step              float64    `json:"step,omitempty"`
}

// discoveryEntity pairs an entity's HA component with its config payload.
type discoveryEntity struct {
	component string
	suffix    string // unique_id suffix, stable across restarts
	config    entityConfig
}

func (c *Client) device() deviceInfo {
	host, _ := os.Hostname()
	return deviceInfo{
		Name:         c.cfg.DeviceName,
		Identifiers:  c.cfg.DeviceID,
		Manufacturer: c.cfg.Manufacturer,
		Model:        c.cfg.Model,
		ViaDevice:    host,
		SW:           "pyrostat",
	}
}

// discoveryEntities builds the full entity set: start/stop buttons, the
// read-only sensors, the mode select and the level/temperature numbers.
func (c *Client) discoveryEntities() []discoveryEntity {
	dev := c.device()
	return []discoveryEntity{
		{"button", "000", entityConfig{
			Device:            dev,
			Icon:              "mdi:radiator",
			Name:              "Start",
			CommandTopic:      c.topic("start", "cmd"),
			AvailabilityTopic: c.topic("start", "av"),
			EnabledByDefault:  true,
		}},
		{"button", "001", entityConfig{
			Device:            dev,
			Icon:              "mdi:radiator-off",
			Name:              "Stop",
			CommandTopic:      c.topic("stop", "cmd"),
			AvailabilityTopic: c.topic("stop", "av"),
			EnabledByDefault:  true,
		}},
		{"sensor", "010", entityConfig{
			Device:      dev,
			Name:        "Status",
			ExpireAfter: 10,
			StateTopic:  c.topic("status", "state"),
		}},
		{"sensor", "011", entityConfig{
			Device:      dev,
			Name:        "Room temperature",
			DeviceClass: "temperature",
			Unit:        "°C",
			Icon:        "mdi:home-thermometer",
			ExpireAfter: 10,
			StateTopic:  c.topic("room_temperature", "state"),
		}},
		{"sensor", "012", entityConfig{
			Device:      dev,
			Name:        "Heater temperature",
			DeviceClass: "temperature",
			Unit:        "°C",
			Icon:        "mdi:thermometer-lines",
			ExpireAfter: 10,
			StateTopic:  c.topic("heater_temperature", "state"),
		}},
		{"sensor", "013", entityConfig{
			Device:      dev,
			Name:        "Supply voltage",
			DeviceClass: "voltage",
			Unit:        "V",
			Icon:        "mdi:car-battery",
			ExpireAfter: 10,
			StateTopic:  c.topic("voltage", "state"),
		}},
		{"sensor", "014", entityConfig{
			Device:      dev,
			Name:        "Altitude",
			DeviceClass: "distance",
			Unit:        "m",
			Icon:        "mdi:summit",
			ExpireAfter: 10,
			StateTopic:  c.topic("altitude", "state"),
		}},
		{"number", "020", entityConfig{
			Device:            dev,
			Name:              "Power Level",
			Icon:              "mdi:speedometer",
			CommandTopic:      c.topic("level", "cmd"),
			StateTopic:        c.topic("level", "state"),
			AvailabilityTopic: c.topic("level", "av"),
			EnabledByDefault:  true,
			Min:               float64(tison.MinLevel),
			Max:               float64(tison.MaxLevel),
			Step:              1,
		}},
		{"select", "021", entityConfig{
			Device:            dev,
			Name:              "Mode",
			CommandTopic:      c.topic("mode", "cmd"),
			StateTopic:        c.topic("mode", "state"),
			AvailabilityTopic: c.topic("mode", "av"),
			EnabledByDefault:  true,
			Options:           modeOptions,
		}},
		{"number", "022", entityConfig{
			Device:            dev,
			Name:              "Temperature",
			Icon:              "mdi:thermometer",
			CommandTopic:      c.topic("temperature", "cmd"),
			StateTopic:        c.topic("temperature", "state"),
			AvailabilityTopic: c.topic("temperature", "av"),
			EnabledByDefault:  true,
			Min:               8,
			Max:               36,
			Step:              1,
		}},
	}
}

// publishDiscovery announces every entity on the HA discovery prefix.
func (c *Client) publishDiscovery() {
	for _, e := range c.discoveryEntities() {
		e.config.UniqueID = fmt.Sprintf("%s-%s", c.cfg.DeviceID, e.suffix)
		payload, err := json.Marshal(e.config)
		if err != nil {
			c.log.Errorw("marshaling discovery config", "entity", e.config.Name, "err", err)
			continue
		}
		topic := fmt.Sprintf("%s/%s/%s/config", c.cfg.DiscoveryPrefix, e.component, e.config.UniqueID)
		c.publishRetained(topic, payload)
	}
	c.log.Infow("discovery published", "entities", len(c.discoveryEntities()))
}
