// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-works/pyrostat/internal/bridge"
	"github.com/ember-works/pyrostat/internal/logger"
	"github.com/ember-works/pyrostat/internal/safety"
	"github.com/ember-works/pyrostat/internal/session"
	"github.com/ember-works/pyrostat/pkg/tison"
)

func testClient() *Client {
	return New(Config{
		Broker:          "tcp://127.0.0.1:1883",
		Prefix:          "pyrostat",
		DiscoveryPrefix: "homeassistant",
		DeviceID:        "BYD-AABBCCDDEEFF",
		DeviceName:      "Diesel Heater",
		Manufacturer:    "Vevor",
		Model:           "BYD-AABBCCDDEEFF",
	}, nil, logger.Nop())
}

func TestTopicLayout(t *testing.T) {
	c := testClient()
	assert.Equal(t, "pyrostat/BYD-AABBCCDDEEFF/level/cmd", c.topic("level", "cmd"))
	assert.Equal(t, "pyrostat/BYD-AABBCCDDEEFF/status/state", c.topic("status", "state"))
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		entity  string
		payload string
		want    tison.Command
	}{
		{"start", "PRESS", tison.StartStop(true)},
		{"stop", "PRESS", tison.StartStop(false)},
		{"level", "8", tison.SetLevel(8)},
		{"level", " 12 ", tison.SetLevel(12)},
		{"temperature", "21", tison.SetLevel(21)},
		{"mode", "Power Level", tison.SetMode(tison.ModeLevel)},
		{"mode", "Temperature", tison.SetMode(tison.ModeTemperature)},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.entity, []byte(tc.payload))
		require.NoError(t, err, "%s %q", tc.entity, tc.payload)
		assert.Equal(t, tc.want, got, "%s %q", tc.entity, tc.payload)
	}
}

func TestParseCommand_Unsupported(t *testing.T) {
	for _, tc := range []struct{ entity, payload string }{
		{"reboot", "1"},
		{"level", "eleven"},
		{"mode", "Turbo"},
	} {
		_, err := parseCommand(tc.entity, []byte(tc.payload))
		assert.ErrorIs(t, err, ErrUnsupportedCommand, "%s %q", tc.entity, tc.payload)
	}
}

func runningSnapshot() bridge.Snapshot {
	return bridge.Snapshot{
		Status: &tison.Status{
			Dialect:  tison.DialectV1,
			Running:  true,
			Step:     tison.StepRunning,
			Mode:     tison.ModeLevel,
			Level:    6,
			CaseTemp: 190,
			Voltage:  12.4,
		},
		Safety: safety.Snapshot{Kind: safety.Normal, Ceiling: 36},
		Link:   session.Ready,
	}
}

func TestStatusText(t *testing.T) {
	snap := runningSnapshot()
	assert.Equal(t, "Running", statusText(snap))

	snap.Status.ErrorCode = 2
	assert.Equal(t, "Running (Lack of fuel)", statusText(snap))

	snap.Status.ErrorCode = 0
	snap.Safety = safety.Snapshot{Kind: safety.Limited, Ceiling: 10}
	assert.Equal(t, "Running [limited to level 10]", statusText(snap))

	until := time.Date(2026, 1, 15, 8, 1, 0, 0, time.UTC)
	snap.Safety = safety.Snapshot{Kind: safety.LockedOut, Until: until}
	assert.Equal(t, "Running [OVERHEAT LOCKOUT until 08:01:00]", statusText(snap))

	assert.Equal(t, "Unavailable [disconnected]", statusText(bridge.Snapshot{Reason: "disconnected"}))
}

func TestAvailability(t *testing.T) {
	snap := runningSnapshot()
	avail := availabilityFor(snap)
	assert.False(t, avail["start"])
	assert.True(t, avail["stop"])
	assert.True(t, avail["level"])
	assert.False(t, avail["temperature"])
	assert.True(t, avail["mode"])

	snap.Status.Running = false
	snap.Status.Step = tison.StepStandby
	avail = availabilityFor(snap)
	assert.True(t, avail["start"])
	assert.False(t, avail["stop"])

	snap = runningSnapshot()
	snap.Status.Mode = tison.ModeTemperature
	avail = availabilityFor(snap)
	assert.False(t, avail["level"])
	assert.True(t, avail["temperature"])

	// No decodable status means nothing is controllable.
	for _, online := range availabilityFor(bridge.Snapshot{Reason: "poll failed"}) {
		assert.False(t, online)
	}
}

func TestRejectionText(t *testing.T) {
	assert.Equal(t, "OVERHEAT LOCKOUT: 45s remaining",
		rejectionText(&safety.LockoutActiveError{Remaining: 45 * time.Second}))
	assert.Equal(t, "Level 20 refused (temperature limit: 10)",
		rejectionText(&safety.CeilingExceededError{Requested: 20, Ceiling: 10}))
	assert.Equal(t, "Command failed: session: no reply within timeout",
		rejectionText(session.ErrTimeout))
}

func TestDiscoveryEntities(t *testing.T) {
	c := testClient()
	entities := c.discoveryEntities()
	require.Len(t, entities, 10)

	byName := map[string]discoveryEntity{}
	for _, e := range entities {
		byName[e.config.Name] = e
	}

	level := byName["Power Level"]
	assert.Equal(t, "number", level.component)
	assert.Equal(t, "pyrostat/BYD-AABBCCDDEEFF/level/cmd", level.config.CommandTopic)
	assert.Equal(t, float64(tison.MaxLevel), level.config.Max)

	mode := byName["Mode"]
	assert.Equal(t, "select", mode.component)
	assert.Equal(t, modeOptions, mode.config.Options)

	status := byName["Status"]
	assert.Equal(t, "sensor", status.component)
	assert.Equal(t, 10, status.config.ExpireAfter)
	assert.Empty(t, status.config.CommandTopic)

	// Every entity shares the same HA device block and survives a JSON
	// round through the discovery schema.
	for _, e := range entities {
		assert.Equal(t, "BYD-AABBCCDDEEFF", e.config.Device.Identifiers, e.config.Name)
		payload, err := json.Marshal(e.config)
		require.NoError(t, err)
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Contains(t, decoded, "device")
	}
}
