// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works
//
// Pyrostat - BLE diesel heater bridge
//
// Bridges a Vevor-style diesel heater, reachable over its proprietary
// binary command/notification protocol, to MQTT with Home Assistant
// discovery.

package main

import (
	"os"

	"github.com/ember-works/pyrostat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
