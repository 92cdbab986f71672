// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

package tison

import "time"

// Status is one decoded heater snapshot. A new value is produced per
// successful poll and never mutated in place.
type Status struct {
	Dialect Dialect
	At      time.Time

	// Partial is set on dialects that are only partially understood
	// (V3Partial). When true, only Running, Step, CaseTemp and CabinTemp
	// carry decoded values; the remaining fields stay at their zero value
	// and must not be interpreted.
	Partial bool

	Running   bool
	Step      RunningStep
	ErrorCode int

	Altitude uint16 // metres

	Mode       ControlMode
	Level      int // active power level, MinLevel..MaxLevel
	TargetTemp int // °C setpoint, meaningful in ModeTemperature only

	Voltage   float64 // supply voltage, one decimal
	CaseTemp  int     // heat exchanger temperature, °C
	CabinTemp int     // cabin/room temperature, °C
}

// ErrorText returns the human-readable fault name for the snapshot's
// dialect-scoped error code.
func (s *Status) ErrorText() string {
	return s.Dialect.ErrorText(s.ErrorCode)
}

// Faulted reports whether the heater signals any fault.
func (s *Status) Faulted() bool {
	return !s.Partial && s.ErrorCode != 0
}

// Overheating reports whether the heater's own fault code indicates an
// over-temperature shutdown. Partial dialects never report one because
// their error field is not decoded.
func (s *Status) Overheating() bool {
	return s.Faulted() && s.ErrorText() == ErrorOverheat
}
