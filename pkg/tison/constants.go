// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

// Package tison implements the binary command/notification protocol spoken
// by Vevor-style BLE diesel heaters.
//
// The heater accepts fixed 8-byte command frames and answers each write with
// a single notification carrying a 20-byte status frame. Three wire dialects
// exist, distinguished by the marker byte following the frame header; field
// offsets and the error-code table depend on the dialect. This package
// provides command encoding, status decoding, plausibility validation, and
// human-readable formatting.
package tison

// Frame framing
const (
	HeaderByte = 0xAA

	CommandFrameSize = 8
	StatusFrameSize  = 20
)

// Dialect identifies one of the heater's wire protocol variants.
// The zero value is not a valid dialect.
type Dialect byte

// Wire dialects, by the marker byte found at offset 1 of a status frame.
const (
	DialectV1        Dialect = 0x55
	DialectV2        Dialect = 0x66
	DialectV3Partial Dialect = 0x88
)

// minFrameLen returns the minimum status frame length the dialect's decoder
// requires. Frames on the wire are StatusFrameSize bytes; the decoder only
// insists on the bytes it actually reads.
func (d Dialect) minFrameLen() int {
	switch d {
	case DialectV1, DialectV3Partial:
		return 17
	case DialectV2:
		return 18
	}
	return StatusFrameSize
}

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectV1:
		return "v1"
	case DialectV2:
		return "v2"
	case DialectV3Partial:
		return "v3-partial"
	}
	return "unknown"
}

// Command codes (offset 4 of a command frame).
const (
	cmdGetStatus = 1
	cmdSetMode   = 2
	cmdStartStop = 3
	cmdSetLevel  = 4
)

// Power level bounds for SetLevel.
const (
	MinLevel = 1
	MaxLevel = 36
)

// Passkey bounds for dialects that authenticate command frames.
const (
	MinPasskey = 0
	MaxPasskey = 9999
)

// RunningStep is the heater's detailed operating phase.
type RunningStep int

// Running steps, in wire order.
const (
	StepStandby RunningStep = iota
	StepSelfTest
	StepIgnition
	StepRunning
	StepCooldown
)

var runningStepNames = []string{
	"Standby",
	"Self-test",
	"Ignition",
	"Running",
	"Cooldown",
}

// String returns the human-readable step name.
func (s RunningStep) String() string {
	if s < 0 || int(s) >= len(runningStepNames) {
		return "Unknown"
	}
	return runningStepNames[s]
}

// ControlMode distinguishes the heater's two setpoint regimes.
type ControlMode int

// Control modes. ModeUnknown appears only on partially decoded dialects.
const (
	ModeUnknown ControlMode = iota
	ModeLevel
	ModeTemperature
)

// Wire values accepted by SetMode.
const (
	wireModeLevel       = 1
	wireModeTemperature = 2
)

// String returns the human-readable mode name.
func (m ControlMode) String() string {
	switch m {
	case ModeLevel:
		return "Power Level"
	case ModeTemperature:
		return "Temperature"
	}
	return "Unknown"
}

// ErrorOverheat is the taxonomy entry shared by all dialects for the
// heater's own over-temperature shutdown.
const ErrorOverheat = "Overheating"

// errorTableV1 maps V1 error codes to the heater's fault taxonomy.
var errorTableV1 = []string{
	"No fault",
	"Startup failure",
	"Lack of fuel",
	"Supply voltage overrun",
	"Outlet sensor fault",
	"Inlet sensor fault",
	"Pulse pump fault",
	"Fan fault",
	"Ignition unit fault",
	ErrorOverheat,
	"Overheat sensor fault",
}

// errorTableV2 is the reordered V2 taxonomy. Codes 2 and 7 are unassigned
// on this dialect.
var errorTableV2 = []string{
	"No fault",
	"Supply voltage overrun",
	"",
	"Ignition unit fault",
	"Pulse pump fault",
	ErrorOverheat,
	"Fan fault",
	"",
	"Lack of fuel",
	"Overheat sensor fault",
	"Startup failure",
}

// ErrorText maps a dialect-scoped error code to its human-readable fault
// name. Codes outside the dialect's table, and the gaps within it, map to
// "Unknown fault".
func (d Dialect) ErrorText(code int) string {
	var table []string
	switch d {
	case DialectV1:
		table = errorTableV1
	case DialectV2:
		table = errorTableV2
	default:
		// V3Partial does not decode the error field at all.
		return "Unknown fault"
	}
	if code < 0 || code >= len(table) || table[code] == "" {
		return "Unknown fault"
	}
	return table[code]
}
