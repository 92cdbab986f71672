// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

package tison

import (
	"crypto/rand"
	"fmt"
	"io"
)

// ErrInvalidArgument is returned when a command argument falls outside the
// range the heater accepts.
var ErrInvalidArgument = fmt.Errorf("tison: invalid command argument")

// CommandKind tags the request a Command carries.
type CommandKind int

// Command kinds.
const (
	KindGetStatus CommandKind = iota
	KindSetMode
	KindStartStop
	KindSetLevel
)

// String returns the command kind name.
func (k CommandKind) String() string {
	switch k {
	case KindGetStatus:
		return "GET_STATUS"
	case KindSetMode:
		return "SET_MODE"
	case KindStartStop:
		return "START_STOP"
	case KindSetLevel:
		return "SET_LEVEL"
	}
	return "UNKNOWN"
}

// Command is an immutable heater request, constructed once per dispatch.
type Command struct {
	Kind CommandKind
	Arg  int
}

// GetStatus builds a status poll request.
func GetStatus() Command {
	return Command{Kind: KindGetStatus}
}

// SetMode builds a control mode change. Only ModeLevel and ModeTemperature
// are encodable; anything else fails at Encode time.
func SetMode(m ControlMode) Command {
	arg := 0
	switch m {
	case ModeLevel:
		arg = wireModeLevel
	case ModeTemperature:
		arg = wireModeTemperature
	}
	return Command{Kind: KindSetMode, Arg: arg}
}

// StartStop builds a run/stop request.
func StartStop(run bool) Command {
	arg := 0
	if run {
		arg = 1
	}
	return Command{Kind: KindStartStop, Arg: arg}
}

// SetLevel builds a power level change. The level is validated at Encode
// time against MinLevel..MaxLevel.
func SetLevel(level int) Command {
	return Command{Kind: KindSetLevel, Arg: level}
}

// String returns a loggable rendering of the command.
func (c Command) String() string {
	switch c.Kind {
	case KindGetStatus:
		return c.Kind.String()
	default:
		return fmt.Sprintf("%s(%d)", c.Kind.String(), c.Arg)
	}
}

// code returns the wire command code.
func (c Command) code() (byte, error) {
	switch c.Kind {
	case KindGetStatus:
		return cmdGetStatus, nil
	case KindSetMode:
		if c.Arg != wireModeLevel && c.Arg != wireModeTemperature {
			return 0, fmt.Errorf("%w: mode %d", ErrInvalidArgument, c.Arg)
		}
		return cmdSetMode, nil
	case KindStartStop:
		if c.Arg != 0 && c.Arg != 1 {
			return 0, fmt.Errorf("%w: start/stop %d", ErrInvalidArgument, c.Arg)
		}
		return cmdStartStop, nil
	case KindSetLevel:
		if c.Arg < MinLevel || c.Arg > MaxLevel {
			return 0, fmt.Errorf("%w: level %d outside %d..%d", ErrInvalidArgument, c.Arg, MinLevel, MaxLevel)
		}
		return cmdSetLevel, nil
	}
	return 0, fmt.Errorf("%w: unknown command kind %d", ErrInvalidArgument, int(c.Kind))
}

// Encode builds the 8-byte command frame for the given dialect:
//
//	[0xAA, marker, auth1, auth2, code, argLo, argHi, checksum]
//
// Dialects V1 and V2 derive the auth bytes from the passkey
// (passkey/100, passkey%100). V3Partial fills them from rng; the device is
// not known to validate them, but the frame must still be well formed. A nil
// rng falls back to crypto/rand. The trailing checksum is the byte sum of
// the first seven frame bytes.
func Encode(c Command, passkey int, d Dialect, rng io.Reader) ([]byte, error) {
	code, err := c.code()
	if err != nil {
		return nil, err
	}

	frame := make([]byte, CommandFrameSize)
	frame[0] = HeaderByte
	frame[1] = byte(d)

	switch d {
	case DialectV1, DialectV2:
		if passkey < MinPasskey || passkey > MaxPasskey {
			return nil, fmt.Errorf("%w: passkey %d outside %d..%d", ErrInvalidArgument, passkey, MinPasskey, MaxPasskey)
		}
		frame[2] = byte(passkey / 100)
		frame[3] = byte(passkey % 100)
	case DialectV3Partial:
		if rng == nil {
			rng = rand.Reader
		}
		if _, err := io.ReadFull(rng, frame[2:4]); err != nil {
			return nil, fmt.Errorf("tison: reading auth entropy: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: dialect 0x%02X", ErrInvalidArgument, byte(d))
	}

	frame[4] = code
	frame[5] = byte(c.Arg % 256)
	frame[6] = byte(c.Arg / 256)
	frame[7] = checksum(frame[:7])

	return frame, nil
}

// checksum is the modulo-256 byte sum used by command frames.
func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
