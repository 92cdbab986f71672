// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

package tison

import (
	"bytes"
	"errors"
	"testing"
)

// ============================================================
// Encode Tests
// ============================================================

func TestEncode_FrameShape(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{name: "get status", cmd: GetStatus()},
		{name: "set mode level", cmd: SetMode(ModeLevel)},
		{name: "set mode temperature", cmd: SetMode(ModeTemperature)},
		{name: "start", cmd: StartStop(true)},
		{name: "stop", cmd: StartStop(false)},
		{name: "set level min", cmd: SetLevel(MinLevel)},
		{name: "set level max", cmd: SetLevel(MaxLevel)},
		{name: "set level mid", cmd: SetLevel(20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.cmd, 1234, DialectV1, nil)
			if err != nil {
				t.Fatalf("Encode error: %v", err)
			}
			if len(frame) != CommandFrameSize {
				t.Fatalf("frame size: expected %d, got %d", CommandFrameSize, len(frame))
			}
			if frame[0] != HeaderByte {
				t.Errorf("header: expected 0x%02X, got 0x%02X", HeaderByte, frame[0])
			}
			if frame[1] != byte(DialectV1) {
				t.Errorf("marker: expected 0x%02X, got 0x%02X", byte(DialectV1), frame[1])
			}

			var sum byte
			for _, b := range frame[:7] {
				sum += b
			}
			if frame[7] != sum {
				t.Errorf("checksum: expected 0x%02X, got 0x%02X", sum, frame[7])
			}
		})
	}
}

func TestEncode_PasskeyAuth(t *testing.T) {
	// Auth bytes are (passkey/100, passkey%100) for the passkey dialects.
	for _, passkey := range []int{0, 1, 99, 100, 1234, 9999} {
		frame, err := Encode(GetStatus(), passkey, DialectV1, nil)
		if err != nil {
			t.Fatalf("passkey %d: %v", passkey, err)
		}
		if frame[2] != byte(passkey/100) || frame[3] != byte(passkey%100) {
			t.Errorf("passkey %d: auth bytes (%d,%d), expected (%d,%d)",
				passkey, frame[2], frame[3], passkey/100, passkey%100)
		}
	}
}

func TestEncode_PasskeyOutOfRange(t *testing.T) {
	for _, passkey := range []int{-1, 10000} {
		if _, err := Encode(GetStatus(), passkey, DialectV1, nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("passkey %d: expected ErrInvalidArgument, got %v", passkey, err)
		}
	}
}

func TestEncode_V3RandomAuth(t *testing.T) {
	// The 0x88 dialect draws its auth bytes from the injected source.
	rng := bytes.NewReader([]byte{0xDE, 0xAD})
	frame, err := Encode(GetStatus(), 0, DialectV3Partial, rng)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if frame[2] != 0xDE || frame[3] != 0xAD {
		t.Errorf("auth bytes: expected (0xDE,0xAD), got (0x%02X,0x%02X)", frame[2], frame[3])
	}
	if frame[1] != byte(DialectV3Partial) {
		t.Errorf("marker: expected 0x%02X, got 0x%02X", byte(DialectV3Partial), frame[1])
	}
}

func TestEncode_ArgumentSplit(t *testing.T) {
	// Arguments split little-endian across argLo/argHi.
	frame, err := Encode(SetLevel(36), 1234, DialectV1, nil)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if frame[4] != cmdSetLevel {
		t.Errorf("code: expected %d, got %d", cmdSetLevel, frame[4])
	}
	if frame[5] != 36 || frame[6] != 0 {
		t.Errorf("arg bytes: expected (36,0), got (%d,%d)", frame[5], frame[6])
	}
}

func TestEncode_LevelOutOfRange(t *testing.T) {
	for _, level := range []int{0, -3, 37, 255} {
		_, err := Encode(SetLevel(level), 1234, DialectV1, nil)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("level %d: expected ErrInvalidArgument, got %v", level, err)
		}
	}
}

func TestEncode_CommandCodes(t *testing.T) {
	tests := []struct {
		cmd     Command
		code    byte
		arg     int
	}{
		{GetStatus(), cmdGetStatus, 0},
		{SetMode(ModeLevel), cmdSetMode, 1},
		{SetMode(ModeTemperature), cmdSetMode, 2},
		{StartStop(false), cmdStartStop, 0},
		{StartStop(true), cmdStartStop, 1},
		{SetLevel(8), cmdSetLevel, 8},
	}

	for _, tt := range tests {
		frame, err := Encode(tt.cmd, 1234, DialectV1, nil)
		if err != nil {
			t.Fatalf("%s: %v", tt.cmd, err)
		}
		if frame[4] != tt.code {
			t.Errorf("%s: code %d, expected %d", tt.cmd, frame[4], tt.code)
		}
		if int(frame[5]) != tt.arg {
			t.Errorf("%s: argLo %d, expected %d", tt.cmd, frame[5], tt.arg)
		}
	}
}

func TestEncode_UnknownMode(t *testing.T) {
	if _, err := Encode(SetMode(ModeUnknown), 1234, DialectV1, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown mode, got %v", err)
	}
}
