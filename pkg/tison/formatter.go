// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

package tison

import (
	"fmt"
	"strings"
)

// FormatStatus renders a decoded status snapshot as a multi-line,
// human-readable block.
func FormatStatus(st *Status) string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] STATUS dialect=%s\n", st.At.Format("15:04:05.000"), st.Dialect)

	running := "no"
	if st.Running {
		running = "yes"
	}
	fmt.Fprintf(&b, "  Running: %s, Step: %s\n", running, st.Step)

	fmt.Fprintf(&b, "  Case: %d°C, Cabin: %d°C\n", st.CaseTemp, st.CabinTemp)

	if st.Partial {
		b.WriteString("  (remaining fields undefined on this dialect)\n")
		return b.String()
	}

	fmt.Fprintf(&b, "  Error: %s (%d)\n", st.ErrorText(), st.ErrorCode)

	switch st.Mode {
	case ModeTemperature:
		fmt.Fprintf(&b, "  Mode: %s, Target: %d°C, Level: %d\n", st.Mode, st.TargetTemp, st.Level)
	default:
		fmt.Fprintf(&b, "  Mode: %s, Level: %d\n", st.Mode, st.Level)
	}

	fmt.Fprintf(&b, "  Supply: %.1fV, Altitude: %dm\n", st.Voltage, st.Altitude)

	return b.String()
}

// FormatFrame renders raw frame bytes as a spaced hex dump.
func FormatFrame(buf []byte) string {
	var b strings.Builder
	for i, by := range buf {
		if i > 0 {
			if i%16 == 0 {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		fmt.Fprintf(&b, "%02X", by)
	}
	return b.String()
}

// FormatCommand renders an encoded command frame with its decoded meaning.
func FormatCommand(c Command, frame []byte) string {
	return fmt.Sprintf("%s > %s", c, FormatFrame(frame))
}
