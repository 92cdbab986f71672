// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Ember Works

package tison

import (
	"fmt"
	"time"
)

// Decode errors. A malformed frame is never retryable; callers treat it as
// one failed poll and move on.
var (
	ErrUnrecognizedPayload = fmt.Errorf("tison: unrecognized payload")
	ErrTruncatedPayload    = fmt.Errorf("tison: truncated payload")
)

// decodeFunc decodes a status frame whose header and minimum length have
// already been checked.
type decodeFunc func(buf []byte) (*Status, error)

// decoderFor is the dispatch table keyed by the marker byte. Every dialect
// constant must have an entry; keeping the mapping in one exhaustive switch
// means a new dialect cannot silently fall through.
func decoderFor(d Dialect) decodeFunc {
	switch d {
	case DialectV1:
		return decodeV1
	case DialectV2:
		return decodeV2
	case DialectV3Partial:
		return decodeV3Partial
	}
	return nil
}

// Decode parses a raw notification buffer into a Status, dispatching on the
// dialect marker at offset 1. Buffers that do not start with the frame
// header and a known marker fail with ErrUnrecognizedPayload; buffers
// shorter than the dialect's minimum length fail with ErrTruncatedPayload.
func Decode(buf []byte) (*Status, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedPayload, len(buf))
	}
	if buf[0] != HeaderByte {
		return nil, fmt.Errorf("%w: header 0x%02X", ErrUnrecognizedPayload, buf[0])
	}

	d := Dialect(buf[1])
	decode := decoderFor(d)
	if decode == nil {
		return nil, fmt.Errorf("%w: marker 0x%02X", ErrUnrecognizedPayload, buf[1])
	}
	if len(buf) < d.minFrameLen() {
		return nil, fmt.Errorf("%w: %d bytes, dialect %s needs %d", ErrTruncatedPayload, len(buf), d, d.minFrameLen())
	}

	st, err := decode(buf)
	if err != nil {
		return nil, err
	}
	st.Dialect = d
	st.At = time.Now()
	return st, nil
}

// decodeV1 handles the 0x55 dialect: error code at offset 4.
func decodeV1(buf []byte) (*Status, error) {
	return decodeFull(buf, 4)
}

// decodeV2 handles the 0x66 dialect: identical layout to V1 except the
// error code moves to offset 17 (and the error taxonomy table differs).
func decodeV2(buf []byte) (*Status, error) {
	return decodeFull(buf, 17)
}

// decodeFull decodes the field layout shared by V1 and V2.
func decodeFull(buf []byte, errOffset int) (*Status, error) {
	st := &Status{
		Running:   buf[3] != 0,
		Step:      RunningStep(buf[5]),
		ErrorCode: int(buf[errOffset]),
		Altitude:  le16(buf, 6),
		Voltage:   float64(le16(buf, 11)) / 10.0,
		CaseTemp:  signed16(le16(buf, 13)),
		CabinTemp: signed16(le16(buf, 15)),
	}

	// The raw running mode selects both the control mode and where the
	// active level lives. In raw modes 0 and 2 the level byte holds the
	// display value minus one.
	switch buf[8] {
	case 0:
		st.Mode = ModeLevel
		st.Level = int(buf[10]) + 1
	case 1:
		st.Mode = ModeLevel
		st.Level = int(buf[9])
	case 2:
		st.Mode = ModeTemperature
		st.TargetTemp = int(buf[9])
		st.Level = int(buf[10]) + 1
	default:
		return nil, fmt.Errorf("%w: running mode %d", ErrUnrecognizedPayload, buf[8])
	}

	return st, nil
}

// decodeV3Partial handles the 0x88 dialect. Only the fields confirmed
// stable across dialects are decoded; the rest of the frame is
// dialect-undefined and left opaque.
func decodeV3Partial(buf []byte) (*Status, error) {
	return &Status{
		Partial:   true,
		Running:   buf[3] != 0,
		Step:      RunningStep(buf[5]),
		CaseTemp:  signed16(le16(buf, 13)),
		CabinTemp: signed16(le16(buf, 15)),
	}, nil
}

// le16 reads a little-endian 16-bit unsigned value at offset.
func le16(buf []byte, offset int) uint16 {
	return uint16(buf[offset]) | uint16(buf[offset+1])<<8
}

// signed16 applies the protocol's sign extension rule for 16-bit fields:
// values above 32767 wrap to negative.
func signed16(v uint16) int {
	if v > 32767 {
		return int(v) - 65536
	}
	return int(v)
}
