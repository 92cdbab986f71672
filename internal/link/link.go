// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

// Package link abstracts the peripheral transport that carries heater
// frames: a write side for command frames and a notification side for
// status frames. Implementations exist for a directly attached serial
// BLE/UART module and for a remote websocket BLE gateway.
package link

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a connection that has been closed
// or has lost its transport.
var ErrClosed = errors.New("link: connection closed")

// Conn is one open connection to the heater. Implementations are not safe
// for concurrent use; the session serializes all access.
type Conn interface {
	// Write sends one raw command frame.
	Write(p []byte) error

	// AwaitNotification blocks up to timeout for one inbound notification.
	// It returns (nil, nil) when the timeout elapses with nothing received,
	// and a non-nil error only when the transport is lost.
	AwaitNotification(timeout time.Duration) ([]byte, error)

	// Close releases the connection. Idempotent.
	Close() error
}

// Link opens connections to a heater identified by address. The address
// meaning is implementation-specific: a device path for serial, a BLE MAC
// for the gateway.
type Link interface {
	Connect(ctx context.Context, address string, timeout time.Duration) (Conn, error)
}
