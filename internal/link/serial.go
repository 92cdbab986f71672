// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package link

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialLink connects to a heater whose BLE module is wired up as a UART.
// The connect address is the serial device path.
type SerialLink struct {
	Baud int
}

// interByteGap is how long the reader waits for more bytes before treating
// the accumulated buffer as one complete notification.
const interByteGap = 50 * time.Millisecond

// Connect opens the serial port. The timeout only bounds the open itself;
// serial opens either succeed or fail quickly.
func (l *SerialLink) Connect(ctx context.Context, address string, timeout time.Duration) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: l.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(address, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", address, err)
	}

	return &serialConn{port: port}, nil
}

type serialConn struct {
	port   serial.Port
	closed bool
}

func (c *serialConn) Write(p []byte) error {
	if c.closed {
		return ErrClosed
	}
	if _, err := c.port.Write(p); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// AwaitNotification accumulates bytes until an inter-byte gap marks the end
// of one notification, or the overall timeout elapses.
func (c *serialConn) AwaitNotification(timeout time.Duration) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}

	deadline := time.Now().Add(timeout)
	var acc []byte
	chunk := make([]byte, 64)

	for {
		if err := c.port.SetReadTimeout(interByteGap); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		n, err := c.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		if n > 0 {
			acc = append(acc, chunk[:n]...)
			continue
		}

		// Read timed out: a gap after data ends the frame.
		if len(acc) > 0 {
			return acc, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
	}
}

func (c *serialConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.port.Close()
}
