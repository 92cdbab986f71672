// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package link

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketLink connects through a BLE gateway that relays GATT
// notifications as binary websocket messages and forwards binary writes to
// the heater's characteristic. The connect address is the heater's BLE MAC,
// passed to the gateway as a query parameter.
type WebsocketLink struct {
	URL        string
	Username   string
	Password   string
	SkipVerify bool // wss:// only
}

// Connect dials the gateway.
func (l *WebsocketLink) Connect(ctx context.Context, address string, timeout time.Duration) (Conn, error) {
	u, err := url.Parse(l.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	q := u.Query()
	q.Set("device", address)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: l.SkipVerify}
	}

	headers := http.Header{}
	if l.Username != "" && l.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(l.Username + ":" + l.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gateway connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("gateway connection failed: %w", err)
	}

	c := &wsConn{
		conn:     conn,
		messages: make(chan []byte, 16),
		readErr:  make(chan error, 1),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	conn     *websocket.Conn
	messages chan []byte
	readErr  chan error
	done     chan struct{}
	err      error // latched terminal read error
	closed   bool
}

// readLoop owns every read on the connection. A gorilla read error is
// terminal (it latches inside the connection), so reads must never race a
// caller-side deadline; the loop blocks until data or failure and delivers
// the one terminal error. Close unblocks the pending ReadMessage.
func (c *wsConn) readLoop() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr <- err
			return
		}
		if messageType != websocket.BinaryMessage {
			// Gateway keepalives arrive as text frames.
			continue
		}
		select {
		case c.messages <- data:
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) Write(p []byte) error {
	if c.closed {
		return ErrClosed
	}
	if c.err != nil {
		return c.err
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// AwaitNotification waits up to timeout for the next buffered binary
// message. An expired window returns nil, nil and leaves the connection
// usable; messages arriving between calls are not lost.
func (c *wsConn) AwaitNotification(timeout time.Duration) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.err != nil {
		return nil, c.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-c.messages:
		return data, nil
	case err := <-c.readErr:
		c.err = fmt.Errorf("%w: %v", ErrClosed, err)
		return nil, c.err
	case <-timer.C:
		return nil, nil
	}
}

func (c *wsConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return c.conn.Close()
}
