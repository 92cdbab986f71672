// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package link

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGateway spins up a websocket endpoint whose handler plays the remote
// BLE gateway. The handler runs on the server side of the upgraded
// connection; returning from it closes the connection.
func newGateway(t *testing.T, handler func(c *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialGateway(t *testing.T, l *WebsocketLink, srv *httptest.Server) Conn {
	t.Helper()
	if l == nil {
		l = &WebsocketLink{}
	}
	l.URL = wsURL(srv)
	conn, err := l.Connect(context.Background(), "AA:BB:CC:DD:EE:FF", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// holdOpen keeps the server side alive until the client hangs up.
func holdOpen(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// A notification that lands after several empty wait windows must still be
// delivered. BLE round trips routinely outlast one polling window, so an
// expired window has to leave the connection readable.
func TestWsAwaitNotification_ReplyAfterEmptyWindows(t *testing.T) {
	frame := []byte{0xAA, 0x55, 0x0D, 0x22}
	srv := newGateway(t, func(c *websocket.Conn, _ *http.Request) {
		time.Sleep(250 * time.Millisecond)
		if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			t.Errorf("gateway write failed: %v", err)
			return
		}
		holdOpen(c)
	})
	conn := dialGateway(t, nil, srv)

	var got []byte
	for i := 0; i < 10 && got == nil; i++ {
		data, err := conn.AwaitNotification(100 * time.Millisecond)
		require.NoError(t, err, "window %d", i)
		got = data
	}
	assert.Equal(t, frame, got)
}

func TestWsAwaitNotification_SkipsTextKeepalives(t *testing.T) {
	frame := []byte{0xAA, 0x55, 0x0D, 0x22}
	srv := newGateway(t, func(c *websocket.Conn, _ *http.Request) {
		if err := c.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
			return
		}
		if err := c.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
		holdOpen(c)
	})
	conn := dialGateway(t, nil, srv)

	data, err := conn.AwaitNotification(500 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, frame, data)
}

func TestWsAwaitNotification_TimeoutIsQuiet(t *testing.T) {
	srv := newGateway(t, func(c *websocket.Conn, _ *http.Request) {
		holdOpen(c)
	})
	conn := dialGateway(t, nil, srv)

	data, err := conn.AwaitNotification(50 * time.Millisecond)
	assert.NoError(t, err)
	assert.Nil(t, data)
}

func TestWsAwaitNotification_GatewayClosed(t *testing.T) {
	srv := newGateway(t, func(c *websocket.Conn, _ *http.Request) {
		// Return immediately, dropping the connection.
	})
	conn := dialGateway(t, nil, srv)

	var data []byte
	var err error
	for i := 0; i < 10 && err == nil; i++ {
		data, err = conn.AwaitNotification(100 * time.Millisecond)
	}
	require.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, data)

	// The error sticks for subsequent calls.
	_, err = conn.AwaitNotification(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWsWrite_ForwardsBinary(t *testing.T) {
	received := make(chan []byte, 1)
	srv := newGateway(t, func(c *websocket.Conn, _ *http.Request) {
		mt, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt == websocket.BinaryMessage {
			received <- data
		}
		holdOpen(c)
	})
	conn := dialGateway(t, nil, srv)

	frame := []byte{0xAA, 0x55, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}
	require.NoError(t, conn.Write(frame))

	select {
	case data := <-received:
		assert.Equal(t, frame, data)
	case <-time.After(time.Second):
		t.Fatal("gateway never received the write")
	}
}

func TestWsConnect_DeviceQueryAndBasicAuth(t *testing.T) {
	type handshake struct {
		device string
		auth   string
	}
	seen := make(chan handshake, 1)
	srv := newGateway(t, func(c *websocket.Conn, r *http.Request) {
		seen <- handshake{
			device: r.URL.Query().Get("device"),
			auth:   r.Header.Get("Authorization"),
		}
		holdOpen(c)
	})
	dialGateway(t, &WebsocketLink{Username: "bridge", Password: "hunter2"}, srv)

	select {
	case h := <-seen:
		assert.Equal(t, "AA:BB:CC:DD:EE:FF", h.device)
		assert.Equal(t, "Basic YnJpZGdlOmh1bnRlcjI=", h.auth)
	case <-time.After(time.Second):
		t.Fatal("gateway never saw the handshake")
	}
}

func TestWsConnect_RejectsNonWebsocketScheme(t *testing.T) {
	l := &WebsocketLink{URL: "http://gateway.local/ws"}
	_, err := l.Connect(context.Background(), "AA:BB:CC:DD:EE:FF", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}
