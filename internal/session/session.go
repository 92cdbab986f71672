// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

// Package session owns one logical connection to the heater: open with a
// bounded retry budget, a single in-flight request at a time, classified
// failure reporting, and unconditional close. Reconnect orchestration
// across full cycles belongs to the bridge loop, not here.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ember-works/pyrostat/internal/link"
	"github.com/ember-works/pyrostat/internal/logger"
	"github.com/ember-works/pyrostat/pkg/tison"
)

// Classified session failures. Timeout and disconnect must stay distinct:
// callers apply different recovery to each.
var (
	ErrTimeout          = errors.New("session: no reply within timeout")
	ErrDisconnected     = errors.New("session: transport disconnected")
	ErrConnectionFailed = errors.New("session: connection failed")
)

// LinkState is the session lifecycle state.
type LinkState int

const (
	Disconnected LinkState = iota
	Connecting
	Ready
	Faulted
)

// String returns the state name.
func (s LinkState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

// Config parameterizes a session.
type Config struct {
	Passkey int
	Dialect tison.Dialect

	ReplyTimeout    time.Duration // bounded wait for one notification
	PollEvery       time.Duration // transport poll granularity
	ConnectTimeout  time.Duration // per connect attempt
	ConnectAttempts int           // attempts before ErrConnectionFailed
	ConnectDelay    time.Duration // starting inter-attempt delay, doubled per attempt

	// Rng feeds the auth bytes of the 0x88 dialect; nil means crypto/rand.
	Rng io.Reader
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = time.Second
	}
	if c.PollEvery <= 0 {
		c.PollEvery = 100 * time.Millisecond
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = 5 * time.Second
	}
	return c
}

// maxConnectDelay caps the growing inter-attempt delay.
const maxConnectDelay = 30 * time.Second

// Session is the single owner of one heater connection. Not safe for
// concurrent use; the bridge loop is its only caller.
type Session struct {
	lk      link.Link
	address string
	cfg     Config
	log     *logger.Logger

	conn  link.Conn
	state LinkState
}

// New constructs a closed session.
func New(lk link.Link, address string, cfg Config, log *logger.Logger) *Session {
	return &Session{
		lk:      lk,
		address: address,
		cfg:     cfg.withDefaults(),
		log:     log.Named("session"),
		state:   Disconnected,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() LinkState {
	return s.state
}

// Open attempts to connect, retrying up to the configured attempt budget
// with a doubling inter-attempt delay. After exhausting the budget it
// surfaces ErrConnectionFailed wrapping the last transport error.
func (s *Session) Open(ctx context.Context) error {
	if s.state == Ready {
		return nil
	}
	s.state = Connecting

	delay := s.cfg.ConnectDelay
	var lastErr error

	for attempt := 1; attempt <= s.cfg.ConnectAttempts; attempt++ {
		conn, err := s.lk.Connect(ctx, s.address, s.cfg.ConnectTimeout)
		if err == nil {
			s.conn = conn
			s.state = Ready
			s.log.Infow("connected", "address", s.address, "attempt", attempt)
			return nil
		}
		lastErr = err
		s.log.Warnw("connect attempt failed", "attempt", attempt, "of", s.cfg.ConnectAttempts, "err", err)

		if attempt == s.cfg.ConnectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			s.state = Disconnected
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxConnectDelay {
			delay = maxConnectDelay
		}
	}

	s.state = Disconnected
	return fmt.Errorf("%w after %d attempts: %v", ErrConnectionFailed, s.cfg.ConnectAttempts, lastErr)
}

// Request encodes the command, writes it, and waits for exactly one reply.
// It returns ErrTimeout when no notification arrives within the reply
// timeout and ErrDisconnected when the transport is lost; a reply that
// fails to decode surfaces its decode error.
func (s *Session) Request(ctx context.Context, cmd tison.Command) (*tison.Status, error) {
	if s.state != Ready || s.conn == nil {
		return nil, ErrDisconnected
	}

	frame, err := tison.Encode(cmd, s.cfg.Passkey, s.cfg.Dialect, s.cfg.Rng)
	if err != nil {
		return nil, err
	}

	s.log.Debugw("request", "cmd", cmd.String(), "frame", tison.FormatFrame(frame))
	if err := s.conn.Write(frame); err != nil {
		s.fault(err)
		return nil, ErrDisconnected
	}

	deadline := time.Now().Add(s.cfg.ReplyTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.conn.AwaitNotification(s.cfg.PollEvery)
		if err != nil {
			s.fault(err)
			return nil, ErrDisconnected
		}
		if data != nil {
			st, err := tison.Decode(data)
			if err != nil {
				s.log.Warnw("undecodable notification", "frame", tison.FormatFrame(data), "err", err)
				return nil, err
			}
			return st, nil
		}

		if time.Now().After(deadline) {
			s.log.Debugw("request timed out", "cmd", cmd.String())
			return nil, ErrTimeout
		}
	}
}

// Close releases the connection unconditionally. Idempotent.
func (s *Session) Close() {
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.log.Debugw("close", "err", err)
		}
		s.conn = nil
	}
	s.state = Disconnected
}

// fault records transport loss. The session stays Faulted until Close
// brings it back to Disconnected.
func (s *Session) fault(err error) {
	s.log.Warnw("transport lost", "err", err)
	s.state = Faulted
}
