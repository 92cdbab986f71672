// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

// Package bridge runs the process-wide control loop. One goroutine owns
// the session, watchdog and safety governor: each cycle evaluates the
// lockout and staleness clocks, polls the heater once, drains at most one
// pending operator command through the admission check, and emits exactly
// one snapshot to the sink. Reconnection blocks the loop; nothing polls or
// admits commands mid-reconnect.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/ember-works/pyrostat/internal/logger"
	"github.com/ember-works/pyrostat/internal/safety"
	"github.com/ember-works/pyrostat/internal/session"
	"github.com/ember-works/pyrostat/internal/watchdog"
	"github.com/ember-works/pyrostat/pkg/tison"
)

// Snapshot is what the loop hands the sink after every completed cycle.
// Status is nil when the cycle produced no decodable reading, with Reason
// saying why.
type Snapshot struct {
	Status *tison.Status
	Reason string
	Safety safety.Snapshot
	Link   session.LinkState
	At     time.Time
}

// Sink consumes one Snapshot per cycle. Called on the loop goroutine, so
// implementations must not block for long.
type Sink interface {
	Publish(Snapshot)
}

// CommandRequest carries one inbound command and the channel its verdict
// is delivered on. Reply must have capacity 1.
type CommandRequest struct {
	Cmd   tison.Command
	Reply chan error
}

// Config parameterizes the loop.
type Config struct {
	PollInterval   time.Duration // inter-cycle sleep
	ReconnectDelay time.Duration // fixed delay between outer connect rounds
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	return c
}

// Bridge is the control loop. Construct once, then Run on its own
// goroutine; everything else talks to it through Submit and the sink.
type Bridge struct {
	cfg  Config
	sess *session.Session
	dog  *watchdog.Watchdog
	gov  *safety.Governor
	sink Sink
	log  *logger.Logger

	cmds chan CommandRequest
	now  func() time.Time
}

// New wires the loop together.
func New(cfg Config, sess *session.Session, dog *watchdog.Watchdog, gov *safety.Governor, sink Sink, log *logger.Logger) *Bridge {
	return &Bridge{
		cfg:  cfg.withDefaults(),
		sess: sess,
		dog:  dog,
		gov:  gov,
		sink: sink,
		log:  log.Named("bridge"),
		cmds: make(chan CommandRequest, 8),
		now:  time.Now,
	}
}

// Submit queues one command and waits for its verdict: nil once the
// heater accepted it, an admission error from the governor, or a session
// error. During a reconnect the queue fills and submission blocks until
// the loop drains it or ctx expires.
func (b *Bridge) Submit(ctx context.Context, cmd tison.Command) error {
	req := CommandRequest{Cmd: cmd, Reply: make(chan error, 1)}
	select {
	case b.cmds <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the loop until ctx is cancelled: connect with the session's
// bounded retry budget, poll until the watchdog demands a recycle or the
// transport drops, tear down, wait the fixed delay, connect again. The
// outer round never gives up on its own.
func (b *Bridge) Run(ctx context.Context) error {
	defer b.sess.Close()

	for {
		if err := b.sess.Open(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Warnw("connect round failed", "err", err)
			b.publish(nil, "connection failed")
			if !b.sleep(ctx, b.cfg.ReconnectDelay) {
				return ctx.Err()
			}
			continue
		}

		b.dog.Reset(b.now())
		b.cycle(ctx)

		b.sess.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.publish(nil, "reconnecting")
		if !b.sleep(ctx, b.cfg.ReconnectDelay) {
			return ctx.Err()
		}
	}
}

// cycle polls until a recycle is due or ctx ends.
func (b *Bridge) cycle(ctx context.Context) {
	for {
		now := b.now()

		// Clock-driven transitions run synchronously before anything
		// else touches governor or watchdog state this cycle.
		b.gov.Tick(now)
		if b.dog.CheckStale(now) {
			b.log.Warnw("status stale, recycling session")
			return
		}
		if b.dog.Health() == watchdog.Unhealthy {
			b.log.Warnw("poll failure run, recycling session", "failures", b.dog.Failures())
			return
		}

		st, ok := b.poll(ctx)
		if !ok {
			b.publish(nil, "disconnected")
			return
		}

		if !b.command(ctx, b.now()) {
			b.publish(st, "disconnected")
			return
		}

		if st != nil {
			b.publish(st, "")
		} else {
			b.publish(nil, "poll failed")
		}

		if ctx.Err() != nil {
			return
		}
		if !b.sleep(ctx, b.cfg.PollInterval) {
			return
		}
	}
}

// poll performs the cycle's status request and routes the outcome. The
// returned bool is false when the transport dropped, which bypasses the
// failure counter and recycles directly.
func (b *Bridge) poll(ctx context.Context) (*tison.Status, bool) {
	st, err := b.sess.Request(ctx, tison.GetStatus())
	now := b.now()

	switch {
	case err == nil:
		b.dog.OnSuccess(now)
		for _, anomaly := range tison.ValidateStatus(st) {
			b.log.Debugw("implausible status field", "anomaly", anomaly.Message)
		}
		if forced := b.gov.Observe(st, now); forced != nil {
			if !b.force(ctx, *forced) {
				return st, false
			}
		}
		return st, true

	case errors.Is(err, session.ErrDisconnected):
		b.log.Warnw("poll disconnected")
		return nil, false

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, true

	default:
		// Timeouts and undecodable replies both count against the run.
		b.log.Debugw("poll failed", "err", err)
		b.dog.OnFailure()
		return nil, true
	}
}

// force sends a governor-originated command. It skips admission, which
// only vets operator traffic.
func (b *Bridge) force(ctx context.Context, cmd tison.Command) bool {
	b.log.Warnw("sending safety override", "cmd", cmd.String())
	if _, err := b.sess.Request(ctx, cmd); errors.Is(err, session.ErrDisconnected) {
		return false
	}
	return true
}

// command drains at most one pending operator request. Returns false on
// transport loss.
func (b *Bridge) command(ctx context.Context, now time.Time) bool {
	var req CommandRequest
	select {
	case req = <-b.cmds:
	default:
		return true
	}

	if err := b.gov.Admit(req.Cmd, now); err != nil {
		b.log.Warnw("command rejected", "cmd", req.Cmd.String(), "err", err)
		req.Reply <- err
		return true
	}

	_, err := b.sess.Request(ctx, req.Cmd)
	req.Reply <- err
	if errors.Is(err, session.ErrDisconnected) {
		return false
	}
	if err != nil {
		b.log.Warnw("command failed", "cmd", req.Cmd.String(), "err", err)
	} else {
		b.log.Infow("command sent", "cmd", req.Cmd.String())
	}
	return true
}

// publish emits the cycle's snapshot.
func (b *Bridge) publish(st *tison.Status, reason string) {
	if b.sink == nil {
		return
	}
	b.sink.Publish(Snapshot{
		Status: st,
		Reason: reason,
		Safety: b.gov.Snapshot(),
		Link:   b.sess.State(),
		At:     b.now(),
	})
}

// sleep waits d or until ctx ends, reporting whether the full delay
// elapsed.
func (b *Bridge) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
