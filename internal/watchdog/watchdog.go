// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

// Package watchdog tracks poll health. Two independent signals demand a
// connection recycle: a run of consecutive poll failures, and a stale
// last-good-status timestamp. Both answer through the same Unhealthy state
// so the loop has exactly one recovery path.
package watchdog

import "time"

// Defaults applied when a Config field is unset.
const (
	DefaultMaxFailures = 3
	DefaultStaleAfter  = 30 * time.Second
)

// Health is the watchdog verdict.
type Health int

const (
	Healthy Health = iota
	Unhealthy
)

// String returns the verdict name.
func (h Health) String() string {
	if h == Unhealthy {
		return "unhealthy"
	}
	return "healthy"
}

// Config parameterizes a watchdog.
type Config struct {
	MaxFailures int           // consecutive failures before Unhealthy
	StaleAfter  time.Duration // max age of the last good status
}

// Watchdog counts consecutive poll failures and tracks result freshness.
// Not safe for concurrent use; it lives on the bridge loop goroutine.
type Watchdog struct {
	cfg      Config
	failures int
	lastGood time.Time
}

// New constructs a healthy watchdog. The freshness clock starts at now so
// a link that never yields a single status still goes stale.
func New(cfg Config, now time.Time) *Watchdog {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &Watchdog{cfg: cfg, lastGood: now}
}

// OnSuccess records a good poll: the failure run resets and the freshness
// timestamp advances.
func (w *Watchdog) OnSuccess(now time.Time) {
	w.failures = 0
	w.lastGood = now
}

// OnFailure records a failed poll. The counter saturates at the
// configured ceiling rather than growing without bound.
func (w *Watchdog) OnFailure() {
	if w.failures < w.cfg.MaxFailures {
		w.failures++
	}
}

// Health reports the failure-run verdict.
func (w *Watchdog) Health() Health {
	if w.failures >= w.cfg.MaxFailures {
		return Unhealthy
	}
	return Healthy
}

// CheckStale reports whether the last good status is older than the
// staleness ceiling.
func (w *Watchdog) CheckStale(now time.Time) bool {
	return now.Sub(w.lastGood) > w.cfg.StaleAfter
}

// Failures returns the current consecutive failure count.
func (w *Watchdog) Failures() int {
	return w.failures
}

// Reset returns the watchdog to its initial healthy state, as after a
// successful reconnect.
func (w *Watchdog) Reset(now time.Time) {
	w.failures = 0
	w.lastGood = now
}
