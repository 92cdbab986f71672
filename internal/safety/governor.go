// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

// Package safety constrains outbound commands based on the heater's case
// temperature. The governor degrades the admissible power level in bands
// as the heat exchanger climbs, forces level 1 and a timed command lockout
// at the critical threshold, and vets every operator command before it
// reaches the link. It runs entirely on the bridge loop goroutine and is
// prioritized over connection state: a lockout survives reconnects.
package safety

import (
	"fmt"
	"time"

	"github.com/ember-works/pyrostat/internal/logger"
	"github.com/ember-works/pyrostat/pkg/tison"
)

// Defaults applied when a Config field is unset.
const (
	DefaultCriticalTemp    = 256
	DefaultLockout         = 60 * time.Second
	DefaultExtendedLockout = 5 * time.Minute
)

// LockoutActiveError rejects a power-affecting command during a lockout.
type LockoutActiveError struct {
	Remaining time.Duration
}

func (e *LockoutActiveError) Error() string {
	return fmt.Sprintf("safety: lockout active, %s remaining", e.Remaining.Round(time.Second))
}

// CeilingExceededError rejects a SetLevel above the current band ceiling.
type CeilingExceededError struct {
	Requested int
	Ceiling   int
}

func (e *CeilingExceededError) Error() string {
	return fmt.Sprintf("safety: level %d exceeds ceiling %d", e.Requested, e.Ceiling)
}

// StateKind names the governor state.
type StateKind int

const (
	Normal StateKind = iota
	Limited
	LockedOut
)

// String returns the state name.
func (k StateKind) String() string {
	switch k {
	case Limited:
		return "limited"
	case LockedOut:
		return "locked_out"
	}
	return "normal"
}

// Snapshot is a copy of the governor state for publishing. Since, Until
// and SavedLevel are meaningful only while LockedOut.
type Snapshot struct {
	Kind       StateKind
	Ceiling    int
	Since      time.Time
	Until      time.Time
	SavedLevel int
}

// Config parameterizes the governor.
type Config struct {
	// Enabled gates all limiting. When false the governor reports Normal
	// and admits everything.
	Enabled bool

	CriticalTemp    int           // °C at which lockout engages
	Lockout         time.Duration // initial lockout length
	ExtendedLockout time.Duration // absolute re-arm on a repeated critical reading
}

func (c Config) withDefaults() Config {
	if c.CriticalTemp <= 0 {
		c.CriticalTemp = DefaultCriticalTemp
	}
	if c.Lockout <= 0 {
		c.Lockout = DefaultLockout
	}
	if c.ExtendedLockout <= 0 {
		c.ExtendedLockout = DefaultExtendedLockout
	}
	return c
}

// Governor is the over-temperature state machine. Not safe for concurrent
// use; the bridge loop is its single writer and admission checks run on
// the same goroutine against the most recently processed status.
type Governor struct {
	cfg Config
	log *logger.Logger

	kind    StateKind
	ceiling int

	since      time.Time
	until      time.Time
	savedLevel int

	lastTemp  int
	lastLevel int
}

// New constructs a governor in the Normal state.
func New(cfg Config, log *logger.Logger) *Governor {
	return &Governor{
		cfg:     cfg.withDefaults(),
		log:     log.Named("safety"),
		kind:    Normal,
		ceiling: tison.MaxLevel,
	}
}

// ceilingFor maps a case temperature below the critical threshold to its
// band ceiling.
func ceilingFor(temp int) int {
	switch {
	case temp < 235:
		return tison.MaxLevel
	case temp <= 239:
		return 10
	case temp <= 244:
		return 8
	case temp <= 249:
		return 6
	case temp <= 252:
		return 4
	default:
		return 2
	}
}

// Observe feeds one decoded status into the state machine and returns a
// corrective command to send immediately, or nil. A critical reading
// returns the forced SetLevel(1) on lockout entry; a Limited-band status
// whose active level sits above the ceiling returns SetLevel(ceiling).
func (g *Governor) Observe(st *tison.Status, now time.Time) *tison.Command {
	if !g.cfg.Enabled {
		return nil
	}

	g.lastTemp = st.CaseTemp
	if !st.Partial {
		g.lastLevel = st.Level
	}

	// The heater's own overheat fault code counts as critical even when
	// the reported temperature reads below the threshold.
	if st.CaseTemp >= g.cfg.CriticalTemp || st.Overheating() {
		return g.onCritical(now)
	}

	g.expire(now)
	if g.kind == LockedOut {
		return nil
	}

	g.ceiling = ceilingFor(st.CaseTemp)
	if g.ceiling >= tison.MaxLevel {
		g.kind = Normal
		return nil
	}

	if g.kind != Limited {
		g.log.Warnw("power limited", "case_temp", st.CaseTemp, "ceiling", g.ceiling)
	}
	g.kind = Limited

	// The heater keeps running above the ceiling until told otherwise.
	if !st.Partial && st.Level > g.ceiling {
		g.log.Warnw("reducing level to ceiling", "level", st.Level, "ceiling", g.ceiling)
		cmd := tison.SetLevel(g.ceiling)
		return &cmd
	}
	return nil
}

// onCritical enters the lockout or re-arms an active one. Re-arming sets
// an absolute new expiry; it can never shorten the remaining lockout.
func (g *Governor) onCritical(now time.Time) *tison.Command {
	if g.kind == LockedOut {
		extended := now.Add(g.cfg.ExtendedLockout)
		if extended.After(g.until) {
			g.until = extended
			g.log.Warnw("lockout extended", "case_temp", g.lastTemp, "until", g.until)
		}
		return nil
	}

	g.savedLevel = g.lastLevel
	g.kind = LockedOut
	g.ceiling = tison.MinLevel
	g.since = now
	g.until = now.Add(g.cfg.Lockout)
	g.log.Errorw("critical temperature, forcing level 1",
		"case_temp", g.lastTemp, "saved_level", g.savedLevel, "until", g.until)

	cmd := tison.SetLevel(tison.MinLevel)
	return &cmd
}

// Tick evaluates lockout expiry against the current time. It runs
// synchronously at the top of each poll cycle; there is no timer goroutine
// to race an admission check.
func (g *Governor) Tick(now time.Time) {
	g.expire(now)
}

// expire leaves LockedOut once the expiry passes, landing in the band the
// last reading calls for. The power level stays wherever the forced
// SetLevel(1) left it; savedLevel is never restored automatically.
func (g *Governor) expire(now time.Time) {
	if g.kind != LockedOut || now.Before(g.until) {
		return
	}
	g.ceiling = ceilingFor(g.lastTemp)
	if g.ceiling >= tison.MaxLevel {
		g.kind = Normal
	} else {
		g.kind = Limited
	}
	g.log.Infow("lockout expired", "state", g.kind.String(), "ceiling", g.ceiling)
}

// Admit vets an operator command against the current state. StartStop is
// always admitted so the heater can be shut down; GetStatus is harmless.
// During a lockout every other command is rejected with the remaining
// time; outside one, SetLevel is rejected (never clamped) when it exceeds
// the band ceiling.
func (g *Governor) Admit(cmd tison.Command, now time.Time) error {
	if !g.cfg.Enabled {
		return nil
	}

	switch cmd.Kind {
	case tison.KindStartStop, tison.KindGetStatus:
		return nil
	}

	if g.kind == LockedOut {
		remaining := g.until.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
		return &LockoutActiveError{Remaining: remaining}
	}

	if cmd.Kind == tison.KindSetLevel && cmd.Arg > g.ceiling {
		return &CeilingExceededError{Requested: cmd.Arg, Ceiling: g.ceiling}
	}
	return nil
}

// Snapshot copies the current state for the status sink.
func (g *Governor) Snapshot() Snapshot {
	s := Snapshot{Kind: g.kind, Ceiling: g.ceiling}
	if g.kind == LockedOut {
		s.Since = g.since
		s.Until = g.until
		s.SavedLevel = g.savedLevel
	}
	return s
}
