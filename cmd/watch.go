// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ember-works/pyrostat/internal/bridge"
	"github.com/ember-works/pyrostat/internal/logger"
	"github.com/ember-works/pyrostat/internal/safety"
	"github.com/ember-works/pyrostat/internal/watchdog"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive TUI for monitoring and controlling the heater",
	Long: `Watch the heater in an interactive terminal UI: live status panel,
safety governor state, event log, and a spinner while the session
reconnects. The same poll loop, watchdog and safety admission the daemon
uses run underneath; no MQTT broker is involved.

Keys:
  s        start the heater
  x        stop the heater
  + / -    raise / lower the power level
  m        toggle control mode
  q        quit`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// programSink forwards loop snapshots into the TUI event stream.
type programSink struct {
	p *tea.Program
}

func (s *programSink) Publish(snap bridge.Snapshot) {
	if s.p == nil {
		return
	}
	s.p.Send(snapshotMsg(snap))
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	// The TUI owns the terminal; loop internals stay quiet.
	log := logger.Nop()

	sess, err := buildSession(cfg, log)
	if err != nil {
		return err
	}

	dog := watchdog.New(watchdog.Config{
		MaxFailures: cfg.Watchdog.MaxFailures,
		StaleAfter:  cfg.Watchdog.StaleAfter,
	}, time.Now())
	gov := safety.New(safety.Config{
		Enabled:         cfg.Safety.Enabled,
		CriticalTemp:    cfg.Safety.CriticalTemp,
		Lockout:         cfg.Safety.Lockout,
		ExtendedLockout: cfg.Safety.ExtendedLockout,
	}, log)

	sink := &programSink{}
	loop := bridge.New(bridge.Config{
		PollInterval: cfg.Heater.PollInterval,
	}, sess, dog, gov, sink, log)

	m := initialWatchModel(cfg.DeviceID(), cfg.Transport.Kind, loop)
	p := tea.NewProgram(m, tea.WithAltScreen())
	sink.p = p

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-loopDone
		return fmt.Errorf("TUI error: %v", err)
	}
	cancel()
	<-loopDone
	return nil
}
