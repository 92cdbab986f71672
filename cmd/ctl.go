// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ember-works/pyrostat/internal/safety"
	"github.com/ember-works/pyrostat/pkg/tison"
)

var ctlCmd = &cobra.Command{
	Use:   "ctl <start|stop|level N|mode MODE>",
	Short: "Send one command to the heater",
	Long: `Send a single control command and print the status the heater answers
with. The command passes the same safety admission check the daemon
applies: a fresh status is read first, and a level above the current
temperature band's ceiling is refused rather than clamped.

Commands:
  start       start the heater
  stop        stop the heater
  level N     set power level 1..36
  mode MODE   set control mode: level or temperature`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCtl,
}

func init() {
	rootCmd.AddCommand(ctlCmd)
}

// parseCtlArgs maps the CLI arguments to a heater command.
func parseCtlArgs(args []string) (tison.Command, error) {
	switch args[0] {
	case "start":
		return tison.StartStop(true), nil
	case "stop":
		return tison.StartStop(false), nil
	case "level":
		if len(args) != 2 {
			return tison.Command{}, fmt.Errorf("level needs a value, e.g. 'ctl level 8'")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return tison.Command{}, fmt.Errorf("invalid level %q", args[1])
		}
		return tison.SetLevel(n), nil
	case "mode":
		if len(args) != 2 {
			return tison.Command{}, fmt.Errorf("mode needs a value: level or temperature")
		}
		switch args[1] {
		case "level":
			return tison.SetMode(tison.ModeLevel), nil
		case "temperature":
			return tison.SetMode(tison.ModeTemperature), nil
		}
		return tison.Command{}, fmt.Errorf("unknown mode %q (level, temperature)", args[1])
	}
	return tison.Command{}, fmt.Errorf("unknown command %q", args[0])
}

func runCtl(cmd *cobra.Command, args []string) error {
	req, err := parseCtlArgs(args)
	if err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	sess, err := buildSession(cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := cmd.Context()
	if err := sess.Open(ctx); err != nil {
		return err
	}

	// Admission runs against a fresh reading, the same way the daemon
	// vets commands against the most recent poll.
	gov := safety.New(safety.Config{
		Enabled:         cfg.Safety.Enabled,
		CriticalTemp:    cfg.Safety.CriticalTemp,
		Lockout:         cfg.Safety.Lockout,
		ExtendedLockout: cfg.Safety.ExtendedLockout,
	}, log)

	st, err := sess.Request(ctx, tison.GetStatus())
	if err != nil {
		return fmt.Errorf("reading status before command: %w", err)
	}
	now := time.Now()
	if forced := gov.Observe(st, now); forced != nil {
		if _, err := sess.Request(ctx, *forced); err != nil {
			return fmt.Errorf("sending safety override: %w", err)
		}
		fmt.Printf("case temperature %d°C critical, forced %s\n", st.CaseTemp, forced)
	}
	if err := gov.Admit(req, now); err != nil {
		return fmt.Errorf("refused: %w", err)
	}

	reply, err := sess.Request(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("sent %s\n", req)
	fmt.Print(tison.FormatStatus(reply))
	return nil
}
