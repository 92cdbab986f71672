// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ember-works/pyrostat/internal/config"
	"github.com/ember-works/pyrostat/internal/link"
	"github.com/ember-works/pyrostat/internal/logger"
	"github.com/ember-works/pyrostat/internal/session"
	"github.com/ember-works/pyrostat/pkg/tison"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pyrostat",
	Short: "BLE diesel heater bridge",
	Long: `Pyrostat - a protocol bridge for Vevor-style BLE diesel heaters.

Polls the heater over a serial BLE module or a websocket BLE gateway,
publishes state to MQTT with Home Assistant auto-discovery, and enforces
over-temperature power limits with a timed command lockout.

Configuration is read from pyrostat.yaml (or --config), with PYROSTAT_*
environment overrides. For websocket gateway authentication, the password
may be left out of the file and provided via PYROSTAT_TRANSPORT_PASSWORD
or an interactive prompt.`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override configured log level (debug, info, warn, error)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and builds the logger every subcommand uses.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return cfg, logger.New(level), nil
}

// buildLink constructs the configured transport and the address to dial.
func buildLink(cfg *config.Config) (link.Link, string, error) {
	switch cfg.Transport.Kind {
	case config.TransportSerial:
		return &link.SerialLink{Baud: cfg.Transport.Baud}, cfg.Transport.Port, nil
	case config.TransportWebsocket:
		password := cfg.Transport.Password
		if cfg.Transport.Username != "" && password == "" {
			var err error
			if password, err = promptPassword(); err != nil {
				return nil, "", err
			}
		}
		return &link.WebsocketLink{
			URL:        cfg.Transport.URL,
			Username:   cfg.Transport.Username,
			Password:   password,
			SkipVerify: cfg.Transport.SkipVerify,
		}, cfg.Heater.Address, nil
	}
	return nil, "", fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
}

// buildSession wires a session over the configured transport.
func buildSession(cfg *config.Config, log *logger.Logger) (*session.Session, error) {
	dialect, err := cfg.HeaterDialect()
	if err != nil {
		return nil, err
	}
	lk, address, err := buildLink(cfg)
	if err != nil {
		return nil, err
	}
	return session.New(lk, address, session.Config{
		Passkey: cfg.Heater.Passkey,
		Dialect: dialect,
	}, log), nil
}

// promptPassword reads the gateway password without echo.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Gateway password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(passwordBytes), nil
}

// pollOnce is the shared one-shot: open, request a status, close.
func pollOnce(cfg *config.Config, log *logger.Logger) (*tison.Status, error) {
	sess, err := buildSession(cfg, log)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	ctx := rootCmd.Context()
	if err := sess.Open(ctx); err != nil {
		return nil, err
	}
	return sess.Request(ctx, tison.GetStatus())
}
