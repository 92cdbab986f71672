// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ember-works/pyrostat/internal/bridge"
	"github.com/ember-works/pyrostat/internal/mqtt"
	"github.com/ember-works/pyrostat/internal/safety"
	"github.com/ember-works/pyrostat/internal/watchdog"
	"github.com/ember-works/pyrostat/pkg/tison"
)

// commanderFunc adapts a closure to mqtt.Commander, breaking the
// construction cycle between the broker client and the loop it feeds.
type commanderFunc func(context.Context, tison.Command) error

func (f commanderFunc) Submit(ctx context.Context, c tison.Command) error {
	return f(ctx, c)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the heater-to-MQTT bridge daemon",
	Long: `Run the bridge: poll the heater on the configured interval, publish
state and Home Assistant discovery to the MQTT broker, accept commands on
the command topics, and keep the safety governor and session watchdog in
the loop. Runs until SIGINT or SIGTERM.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	sess, err := buildSession(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var loop *bridge.Bridge
	mq := mqtt.New(mqtt.Config{
		Broker:          cfg.MQTT.Broker,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		ClientID:        cfg.MQTT.ClientID,
		QoS:             cfg.MQTT.QoS,
		Prefix:          cfg.MQTT.Prefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		DeviceID:        cfg.DeviceID(),
		DeviceName:      cfg.Device.Name,
		Manufacturer:    cfg.Device.Manufacturer,
		Model:           cfg.Device.Model,
	}, commanderFunc(func(ctx context.Context, c tison.Command) error {
		return loop.Submit(ctx, c)
	}), log)

	loop = bridge.New(bridge.Config{
		PollInterval: cfg.Heater.PollInterval,
	}, sess, dog, gov, mq, log)

	if err := mq.Start(); err != nil {
		return err
	}
	defer mq.Stop()

	log.Infow("bridge starting",
		"device", cfg.DeviceID(), "transport", cfg.Transport.Kind,
		"poll_interval", cfg.Heater.PollInterval, "safety", cfg.Safety.Enabled)

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Infow("bridge stopped")
		return nil
	}
	return err
}
