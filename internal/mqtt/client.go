// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

// Package mqtt publishes heater state to a broker and feeds operator
// commands back into the bridge loop. Topic layout and Home Assistant
// auto-discovery follow the <prefix>/<device-id>/<entity>/{state,cmd,av}
// convention, with one availability topic per controllable entity.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ember-works/pyrostat/internal/bridge"
	"github.com/ember-works/pyrostat/internal/logger"
	"github.com/ember-works/pyrostat/internal/safety"
	"github.com/ember-works/pyrostat/pkg/tison"
)

// ErrUnsupportedCommand rejects an inbound message that maps to no heater
// command.
var ErrUnsupportedCommand = errors.New("mqtt: unsupported command")

// submitTimeout bounds how long a broker command may wait on the loop.
const submitTimeout = 15 * time.Second

// Commander accepts operator commands for admission and dispatch. The
// bridge loop satisfies it.
type Commander interface {
	Submit(ctx context.Context, cmd tison.Command) error
}

// Config parameterizes the client.
type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string
	QoS      byte

	Prefix          string // base topic prefix, e.g. "pyrostat"
	DiscoveryPrefix string // HA discovery prefix, e.g. "homeassistant"

	DeviceID     string // stable device identifier, e.g. "BYD-AABBCCDDEEFF"
	DeviceName   string
	Manufacturer string
	Model        string
}

// Client is the broker-facing collaborator. It implements bridge.Sink.
type Client struct {
	cfg  Config
	log  *logger.Logger
	cmds Commander
	cli  paho.Client
	base string
}

// New constructs a client; Start connects it.
func New(cfg Config, cmds Commander, log *logger.Logger) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = cfg.DeviceID
	}
	return &Client{
		cfg:  cfg,
		log:  log.Named("mqtt"),
		cmds: cmds,
		base: strings.TrimSuffix(cfg.Prefix, "/") + "/" + cfg.DeviceID,
	}
}

// Start connects to the broker. Subscription and discovery run from the
// on-connect handler so they are re-established after every reconnect.
func (c *Client) Start() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warnw("broker connection lost", "err", err)
	})

	c.cli = paho.NewClient(opts)
	if token := c.cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to broker %s: %w", c.cfg.Broker, token.Error())
	}
	c.log.Infow("connected to broker", "broker", c.cfg.Broker, "client_id", c.cfg.ClientID)
	return nil
}

// Stop disconnects from the broker. Safe to call without Start.
func (c *Client) Stop() {
	if c.cli != nil && c.cli.IsConnected() {
		c.cli.Disconnect(1000)
		c.log.Infow("disconnected from broker")
	}
}

func (c *Client) onConnect(client paho.Client) {
	topic := c.base + "/+/cmd"
	if token := client.Subscribe(topic, c.cfg.QoS, c.onMessage); token.Wait() && token.Error() != nil {
		c.log.Errorw("subscribing to command topic", "topic", topic, "err", token.Error())
		return
	}
	c.log.Infow("subscribed", "topic", topic)
	c.publishDiscovery()
}

// topic returns <prefix>/<device-id>/<entity>/<leaf>.
func (c *Client) topic(entity, leaf string) string {
	return c.base + "/" + entity + "/" + leaf
}

// parseCommand maps an entity name and raw payload to a heater command.
func parseCommand(entity string, payload []byte) (tison.Command, error) {
	switch entity {
	case "start":
		return tison.StartStop(true), nil
	case "stop":
		return tison.StartStop(false), nil
	case "level", "temperature":
		// In temperature mode the level command carries the setpoint.
		n, err := strconv.Atoi(strings.TrimSpace(string(payload)))
		if err != nil {
			return tison.Command{}, fmt.Errorf("%w: %s payload %q", ErrUnsupportedCommand, entity, payload)
		}
		return tison.SetLevel(n), nil
	case "mode":
		switch strings.TrimSpace(string(payload)) {
		case modeOptions[0]:
			return tison.SetMode(tison.ModeLevel), nil
		case modeOptions[1]:
			return tison.SetMode(tison.ModeTemperature), nil
		}
		return tison.Command{}, fmt.Errorf("%w: mode payload %q", ErrUnsupportedCommand, payload)
	}
	return tison.Command{}, fmt.Errorf("%w: entity %q", ErrUnsupportedCommand, entity)
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	parts := strings.Split(msg.Topic(), "/")
	if len(parts) < 2 || parts[len(parts)-1] != "cmd" {
		return
	}
	entity := parts[len(parts)-2]

	cmd, err := parseCommand(entity, msg.Payload())
	if err != nil {
		c.log.Warnw("command rejected", "topic", msg.Topic(), "err", err)
		c.publish(c.topic("status", "state"), err.Error())
		return
	}

	c.log.Infow("command received", "cmd", cmd.String())
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := c.cmds.Submit(ctx, cmd); err != nil {
		c.log.Warnw("command not accepted", "cmd", cmd.String(), "err", err)
		c.publish(c.topic("status", "state"), rejectionText(err))
		return
	}
}

// rejectionText renders an admission or dispatch failure for the status
// entity, mirroring what the log says.
func rejectionText(err error) string {
	var lockout *safety.LockoutActiveError
	if errors.As(err, &lockout) {
		return fmt.Sprintf("OVERHEAT LOCKOUT: %ds remaining", int(lockout.Remaining.Seconds()))
	}
	var ceiling *safety.CeilingExceededError
	if errors.As(err, &ceiling) {
		return fmt.Sprintf("Level %d refused (temperature limit: %d)", ceiling.Requested, ceiling.Ceiling)
	}
	return "Command failed: " + err.Error()
}

// Publish implements bridge.Sink: one snapshot per poll cycle becomes a
// set of state and availability publishes.
func (c *Client) Publish(snap bridge.Snapshot) {
	if c.cli == nil || !c.cli.IsConnected() {
		return
	}

	c.publish(c.topic("status", "state"), statusText(snap))

	st := snap.Status
	avail := availabilityFor(snap)
	for entity, online := range avail {
		state := "offline"
		if online {
			state = "online"
		}
		c.publish(c.topic(entity, "av"), state)
	}
	if st == nil {
		return
	}

	c.publish(c.topic("room_temperature", "state"), strconv.Itoa(st.CabinTemp))
	if !st.Partial && st.Mode != tison.ModeUnknown {
		c.publish(c.topic("mode", "state"), modeOption(st.Mode))
	}
	if st.Step > tison.StepStandby && !st.Partial {
		c.publish(c.topic("voltage", "state"), strconv.FormatFloat(st.Voltage, 'f', 1, 64))
		c.publish(c.topic("altitude", "state"), strconv.Itoa(int(st.Altitude)))
		c.publish(c.topic("heater_temperature", "state"), strconv.Itoa(st.CaseTemp))
		c.publish(c.topic("level", "state"), strconv.Itoa(st.Level))
		if st.Mode == tison.ModeTemperature {
			c.publish(c.topic("temperature", "state"), strconv.Itoa(st.TargetTemp))
		}
	}
}

// statusText is the human-readable line on the status entity: running
// step, fault suffix, then any degraded system state in brackets.
func statusText(snap bridge.Snapshot) string {
	if snap.Status == nil {
		reason := snap.Reason
		if reason == "" {
			reason = "unavailable"
		}
		return "Unavailable [" + reason + "]"
	}

	msg := snap.Status.Step.String()
	if snap.Status.Faulted() {
		msg = fmt.Sprintf("%s (%s)", msg, snap.Status.ErrorText())
	}
	switch snap.Safety.Kind {
	case safety.LockedOut:
		msg = fmt.Sprintf("%s [OVERHEAT LOCKOUT until %s]", msg, snap.Safety.Until.Format("15:04:05"))
	case safety.Limited:
		msg = fmt.Sprintf("%s [limited to level %d]", msg, snap.Safety.Ceiling)
	}
	if snap.Reason != "" {
		msg = fmt.Sprintf("%s [%s]", msg, snap.Reason)
	}
	return msg
}

// availabilityFor decides which controls HA may offer given the snapshot.
// Start only when stopped, stop only while the burner can be stopped, the
// level number only in level mode outside cooldown, the temperature
// number only in temperature mode.
func availabilityFor(snap bridge.Snapshot) map[string]bool {
	avail := map[string]bool{
		"start":       false,
		"stop":        false,
		"level":       false,
		"temperature": false,
		"mode":        false,
	}
	st := snap.Status
	if st == nil || st.Partial {
		return avail
	}

	if !st.Running {
		avail["start"] = true
	} else if st.Step > tison.StepStandby && st.Step < tison.StepCooldown {
		avail["stop"] = true
	}

	avail["mode"] = st.Mode != tison.ModeUnknown
	if st.Step < tison.StepCooldown {
		avail["level"] = st.Mode == tison.ModeLevel
	}
	avail["temperature"] = st.Mode == tison.ModeTemperature
	return avail
}

// modeOption maps a control mode to its HA select option.
func modeOption(m tison.ControlMode) string {
	if m == tison.ModeTemperature {
		return modeOptions[1]
	}
	return modeOptions[0]
}

func (c *Client) publish(topic, payload string) {
	token := c.cli.Publish(topic, c.cfg.QoS, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			c.log.Debugw("publish failed", "topic", topic, "err", token.Error())
		}
	}()
}

func (c *Client) publishRetained(topic string, payload []byte) {
	if token := c.cli.Publish(topic, c.cfg.QoS, true, payload); token.Wait() && token.Error() != nil {
		c.log.Warnw("publish failed", "topic", topic, "err", token.Error())
	}
}
