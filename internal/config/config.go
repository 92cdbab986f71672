// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

// Package config loads and validates the bridge configuration from a YAML
// file with PYROSTAT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ember-works/pyrostat/pkg/tison"
)

// Transport kinds for the peripheral link.
const (
	TransportSerial    = "serial"
	TransportWebsocket = "websocket"
)

// Heater holds the device-facing settings.
type Heater struct {
	Address      string        `mapstructure:"address"`       // BLE MAC (serial: ignored by the link, still used for the device ID)
	Passkey      int           `mapstructure:"passkey"`       // 0..9999
	Dialect      string        `mapstructure:"dialect"`       // v1, v2, v3
	PollInterval time.Duration `mapstructure:"poll_interval"` // status poll cadence
}

// Transport selects and parameterizes the peripheral link implementation.
type Transport struct {
	Kind         string `mapstructure:"kind"`          // serial or websocket
	Port         string `mapstructure:"port"`          // serial device path
	Baud         int    `mapstructure:"baud"`          // serial baud rate
	URL          string `mapstructure:"url"`           // gateway ws:// or wss:// URL
	Username     string `mapstructure:"username"`      // gateway basic auth
	Password     string `mapstructure:"password"`      // gateway basic auth (or prompt)
	SkipVerify   bool   `mapstructure:"no_ssl_verify"` // wss:// only
}

// MQTT holds the broker-facing settings.
type MQTT struct {
	Broker          string `mapstructure:"broker"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	ClientID        string `mapstructure:"client_id"`
	Prefix          string `mapstructure:"prefix"`
	DiscoveryPrefix string `mapstructure:"discovery_prefix"`
	QoS             byte   `mapstructure:"qos"`
}

// Device holds the identity published via MQTT discovery.
type Device struct {
	Name         string `mapstructure:"name"`
	Manufacturer string `mapstructure:"manufacturer"`
	Model        string `mapstructure:"model"`
}

// Safety parameterizes the temperature governor.
type Safety struct {
	Enabled         bool          `mapstructure:"enabled"`
	CriticalTemp    int           `mapstructure:"critical_temp"`
	Lockout         time.Duration `mapstructure:"lockout"`
	ExtendedLockout time.Duration `mapstructure:"extended_lockout"`
}

// Watchdog parameterizes session health detection.
type Watchdog struct {
	MaxFailures int           `mapstructure:"max_failures"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
}

// Config is the complete bridge configuration.
type Config struct {
	Heater    Heater    `mapstructure:"heater"`
	Transport Transport `mapstructure:"transport"`
	MQTT      MQTT      `mapstructure:"mqtt"`
	Device    Device    `mapstructure:"device"`
	Safety    Safety    `mapstructure:"safety"`
	Watchdog  Watchdog  `mapstructure:"watchdog"`
	LogLevel  string    `mapstructure:"log_level"`
}

var macRe = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// setDefaults registers the default values on a viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("heater.passkey", 1234)
	v.SetDefault("heater.dialect", "v1")
	v.SetDefault("heater.poll_interval", 2*time.Second)

	v.SetDefault("transport.kind", TransportSerial)
	v.SetDefault("transport.baud", 115200)

	v.SetDefault("mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("mqtt.prefix", "pyrostat")
	v.SetDefault("mqtt.discovery_prefix", "homeassistant")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("device.name", "Diesel Heater")
	v.SetDefault("device.manufacturer", "Vevor")
	v.SetDefault("device.model", "BYD")

	v.SetDefault("safety.enabled", true)
	v.SetDefault("safety.critical_temp", 256)
	v.SetDefault("safety.lockout", 60*time.Second)
	v.SetDefault("safety.extended_lockout", 5*time.Minute)

	v.SetDefault("watchdog.max_failures", 3)
	v.SetDefault("watchdog.stale_after", 30*time.Second)

	v.SetDefault("log_level", "info")
}

// Load reads configuration from the given file (or the default search
// path when path is empty), applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pyrostat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pyrostat")
	}

	v.SetEnvPrefix("PYROSTAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default config is fine; env and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on configuration the bridge cannot start with.
func (c *Config) Validate() error {
	if c.Heater.Passkey < tison.MinPasskey || c.Heater.Passkey > tison.MaxPasskey {
		return fmt.Errorf("config: passkey %d outside %d..%d", c.Heater.Passkey, tison.MinPasskey, tison.MaxPasskey)
	}
	if _, err := c.HeaterDialect(); err != nil {
		return err
	}
	if c.Heater.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}

	switch c.Transport.Kind {
	case TransportSerial:
		if c.Transport.Port == "" {
			return fmt.Errorf("config: serial transport needs transport.port")
		}
	case TransportWebsocket:
		if c.Transport.URL == "" {
			return fmt.Errorf("config: websocket transport needs transport.url")
		}
		if c.Heater.Address == "" || !macRe.MatchString(c.Heater.Address) {
			return fmt.Errorf("config: websocket transport needs a valid heater.address MAC, got %q", c.Heater.Address)
		}
	default:
		return fmt.Errorf("config: unknown transport kind %q", c.Transport.Kind)
	}

	if c.Watchdog.MaxFailures < 1 {
		return fmt.Errorf("config: watchdog.max_failures must be at least 1")
	}
	if c.Safety.CriticalTemp <= 0 {
		return fmt.Errorf("config: safety.critical_temp must be positive")
	}
	return nil
}

// HeaterDialect resolves the configured dialect name.
func (c *Config) HeaterDialect() (tison.Dialect, error) {
	switch c.Heater.Dialect {
	case "v1", "":
		return tison.DialectV1, nil
	case "v2":
		return tison.DialectV2, nil
	case "v3":
		return tison.DialectV3Partial, nil
	}
	return 0, fmt.Errorf("config: unknown dialect %q (v1, v2, v3)", c.Heater.Dialect)
}

// DeviceID derives the stable device identifier from the heater address,
// matching the BYD-<MAC> convention the discovery metadata uses.
func (c *Config) DeviceID() string {
	mac := strings.ToUpper(strings.ReplaceAll(c.Heater.Address, ":", ""))
	if mac == "" {
		mac = strings.ToUpper(strings.NewReplacer("/", "", ".", "", "-", "").Replace(c.Transport.Port))
	}
	return "BYD-" + mac
}
