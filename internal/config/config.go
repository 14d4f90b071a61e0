// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package config loads client settings from an optional file, HYENA_
// environment variables and command line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/Query-farm/hyena-go/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "HYENA"

// Settings are the resolved settings of a command line tool.
type Settings struct {
	Client     hyena.Config
	Log        logger.Config
	OtelStdout bool
}

// Keys, as used in config files. Environment variables use the upper-case
// key with dots and dashes turned into underscores, e.g.
// HYENA_SESSION_SEND_TIMEOUT.
const (
	KeyAddress           = "address"
	KeySendTimeout       = "session.send-timeout"
	KeyRecvTimeout       = "session.recv-timeout"
	KeyReceiveDelay      = "session.receive-delay"
	KeyReceiveInterval   = "session.receive-interval"
	KeyKeepAliveInterval = "session.keepalive-interval"
	KeyReconnectBackoff  = "session.reconnect-backoff"
	KeySendRetries       = "session.send-retries"
	KeyCatalogTTL        = "session.catalog-ttl"
	KeyStrings           = "session.strings"
	KeyLogLevel          = "log.level"
	KeyLogFormat         = "log.format"
	KeyOtelStdout        = "otel.stdout"
)

// FlagKeys maps command line flag names to keys.
var FlagKeys = map[string]string{
	"address":     KeyAddress,
	"log-level":   KeyLogLevel,
	"log-format":  KeyLogFormat,
	"otel-stdout": KeyOtelStdout,
	"strings":     KeyStrings,
}

func newViper() *viper.Viper {
	v := viper.New()
	d := hyena.DefaultConfig("tcp://localhost:4567")
	v.SetDefault(KeyAddress, d.Address)
	v.SetDefault(KeySendTimeout, d.SendTimeout)
	v.SetDefault(KeyRecvTimeout, d.RecvTimeout)
	v.SetDefault(KeyReceiveDelay, d.ReceiveDelay)
	v.SetDefault(KeyReceiveInterval, d.ReceiveInterval)
	v.SetDefault(KeyKeepAliveInterval, d.KeepAliveInterval)
	v.SetDefault(KeyReconnectBackoff, d.ReconnectBackoff)
	v.SetDefault(KeySendRetries, d.SendRetries)
	v.SetDefault(KeyCatalogTTL, d.CatalogTTL)
	v.SetDefault(KeyStrings, "simple")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyOtelStdout, false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves settings. file may be empty; flags may be nil. Only flags
// the user changed override file and environment values.
func Load(file string, flags *pflag.FlagSet) (*Settings, error) {
	v := newViper()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	layout, err := ParseStringLayout(v.GetString(KeyStrings))
	if err != nil {
		return nil, err
	}
	cfg := hyena.DefaultConfig(v.GetString(KeyAddress))
	cfg.SendTimeout = v.GetDuration(KeySendTimeout)
	cfg.RecvTimeout = v.GetDuration(KeyRecvTimeout)
	cfg.ReceiveDelay = v.GetDuration(KeyReceiveDelay)
	cfg.ReceiveInterval = v.GetDuration(KeyReceiveInterval)
	cfg.KeepAliveInterval = v.GetDuration(KeyKeepAliveInterval)
	cfg.ReconnectBackoff = v.GetDuration(KeyReconnectBackoff)
	cfg.SendRetries = v.GetInt(KeySendRetries)
	cfg.CatalogTTL = v.GetDuration(KeyCatalogTTL)
	cfg.Strings = layout
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Settings{
		Client: cfg,
		Log: logger.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
		OtelStdout: v.GetBool(KeyOtelStdout),
	}, nil
}

// ParseStringLayout accepts "simple" or "meta".
func ParseStringLayout(name string) (hyena.StringLayout, error) {
	switch strings.ToLower(name) {
	case "", "simple":
		return hyena.StringsSimple, nil
	case "meta":
		return hyena.StringsMeta, nil
	}
	return 0, errors.New("config: string layout must be simple or meta")
}
