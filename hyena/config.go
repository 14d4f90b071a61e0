// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Default session settings.
const (
	DefaultTimeout           = 60 * time.Second
	DefaultReceiveDelay      = 500 * time.Millisecond
	DefaultReceiveInterval   = 50 * time.Millisecond
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultReconnectBackoff  = time.Second
	DefaultSendRetries       = 3
	DefaultCatalogTTL        = 5 * time.Minute
)

// Config configures a Session and the Client built on it.
type Config struct {
	// Address is the control endpoint of the engine, e.g. tcp://host:4567.
	Address string

	// SendTimeout and RecvTimeout are the socket deadlines. A send that hits
	// its deadline triggers a reconnect and a resend.
	SendTimeout time.Duration
	RecvTimeout time.Duration

	// ReceiveDelay is the wait before the first receive poll;
	// ReceiveInterval is the period between polls.
	ReceiveDelay    time.Duration
	ReceiveInterval time.Duration

	// KeepAliveInterval is the heartbeat period. A heartbeat that is still
	// unanswered when the next one is due causes a reconnect.
	KeepAliveInterval time.Duration

	// ReconnectBackoff is the minimum spacing between reconnects. Zero
	// disables throttling.
	ReconnectBackoff time.Duration

	// SendRetries bounds how many times one frame is resent after
	// consecutive send timeouts.
	SendRetries int

	// CatalogTTL is how long a fetched catalog is reused.
	CatalogTTL time.Duration

	// Strings selects the string column layout of scan replies.
	Strings StringLayout

	// Transport creates sockets. Defaults to NewMangosTransport.
	Transport TransportFactory

	// Logger receives session diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics, when set, receives Prometheus measurements.
	Metrics *Metrics
}

// DefaultConfig returns a Config for address with all defaults filled in.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		SendTimeout:       DefaultTimeout,
		RecvTimeout:       DefaultTimeout,
		ReceiveDelay:      DefaultReceiveDelay,
		ReceiveInterval:   DefaultReceiveInterval,
		KeepAliveInterval: DefaultKeepAliveInterval,
		ReconnectBackoff:  DefaultReconnectBackoff,
		SendRetries:       DefaultSendRetries,
		CatalogTTL:        DefaultCatalogTTL,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	} else if !strings.Contains(c.Address, "://") {
		errs = append(errs, fmt.Errorf("address %q has no scheme (want tcp://, ipc:// or inproc://)", c.Address))
	}
	if c.SendTimeout < 0 || c.RecvTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.ReceiveDelay < 0 {
		errs = append(errs, errors.New("receive delay must not be negative"))
	}
	if c.ReceiveInterval <= 0 {
		errs = append(errs, errors.New("receive interval must be positive"))
	}
	if c.KeepAliveInterval <= 0 {
		errs = append(errs, errors.New("keep-alive interval must be positive"))
	}
	if c.ReconnectBackoff < 0 {
		errs = append(errs, errors.New("reconnect backoff must not be negative"))
	}
	if c.SendRetries < 0 {
		errs = append(errs, errors.New("send retries must not be negative"))
	}
	if c.CatalogTTL < 0 {
		errs = append(errs, errors.New("catalog ttl must not be negative"))
	}
	if c.Strings != StringsSimple && c.Strings != StringsMeta {
		errs = append(errs, fmt.Errorf("unknown string layout %d", int(c.Strings)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("hyena: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Config) transport() TransportFactory {
	if c.Transport != nil {
		return c.Transport
	}
	return NewMangosTransport
}
