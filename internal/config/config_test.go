// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Query-farm/hyena-go/hyena"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "tcp://localhost:4567", s.Client.Address)
	require.Equal(t, hyena.DefaultTimeout, s.Client.SendTimeout)
	require.Equal(t, hyena.DefaultCatalogTTL, s.Client.CatalogTTL)
	require.Equal(t, "info", s.Log.Level)
	require.False(t, s.OtelStdout)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hyena.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
address: ipc:///tmp/from-file.sock
session:
  send-timeout: 5s
  send-retries: 7
  strings: meta
log:
  format: json
`), 0o600))

	t.Setenv("HYENA_SESSION_SEND_RETRIES", "1")
	t.Setenv("HYENA_SESSION_KEEPALIVE_INTERVAL", "250ms")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("address", "", "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--address", "tcp://10.0.0.1:4567"}))

	s, err := Load(file, flags)
	require.NoError(t, err)
	require.Equal(t, "tcp://10.0.0.1:4567", s.Client.Address)
	require.Equal(t, 5*time.Second, s.Client.SendTimeout)
	require.Equal(t, 1, s.Client.SendRetries)
	require.Equal(t, 250*time.Millisecond, s.Client.KeepAliveInterval)
	require.Equal(t, hyena.StringsMeta, s.Client.Strings)
	require.Equal(t, "json", s.Log.Format)
	// Unchanged flags keep the lower layers.
	require.Equal(t, "info", s.Log.Level)
}

func TestLoadRejects(t *testing.T) {
	t.Setenv("HYENA_ADDRESS", "localhost:4567")
	_, err := Load("", nil)
	require.ErrorContains(t, err, "no scheme")

	t.Setenv("HYENA_ADDRESS", "tcp://localhost:4567")
	t.Setenv("HYENA_SESSION_STRINGS", "fancy")
	_, err = Load("", nil)
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
