// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command hyena is a command line client for a Hyena engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Query-farm/hyena-go/hyena"
	hyenaotel "github.com/Query-farm/hyena-go/hyena/otel"
	"github.com/Query-farm/hyena-go/internal/config"
	"github.com/Query-farm/hyena-go/internal/dumpio"
	"github.com/Query-farm/hyena-go/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// app is the state shared by all subcommands. The client is connected on
// first use so commands that never talk to the engine start instantly.
type app struct {
	configFile  string
	metricsAddr string

	out      io.Writer
	settings *config.Settings
	log      *slog.Logger
	files    *dumpio.IO
	client   *hyena.Client
	shutdown []func(context.Context) error
}

func (a *app) setup(cmd *cobra.Command) error {
	settings, err := config.Load(a.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	log, err := logger.New(settings.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.settings = settings
	a.log = log
	a.out = cmd.OutOrStdout()
	a.files = dumpio.Default()
	return nil
}

// connect returns the shared client, dialing the engine the first time.
func (a *app) connect() (*hyena.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	cfg := a.settings.Client
	cfg.Logger = a.log
	if a.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		cfg.Metrics = hyena.NewMetrics(reg)
		a.serveMetrics(reg)
	}
	c, err := hyena.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if a.settings.OtelStdout {
		otelCfg, stop, err := stdoutTelemetry(a.out)
		if err != nil {
			c.Close()
			return nil, err
		}
		a.shutdown = append(a.shutdown, stop)
		hyenaotel.InstrumentClient(c.Session(), otelCfg)
	}
	a.log.Debug("connected", slog.String("address", cfg.Address), slog.Uint64("connection_id", c.Session().ConnectionID()))
	a.client = c
	return c, nil
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	srv := &http.Server{Addr: a.metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics listener failed", slog.String("addr", a.metricsAddr), slog.Any("error", err))
		}
	}()
	a.shutdown = append(a.shutdown, srv.Shutdown)
}

func (a *app) close() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.log.Debug("close session", slog.Any("error", err))
		}
		a.client = nil
	}
	for _, stop := range a.shutdown {
		if err := stop(context.Background()); err != nil {
			a.log.Debug("shutdown", slog.Any("error", err))
		}
	}
	a.shutdown = nil
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "hyena",
		Short:         "Hyena engine client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	pf.String("address", "", "engine control address, e.g. tcp://localhost:4567")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.Bool("otel-stdout", false, "print OpenTelemetry spans and metrics to stdout")
	pf.String("strings", "simple", "string column layout of scan replies: simple or meta")
	pf.StringVar(&a.metricsAddr, "metrics-listen", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		columnsCmd(a),
		catalogCmd(a),
		addColumnCmd(a),
		insertCmd(a),
		scanCmd(a),
		genVectorsCmd(a),
		parseMsgCmd(a),
		shellCmd(a),
	)
	return root, a
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
