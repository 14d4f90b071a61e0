// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Query-farm/hyena-go/enginetest"
	"github.com/Query-farm/hyena-go/hyena"
	flag "github.com/spf13/pflag"
)

func main() {
	listen := flag.String("listen", "tcp://127.0.0.1:4567", "control address")
	workers := flag.Int("workers", enginetest.DefaultWorkers, "requests handled concurrently")
	dropBeats := flag.Bool("drop-keepalives", false, "never answer heartbeats")
	delay := flag.Duration("delay", 0, "sleep before answering each request")
	metaStrings := flag.Bool("meta-strings", false, "send string columns in the meta layout")
	debug := flag.Bool("debug", false, "log every peer connection")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := enginetest.Options{Address: *listen, Workers: *workers, Logger: log}
	if *metaStrings {
		opts.Strings = hyena.StringsMeta
	}
	if *delay > 0 {
		d := *delay
		opts.ReplyDelay = func(hyena.Request) time.Duration { return d }
	}

	engine, err := enginetest.Start(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	engine.SetDropKeepAlives(*dropBeats)
	fmt.Printf("LISTEN:%s\n", engine.Address())
	os.Stdout.Sync()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	engine.Close()
}
