// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package hyenaotel provides OpenTelemetry instrumentation for hyena
// sessions. It implements the [hyena.RequestHook] interface to add client
// spans and request metrics.
//
// Usage:
//
//	client, err := hyena.Connect(hyena.DefaultConfig("tcp://localhost:4567"))
//	// ... handle err ...
//	hyenaotel.InstrumentClient(client.Session(), hyenaotel.DefaultConfig())
package hyenaotel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Query-farm/hyena-go/hyena"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "hyena"

// OtelConfig configures OpenTelemetry instrumentation for a hyena session.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed requests.
	// Default true.
	RecordExceptions bool
	// ServiceName is the rpc.service attribute value. Defaults to "hyena".
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with tracing, metrics and exception
// recording enabled. Providers are resolved from the global OTel SDK at
// instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

// InstrumentClient attaches OpenTelemetry instrumentation to a session.
// The hook is appended via [hyena.Session.AddRequestHook], so hooks that
// are already installed keep running.
func InstrumentClient(session *hyena.Session, cfg OtelConfig) {
	session.AddRequestHook(NewHook(cfg))
}

// NewHook builds the instrumentation hook without installing it.
func NewHook(cfg OtelConfig) hyena.RequestHook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "hyena"
	}

	h := &otelHook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		h.requestCounter, _ = meter.Int64Counter("rpc.client.requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of requests sent to the engine"),
		)
		h.durationHistogram, _ = meter.Float64Histogram("rpc.client.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of engine requests"),
		)
		h.resendCounter, _ = meter.Int64Counter("rpc.client.resends",
			metric.WithUnit("{send}"),
			metric.WithDescription("Frames resent after a send timeout"),
		)
	}
	return h
}

type otelHook struct {
	cfg               OtelConfig
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
	resendCounter     metric.Int64Counter
}

type spanToken struct {
	span      trace.Span
	startTime time.Time
}

func (h *otelHook) OnRequestStart(ctx context.Context, info hyena.RequestInfo) (context.Context, hyena.HookToken) {
	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "hyena"),
		attribute.String("rpc.service", h.cfg.ServiceName),
		attribute.String("rpc.method", info.Kind.String()),
		attribute.String("rpc.hyena.message_id", strconv.FormatUint(info.MessageID, 16)),
		attribute.String("server.address", info.Address),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	ctx, span := h.tracer.Start(ctx, "hyena/"+info.Kind.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, &spanToken{span: span, startTime: time.Now()}
}

func (h *otelHook) OnRequestEnd(ctx context.Context, token hyena.HookToken, info hyena.RequestInfo, stats *hyena.RequestStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}
	duration := time.Since(st.startTime)

	status := "ok"
	if err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("rpc.system", "hyena"),
			attribute.String("rpc.service", h.cfg.ServiceName),
			attribute.String("rpc.method", info.Kind.String()),
			attribute.String("status", status),
		)
		if h.requestCounter != nil {
			h.requestCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
		if h.resendCounter != nil && stats != nil && stats.Resends > 0 {
			h.resendCounter.Add(ctx, stats.Resends, metricAttrs)
		}
	}

	if st.span == nil || !st.span.IsRecording() {
		return
	}
	if stats != nil {
		st.span.SetAttributes(
			attribute.Int64("rpc.hyena.request_bytes", stats.RequestBytes),
			attribute.Int64("rpc.hyena.reply_bytes", stats.ReplyBytes),
			attribute.Int64("rpc.hyena.resends", stats.Resends),
		)
	}
	if err != nil {
		st.span.SetStatus(codes.Error, err.Error())
		if h.cfg.RecordExceptions {
			st.span.RecordError(err)
		}
		st.span.SetAttributes(attribute.String("rpc.hyena.error_type", errorType(err)))
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
	st.span.End()
}

func errorType(err error) string {
	var apiErr *hyena.ApiError
	var peerErr *hyena.PeerError
	var replyErr *hyena.ReplyError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Type.String()
	case errors.As(err, &peerErr):
		return "PeerError"
	case errors.As(err, &replyErr):
		return "ReplyError"
	case errors.Is(err, hyena.ErrSessionClosed):
		return "SessionClosed"
	case hyena.IsTimeout(err):
		return "Timeout"
	case errors.Is(err, hyena.ErrDeserialization):
		return "Deserialization"
	}
	return fmt.Sprintf("%T", err)
}
