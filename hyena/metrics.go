// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package hyena

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus measurements of a session.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Reconnects      *prometheus.CounterVec
	KeepAliveMisses prometheus.Counter
	Unmatched       prometheus.Counter
	Pending         prometheus.Gauge
}

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hyena_client_requests_total",
		Help: "Requests sent to the engine by kind and outcome",
	}, []string{"kind", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hyena_client_request_duration_seconds",
		Help:    "Time from send to reply",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	reconnects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hyena_client_reconnects_total",
		Help: "Peer reconnects by cause",
	}, []string{"reason"})

	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hyena_client_keepalive_misses_total",
		Help: "Heartbeats left unanswered until the next one was due",
	})

	unmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hyena_client_unmatched_replies_total",
		Help: "Replies whose message id had no waiting request",
	})

	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "hyena_client_pending_requests",
		Help: "Requests waiting for a reply",
	})

	reg.MustRegister(requests, duration, reconnects, misses, unmatched, pending)

	return &Metrics{
		Requests:        requests,
		RequestDuration: duration,
		Reconnects:      reconnects,
		KeepAliveMisses: misses,
		Unmatched:       unmatched,
		Pending:         pending,
	}
}

// Reconnect reasons.
const (
	reconnectSendTimeout   = "send_timeout"
	reconnectKeepAliveMiss = "keepalive_miss"
)

// The helpers below accept a nil receiver so the session can call them
// unconditionally.

func (m *Metrics) request(kind Kind, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Requests.WithLabelValues(kind.String(), status).Inc()
	if err == nil {
		m.RequestDuration.WithLabelValues(kind.String()).Observe(seconds)
	}
}

func (m *Metrics) reconnect(reason string) {
	if m != nil {
		m.Reconnects.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) keepAliveMiss() {
	if m != nil {
		m.KeepAliveMisses.Inc()
	}
}

func (m *Metrics) unmatched() {
	if m != nil {
		m.Unmatched.Inc()
	}
}

func (m *Metrics) pending(delta float64) {
	if m != nil {
		m.Pending.Add(delta)
	}
}
