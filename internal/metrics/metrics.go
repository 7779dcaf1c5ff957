// Horizon - Realtime Services for Study-Abroad Counseling
// Copyright 2026 Stellar Education
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stellaredu/horizon

// Package metrics provides Prometheus instrumentation for the realtime
// layer: connection lifecycle, message delivery, and poll fan-out volume.
// Collectors register via promauto on the default registry and are served
// at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocketConnections tracks currently open socket sessions.
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizon_websocket_connections",
			Help: "Current number of open WebSocket connections",
		},
	)

	// WebSocketAuthenticated tracks sessions bound to a verified user.
	WebSocketAuthenticated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizon_websocket_authenticated_connections",
			Help: "Current number of authenticated WebSocket connections",
		},
	)

	// MessagesSent counts outbound messages queued per envelope type.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_websocket_messages_total",
			Help: "Total outbound WebSocket messages queued, by envelope type",
		},
		[]string{"type"},
	)

	// MessagesDropped counts messages dropped because a connection's send
	// queue was full. Drops are accepted behavior (fire-and-forget).
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_websocket_messages_dropped_total",
			Help: "Total outbound WebSocket messages dropped, by envelope type",
		},
		[]string{"type"},
	)

	// AuthFailures counts failed socket authentications by reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_websocket_auth_failures_total",
			Help: "Total failed socket authentication attempts, by reason",
		},
		[]string{"reason"}, // "missing_token", "invalid_token"
	)

	// PollFanoutRecipients counts per-recipient poll views computed.
	PollFanoutRecipients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizon_poll_fanout_recipients_total",
			Help: "Total per-recipient poll result views computed and sent",
		},
	)
)
