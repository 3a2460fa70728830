// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BridgeCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigcapt_bridge_calls_total",
		Help: "Calls forwarded to the pad service bridge by side (client, server), operation and status",
	}, []string{"side", "op", "status"})

	bridgeConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sigcapt_bridge_connections",
		Help: "Open bridge WebSocket connections by side",
	}, []string{"side"})
)

// IncBridgeCall records a bridge call outcome.
func IncBridgeCall(side, op, status string) {
	BridgeCallsTotal.WithLabelValues(side, op, status).Inc()
}

// BridgeConnOpened increments the open connection gauge.
func BridgeConnOpened(side string) {
	bridgeConnections.WithLabelValues(side).Inc()
}

// BridgeConnClosed decrements the open connection gauge.
func BridgeConnClosed(side string) {
	bridgeConnections.WithLabelValues(side).Dec()
}
