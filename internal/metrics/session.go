// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigcapt_session_restarts_total",
		Help: "Total number of session restarts by trigger (initialize, requested, recovery)",
	}, []string{"trigger"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sigcapt_session_state",
		Help: "Current session phase (active phase=1; others 0)",
	}, []string{"state"})

	DetectionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigcapt_detection_total",
		Help: "Outcome of pad service detection (detected, not_detected, canceled)",
	}, []string{"result"})

	HandshakeFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigcapt_handshake_failures_total",
		Help: "Handshake steps that completed with a non-OK status",
	}, []string{"step"})

	StaleResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigcapt_stale_results_total",
		Help: "Workflow results discarded because their session generation was superseded",
	}, []string{"workflow"})
)

// SessionStates lists every label value used by the session state gauge.
var SessionStates = []string{"absent", "detecting", "handshaking", "ready", "not_detected", "failed"}

// SetSessionState records the active session phase.
func SetSessionState(state string) {
	for _, s := range SessionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		sessionState.WithLabelValues(s).Set(value)
	}
}

// IncSessionRestart increments the restart counter for the given trigger.
func IncSessionRestart(trigger string) {
	SessionRestartsTotal.WithLabelValues(trigger).Inc()
}

// IncDetection records the result of a detection race.
func IncDetection(result string) {
	DetectionTotal.WithLabelValues(result).Inc()
}

// IncHandshakeFailure records a failed handshake step.
func IncHandshakeFailure(step string) {
	HandshakeFailuresTotal.WithLabelValues(step).Inc()
}

// IncStaleResult records a discarded result from a superseded session.
func IncStaleResult(workflow string) {
	StaleResultsTotal.WithLabelValues(workflow).Inc()
}
