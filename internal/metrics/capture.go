// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CaptureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigcapt_capture_total",
		Help: "Outcome of capture attempts (ok, cancel, error, invalid_session)",
	}, []string{"result", "code"})

	captureDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sigcapt_capture_duration_seconds",
		Help:    "Time from issuing a capture until the pad service completed it",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"result"})

	WorkflowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigcapt_workflow_total",
		Help: "Workflow runs by name and outcome (completed, restarted, failed, stale, noop)",
	}, []string{"workflow", "outcome"})
)

// ObserveCapture records one capture completion.
func ObserveCapture(result string, code int, elapsed time.Duration) {
	CaptureTotal.WithLabelValues(result, strconv.Itoa(code)).Inc()
	captureDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// IncWorkflow records the outcome of a workflow run.
func IncWorkflow(workflow, outcome string) {
	WorkflowTotal.WithLabelValues(workflow, outcome).Inc()
}
