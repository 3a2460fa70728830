// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health answers the daemon's liveness and readiness endpoints.
//
// /healthz always answers 200 while the process serves HTTP and carries a
// snapshot of the pad session. /readyz follows the session phase: a session
// that is still being established counts as ready, one that found no
// signature service or failed its handshake answers 503 until a restart
// brings it back.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
)

// Status is the folded state of one or more checks.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Ready reports whether the daemon may take commands in this status.
// Degraded is ready.
func (s Status) Ready() bool {
	return s != StatusUnhealthy
}

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

func worst(a, b Status) Status {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// CheckResult is the outcome of one Checker.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Session is the view of the pad controller that reports are built from.
type Session interface {
	PhaseSource
	Generation() uint64
	Versions() sigcapt.Versions
}

// SessionInfo is the session snapshot included in every report.
type SessionInfo struct {
	Phase      sigcapt.Phase     `json:"phase"`
	Generation uint64            `json:"generation"`
	Versions   *sigcapt.Versions `json:"versions,omitempty"`
}

// Report is the body of both endpoints.
type Report struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime_seconds"`
	Timestamp time.Time              `json:"timestamp"`
	Session   *SessionInfo           `json:"session,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Manager builds reports for one pad session.
type Manager struct {
	version  string
	started  time.Time
	session  Session
	checkers []Checker
}

// NewManager creates a manager reporting on session. A nil session yields
// reports that are always healthy.
func NewManager(version string, session Session) *Manager {
	m := &Manager{version: version, started: time.Now(), session: session}
	if session != nil {
		m.checkers = append(m.checkers, NewSessionChecker(session))
	}
	return m
}

// Report runs every check and folds the results.
func (m *Manager) Report(ctx context.Context) Report {
	rep := Report{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.started).Seconds()),
		Timestamp: time.Now(),
	}
	if m.session != nil {
		rep.Session = snapshot(m.session)
	}
	if len(m.checkers) > 0 {
		rep.Checks = make(map[string]CheckResult, len(m.checkers))
	}
	for _, c := range m.checkers {
		res := c.Check(ctx)
		rep.Checks[c.Name()] = res
		rep.Status = worst(rep.Status, res.Status)
	}
	rep.Ready = rep.Status.Ready()
	return rep
}

func snapshot(s Session) *SessionInfo {
	info := &SessionInfo{Phase: s.State(), Generation: s.Generation()}
	if v := s.Versions(); v != (sigcapt.Versions{}) {
		info.Versions = &v
	}
	return info
}

// ServeHealth answers liveness. It is 200 whatever the session does.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	m.write(w, r, "health", http.StatusOK, m.Report(r.Context()))
}

// ServeReady answers readiness: 200 when the report is ready, 503 otherwise.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	rep := m.Report(r.Context())
	code := http.StatusOK
	if !rep.Ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, "readiness", code, rep)
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, kind string, code int, rep Report) {
	logger := log.WithComponentFromContext(r.Context(), kind)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, kind+".encode_error").Msg("failed to encode report")
	}

	ev := logger.Debug().
		Str(log.FieldEvent, kind+".checked").
		Str("status", string(rep.Status)).
		Bool("ready", rep.Ready)
	if rep.Session != nil {
		ev = ev.Str("phase", string(rep.Session.Phase)).Uint64(log.FieldGeneration, rep.Session.Generation)
	}
	ev.Msg("health report served")
}
