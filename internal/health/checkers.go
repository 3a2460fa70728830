// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"

	"github.com/ManuGH/sigcapt/internal/sigcapt"
)

// PhaseSource reports the current pad session phase.
type PhaseSource interface {
	State() sigcapt.Phase
}

// SessionChecker maps the pad session phase onto a health status. A session
// that is being established is degraded; one that found no service or
// failed its handshake is unhealthy until the next restart.
type SessionChecker struct {
	src PhaseSource
}

// NewSessionChecker creates a checker for the pad session.
func NewSessionChecker(src PhaseSource) *SessionChecker {
	return &SessionChecker{src: src}
}

func (c *SessionChecker) Name() string {
	return "signature_session"
}

func (c *SessionChecker) Check(ctx context.Context) CheckResult {
	phase := c.src.State()
	switch phase {
	case sigcapt.PhaseReady:
		return CheckResult{Status: StatusHealthy, Message: "session ready"}
	case sigcapt.PhaseAbsent:
		return CheckResult{Status: StatusDegraded, Message: "session not initialized"}
	case sigcapt.PhaseDetecting, sigcapt.PhaseHandshaking:
		return CheckResult{Status: StatusDegraded, Message: "session " + string(phase)}
	case sigcapt.PhaseNotDetected:
		return CheckResult{Status: StatusUnhealthy, Error: "signature service not detected"}
	default:
		return CheckResult{Status: StatusUnhealthy, Error: "session " + string(phase)}
	}
}
