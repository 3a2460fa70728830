// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"github.com/ManuGH/sigcapt/internal/fsm"
)

// Phase is the lifecycle state of the current session.
type Phase string

const (
	PhaseAbsent      Phase = "absent"
	PhaseDetecting   Phase = "detecting"
	PhaseHandshaking Phase = "handshaking"
	PhaseReady       Phase = "ready"
	PhaseNotDetected Phase = "not_detected"
	PhaseFailed      Phase = "failed"
)

type phaseEvent string

const (
	evRestart         phaseEvent = "restart"
	evDetected        phaseEvent = "detected"
	evNotDetected     phaseEvent = "not_detected"
	evHandshakeOK     phaseEvent = "handshake_ok"
	evHandshakeFailed phaseEvent = "handshake_failed"
	evClose           phaseEvent = "close"
)

var allPhases = []Phase{PhaseAbsent, PhaseDetecting, PhaseHandshaking, PhaseReady, PhaseNotDetected, PhaseFailed}

// pending reports whether a restart is still on its way to ready.
func (p Phase) pending() bool {
	return p == PhaseDetecting || p == PhaseHandshaking
}

func phaseTransitions() []fsm.Transition[Phase, phaseEvent] {
	ts := []fsm.Transition[Phase, phaseEvent]{
		{From: PhaseDetecting, Event: evDetected, To: PhaseHandshaking},
		{From: PhaseDetecting, Event: evNotDetected, To: PhaseNotDetected},
		{From: PhaseHandshaking, Event: evHandshakeOK, To: PhaseReady},
		{From: PhaseHandshaking, Event: evHandshakeFailed, To: PhaseFailed},
	}
	for _, p := range allPhases {
		ts = append(ts,
			fsm.Transition[Phase, phaseEvent]{From: p, Event: evRestart, To: PhaseDetecting},
			fsm.Transition[Phase, phaseEvent]{From: p, Event: evClose, To: PhaseAbsent},
		)
	}
	return ts
}
