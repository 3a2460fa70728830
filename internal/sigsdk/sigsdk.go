// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sigsdk declares the capability surface of the local signature-pad
// service. Every method blocks until the service answers and reports its
// outcome as a Status; Go errors are reserved for transport setup.
package sigsdk

import (
	"context"
	"time"
)

// PropertyFileVersion is the diagnostic property read during the handshake.
const PropertyFileVersion = "Component_FileVersion"

// Service opens connections to the pad service.
type Service interface {
	// Connect starts connecting to the service on port and returns
	// immediately. onRunning is invoked (possibly more than once, possibly
	// from another goroutine) whenever the connection observes the service
	// announcing itself; callers must confirm with Conn.Running.
	Connect(ctx context.Context, port int, onRunning func()) (Conn, error)
}

// Conn is one connection to the pad service.
type Conn interface {
	Running() bool
	NewControl(ctx context.Context) (Control, Status)
	NewCapture(ctx context.Context) (DynamicCapture, Status)
	Close() error
}

// Control is the signature control object.
type Control interface {
	PutLicence(ctx context.Context, licence string) Status
	GetSignature(ctx context.Context) (Signature, Status)
	GetProperty(ctx context.Context, name string) (string, Status)
	AboutBox(ctx context.Context) Status
}

// DynamicCapture is the capture engine.
type DynamicCapture interface {
	// Capture runs one signing interaction. The returned Status is either a
	// session status (StatusInvalidSession, StatusFailed, ...) or a capture
	// result (CaptureOK, CaptureCancel, CapturePadError, ...).
	Capture(ctx context.Context, ctl Control, who, why string) (Signature, Status)
	GetProperty(ctx context.Context, name string) (string, Status)
}

// Signature is a handle to the pad's current signature object.
type Signature interface {
	ID() string
	RenderBitmap(ctx context.Context, opts RenderOptions) (string, Status)
	GetSigText(ctx context.Context) (string, Status)
	PutSigText(ctx context.Context, text string) Status
	GetIsCaptured(ctx context.Context) (bool, Status)
	GetWho(ctx context.Context) (string, Status)
	GetWhy(ctx context.Context) (string, Status)
	GetWhen(ctx context.Context, tz TimeZone) (time.Time, Status)
	Clear(ctx context.Context) Status
}
