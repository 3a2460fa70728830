// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bridge carries the pad service surface over a WebSocket. The
// Client implements sigsdk.Service for the daemon; the Server fronts any
// sigsdk.Service for it.
package bridge

import (
	"time"

	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// OpServiceRunning is the greeting the server sends once its backend runs.
const OpServiceRunning sigsdk.Op = "service.running"

// DefaultPath is the WebSocket endpoint path.
const DefaultPath = "/sigsdk"

// Frame is one JSON message on the socket. Requests carry Op and Args;
// responses echo ID and carry Status and Result.
type Frame struct {
	ID     uint64        `json:"id"`
	Op     sigsdk.Op     `json:"op,omitempty"`
	Handle string        `json:"handle,omitempty"`
	Args   *Args         `json:"args,omitempty"`
	Status sigsdk.Status `json:"status"`
	Result *Result       `json:"result,omitempty"`
}

// Args are request parameters; each op reads only the fields it needs.
type Args struct {
	Licence  string                `json:"licence,omitempty"`
	Name     string                `json:"name,omitempty"`
	Control  string                `json:"control,omitempty"`
	Who      string                `json:"who,omitempty"`
	Why      string                `json:"why,omitempty"`
	Text     string                `json:"text,omitempty"`
	TimeZone sigsdk.TimeZone       `json:"tz,omitempty"`
	Render   *sigsdk.RenderOptions `json:"render,omitempty"`
}

// Result is a response payload.
type Result struct {
	Handle string     `json:"handle,omitempty"`
	ID     string     `json:"sigId,omitempty"`
	Text   string     `json:"text,omitempty"`
	Bool   bool       `json:"bool,omitempty"`
	When   *time.Time `json:"when,omitempty"`
}
