// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import "time"

// EventKind names a listener notification. Each kind is published on the bus
// topic of the same name.
type EventKind string

const (
	EventReady             EventKind = "ready"
	EventNoServiceDetected EventKind = "noServiceDetected"
	EventRestarting        EventKind = "restarting"
	EventBitmapRendered    EventKind = "bitmapRendered"
	EventTextUpdated       EventKind = "textUpdated"
	EventCaptureCancelled  EventKind = "captureCancelled"
	EventCaptureError      EventKind = "captureError"
	EventDetailsAvailable  EventKind = "detailsAvailable"
)

// EventKinds lists every notification in declaration order.
var EventKinds = []EventKind{
	EventReady, EventNoServiceDetected, EventRestarting, EventBitmapRendered,
	EventTextUpdated, EventCaptureCancelled, EventCaptureError, EventDetailsAvailable,
}

// Topic returns the bus topic for the kind.
func (k EventKind) Topic() string { return string(k) }

// Event is the payload published for every notification.
type Event struct {
	Kind       EventKind `json:"kind"`
	Generation uint64    `json:"generation"`
	Time       time.Time `json:"time"`

	// bitmapRendered
	Image       string `json:"image,omitempty"`
	SignatureID string `json:"signatureId,omitempty"`

	// textUpdated
	Text string `json:"text,omitempty"`

	// captureError
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`

	// detailsAvailable
	Who  string `json:"who,omitempty"`
	Why  string `json:"why,omitempty"`
	When string `json:"when,omitempty"`
}
