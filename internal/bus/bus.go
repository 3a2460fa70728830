// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus is the notification sink between the session controller and
// its listeners (HTTP event streams, the CLI, tests).
package bus

import "context"

// AllTopics subscribes to every topic published on the bus.
const AllTopics = "*"

// Message is an opaque notification payload.
type Message interface{}

type Subscriber interface {
	// C returns a read-only message channel.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the notification transport abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
