// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/sigcapt/internal/bus"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/sigsdk/sigsdktest"
)

const awaitTimeout = 3 * time.Second

type harness struct {
	t    *testing.T
	fake *sigsdktest.Fake
	bus  *recordingBus
	c    *Controller
	sub  bus.Subscriber
}

// recordingBus lets a test observe controller state at the moment of publishing.
type recordingBus struct {
	bus.Bus
	onPublish func(topic string, msg bus.Message)
}

func (r *recordingBus) Publish(ctx context.Context, topic string, msg bus.Message) error {
	if r.onPublish != nil {
		r.onPublish(topic, msg)
	}
	return r.Bus.Publish(ctx, topic, msg)
}

func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	fake := sigsdktest.New()
	b := &recordingBus{Bus: bus.NewMemoryBusSize(512)}
	sub, err := b.Subscribe(context.Background(), bus.AllTopics)
	require.NoError(t, err)

	nop := zerolog.Nop()
	c, err := New(Options{
		Service:  fake,
		Bus:      b,
		Settings: Merge(Settings{DetectTimeout: 200 * time.Millisecond}, settings),
		Logger:   &nop,
	})
	require.NoError(t, err)

	h := &harness{t: t, fake: fake, bus: b, c: c, sub: sub}
	t.Cleanup(func() {
		require.NoError(t, c.Close())
		_ = sub.Close()
	})
	return h
}

// ready initializes the controller and waits for the session.
func (h *harness) ready() []Event {
	h.t.Helper()
	require.NoError(h.t, h.c.Initialize(Settings{}, nil))
	return h.await(EventReady)
}

// await collects events until one of kind arrives.
func (h *harness) await(kind EventKind) []Event {
	h.t.Helper()
	return h.awaitAll(kind)
}

// awaitAll collects events until every kind has been seen at least once.
func (h *harness) awaitAll(want ...EventKind) []Event {
	h.t.Helper()
	missing := make(map[EventKind]bool, len(want))
	for _, k := range want {
		missing[k] = true
	}
	deadline := time.After(awaitTimeout)
	var got []Event
	for len(missing) > 0 {
		select {
		case msg := <-h.sub.C():
			ev := msg.(Event)
			got = append(got, ev)
			delete(missing, ev.Kind)
		case <-deadline:
			h.t.Fatalf("timed out waiting for %v; saw %v", want, kinds(got))
		}
	}
	return got
}

// drain collects whatever is published within d.
func (h *harness) drain(d time.Duration) []Event {
	h.t.Helper()
	deadline := time.After(d)
	var got []Event
	for {
		select {
		case msg := <-h.sub.C():
			got = append(got, msg.(Event))
		case <-deadline:
			return got
		}
	}
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}

func count(evs []Event, kind EventKind) int {
	n := 0
	for _, ev := range evs {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func find(t *testing.T, evs []Event, kind EventKind) Event {
	t.Helper()
	for _, ev := range evs {
		if ev.Kind == kind {
			return ev
		}
	}
	t.Fatalf("no %s event in %v", kind, kinds(evs))
	return Event{}
}

// argsOf returns the arguments of every call of op in order.
func argsOf(f *sigsdktest.Fake, op sigsdk.Op) [][]string {
	var out [][]string
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c.Args)
		}
	}
	return out
}

// opsSince returns the call log after the first n entries.
func opsSince(f *sigsdktest.Fake, n int) []sigsdk.Op {
	ops := f.Ops()
	if n > len(ops) {
		return nil
	}
	return ops[n:]
}
