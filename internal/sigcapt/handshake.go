// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"context"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/metrics"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// handshake accumulates the handles produced by the handshake steps.
type handshake struct {
	conn     sigsdk.Conn
	settings Settings
	ctl      sigsdk.Control
	capture  sigsdk.DynamicCapture
	sig      sigsdk.Signature
	versions Versions
}

type handshakeStep struct {
	name string
	skip func(h *handshake) bool
	run  func(ctx context.Context, h *handshake) sigsdk.Status
}

// handshakeSteps run in order; every step requires the previous one to be OK.
var handshakeSteps = []handshakeStep{
	{
		name: "control",
		run: func(ctx context.Context, h *handshake) (st sigsdk.Status) {
			h.ctl, st = h.conn.NewControl(ctx)
			return st
		},
	},
	{
		name: "licence",
		skip: func(h *handshake) bool { return h.settings.Licence == "" },
		run: func(ctx context.Context, h *handshake) sigsdk.Status {
			return h.ctl.PutLicence(ctx, h.settings.Licence)
		},
	},
	{
		name: "capture",
		run: func(ctx context.Context, h *handshake) (st sigsdk.Status) {
			h.capture, st = h.conn.NewCapture(ctx)
			return st
		},
	},
	{
		name: "signature",
		run: func(ctx context.Context, h *handshake) (st sigsdk.Status) {
			h.sig, st = h.ctl.GetSignature(ctx)
			return st
		},
	},
	{
		name: "control_version",
		run: func(ctx context.Context, h *handshake) (st sigsdk.Status) {
			h.versions.Control, st = h.ctl.GetProperty(ctx, sigsdk.PropertyFileVersion)
			return st
		},
	},
	{
		name: "capture_version",
		run: func(ctx context.Context, h *handshake) (st sigsdk.Status) {
			h.versions.Capture, st = h.capture.GetProperty(ctx, sigsdk.PropertyFileVersion)
			return st
		},
	},
}

// handshake runs the step list against a detected connection. A failing step
// ends the chain with a log line only; listeners are not notified and the
// session stays absent until the next restart.
func (c *Controller) handshake(ctx context.Context, gen uint64, conn sigsdk.Conn, settings Settings) {
	logger := c.log().With().Uint64(log.FieldGeneration, gen).Logger()
	span := trace.SpanFromContext(ctx)
	h := &handshake{conn: conn, settings: settings}

	for _, step := range handshakeSteps {
		if step.skip != nil && step.skip(h) {
			continue
		}
		st := step.run(ctx, h)
		span.AddEvent("handshake."+step.name, trace.WithAttributes(telemetry.StepAttributes(step.name, st.String())...))
		if st.OK() {
			logger.Debug().Str(log.FieldStep, step.name).Msg("handshake step completed")
			continue
		}
		if !c.current(gen) {
			c.stale("handshake", gen)
			return
		}
		logger.Warn().
			Str(log.FieldStep, step.name).
			Str(log.FieldStatus, st.String()).
			Msg("handshake step failed")
		metrics.IncHandshakeFailure(step.name)
		c.commit(gen, "handshake", func() {
			c.pending = nil
			c.fire(evHandshakeFailed)
		})
		return
	}

	logger.Info().
		Str("control_version", h.versions.Control).
		Str("capture_version", h.versions.Capture).
		Msg("signature components loaded")

	var continuations []func()
	if !c.commit(gen, "handshake", func() {
		c.sess = &session{conn: conn, ctl: h.ctl, capture: h.capture}
		c.sig = h.sig
		c.versions = h.versions
		continuations = c.pending
		c.pending = nil
		c.fire(evHandshakeOK)
	}) {
		return
	}

	logger.Info().Int("continuations", len(continuations)).Msg("session ready")
	for _, fn := range continuations {
		fn()
	}
	c.publish(gen, Event{Kind: EventReady})
}
