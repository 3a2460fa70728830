// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/metrics"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/telemetry"
)

// ImagePrefix is prepended to the rendered base64 payload.
const ImagePrefix = "data:image/png;base64,"

// Capture starts one signing interaction for who and why.
func (c *Controller) Capture(who, why string) {
	c.runWhenReady("capture", needCapture,
		func() { c.Capture(who, why) },
		func(ctx context.Context, s snapshot, logger zerolog.Logger) {
			c.capture(ctx, s, who, why, logger)
		})
}

func (c *Controller) capture(ctx context.Context, s snapshot, who, why string, logger zerolog.Logger) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(telemetry.CaptureAttributes(who, why)...)

	if !c.commit(s.gen, "capture", func() { c.image = "" }) {
		return
	}
	started := time.Now()
	sig, st := s.sess.capture.Capture(ctx, s.sess.ctl, who, why)
	elapsed := time.Since(started)
	if !c.current(s.gen) {
		c.stale("capture", s.gen)
		return
	}
	if st != sigsdk.CaptureOK {
		logger.Info().Str(log.FieldStatus, st.String()).Int("code", int(st)).Msg("capture returned")
	}

	switch st {
	case sigsdk.StatusInvalidSession:
		metrics.ObserveCapture("invalid_session", int(st), elapsed)
		span.SetAttributes(telemetry.CaptureResultAttributes("invalid_session", int(st))...)
		logger.Warn().Msg("invalid session, restarting the session")
		c.restart("capture", func() { c.Capture(who, why) })

	case sigsdk.CaptureOK:
		metrics.ObserveCapture("ok", int(st), elapsed)
		span.SetAttributes(telemetry.CaptureResultAttributes("ok", int(st))...)
		if !c.commit(s.gen, "capture", func() { c.sig = sig }) {
			return
		}
		logger.Info().Str(log.FieldHandle, sig.ID()).Msg("signature captured")
		if c.render(ctx, s, sig, logger) {
			c.recoverText(ctx, s, sig, logger)
		}
		metrics.IncWorkflow("capture", "completed")

	case sigsdk.CaptureCancel:
		metrics.ObserveCapture("cancel", int(st), elapsed)
		span.SetAttributes(telemetry.CaptureResultAttributes("cancel", int(st))...)
		logger.Info().Msg("signature capture cancelled")
		c.publish(s.gen, Event{Kind: EventCaptureCancelled})
		metrics.IncWorkflow("capture", "completed")

	default:
		cerr := ClassifyCapture(st)
		metrics.ObserveCapture("error", int(st), elapsed)
		span.SetAttributes(telemetry.CaptureResultAttributes("error", int(st))...)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, cerr.Message)
		logger.Warn().Int("code", int(cerr.Code)).Str("message", cerr.Message).Msg("capture failed")
		c.publish(s.gen, Event{Kind: EventCaptureError, Message: cerr.Message, Code: int(cerr.Code)})
		metrics.IncWorkflow("capture", "failed")
	}
}

// render draws sig with the session's bitmap settings, stores the data URI
// and publishes it. Render failures are logged only.
func (c *Controller) render(ctx context.Context, s snapshot, sig sigsdk.Signature, logger zerolog.Logger) bool {
	payload, st := sig.RenderBitmap(ctx, RenderOptions(s.settings.Bitmap))
	if !st.OK() {
		if !c.current(s.gen) {
			c.stale("render", s.gen)
			return false
		}
		logger.Warn().Str(log.FieldStatus, st.String()).Msg("signature render bitmap failed")
		return false
	}
	image := ImagePrefix + payload
	if !c.commit(s.gen, "render", func() { c.image = image }) {
		return false
	}
	c.publish(s.gen, Event{Kind: EventBitmapRendered, Image: image, SignatureID: sig.ID()})
	return true
}

// recoverText reads the signature text and publishes it if it changed.
func (c *Controller) recoverText(ctx context.Context, s snapshot, sig sigsdk.Signature, logger zerolog.Logger) {
	text, st := sig.GetSigText(ctx)
	if !st.OK() {
		logger.Warn().Str(log.FieldStatus, st.String()).Msg("signature get text failed")
		return
	}
	changed := false
	if !c.commit(s.gen, "capture", func() {
		if !c.hasText || c.text != text {
			c.text, c.hasText = text, true
			changed = true
		}
	}) {
		return
	}
	if changed {
		c.publish(s.gen, Event{Kind: EventTextUpdated, Text: text})
	}
}

// RenderOptions returns the render call parameters for b.
func RenderOptions(b BitmapSettings) sigsdk.RenderOptions {
	return sigsdk.RenderOptions{
		Format:          "png",
		Width:           b.Width,
		Height:          b.Height,
		InkWidth:        b.InkWidth,
		InkColor:        0x00000000,
		BackgroundColor: 0x00FFFFFF,
		Flags:           sigsdk.RenderOutputBase64 | sigsdk.RenderColor32BPP | sigsdk.RenderBackgroundTransparent,
		PaddingX:        b.PaddingX,
		PaddingY:        b.PaddingY,
	}
}
