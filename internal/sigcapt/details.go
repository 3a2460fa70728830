// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/sigcapt/internal/metrics"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// WhenLayout renders the capture time, e.g.
// "Tue Mar 05 2024 14:03:07 GMT+0100 (CET)".
const WhenLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

// FormatWhen renders t with WhenLayout.
func FormatWhen(t time.Time) string {
	return t.Format(WhenLayout)
}

// DisplaySignatureDetails reads who, when and why of the current signature
// and publishes them together. Nothing is published when the pad holds no
// captured signature.
func (c *Controller) DisplaySignatureDetails() {
	c.runWhenReady("details", needLiveSignature, c.DisplaySignatureDetails, c.queryDetails)
}

func (c *Controller) queryDetails(ctx context.Context, s snapshot, logger zerolog.Logger) {
	const workflow = "details"
	retry := c.DisplaySignatureDetails

	if !c.commit(s.gen, workflow, func() { c.details = Details{} }) {
		return
	}

	captured, st := s.sig.GetIsCaptured(ctx)
	if !c.settle(s, workflow, "is_captured", st, logger, retry) {
		return
	}
	if !captured {
		logger.Debug().Msg("no signature has been captured yet")
		metrics.IncWorkflow(workflow, "noop")
		return
	}

	who, st := s.sig.GetWho(ctx)
	if !c.settle(s, workflow, "who", st, logger, retry) {
		return
	}
	if !c.commit(s.gen, workflow, func() { c.details.Who = who }) {
		return
	}

	when, st := s.sig.GetWhen(ctx, sigsdk.TimeLocal)
	if !c.settle(s, workflow, "when", st, logger, retry) {
		return
	}
	whenText := FormatWhen(when)
	if !c.commit(s.gen, workflow, func() { c.details.When = whenText }) {
		return
	}

	why, st := s.sig.GetWhy(ctx)
	if !c.settle(s, workflow, "why", st, logger, retry) {
		return
	}
	var d Details
	if !c.commit(s.gen, workflow, func() {
		c.details.Why = why
		d = c.details
	}) {
		return
	}

	logger.Debug().Str("who", d.Who).Str("when", d.When).Str("why", d.Why).Msg("signature details")
	c.publish(s.gen, Event{Kind: EventDetailsAvailable, Who: d.Who, Why: d.Why, When: d.When})
	metrics.IncWorkflow(workflow, "completed")
}
