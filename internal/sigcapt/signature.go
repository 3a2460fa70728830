// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ManuGH/sigcapt/internal/metrics"
)

// ClearSignature clears the signature held by the pad.
func (c *Controller) ClearSignature() {
	c.runWhenReady("clear", needSignature, c.ClearSignature,
		func(ctx context.Context, s snapshot, logger zerolog.Logger) {
			st := s.sig.Clear(ctx)
			if !c.settle(s, "clear", "clear", st, logger, c.ClearSignature) {
				return
			}
			metrics.IncWorkflow("clear", "completed")
		})
}

// SetSignatureText stores text on the signature and re-renders it. The held
// text is left unchanged and no textUpdated is published.
func (c *Controller) SetSignatureText(text string) {
	retry := func() { c.SetSignatureText(text) }
	c.runWhenReady("set_text", needSignature, retry,
		func(ctx context.Context, s snapshot, logger zerolog.Logger) {
			st := s.sig.PutSigText(ctx, text)
			if !c.settle(s, "set_text", "put_text", st, logger, retry) {
				return
			}
			c.render(ctx, s, s.sig, logger)
			metrics.IncWorkflow("set_text", "completed")
		})
}

// ShowAbout asks the pad service to display its about box.
func (c *Controller) ShowAbout() {
	c.runWhenReady("about", needControl, c.ShowAbout,
		func(ctx context.Context, s snapshot, logger zerolog.Logger) {
			st := s.sess.ctl.AboutBox(ctx)
			if !c.settle(s, "about", "about_box", st, logger, c.ShowAbout) {
				return
			}
			metrics.IncWorkflow("about", "completed")
		})
}
