// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"context"
	"time"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/metrics"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

// detect races the detection deadline against the connection's running
// callback. A callback while the service is not yet running keeps the timer
// armed; at the deadline the running state is polled once more.
func (c *Controller) detect(ctx context.Context, gen uint64, settings Settings) (sigsdk.Conn, bool) {
	logger := c.log().With().
		Uint64(log.FieldGeneration, gen).
		Int(log.FieldServicePort, settings.ServicePort).
		Logger()

	signal := make(chan struct{}, 1)
	onRunning := func() {
		select {
		case signal <- struct{}{}:
		default:
		}
	}

	conn, err := c.svc.Connect(ctx, settings.ServicePort, onRunning)
	if err != nil {
		logger.Warn().Err(err).Msg("signature service connect failed")
		c.notDetected(gen)
		return nil, false
	}
	if !c.commit(gen, "detect", func() { c.conn = conn }) {
		_ = conn.Close()
		return nil, false
	}

	timer := time.NewTimer(settings.DetectTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			metrics.IncDetection("canceled")
			return nil, false
		case <-signal:
			if conn.Running() {
				logger.Debug().Msg("signature service detected")
				return c.detected(gen, conn)
			}
			logger.Debug().Msg("signature service announced but not running yet")
		case <-timer.C:
			if conn.Running() {
				logger.Debug().Msg("signature service detected at deadline")
				return c.detected(gen, conn)
			}
			logger.Info().Dur("timeout", settings.DetectTimeout).Msg("signature service not detected")
			c.notDetected(gen)
			return nil, false
		}
	}
}

func (c *Controller) detected(gen uint64, conn sigsdk.Conn) (sigsdk.Conn, bool) {
	if !c.commit(gen, "detect", func() { c.fire(evDetected) }) {
		return nil, false
	}
	metrics.IncDetection("detected")
	return conn, true
}

func (c *Controller) notDetected(gen uint64) {
	if !c.commit(gen, "detect", func() {
		c.pending = nil
		c.fire(evNotDetected)
	}) {
		return
	}
	metrics.IncDetection("not_detected")
	c.publish(gen, Event{Kind: EventNoServiceDetected})
}
