// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/sigcapt/internal/bus"
	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
)

var (
	errNoService       = errors.New("no signature service detected")
	errCaptureCanceled = errors.New("capture cancelled at the pad")
)

type captureOptions struct {
	who     string
	why     string
	text    bool
	timeout time.Duration
}

func newCaptureCmd(root *rootOptions) *cobra.Command {
	opts := &captureOptions{}
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture one signature and print it as a data URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(ctx, opts.timeout)
			defer cancel()
			return captureOnce(ctx, newBridgeClient(cfg), cfg.CaptureSettings(), *opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.who, "who", "", "name of the signatory")
	cmd.Flags().StringVar(&opts.why, "why", "", "reason for signing")
	cmd.Flags().BoolVar(&opts.text, "text", false, "also print the signature text")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "give up after this long")
	return cmd
}

// captureOnce initializes a session against svc, runs one capture and
// writes the rendered image to out.
func captureOnce(ctx context.Context, svc sigsdk.Service, settings sigcapt.Settings, opts captureOptions, out io.Writer) error {
	logger := log.WithComponent("capture")

	ctl, err := sigcapt.New(sigcapt.Options{Service: svc, Settings: settings})
	if err != nil {
		return err
	}
	defer func() { _ = ctl.Close() }()

	sub, err := ctl.Bus().Subscribe(ctx, bus.AllTopics)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Close() }()

	if err := ctl.Initialize(settings, func() { ctl.Capture(opts.who, opts.why) }); err != nil {
		return err
	}

	var image string
	for {
		select {
		case <-ctx.Done():
			if image != "" {
				// Text recovery failed; the image alone is the result.
				_, err := fmt.Fprintln(out, image)
				return err
			}
			return fmt.Errorf("waiting for signature: %w", ctx.Err())
		case msg, ok := <-sub.C():
			if !ok {
				return fmt.Errorf("waiting for signature: %w", ctx.Err())
			}
			ev, isEvent := msg.(sigcapt.Event)
			if !isEvent {
				continue
			}
			logger.Debug().Str(log.FieldEvent, string(ev.Kind)).Uint64(log.FieldGeneration, ev.Generation).Msg("notification")

			switch ev.Kind {
			case sigcapt.EventNoServiceDetected:
				return errNoService
			case sigcapt.EventCaptureCancelled:
				return errCaptureCanceled
			case sigcapt.EventCaptureError:
				return &sigcapt.CaptureError{Code: sigsdk.Status(ev.Code), Message: ev.Message}
			case sigcapt.EventBitmapRendered:
				if !opts.text {
					_, err := fmt.Fprintln(out, ev.Image)
					return err
				}
				image = ev.Image
			case sigcapt.EventTextUpdated:
				if image != "" {
					_, err := fmt.Fprintf(out, "%s\n%s\n", image, ev.Text)
					return err
				}
			}
		}
	}
}
