// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/sigsdk/bridge"
	"github.com/ManuGH/sigcapt/internal/sigsdk/sigsdktest"
)

type simulatorOptions struct {
	host          string
	port          int
	text          string
	captureStatus int
}

func newSimulatorCmd(_ *rootOptions) *cobra.Command {
	opts := &simulatorOptions{}
	cmd := &cobra.Command{
		Use:   "simulator",
		Short: "Serve an in-memory signature pad over the bridge protocol",
		Long: "Serve an in-memory signature pad over the bridge protocol so the " +
			"daemon and browser pages can be exercised without hardware.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			addr := net.JoinHostPort(opts.host, strconv.Itoa(opts.port))
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}
			return runSimulator(ctx, ln, newSimulatedPad(*opts))
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "127.0.0.1", "interface to listen on")
	cmd.Flags().IntVar(&opts.port, "port", 8000, "port to listen on")
	cmd.Flags().StringVar(&opts.text, "text", "", "text embedded in captured signatures")
	cmd.Flags().IntVar(&opts.captureStatus, "capture-status", int(sigsdk.CaptureOK), "status every capture completes with")
	return cmd
}

func newSimulatedPad(opts simulatorOptions) *sigsdktest.Fake {
	pad := sigsdktest.New()
	pad.SetText(opts.text)
	if st := sigsdk.Status(opts.captureStatus); st != sigsdk.CaptureOK {
		pad.SetStatus(sigsdk.OpCaptureCapture, st)
	}
	return pad
}

// runSimulator serves svc on ln at the bridge path until ctx is cancelled.
func runSimulator(ctx context.Context, ln net.Listener, svc sigsdk.Service) error {
	logger := log.WithComponent("simulator")

	bs := bridge.NewServer(svc,
		bridge.WithCheckOrigin(func(*http.Request) bool { return true }),
		bridge.WithServerLogger(log.WithComponent("bridge-server")),
	)
	r := chi.NewRouter()
	r.Handle(bridge.DefaultPath, bs)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Str("path", bridge.DefaultPath).Msg("simulated pad listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	_ = srv.Close()
	<-errCh
	logger.Info().Msg("simulated pad stopped")
	return err
}
