// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/sigcapt/internal/api"
	"github.com/ManuGH/sigcapt/internal/config"
	"github.com/ManuGH/sigcapt/internal/daemon"
	"github.com/ManuGH/sigcapt/internal/health"
	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigcapt"
	"github.com/ManuGH/sigcapt/internal/sigsdk"
	"github.com/ManuGH/sigcapt/internal/sigsdk/bridge"
	"github.com/ManuGH/sigcapt/internal/telemetry"
	"github.com/ManuGH/sigcapt/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and keep a pad session alive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			return serve(ctx, cfg, newBridgeClient(cfg))
		},
	}
}

func newBridgeClient(cfg config.AppConfig) *bridge.Client {
	return bridge.NewClient(
		bridge.WithHost(cfg.Bridge.Host),
		bridge.WithPath(cfg.Bridge.Path),
		bridge.WithTLS(cfg.Bridge.TLS),
		bridge.WithLogger(log.WithComponent("bridge-client")),
	)
}

// serve wires the controller, the API and the daemon manager around svc and
// blocks until ctx is cancelled.
func serve(ctx context.Context, cfg config.AppConfig, svc sigsdk.Service) error {
	logger := log.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "startup.check_failed").Msg("startup checks failed")
		return fmt.Errorf("startup checks: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, cfg.TracingConfig())
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	settings := cfg.CaptureSettings()
	ctl, err := sigcapt.New(sigcapt.Options{Service: svc, Settings: settings})
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return fmt.Errorf("create controller: %w", err)
	}

	hm := health.NewManager(version.Version, ctl)

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.Telemetry.ServiceName
	}
	apiServer := api.New(ctl, hm, api.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		TracingService: tracingService,
	})

	mgr, err := daemon.NewManager(cfg.Server, daemon.Deps{
		Logger:     logger,
		APIHandler: apiServer.Handler(),
	})
	if err != nil {
		_ = ctl.Close()
		_ = tp.Shutdown(context.Background())
		return err
	}
	// LIFO: streams close first, the tracer flushes last.
	mgr.RegisterShutdownHook("tracing", tp.Shutdown)
	mgr.RegisterShutdownHook("controller", func(context.Context) error { return ctl.Close() })
	mgr.RegisterShutdownHook("event-streams", func(context.Context) error { return apiServer.Close() })

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Server.ListenAddr).
		Str("bridge_host", cfg.Bridge.Host).
		Int(log.FieldServicePort, settings.ServicePort).
		Bool("licence", settings.Licence != "").
		Msg("starting sigcaptd")

	return daemon.NewApp(logger, mgr, ctl, settings).Run(ctx)
}
