// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/sigcapt/internal/config"
	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/sigsdk/bridge"
)

// PerformStartupChecks validates the environment before starting the server.
func PerformStartupChecks(ctx context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkListenAddr(logger, cfg.Server.ListenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}
	if err := checkBridgeEndpoint(logger, cfg); err != nil {
		return fmt.Errorf("bridge endpoint check failed: %w", err)
	}
	checkExposure(logger, cfg)

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}

func checkBridgeEndpoint(logger zerolog.Logger, cfg config.AppConfig) error {
	client := bridge.NewClient(
		bridge.WithHost(cfg.Bridge.Host),
		bridge.WithPath(cfg.Bridge.Path),
		bridge.WithTLS(cfg.Bridge.TLS),
	)
	endpoint, err := client.Endpoint(cfg.Capture.ServicePort)
	if err != nil {
		return err
	}
	logger.Info().Str("endpoint", endpoint).Msg("signature service endpoint resolved")
	return nil
}

// checkExposure warns about setups that let any page drive the pad.
func checkExposure(logger zerolog.Logger, cfg config.AppConfig) {
	host, _, _ := net.SplitHostPort(cfg.Server.ListenAddr)
	ip := net.ParseIP(host)
	public := host == "" || (ip != nil && !ip.IsLoopback())
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" {
			logger.Warn().Msg("CORS allows every origin; any page can start captures")
			break
		}
	}
	if public {
		logger.Warn().Str("addr", cfg.Server.ListenAddr).Msg("API listens beyond loopback")
	}
}
