// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/sigcapt/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		v.AddError("LogLevel", "must be one of trace, debug, info, warn, error", cfg.LogLevel)
	}
	v.OneOf("DebugOutput", cfg.DebugOutput, []string{DebugOutputDisabled, DebugOutputConsole})

	// Server
	v.ListenAddr("Server.ListenAddr", cfg.Server.ListenAddr)
	v.PositiveDuration("Server.ReadTimeout", cfg.Server.ReadTimeout)
	v.PositiveDuration("Server.WriteTimeout", cfg.Server.WriteTimeout)
	v.PositiveDuration("Server.ShutdownTimeout", cfg.Server.ShutdownTimeout)
	v.NonNegative("Server.RateLimit", cfg.Server.RateLimit)
	for _, origin := range cfg.Server.AllowedOrigins {
		v.Origin("Server.AllowedOrigins", origin)
	}

	// Bridge
	v.NotEmpty("Bridge.Host", cfg.Bridge.Host)
	if !strings.HasPrefix(cfg.Bridge.Path, "/") {
		v.AddError("Bridge.Path", "must start with /", cfg.Bridge.Path)
	}

	// Capture settings carry their own rules.
	if err := cfg.Capture.Validate(); err != nil {
		v.AddError("Capture", err.Error(), cfg.Capture)
	}

	// Telemetry
	if cfg.Telemetry.Enabled {
		v.NotEmpty("Telemetry.ServiceName", cfg.Telemetry.ServiceName)
		v.OneOf("Telemetry.ExporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http", "stdout"})
		if cfg.Telemetry.ExporterType != "stdout" {
			v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		}
		v.FloatRange("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}
