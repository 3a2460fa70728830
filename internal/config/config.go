// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for sigcapt.
package config

import (
	"time"

	"github.com/ManuGH/sigcapt/internal/sigcapt"
	"github.com/ManuGH/sigcapt/internal/sigsdk/bridge"
	"github.com/ManuGH/sigcapt/internal/telemetry"
)

// Debug output modes for the capture controller.
const (
	DebugOutputDisabled = "disabled"
	DebugOutputConsole  = "console"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	LogLevel string `yaml:"logLevel,omitempty"`

	// DebugOutput routes controller debug lines: "disabled" keeps them on
	// the process logger, "console" writes them to stderr.
	DebugOutput string `yaml:"debugOutput,omitempty"`

	Server    ServerConfig     `yaml:"server,omitempty"`
	Bridge    BridgeConfig     `yaml:"bridge,omitempty"`
	Capture   sigcapt.Settings `yaml:"capture,omitempty"`
	Telemetry TelemetryConfig  `yaml:"telemetry,omitempty"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:8090")
	ListenAddr string `yaml:"listenAddr,omitempty"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"readTimeout,omitempty"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `yaml:"idleTimeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`

	// AllowedOrigins is the CORS allow-list for the signing page
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`

	// RateLimit is the per-client request budget per minute; 0 disables it
	RateLimit int `yaml:"rateLimit,omitempty"`
}

// BridgeConfig locates the pad service's WebSocket bridge.
type BridgeConfig struct {
	Host string `yaml:"host,omitempty"`
	Path string `yaml:"path,omitempty"`
	TLS  bool   `yaml:"tls,omitempty"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty"`
	Environment  string  `yaml:"environment,omitempty"`
	ExporterType string  `yaml:"exporterType,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty"`
}

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:    "info",
		DebugOutput: DebugOutputDisabled,
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       300,
		},
		Bridge: BridgeConfig{
			Host: "127.0.0.1",
			Path: bridge.DefaultPath,
		},
		Capture: sigcapt.DefaultSettings(),
		Telemetry: TelemetryConfig{
			ServiceName:  "sigcaptd",
			Environment:  "production",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// CaptureSettings returns the controller settings with the debug output sink
// resolved.
func (c AppConfig) CaptureSettings() sigcapt.Settings {
	s := c.Capture
	if c.DebugOutput == DebugOutputConsole {
		s.Output = sigcapt.ConsoleOutput()
	}
	return s
}

// TracingConfig converts the telemetry section for telemetry.NewProvider.
func (c AppConfig) TracingConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: c.Version,
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.ExporterType,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}
