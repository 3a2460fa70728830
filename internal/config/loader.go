// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing. Keys absent from
// the file keep their current value; unknown keys are an error.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	return decodeStrict(data, cfg)
}

func decodeStrict(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

// mergeEnvConfig applies SIGCAPT_* environment variables over cfg.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString(EnvPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.DebugOutput = l.envString(EnvPrefix+"DEBUG_OUTPUT", cfg.DebugOutput)

	// Server
	cfg.Server.ListenAddr = l.envString(EnvPrefix+"LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.ReadTimeout = l.envDuration(EnvPrefix+"READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration(EnvPrefix+"WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration(EnvPrefix+"IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.AllowedOrigins = l.envList(EnvPrefix+"ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)
	cfg.Server.RateLimit = l.envInt(EnvPrefix+"RATE_LIMIT", cfg.Server.RateLimit)

	// Bridge
	cfg.Bridge.Host = l.envString(EnvPrefix+"BRIDGE_HOST", cfg.Bridge.Host)
	cfg.Bridge.Path = l.envString(EnvPrefix+"BRIDGE_PATH", cfg.Bridge.Path)
	cfg.Bridge.TLS = l.envBool(EnvPrefix+"BRIDGE_TLS", cfg.Bridge.TLS)

	// Capture
	cfg.Capture.Licence = l.envString(EnvPrefix+"LICENCE", cfg.Capture.Licence)
	cfg.Capture.Bitmap.Width = l.envInt(EnvPrefix+"IMAGE_WIDTH", cfg.Capture.Bitmap.Width)
	cfg.Capture.Bitmap.Height = l.envInt(EnvPrefix+"IMAGE_HEIGHT", cfg.Capture.Bitmap.Height)
	cfg.Capture.Bitmap.PaddingX = l.envInt(EnvPrefix+"PADDING_X", cfg.Capture.Bitmap.PaddingX)
	cfg.Capture.Bitmap.PaddingY = l.envInt(EnvPrefix+"PADDING_Y", cfg.Capture.Bitmap.PaddingY)
	cfg.Capture.Bitmap.InkWidth = l.envFloat(EnvPrefix+"INK_WIDTH", cfg.Capture.Bitmap.InkWidth)
	cfg.Capture.DetectTimeout = l.envDuration(EnvPrefix+"DETECT_TIMEOUT", cfg.Capture.DetectTimeout)
	cfg.Capture.ServicePort = l.envInt(EnvPrefix+"SERVICE_PORT", cfg.Capture.ServicePort)

	// Telemetry
	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TRACING_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ServiceName = l.envString(EnvPrefix+"TRACING_SERVICE_NAME", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Environment = l.envString(EnvPrefix+"TRACING_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.ExporterType = l.envString(EnvPrefix+"TRACING_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"TRACING_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TRACING_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// LoadFile loads a YAML config file over the defaults without applying env
// overrides or validation.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	err := NewLoader(path, "").loadFile(path, &cfg)
	return cfg, err
}
