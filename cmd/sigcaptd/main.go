// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command sigcaptd bridges a browser page to a local signature-pad service.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/sigcapt/internal/config"
	"github.com/ManuGH/sigcapt/internal/log"
	"github.com/ManuGH/sigcapt/internal/version"
)

const serviceName = "sigcaptd"

type rootOptions struct {
	configPath string
	logLevel   string
}

func main() {
	// Safe defaults until the configuration is loaded.
	log.Configure(log.Config{Level: "info", Service: serviceName, Version: version.Version})

	if err := newRootCmd().Execute(); err != nil {
		log.L().Error().Err(err).Msg("sigcaptd failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Signature pad session controller and browser bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newCaptureCmd(opts))
	root.AddCommand(newSimulatorCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// load reads the configuration and reconfigures the global logger from it.
func (o *rootOptions) load() (config.AppConfig, error) {
	path := strings.TrimSpace(o.configPath)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: serviceName,
		Version: cfg.Version,
	})

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger := log.WithComponent("config")
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", path).
		Msg("configuration loaded")
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, version.String())
		},
	}
}
