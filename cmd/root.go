package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/mirrorvoice/internal/config"
	"github.com/satriahrh/mirrorvoice/internal/observability"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "mirrorvoice",
		Short:         "Hotword-gated voice assistant for a smart mirror",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (yaml, json or toml)")

	cmd.AddCommand(
		newRunCommand(opts),
		newTokenCommand(opts),
		newSayCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// setup loads the configuration and builds the logger
func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
