// Package cli holds the cobra command tree of the invitecal binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"invitecal/internal/config"
	appLog "invitecal/internal/log"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "/etc/invitecal/config.yaml"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	debug      bool
}

// NewRootCommand creates the top-level Cobra command. Without a
// subcommand it serves the invitation site.
func NewRootCommand(ctx context.Context) *cobra.Command {
	opts := &globalOptions{}
	serve := newServeCommand(ctx, opts)

	cmd := &cobra.Command{
		Use:   "invitecal",
		Short: "Wedding invitation site with a live countdown, guestbook and RSVP.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				appLog.SetLevel(appLog.LevelDebug)
			}
		},
		RunE:          serve.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", DefaultConfigPath, "path to config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(
		serve,
		newCountdownCommand(ctx, opts),
		newExportICSCommand(ctx, opts),
		newCaptureCommand(ctx, opts),
		newHashPasswordCommand(),
	)

	return cmd
}

// loadConfig reads the config file. serve creates a default file on first
// run; the other commands fall back to defaults without touching disk.
func (o *globalOptions) loadConfig(create bool) (*config.Config, error) {
	if create {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
		}
		return cfg, nil
	}

	cfg, err := config.Read(o.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		appLog.Debug("config not found; using defaults", "path", o.configPath)
		return config.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
	}
	return cfg, nil
}

// applyLogLevel honours the config's log_level unless --debug was given.
func (o *globalOptions) applyLogLevel(cfg *config.Config) {
	if o.debug {
		return
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
}

// ExecuteCommand is a thin wrapper that executes the Cobra root command.
func ExecuteCommand(ctx context.Context) error {
	return NewRootCommand(ctx).Execute()
}

// Main is a helper used by cmd/invitecal/main.go to keep wiring contained
// in one package.
func Main(ctx context.Context) {
	err := ExecuteCommand(ctx)
	appLog.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
