package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assistant/internal/config"
	appLog "assistant/internal/log"
)

const version = "0.1.0"

// options holds flag values shared by every subcommand.
type options struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Command-driven scheduling assistant",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				appLog.Error("failed to load config", err, "config_path", opts.configPath)
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config %s: %w", opts.configPath, err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "./config.yaml", "Path to config file (created with defaults if missing)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	run := newRunCmd(opts)
	root.AddCommand(run, newParseCmd(opts), newAuthCmd(opts))

	// Bare "assistant" starts the console.
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())
	return root
}
