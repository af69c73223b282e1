package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"assistant/internal/console"
	appLog "assistant/internal/log"
	"assistant/internal/reminder"
	"assistant/internal/web"
)

type runOptions struct {
	listen  string
	plain   bool
	history string
}

func newRunCmd(opts *options) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive console with the daily reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if ro.listen != "" {
				cfg.Listen = ro.listen
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				appLog.Error("startup failed", err)
				return err
			}

			src, out, err := openConsole(ro)
			if err != nil {
				return err
			}
			loop := console.NewLoop(a.dispatcher, a.digest, console.NewPrinter(out, ro.plain || !isTTY()))

			if cfg.Reminder.At != "" {
				hour, minute, err := cfg.Reminder.Clock()
				if err != nil {
					return err
				}
				trigger, err := reminder.NewTrigger(a.loc, hour, minute, loop.Remind)
				if err != nil {
					return err
				}
				trigger.Start()
				defer trigger.Stop()
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// The console ending (exit, EOF) also stops the HTTP server.
				defer cancel()
				return loop.Run(gctx, src)
			})
			if cfg.Listen != "" {
				srv := web.NewServer(cfg, a.loc, loop, a.lister)
				g.Go(func() error {
					return srv.Serve(gctx)
				})
			}

			err = g.Wait()
			if err != nil {
				appLog.Error("assistant stopped with error", err)
			}
			appLog.Info("assistant exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&ro.listen, "listen", "", "HTTP listen address for the command API (overrides config)")
	cmd.Flags().BoolVar(&ro.plain, "plain", false, "Disable colored output")
	cmd.Flags().StringVar(&ro.history, "history", defaultHistoryFile(), "Console history file (empty disables)")
	return cmd
}

// isTTY checks if the current environment has a TTY available.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// openConsole uses readline on a terminal and a plain line scanner when
// input is piped.
func openConsole(ro *runOptions) (console.LineSource, io.Writer, error) {
	if !isTTY() {
		return console.NewScanner(os.Stdin), os.Stdout, nil
	}
	rl, err := console.NewReadline("> ", ro.history)
	if err != nil {
		return nil, nil, err
	}
	return rl, rl.Stdout(), nil
}

func defaultHistoryFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".assistant_history")
}
