package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assistant/internal/calendar"
	appLog "assistant/internal/log"
)

// newAuthCmd obtains a Google Calendar token through the installed-app
// consent flow and stores it in calendar.token_file.
func newAuthCmd(opts *options) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Calendar access and save the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if port == 0 {
				port = cfg.Calendar.AuthPort
			}

			oc, err := calendar.LoadOAuthConfig(cfg.Calendar.CredentialsFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tok, err := calendar.Authorize(cmd.Context(), oc, port, func(url string) error {
				fmt.Fprintf(out, "Open this URL in your browser to authorize calendar access:\n\n  %s\n\n", url)
				return nil
			})
			if err != nil {
				appLog.Error("google authorization failed", err)
				return err
			}

			if err := calendar.SaveToken(cfg.Calendar.TokenFile, tok); err != nil {
				return err
			}
			appLog.Info("google token saved", "path", cfg.Calendar.TokenFile)
			fmt.Fprintf(out, "Token saved to %s\n", cfg.Calendar.TokenFile)
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Loopback port for the OAuth redirect (default calendar.auth_port)")
	return cmd
}
