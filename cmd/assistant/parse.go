package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"assistant/internal/command"
	"assistant/internal/contacts"
	"assistant/internal/temporal"
)

// newParseCmd dry-runs the grammar and time resolution without touching
// any external service.
func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "parse <command text>",
		Short:   "Show how a command is understood, without booking anything",
		Example: `  assistant parse "schedule a meeting with john next tuesday at 10am for 45 minutes"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			raw := strings.Join(args, " ")
			pc, ok := command.NewParser(cfg.DefaultDurationMinutes).Parse(raw)
			if !ok {
				return fmt.Errorf("command does not match: schedule a meeting with <attendees> <day> at <time> [for <N> minutes]")
			}

			if !temporal.IsDayReference(pc.DayReference) {
				return fmt.Errorf("unknown day %q: use today, tomorrow, a weekday or next <weekday>", pc.DayReference)
			}

			emails := contacts.NewDirectory(cfg.Contacts).ResolveAll(pc.Attendees)
			start, err := temporal.NewResolver(loc).Resolve(pc.DayReference, pc.Hour, pc.Minute)
			if err != nil {
				return err
			}
			end := start.Add(pc.Duration())

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "intent:    %s\n", pc.Intent)
			fmt.Fprintf(w, "attendees: %s\n", strings.Join(emails, ", "))
			fmt.Fprintf(w, "day:       %s\n", pc.DayReference)
			fmt.Fprintf(w, "start:     %s\n", start.Format("Monday 2006-01-02 15:04 MST"))
			fmt.Fprintf(w, "end:       %s\n", end.Format("Monday 2006-01-02 15:04 MST"))
			fmt.Fprintf(w, "duration:  %s\n", end.Sub(start).Round(time.Minute))
			fmt.Fprintf(w, "canonical: %s\n", command.Render(pc))
			return nil
		},
	}
}
