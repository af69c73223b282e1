package main

import (
	"context"
	"fmt"
	"time"

	"assistant/internal/calendar"
	"assistant/internal/command"
	"assistant/internal/config"
	"assistant/internal/contacts"
	"assistant/internal/dispatch"
	"assistant/internal/llm"
	appLog "assistant/internal/log"
	"assistant/internal/meeting"
	"assistant/internal/notify"
	"assistant/internal/reminder"
	"assistant/internal/temporal"
)

// app is the assembled object graph for one process.
type app struct {
	loc        *time.Location
	lister     calendar.Lister
	dispatcher *dispatch.Dispatcher
	digest     *reminder.Digest
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	cal, err := newCalendar(ctx, cfg)
	if err != nil {
		return nil, err
	}
	lister := newLister(cfg, cal)

	resolver := temporal.NewResolver(loc)
	parser := command.NewParser(cfg.DefaultDurationMinutes)
	dir := contacts.NewDirectory(cfg.Contacts)
	sched := meeting.NewScheduler(dir, resolver, cal)

	var opts []dispatch.Option
	if cfg.LLM.Enabled {
		if cfg.LLM.APIKey == "" {
			appLog.Warn("llm enabled but no api key configured; set LLM_API_KEY or GEMINI_API_KEY")
		}
		opts = append(opts, dispatch.WithInterpreter(llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		}), cfg.DefaultDurationMinutes))
	}

	digestOpts := []reminder.Option{}
	if lister != nil {
		digestOpts = append(digestOpts, reminder.WithLister(lister))
	}
	if cfg.Reminder.EmailTo != "" {
		digestOpts = append(digestOpts, reminder.WithSender(notify.NewBrevo(notify.BrevoConfig{
			URL:         cfg.Email.APIURL,
			APIKey:      cfg.Email.APIKey,
			SenderName:  cfg.Email.SenderName,
			SenderEmail: cfg.Email.SenderEmail,
		})))
	}

	appLog.Info("effective config",
		"timezone", cfg.Timezone,
		"calendar_backend", cfg.Calendar.Backend,
		"contacts", dir.Len(),
		"default_duration_minutes", cfg.DefaultDurationMinutes,
		"reminder_at", cfg.Reminder.At,
		"reminder_email", cfg.Reminder.EmailTo != "",
		"llm", cfg.LLM.Enabled,
		"listen", cfg.Listen,
	)

	return &app{
		loc:        loc,
		lister:     lister,
		dispatcher: dispatch.New(parser, sched, opts...),
		digest: reminder.NewDigest(reminder.Config{
			Message: cfg.Reminder.Message,
			EmailTo: cfg.Reminder.EmailTo,
			Subject: cfg.Reminder.Subject,
		}, loc, digestOpts...),
	}, nil
}

func newCalendar(ctx context.Context, cfg *config.Config) (calendar.Service, error) {
	switch cfg.Calendar.Backend {
	case config.BackendGoogle:
		g, err := calendar.NewGoogle(ctx, calendar.GoogleConfig{
			CredentialsFile: cfg.Calendar.CredentialsFile,
			TokenFile:       cfg.Calendar.TokenFile,
			CalendarID:      cfg.Calendar.CalendarID,
		})
		if err != nil {
			return nil, fmt.Errorf("google calendar (run \"assistant auth\" first?): %w", err)
		}
		return g, nil
	case config.BackendICS:
		return calendar.NewICSDir(cfg.Calendar.ICSDir, cfg.Calendar.Organizer), nil
	default:
		return nil, fmt.Errorf("unknown calendar backend %q", cfg.Calendar.Backend)
	}
}

// newLister combines the booking backend with any ICS subscriptions. It
// returns nil when nothing can be listed.
func newLister(cfg *config.Config, cal calendar.Service) calendar.Lister {
	var sources calendar.Merge
	if l, ok := cal.(calendar.Lister); ok {
		sources = append(sources, l)
	}
	if len(cfg.Calendar.Subscriptions) > 0 {
		subs := make([]calendar.Subscription, 0, len(cfg.Calendar.Subscriptions))
		for _, s := range cfg.Calendar.Subscriptions {
			subs = append(subs, calendar.Subscription{ID: s.ID, URL: s.URL})
		}
		sources = append(sources, calendar.NewFeeds(cfg.Calendar.CacheDir, subs))
	}

	switch len(sources) {
	case 0:
		return nil
	case 1:
		return sources[0]
	default:
		return sources
	}
}
