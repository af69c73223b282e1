// Package reminder composes and schedules the daily reminder.
package reminder

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"assistant/internal/calendar"
	appLog "assistant/internal/log"
	"assistant/internal/notify"
)

// Config describes one daily reminder.
type Config struct {
	Message string
	EmailTo string
	Subject string
}

// Digest builds the reminder text, listing today's events when the calendar
// backend can read them back, and optionally mails it.
type Digest struct {
	cfg    Config
	loc    *time.Location
	now    func() time.Time
	lister calendar.Lister
	sender notify.Sender
}

// Option configures a Digest.
type Option func(*Digest)

// WithLister adds today's events to the reminder.
func WithLister(l calendar.Lister) Option {
	return func(d *Digest) { d.lister = l }
}

// WithSender mails the reminder to Config.EmailTo.
func WithSender(s notify.Sender) Option {
	return func(d *Digest) { d.sender = s }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Digest) { d.now = now }
}

// NewDigest constructs a new Digest for the day in loc.
func NewDigest(cfg Config, loc *time.Location, opts ...Option) *Digest {
	if loc == nil {
		loc = time.UTC
	}
	if cfg.Subject == "" {
		cfg.Subject = "Daily Reminder"
	}
	d := &Digest{cfg: cfg, loc: loc, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Line is one entry of today's agenda.
type Line struct {
	Start, End time.Time
	Title      string
}

// Compose returns the reminder lines. A listing failure is logged and noted
// in the output rather than suppressing the reminder.
func (d *Digest) Compose(ctx context.Context) (message string, agenda []Line, err error) {
	message = d.cfg.Message
	if d.lister == nil {
		return message, nil, nil
	}

	now := d.now().In(d.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)
	events, err := d.lister.ListEvents(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		appLog.Error("reminder agenda unavailable", err)
		return message, nil, err
	}
	for _, ev := range events {
		agenda = append(agenda, Line{Start: ev.Start.In(d.loc), End: ev.End.In(d.loc), Title: ev.Title})
	}
	return message, agenda, nil
}

// Text renders the reminder for the console.
func (d *Digest) Text(ctx context.Context) string {
	message, agenda, err := d.Compose(ctx)
	var b strings.Builder
	b.WriteString(message)
	switch {
	case err != nil:
		b.WriteString("\n(today's events could not be loaded)")
	case d.lister == nil:
	case len(agenda) == 0:
		b.WriteString("\nNo meetings on the calendar today.")
	default:
		b.WriteString("\nToday's meetings:")
		for _, l := range agenda {
			fmt.Fprintf(&b, "\n  %s-%s  %s", l.Start.Format("15:04"), l.End.Format("15:04"), l.Title)
		}
	}
	return b.String()
}

// Deliver renders the reminder and, when configured, emails it. It returns
// the console text and whether an email was accepted.
func (d *Digest) Deliver(ctx context.Context) (string, bool) {
	text := d.Text(ctx)
	if d.sender == nil || d.cfg.EmailTo == "" {
		return text, false
	}

	ok, err := d.sender.SendEmail(ctx, d.cfg.EmailTo, d.cfg.Subject, toHTML(text))
	if err != nil {
		appLog.Error("reminder email failed", err, "to", d.cfg.EmailTo)
		return text, false
	}
	return text, ok
}

func toHTML(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return "<p>" + strings.Join(lines, "<br>") + "</p>"
}
