// Package meeting turns a parsed scheduling command into a calendar event.
package meeting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant/internal/apperr"
	"assistant/internal/calendar"
	appLog "assistant/internal/log"
	"assistant/internal/model"
)

const op = "meeting.schedule"

// Contacts resolves attendee tokens to email addresses.
type Contacts interface {
	ResolveAll(tokens []string) []string
}

// Clock resolves a day reference and time of day to an absolute start.
type Clock interface {
	Resolve(dayRef string, hour, minute int) (time.Time, error)
	Location() *time.Location
}

// Scheduler books meetings. It holds no per-command state and is safe to
// reuse across commands.
type Scheduler struct {
	contacts Contacts
	clock    Clock
	calendar calendar.Service
}

// NewScheduler returns a Scheduler booking through cal.
func NewScheduler(contacts Contacts, clock Clock, cal calendar.Service) *Scheduler {
	return &Scheduler{contacts: contacts, clock: clock, calendar: cal}
}

// Outcome is a successfully booked meeting.
type Outcome struct {
	Meeting model.ResolvedMeeting
	Event   model.CreatedEvent
}

// Summary renders the confirmation shown to the operator.
func (o Outcome) Summary() string {
	m := o.Meeting
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting scheduled with %s on %s\n",
		strings.Join(m.Emails, ", "), m.Start.Format("Monday 2006-01-02 15:04"))
	fmt.Fprintf(&b, "Start: %s, End: %s (Duration: %d minutes)",
		m.Start.Format("2006-01-02 15:04 MST"), m.End.Format("2006-01-02 15:04 MST"),
		int(m.End.Sub(m.Start)/time.Minute))
	if o.Event.HTMLLink != "" {
		fmt.Fprintf(&b, "\nEvent link: %s", o.Event.HTMLLink)
	}
	return b.String()
}

// Schedule validates pc, resolves attendees and the start time, then creates
// exactly one calendar event. Nothing reaches the calendar when a required
// field is missing or the day cannot be resolved.
func (s *Scheduler) Schedule(ctx context.Context, pc model.ParsedCommand) (Outcome, error) {
	var missing []string
	if len(pc.Attendees) == 0 {
		missing = append(missing, "attendees")
	}
	if strings.TrimSpace(pc.DayReference) == "" {
		missing = append(missing, "day")
	}
	if !pc.HasHour {
		missing = append(missing, "hour")
	}
	if len(missing) > 0 {
		return Outcome{}, apperr.MissingFields(op, missing...)
	}

	emails := s.contacts.ResolveAll(pc.Attendees)

	start, err := s.clock.Resolve(pc.DayReference, pc.Hour, pc.Minute)
	if err != nil {
		return Outcome{}, err
	}

	m := model.ResolvedMeeting{
		Emails: emails,
		Start:  start,
		End:    start.Add(pc.Duration()),
		Title:  "Meeting with " + strings.Join(emails, ", "),
	}

	ev := model.Event{
		ID:              calendar.NewEventID(),
		Title:           m.Title,
		Description:     description(pc.Raw),
		Start:           m.Start,
		End:             m.End,
		Timezone:        s.clock.Location().String(),
		Attendees:       emails,
		NotifyAttendees: true,
	}

	created, err := s.calendar.CreateEvent(ctx, ev)
	if err != nil {
		appLog.Error("calendar event creation failed", err, "event_id", ev.ID, "attendees", len(emails))
		return Outcome{}, apperr.Collaborator("calendar.create_event", err)
	}

	appLog.Info("meeting scheduled", "event_id", created.ID, "start", m.Start.Format(time.RFC3339), "attendees", len(emails))
	return Outcome{Meeting: m, Event: created}, nil
}

func description(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "Scheduled by assistant"
	}
	return "Scheduled by assistant from: " + raw
}
