package calendar

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// ICSDir is an offline backend: every event becomes a METHOD:REQUEST
// invitation file <id>.ics in a directory, which can be imported into or
// mailed from any calendar client.
type ICSDir struct {
	dir       string
	organizer string
	now       func() time.Time
}

// NewICSDir stores events under dir. organizer, if set, is written as the
// ORGANIZER of each event.
func NewICSDir(dir, organizer string) *ICSDir {
	if dir == "" {
		dir = "./var/events"
	}
	return &ICSDir{dir: dir, organizer: organizer, now: time.Now}
}

// CreateEvent serializes ev and writes it atomically.
func (d *ICSDir) CreateEvent(_ context.Context, ev model.Event) (model.CreatedEvent, error) {
	if err := validate(ev); err != nil {
		return model.CreatedEvent{}, err
	}
	if ev.ID == "" {
		ev.ID = NewEventID()
	}

	body := renderInvite(ev, d.organizer, d.now())
	path := filepath.Join(d.dir, ev.ID+".ics")
	if err := writeFileAtomic(path, []byte(body)); err != nil {
		return model.CreatedEvent{}, fmt.Errorf("write ics %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	appLog.Info("ics event written", "id", ev.ID, "path", abs, "attendees", len(ev.Attendees))
	return model.CreatedEvent{ID: ev.ID, HTMLLink: "file://" + filepath.ToSlash(abs)}, nil
}

// ListEvents parses every .ics file in the directory and returns events
// overlapping [from, to) in from's location, ordered by start.
func (d *ICSDir) ListEvents(_ context.Context, from, to time.Time) ([]model.Event, error) {
	paths, err := filepath.Glob(filepath.Join(d.dir, "*.ics"))
	if err != nil {
		return nil, err
	}

	out := make([]model.Event, 0)
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		events, err := parseICS(path, body, from.Location())
		if err != nil {
			// One unreadable file should not hide the rest of the agenda.
			continue
		}
		for _, ev := range events {
			if ev.Start.Before(to) && ev.End.After(from) {
				ev.HTMLLink = "file://" + filepath.ToSlash(path)
				out = append(out, ev)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func renderInvite(ev model.Event, organizer string, now time.Time) string {
	cal := ical.NewCalendarFor("assistant")
	cal.SetMethod(ical.MethodRequest)
	if ev.Timezone != "" {
		cal.SetXWRTimezone(ev.Timezone)
	}

	e := cal.AddEvent(ev.ID)
	e.SetDtStampTime(now)
	e.SetCreatedTime(now)
	e.SetSequence(0)
	e.SetStartAt(ev.Start)
	e.SetEndAt(ev.End)
	e.SetSummary(ev.Title)
	if ev.Description != "" {
		e.SetDescription(ev.Description)
	}
	if organizer != "" {
		e.SetOrganizer(organizer)
	}
	for _, email := range ev.Attendees {
		e.AddAttendee(email,
			ical.ParticipationRoleReqParticipant,
			ical.ParticipationStatusNeedsAction,
			ical.WithRSVP(ev.NotifyAttendees),
		)
	}
	return cal.Serialize()
}
