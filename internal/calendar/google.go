package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// GoogleConfig locates the OAuth client secrets and the cached user token.
type GoogleConfig struct {
	CredentialsFile string
	TokenFile       string
	CalendarID      string
}

// Google books events through the Google Calendar v3 API.
type Google struct {
	svc        *gcal.Service
	calendarID string
}

// NewGoogle builds an authenticated client from cfg. The token file must
// already exist (see Authorize); refreshed tokens are written back to it.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	oc, err := LoadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("load google token (run `assistant auth` first): %w", err)
	}

	ts := NewSavingTokenSource(oc.TokenSource(ctx, tok), cfg.TokenFile, tok)
	svc, err := gcal.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return NewGoogleWithService(svc, cfg.CalendarID), nil
}

// NewGoogleWithService wraps an existing service. An empty calendarID
// means the user's primary calendar.
func NewGoogleWithService(svc *gcal.Service, calendarID string) *Google {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Google{svc: svc, calendarID: calendarID}
}

// CreateEvent inserts ev. Start and end carry the event's time zone name
// so that Google renders them in that zone.
func (g *Google) CreateEvent(ctx context.Context, ev model.Event) (model.CreatedEvent, error) {
	if err := validate(ev); err != nil {
		return model.CreatedEvent{}, err
	}

	body := &gcal.Event{
		Id:          ev.ID,
		Summary:     ev.Title,
		Description: ev.Description,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		},
	}
	for _, email := range ev.Attendees {
		body.Attendees = append(body.Attendees, &gcal.EventAttendee{Email: email})
	}

	sendUpdates := "none"
	if ev.NotifyAttendees {
		sendUpdates = "all"
	}

	created, err := g.svc.Events.Insert(g.calendarID, body).
		SendUpdates(sendUpdates).
		Context(ctx).
		Do()
	if err != nil {
		return model.CreatedEvent{}, fmt.Errorf("google calendar insert: %w", err)
	}

	appLog.Info("google event created", "id", created.Id, "calendar", g.calendarID, "attendees", len(body.Attendees))
	return model.CreatedEvent{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}

// ListEvents returns single (expanded) events overlapping [from, to),
// ordered by start time.
func (g *Google) ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	resp, err := g.svc.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google calendar list: %w", err)
	}

	out := make([]model.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		start, serr := eventTime(item.Start, from.Location())
		end, eerr := eventTime(item.End, from.Location())
		if err := errors.Join(serr, eerr); err != nil {
			appLog.Error("google event skipped", err, "id", item.Id)
			continue
		}
		ev := model.Event{
			ID:          item.Id,
			Title:       item.Summary,
			Description: item.Description,
			Start:       start,
			End:         end,
			HTMLLink:    item.HtmlLink,
		}
		if item.Start != nil {
			ev.Timezone = item.Start.TimeZone
		}
		for _, a := range item.Attendees {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
		out = append(out, ev)
	}
	return out, nil
}

// eventTime reads either a dateTime or an all-day date.
func eventTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing event time")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}
	return time.ParseInLocation("2006-01-02", dt.Date, loc)
}
