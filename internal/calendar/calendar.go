// Package calendar contains the calendar backends events are booked with.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"assistant/internal/model"
)

// Service creates events. Durability of the event is the backend's concern.
type Service interface {
	CreateEvent(ctx context.Context, ev model.Event) (model.CreatedEvent, error)
}

// Lister is implemented by backends that can read events back, used for
// the daily agenda.
type Lister interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]model.Event, error)
}

// NewEventID returns an id usable both as a Google Calendar event id
// (base32hex alphabet, 5-1024 chars) and as an iCalendar UID.
func NewEventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func validate(ev model.Event) error {
	if strings.TrimSpace(ev.Title) == "" {
		return fmt.Errorf("event title is empty")
	}
	if ev.Start.IsZero() || ev.End.IsZero() {
		return fmt.Errorf("event start/end not set")
	}
	if !ev.End.After(ev.Start) {
		return fmt.Errorf("event end %s is not after start %s", ev.End.Format(time.RFC3339), ev.Start.Format(time.RFC3339))
	}
	return nil
}
