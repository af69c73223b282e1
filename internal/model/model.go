package model

import "time"

// Intent is the classified purpose of a command.
type Intent string

const (
	IntentScheduleMeeting Intent = "schedule_meeting"
	IntentUnknown         Intent = "unknown"
)

// DefaultDurationMinutes is used when a command carries no "for N minutes" clause.
const DefaultDurationMinutes = 30

// ParsedCommand is the structured form of one operator command. It lives
// for a single handling cycle.
type ParsedCommand struct {
	Intent Intent

	// Attendees are raw tokens (names or addresses) in command order.
	Attendees []string

	// DayReference is "today", "tomorrow", a weekday name or "next <weekday>".
	DayReference string

	// Hour is 0-23 after am/pm normalization. HasHour distinguishes an
	// absent hour from midnight for commands that did not come through
	// the grammar.
	Hour    int
	HasHour bool
	Minute  int

	DurationMinutes int

	// Raw is the original command text, used for the event description.
	Raw string
}

// Duration returns the meeting length, falling back to the default.
func (p ParsedCommand) Duration() time.Duration {
	if p.DurationMinutes <= 0 {
		return DefaultDurationMinutes * time.Minute
	}
	return time.Duration(p.DurationMinutes) * time.Minute
}

// ResolvedMeeting is a ParsedCommand after contact and time resolution.
type ResolvedMeeting struct {
	Emails []string
	Start  time.Time
	End    time.Time
	Title  string
}

// Event is a calendar booking request handed to a calendar backend.
type Event struct {
	// ID is client-generated so backends can use it as UID / event id.
	ID          string
	Title       string
	Description string

	// Start / End carry the configured location; Timezone is its IANA name.
	Start    time.Time
	End      time.Time
	Timezone string

	Attendees []string

	// NotifyAttendees asks the backend to send invitations to all attendees.
	NotifyAttendees bool

	// HTMLLink is filled in by backends when listing.
	HTMLLink string
}

// CreatedEvent is what a calendar backend reports after a successful insert.
type CreatedEvent struct {
	ID       string
	HTMLLink string
}
