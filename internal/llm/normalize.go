package llm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"assistant/internal/apperr"
	"assistant/internal/command"
	"assistant/internal/model"
	"assistant/internal/temporal"
)

const normalizeOp = "llm.normalize"

// attendeeKeys are the detail keys models use for meeting participants,
// in order of preference.
var attendeeKeys = []string{"attendees", "people", "person", "persons", "emails", "email"}

// Normalize maps a Result onto the same ParsedCommand the grammar produces.
// Absent fields stay empty so the scheduler can report them; values that
// are present but unreadable are parse failures.
func Normalize(res Result, raw string, defaultDuration int) (model.ParsedCommand, error) {
	if defaultDuration <= 0 {
		defaultDuration = model.DefaultDurationMinutes
	}
	pc := model.ParsedCommand{
		Intent:          mapIntent(res.Intent),
		DurationMinutes: defaultDuration,
		Raw:             raw,
	}
	if pc.Intent != model.IntentScheduleMeeting {
		return pc, nil
	}

	for _, key := range attendeeKeys {
		if names := stringList(res.Details[key]); len(names) > 0 {
			pc.Attendees = names
			break
		}
	}

	if date, ok := res.Details["date"].(string); ok {
		pc.DayReference = dayReference(date)
	}

	switch v := res.Details["time"].(type) {
	case nil:
	case string:
		if strings.TrimSpace(v) != "" {
			hour, minute, err := command.ParseClock(v)
			if err != nil {
				return pc, apperr.ParseFailure(normalizeOp, "unreadable time %q", v)
			}
			pc.Hour, pc.Minute, pc.HasHour = hour, minute, true
		}
	case float64:
		if v != math.Trunc(v) || v < 0 || v > 23 {
			return pc, apperr.ParseFailure(normalizeOp, "unreadable time %v", v)
		}
		pc.Hour, pc.HasHour = int(v), true
	default:
		return pc, apperr.ParseFailure(normalizeOp, "unreadable time %v", v)
	}

	if d, ok := res.Details["duration"]; ok && d != nil {
		n, err := minutes(d)
		if err != nil {
			return pc, apperr.ParseFailure(normalizeOp, "unreadable duration %v", d)
		}
		pc.DurationMinutes = n
	}
	return pc, nil
}

func mapIntent(s string) model.Intent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "schedule", "schedule_meeting", "meeting":
		return model.IntentScheduleMeeting
	default:
		return model.IntentUnknown
	}
}

// dayReference trims filler the model tends to keep ("on friday",
// "this tuesday") and leaves vocabulary checks to the resolver.
func dayReference(s string) string {
	ref := temporal.Normalize(s)
	for _, filler := range []string{"on ", "this "} {
		ref = strings.TrimPrefix(ref, filler)
	}
	return ref
}

// stringList accepts a JSON array of strings or a comma separated string.
func stringList(v any) []string {
	var parts []string
	switch t := v.(type) {
	case string:
		parts = strings.Split(t, ",")
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, strings.Split(s, ",")...)
			}
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// minutes reads 45, "45", "45 minutes" or "2 hours".
func minutes(v any) (int, error) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != math.Trunc(t) {
			return 0, fmt.Errorf("bad duration %v", t)
		}
		return int(t), nil
	case string:
		fields := strings.Fields(strings.ToLower(t))
		if len(fields) == 0 || len(fields) > 2 {
			return 0, fmt.Errorf("bad duration %q", t)
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad duration %q", t)
		}
		if len(fields) == 2 {
			switch {
			case strings.HasPrefix(fields[1], "hour"):
				n *= 60
			case strings.HasPrefix(fields[1], "min"):
			default:
				return 0, fmt.Errorf("bad duration unit %q", fields[1])
			}
		}
		return n, nil
	default:
		return 0, fmt.Errorf("bad duration %v", v)
	}
}
