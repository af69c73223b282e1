package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"assistant/internal/model"
	"assistant/internal/temporal"
)

// clause is one rule of the grammar
//
//	schedule a meeting with <attendees> <day> at <hour>[:<minute>] [am|pm] [for <N> minute(s)|hour(s)]
//
// Each clause pattern is anchored to one end of the remaining input; a match
// is cut out of the input and fills its part of the ParsedCommand.
type clause struct {
	name     string
	pattern  *regexp.Regexp
	optional bool
	apply    func(m []string, p *model.ParsedCommand) error
}

// match applies c to rest. It returns the remaining text and whether the
// clause matched. A non-nil error means the clause matched but its values
// are out of range.
func (c clause) match(rest string, p *model.ParsedCommand) (string, bool, error) {
	loc := c.pattern.FindStringSubmatchIndex(rest)
	if loc == nil {
		return rest, false, nil
	}
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = rest[loc[2*i]:loc[2*i+1]]
		}
	}
	if err := c.apply(m, p); err != nil {
		return rest, true, fmt.Errorf("%s: %w", c.name, err)
	}
	return rest[:loc[0]] + rest[loc[1]:], true, nil
}

var prefixClause = clause{
	name:    "prefix",
	pattern: regexp.MustCompile(`(?i)^schedule\s+a\s+meeting\s+with\s+`),
	apply: func(_ []string, p *model.ParsedCommand) error {
		p.Intent = model.IntentScheduleMeeting
		return nil
	},
}

var durationClause = clause{
	name:     "duration",
	pattern:  regexp.MustCompile(`(?i)\s+for\s+(\d{1,4})\s*(minutes?|hours?)$`),
	optional: true,
	apply: func(m []string, p *model.ParsedCommand) error {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("duration must be positive, got %d", n)
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "hour") {
			n *= 60
		}
		p.DurationMinutes = n
		return nil
	},
}

var timeClause = clause{
	name:    "time",
	pattern: regexp.MustCompile(`(?i)\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`),
	apply: func(m []string, p *model.ParsedCommand) error {
		hour, minute, err := clock(m[1], m[2], m[3])
		if err != nil {
			return err
		}
		p.Hour, p.HasHour, p.Minute = hour, true, minute
		return nil
	},
}

var dayClause = clause{
	name:    "day",
	pattern: regexp.MustCompile(`(?i)\s+(next\s+[a-z]+|[a-z]+)$`),
	apply: func(m []string, p *model.ParsedCommand) error {
		// Vocabulary is checked by the temporal resolver so that an unknown
		// word is reported as such rather than as a grammar mismatch.
		p.DayReference = temporal.Normalize(m[1])
		return nil
	},
}

var attendeesClause = clause{
	name:    "attendees",
	pattern: regexp.MustCompile(`^\s*([\pL\pN_@.,'+\-\s]+?)\s*$`),
	apply: func(m []string, p *model.ParsedCommand) error {
		p.Attendees = splitAttendees(m[1])
		if len(p.Attendees) == 0 {
			return fmt.Errorf("no attendees")
		}
		return nil
	},
}

// grammar is applied in order: the fixed prefix, then the optional
// trailing clauses from the right, leaving the attendee list.
var grammar = []clause{
	prefixClause,
	durationClause,
	timeClause,
	dayClause,
	attendeesClause,
}

var clockPattern = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.|p\.m\.)?$`)

// ParseClock reads a standalone time of day such as "9", "17:30", "2pm"
// or "10:45 AM" with the same rules as the "at" clause.
func ParseClock(s string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized time %q", s)
	}
	return clock(m[1], m[2], strings.ReplaceAll(m[3], ".", ""))
}

func clock(h, m, period string) (hour, minute int, err error) {
	if hour, err = strconv.Atoi(h); err != nil {
		return 0, 0, err
	}
	if m != "" {
		if minute, err = strconv.Atoi(m); err != nil {
			return 0, 0, err
		}
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range", minute)
	}
	if hour, err = to24Hour(hour, strings.ToLower(period)); err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

// to24Hour applies the am/pm suffix. With a suffix the hour must be 1-12,
// without one it is taken as a 24-hour value.
func to24Hour(hour int, period string) (int, error) {
	switch period {
	case "":
		if hour > 23 {
			return 0, fmt.Errorf("hour %d out of range", hour)
		}
		return hour, nil
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return 0, fmt.Errorf("hour %d out of range for %s", hour, period)
		}
		if period == "pm" && hour != 12 {
			return hour + 12, nil
		}
		if period == "am" && hour == 12 {
			return 0, nil
		}
		return hour, nil
	default:
		return 0, fmt.Errorf("unknown period %q", period)
	}
}

func splitAttendees(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Join(strings.Fields(part), " ")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
