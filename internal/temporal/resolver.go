// Package temporal turns day references ("today", "friday", "next tuesday")
// plus an hour and minute into absolute times in a fixed location.
package temporal

import (
	"errors"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"assistant/internal/apperr"
)

const op = "temporal.resolve"

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

var ruleDays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// Resolver resolves day references relative to its clock, in its location.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver returns a Resolver anchored to loc. A nil loc means UTC.
func NewResolver(loc *time.Location, opts ...Option) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	r := &Resolver{loc: loc, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Location returns the location results are expressed in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Now returns the resolver's current time in its location.
func (r *Resolver) Now() time.Time { return r.now().In(r.loc) }

// IsDayReference reports whether s belongs to the accepted vocabulary.
func IsDayReference(s string) bool {
	ref := Normalize(s)
	if ref == "today" || ref == "tomorrow" {
		return true
	}
	ref = strings.TrimPrefix(ref, "next ")
	_, ok := weekdays[ref]
	return ok
}

// Normalize lowercases a day reference and collapses inner whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Resolve returns the absolute time for dayRef at hour:minute.
//
//   - "today" keeps today's date even if hour:minute already passed.
//   - A bare weekday is the next such day strictly after today (1..7 days out).
//   - "next <weekday>" is the bare weekday plus exactly 7 days.
func (r *Resolver) Resolve(dayRef string, hour, minute int) (time.Time, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, apperr.ParseFailure(op, "invalid time %02d:%02d", hour, minute)
	}

	ref := Normalize(dayRef)
	now := r.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, r.loc)

	switch ref {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	name, next := ref, false
	if rest, ok := strings.CutPrefix(ref, "next "); ok {
		name, next = rest, true
	}
	wd, ok := weekdays[name]
	if !ok {
		return time.Time{}, apperr.UnknownDayReference(op, dayRef)
	}

	t, err := upcoming(today, wd)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindUnknownDayReference, op, err)
	}
	if next {
		t = t.AddDate(0, 0, 7)
	}
	return t, nil
}

// upcoming finds the first wd on or after the day after from, keeping
// from's clock time and location.
func upcoming(from time.Time, wd time.Weekday) (time.Time, error) {
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   from.AddDate(0, 0, 1),
		Byweekday: []rrule.Weekday{ruleDays[wd]},
		Count:     1,
	})
	if err != nil {
		return time.Time{}, err
	}
	occ := rule.All()
	if len(occ) == 0 {
		return time.Time{}, errors.New("no occurrence for weekday " + wd.String())
	}
	return occ[0], nil
}
