package calendar

import (
	"bytes"
	"errors"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// parseICS reads the VEVENTs of one payload. Events without UID or a
// usable DTSTART are logged and skipped; times are converted to loc.
func parseICS(name string, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "file", name)
		return nil, err
	}

	events := make([]model.Event, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr, "file", name)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "file", name, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		// DTEND is optional; treat as zero-length.
		end = start
	}
	out.Start = start.In(loc)
	out.End = end.In(loc)
	out.Timezone = loc.String()

	for _, a := range ve.Attendees() {
		out.Attendees = append(out.Attendees, a.Email())
	}
	return out, nil
}
