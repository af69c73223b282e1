package command

import (
	"fmt"
	"strings"

	"assistant/internal/model"
)

// Render returns the canonical text for p, e.g.
//
//	schedule a meeting with john, beza next friday at 14:00 for 90 minutes
//
// Parsing the result yields p again.
func Render(p model.ParsedCommand) string {
	return fmt.Sprintf("schedule a meeting with %s %s at %02d:%02d for %d minutes",
		strings.Join(p.Attendees, ", "),
		p.DayReference,
		p.Hour,
		p.Minute,
		int(p.Duration().Minutes()),
	)
}
