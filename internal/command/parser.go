// Package command turns operator text into a model.ParsedCommand.
package command

import (
	"strings"

	appLog "assistant/internal/log"
	"assistant/internal/model"
)

// Parser matches the scheduling grammar. It is stateless apart from the
// default meeting length and safe for concurrent use.
type Parser struct {
	defaultDuration int
}

// NewParser returns a Parser that fills in defaultDuration minutes when a
// command has no "for N minutes" clause. Non-positive values mean 30.
func NewParser(defaultDuration int) *Parser {
	if defaultDuration <= 0 {
		defaultDuration = model.DefaultDurationMinutes
	}
	return &Parser{defaultDuration: defaultDuration}
}

// Parse returns the structured command and true, or false when raw does not
// match the grammar. No partial result is produced on failure.
func (p *Parser) Parse(raw string) (model.ParsedCommand, bool) {
	rest := strings.TrimSpace(raw)
	rest = strings.TrimSpace(strings.TrimRight(rest, ".!"))

	out := model.ParsedCommand{
		Intent:          model.IntentUnknown,
		DurationMinutes: p.defaultDuration,
	}

	for _, c := range grammar {
		next, ok, err := c.match(rest, &out)
		if err != nil {
			appLog.Debug("command clause rejected", "clause", c.name, "err", err)
			return model.ParsedCommand{}, false
		}
		if !ok {
			if c.optional {
				continue
			}
			appLog.Debug("command clause did not match", "clause", c.name)
			return model.ParsedCommand{}, false
		}
		rest = next
	}

	if strings.TrimSpace(rest) != "" {
		return model.ParsedCommand{}, false
	}
	return out, true
}
