// Package dispatch runs one operator command through parsing, routing and
// execution, and reports the result without ever failing the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"assistant/internal/apperr"
	"assistant/internal/llm"
	appLog "assistant/internal/log"
	"assistant/internal/meeting"
	"assistant/internal/model"
)

// Parser is the fixed grammar.
type Parser interface {
	Parse(raw string) (model.ParsedCommand, bool)
}

// Scheduler books a parsed meeting command.
type Scheduler interface {
	Schedule(ctx context.Context, pc model.ParsedCommand) (meeting.Outcome, error)
}

// Report is the outcome of one handling cycle as shown to the operator.
type Report struct {
	OK      bool         `json:"ok"`
	Kind    apperr.Kind  `json:"kind,omitempty"`
	Intent  model.Intent `json:"intent,omitempty"`
	Message string       `json:"message"`
}

// Dispatcher is safe for sequential use; the console guarantees one
// command at a time.
type Dispatcher struct {
	parser          Parser
	interpreter     llm.Interpreter
	scheduler       Scheduler
	defaultDuration int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithInterpreter enables the language-model path for commands the grammar
// does not recognise.
func WithInterpreter(in llm.Interpreter, defaultDuration int) Option {
	return func(d *Dispatcher) {
		d.interpreter = in
		d.defaultDuration = defaultDuration
	}
}

// New returns a Dispatcher that tries parser first and routes meetings to
// scheduler.
func New(parser Parser, scheduler Scheduler, opts ...Option) *Dispatcher {
	d := &Dispatcher{parser: parser, scheduler: scheduler}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Handle never panics and never returns an error: every failure, including
// a panic in a collaborator, becomes a Report with OK=false.
func (d *Dispatcher) Handle(ctx context.Context, raw string) (rep Report) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Error("command handling panicked", fmt.Errorf("%v", r), "stack", string(debug.Stack()))
			rep = Report{Kind: apperr.KindUnknown, Message: fmt.Sprintf("Error during command handling: %v", r)}
		}
	}()

	raw = strings.TrimSpace(raw)
	pc, err := d.parse(ctx, raw)
	if err != nil {
		return failure(err)
	}

	switch pc.Intent {
	case model.IntentScheduleMeeting:
		out, err := d.scheduler.Schedule(ctx, pc)
		if err != nil {
			failed := failure(err)
			failed.Intent = pc.Intent
			return failed
		}
		return Report{OK: true, Intent: pc.Intent, Message: out.Summary()}
	default:
		appLog.Info("unknown intent", "intent", pc.Intent, "command", raw)
		return Report{Kind: apperr.KindUnknown, Intent: pc.Intent, Message: fmt.Sprintf("Unknown intent: %s", pc.Intent)}
	}
}

func (d *Dispatcher) parse(ctx context.Context, raw string) (model.ParsedCommand, error) {
	if raw == "" {
		return model.ParsedCommand{}, apperr.ParseFailure("command.parse", "empty command")
	}
	if pc, ok := d.parser.Parse(raw); ok {
		pc.Raw = raw
		return pc, nil
	}
	if d.interpreter == nil {
		return model.ParsedCommand{}, apperr.ParseFailure("command.parse", "input does not match the command grammar")
	}

	res, err := d.interpreter.Interpret(ctx, raw)
	if err != nil {
		return model.ParsedCommand{}, err
	}
	return llm.Normalize(res, raw, d.defaultDuration)
}

func failure(err error) Report {
	kind := apperr.KindOf(err)
	var msg string
	switch kind {
	case apperr.KindParseFailure:
		msg = "Command parsing failed: Could not understand the input."
	case apperr.KindUnknownDayReference:
		msg = "Could not resolve the day of the meeting."
	case apperr.KindMissingFields:
		msg = "Missing required details for scheduling."
	case apperr.KindCollaboratorFailure:
		msg = "Failed to reach an external service."
	default:
		msg = "Error during command handling."
	}

	if detail := detailOf(err); detail != "" {
		msg += " (" + detail + ")"
	}
	appLog.Warn("command failed", "kind", kind, "err", err)
	return Report{Kind: kind, Message: msg}
}

func detailOf(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return err.Error()
	}
	if ae.Msg != "" {
		return ae.Msg
	}
	if ae.Err != nil {
		return ae.Err.Error()
	}
	return ""
}
