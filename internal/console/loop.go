// Package console runs the operator loop: one queue of events fed by the
// line reader, the daily reminder and the HTTP API, drained by a single
// consumer so that no two events are ever handled at the same time.
package console

import (
	"context"
	"errors"
	"io"
	"strings"

	"assistant/internal/dispatch"
	appLog "assistant/internal/log"
)

// Handler runs one command to completion.
type Handler interface {
	Handle(ctx context.Context, raw string) dispatch.Report
}

// Reminder produces the daily reminder text and reports whether it was
// also emailed.
type Reminder interface {
	Deliver(ctx context.Context) (string, bool)
}

type eventKind int

const (
	eventCommand eventKind = iota
	eventReminder
	eventQuit
)

type event struct {
	kind   eventKind
	text   string
	source string
	// reply, if set, receives the report of a command event.
	reply chan<- dispatch.Report
	// done is closed once the event has been handled.
	done chan struct{}
}

// ErrClosed is returned by Submit once the loop has stopped.
var ErrClosed = errors.New("console loop is not running")

// Loop is the single consumer of the event queue.
type Loop struct {
	handler  Handler
	reminder Reminder
	printer  *Printer

	events  chan event
	stopped chan struct{}
}

// NewLoop returns a loop with an empty queue. r may be nil.
func NewLoop(h Handler, r Reminder, p *Printer) *Loop {
	return &Loop{
		handler:  h,
		reminder: r,
		printer:  p,
		events:   make(chan event, 16),
		stopped:  make(chan struct{}),
	}
}

// Remind queues a reminder. It never blocks; if the queue is full the
// reminder is dropped and logged.
func (l *Loop) Remind() {
	select {
	case <-l.stopped:
	case l.events <- event{kind: eventReminder, source: "schedule"}:
	default:
		appLog.Warn("reminder dropped, event queue full")
	}
}

// Submit queues a command from a non-console source and waits for its
// report.
func (l *Loop) Submit(ctx context.Context, source, text string) (dispatch.Report, error) {
	reply := make(chan dispatch.Report, 1)
	ev := event{kind: eventCommand, text: text, source: source, reply: reply}

	select {
	case <-ctx.Done():
		return dispatch.Report{}, ctx.Err()
	case <-l.stopped:
		return dispatch.Report{}, ErrClosed
	case l.events <- ev:
	}

	select {
	case <-ctx.Done():
		return dispatch.Report{}, ctx.Err()
	case <-l.stopped:
		return dispatch.Report{}, ErrClosed
	case rep := <-reply:
		return rep, nil
	}
}

// Run reads lines from src and handles queued events until the operator
// types "exit", input ends, or ctx is cancelled. The event being handled
// when shutdown is requested always completes first: handlers get a
// context that keeps ctx's values but is never cancelled by it. src is
// closed on return.
func (l *Loop) Run(ctx context.Context, src LineSource) error {
	defer close(l.stopped)
	defer src.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	hctx := context.WithoutCancel(ctx)

	l.printer.Banner()
	go l.readLines(ctx, src)

	for {
		select {
		case <-ctx.Done():
			appLog.Info("console loop stopping", "reason", ctx.Err())
			return nil
		case ev := <-l.events:
			quit := l.handle(hctx, ev)
			if ev.done != nil {
				close(ev.done)
			}
			if quit {
				l.printer.Goodbye()
				return nil
			}
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev event) (quit bool) {
	switch ev.kind {
	case eventQuit:
		return true
	case eventReminder:
		if l.reminder == nil {
			return false
		}
		text, emailed := l.reminder.Deliver(ctx)
		l.printer.Reminder(text, emailed)
	case eventCommand:
		rep := l.handler.Handle(ctx, ev.text)
		if ev.reply != nil {
			ev.reply <- rep
		}
		if ev.source != "console" {
			l.printer.Remote(ev.source, ev.text)
		}
		l.printer.Report(rep)
	}
	return false
}

// readLines turns operator input into events. It waits for each command to
// be handled before prompting again so output never lands mid-prompt.
func (l *Loop) readLines(ctx context.Context, src LineSource) {
	send := func(ev event) bool {
		ev.done = make(chan struct{})
		select {
		case <-ctx.Done():
			return false
		case l.events <- ev:
		}
		select {
		case <-ctx.Done():
			return false
		case <-ev.done:
			return true
		}
	}

	for {
		line, err := src.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, ErrInterrupted) {
				appLog.Error("console read failed", err)
			}
			send(event{kind: eventQuit})
			return
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			send(event{kind: eventQuit})
			return
		}
		if !send(event{kind: eventCommand, text: line, source: "console"}) {
			return
		}
	}
}
