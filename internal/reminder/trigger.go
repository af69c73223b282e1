package reminder

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "assistant/internal/log"
)

// Trigger fires once a day at a fixed local time. The fire callback should
// only hand work off (e.g. enqueue an event); it runs on cron's goroutine.
type Trigger struct {
	cron *cron.Cron
	spec string
}

// Spec returns the cron expression for hour:minute every day in loc.
func Spec(loc *time.Location, hour, minute int) string {
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), minute, hour)
}

// NewTrigger registers fire at hour:minute in loc. The trigger does not run
// until Start.
func NewTrigger(loc *time.Location, hour, minute int, fire func()) (*Trigger, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		cron.WithLogger(logger),
		cron.WithLocation(loc),
	)

	spec := Spec(loc, hour, minute)
	if _, err := c.AddFunc(spec, fire); err != nil {
		return nil, fmt.Errorf("register reminder %q: %w", spec, err)
	}
	return &Trigger{cron: c, spec: spec}, nil
}

// Start schedules the daily job in the background.
func (t *Trigger) Start() {
	t.cron.Start()
	appLog.Info("daily reminder armed", "spec", t.spec, "next", t.Next().Format(time.RFC3339))
}

// Stop waits for a running callback to return.
func (t *Trigger) Stop() {
	<-t.cron.Stop().Done()
}

// Next returns the next fire time, or the zero time before Start.
func (t *Trigger) Next() time.Time {
	entries := t.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger routes cron's own diagnostics into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
