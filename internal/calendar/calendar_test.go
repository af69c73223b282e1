package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"assistant/internal/model"
)

var eat = time.FixedZone("EAT", 3*60*60)

func sampleEvent() model.Event {
	start := time.Date(2026, 10, 20, 14, 0, 0, 0, eat)
	return model.Event{
		ID:              NewEventID(),
		Title:           "Meeting with a@x.com, b@y.com",
		Description:     "Scheduled by assistant",
		Start:           start,
		End:             start.Add(90 * time.Minute),
		Timezone:        "Africa/Addis_Ababa",
		Attendees:       []string{"a@x.com", "b@y.com"},
		NotifyAttendees: true,
	}
}

func TestNewEventIDAlphabet(t *testing.T) {
	id := NewEventID()
	assert.Len(t, id, 32)
	assert.Equal(t, strings.ToLower(id), id)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, NewEventID())
}

func TestValidate(t *testing.T) {
	ev := sampleEvent()
	assert.NoError(t, validate(ev))

	bad := ev
	bad.End = bad.Start
	assert.Error(t, validate(bad))

	bad = ev
	bad.Title = "  "
	assert.Error(t, validate(bad))
}

func TestICSDirCreateAndList(t *testing.T) {
	dir := t.TempDir()
	d := NewICSDir(dir, "me@example.com")
	d.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	ev := sampleEvent()
	created, err := d.CreateEvent(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, created.ID)
	assert.True(t, strings.HasPrefix(created.HTMLLink, "file://"))

	raw, err := os.ReadFile(filepath.Join(dir, ev.ID+".ics"))
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, "METHOD:REQUEST")
	assert.Contains(t, body, "X-WR-TIMEZONE:Africa/Addis_Ababa")
	assert.Contains(t, body, "DTSTART:20261020T110000Z")
	assert.Contains(t, body, "ORGANIZER:mailto:me@example.com")

	info, err := os.Stat(filepath.Join(dir, ev.ID+".ics"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	day := time.Date(2026, 10, 20, 0, 0, 0, 0, eat)
	listed, err := d.ListEvents(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, ev.ID, listed[0].ID)
	assert.Equal(t, ev.Title, listed[0].Title)
	assert.True(t, ev.Start.Equal(listed[0].Start))
	assert.True(t, ev.End.Equal(listed[0].End))
	assert.Equal(t, ev.Attendees, listed[0].Attendees)

	other, err := d.ListEvents(ctx, day.AddDate(0, 0, 1), day.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestICSDirSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.ics"), []byte("not a calendar"), 0o600))

	d := NewICSDir(dir, "")
	_, err := d.CreateEvent(context.Background(), sampleEvent())
	require.NoError(t, err)

	day := time.Date(2026, 10, 20, 0, 0, 0, 0, eat)
	listed, err := d.ListEvents(context.Background(), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestICSDirRejectsInvalidEvent(t *testing.T) {
	d := NewICSDir(t.TempDir(), "")
	ev := sampleEvent()
	ev.End = ev.Start.Add(-time.Minute)

	_, err := d.CreateEvent(context.Background(), ev)
	assert.Error(t, err)
}

func newGoogleTestServer(t *testing.T, handler http.HandlerFunc) *Google {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gcal.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewGoogleWithService(svc, "")
}

func TestGoogleCreateEvent(t *testing.T) {
	ev := sampleEvent()
	var got gcal.Event
	var sendUpdates string

	g := newGoogleTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			http.NotFound(w, r)
			return
		}
		sendUpdates = r.URL.Query().Get("sendUpdates")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       got.Id,
			"htmlLink": "https://calendar.google.com/event?eid=abc",
		})
	})

	created, err := g.CreateEvent(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, "all", sendUpdates)
	assert.Equal(t, ev.ID, created.ID)
	assert.Equal(t, "https://calendar.google.com/event?eid=abc", created.HTMLLink)
	assert.Equal(t, ev.Title, got.Summary)
	assert.Equal(t, "2026-10-20T14:00:00+03:00", got.Start.DateTime)
	assert.Equal(t, "2026-10-20T15:30:00+03:00", got.End.DateTime)
	assert.Equal(t, "Africa/Addis_Ababa", got.Start.TimeZone)
	require.Len(t, got.Attendees, 2)
	assert.Equal(t, "a@x.com", got.Attendees[0].Email)
	assert.Equal(t, "b@y.com", got.Attendees[1].Email)
}

func TestGoogleCreateEventError(t *testing.T) {
	g := newGoogleTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})

	_, err := g.CreateEvent(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google calendar insert")
}

func TestGoogleListEvents(t *testing.T) {
	g := newGoogleTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":"e1","summary":"Standup","start":{"dateTime":"2026-10-20T06:00:00Z"},"end":{"dateTime":"2026-10-20T06:15:00Z"},"attendees":[{"email":"a@x.com"}]},
			{"id":"e2","summary":"Holiday","start":{"date":"2026-10-20"},"end":{"date":"2026-10-21"}},
			{"id":"e3","summary":"Broken"}
		]}`))
	})

	day := time.Date(2026, 10, 20, 0, 0, 0, 0, eat)
	events, err := g.ListEvents(context.Background(), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "Standup", events[0].Title)
	assert.Equal(t, 9, events[0].Start.Hour())
	assert.Equal(t, []string{"a@x.com"}, events[0].Attendees)
	assert.Equal(t, "Holiday", events[1].Title)
	assert.True(t, day.Equal(events[1].Start))
}
