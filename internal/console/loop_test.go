package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant/internal/apperr"
	"assistant/internal/dispatch"
)

// chanSource feeds lines from a channel; closing the channel is EOF.
type chanSource struct {
	lines  chan string
	closed chan struct{}
	once   sync.Once
}

func newChanSource() *chanSource {
	return &chanSource{lines: make(chan string), closed: make(chan struct{})}
}

func (s *chanSource) ReadLine() (string, error) {
	select {
	case l, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return l, nil
	case <-s.closed:
		return "", io.EOF
	}
}

func (s *chanSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// recordingHandler records commands and checks that calls never overlap.
type recordingHandler struct {
	mu      sync.Mutex
	active  int
	overlap bool
	seen    []string
	delay   time.Duration
}

func (h *recordingHandler) Handle(_ context.Context, raw string) dispatch.Report {
	h.mu.Lock()
	h.active++
	if h.active > 1 {
		h.overlap = true
	}
	h.seen = append(h.seen, raw)
	h.mu.Unlock()

	time.Sleep(h.delay)

	h.mu.Lock()
	h.active--
	h.mu.Unlock()

	if strings.HasPrefix(raw, "bad") {
		return dispatch.Report{Kind: apperr.KindParseFailure, Message: "Command parsing failed: " + raw}
	}
	return dispatch.Report{OK: true, Message: "done: " + raw}
}

func (h *recordingHandler) commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen...)
}

type countingReminder struct {
	mu sync.Mutex
	n  int
}

func (r *countingReminder) Deliver(context.Context) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return "Daily Reminder: Review your tasks and meetings for today.", false
}

func (r *countingReminder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// syncBuffer is a bytes.Buffer safe for the printer and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runLoop(t *testing.T, l *Loop, src LineSource) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background(), src) }()
	return errCh
}

func waitDone(t *testing.T, errCh <-chan error) {
	t.Helper()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestRunHandlesLinesUntilExit(t *testing.T) {
	h := &recordingHandler{}
	out := &syncBuffer{}
	l := NewLoop(h, nil, NewPrinter(out, true))

	src := NewScanner(strings.NewReader("schedule one\n\n   \nbad input\nEXIT\nnever handled\n"))
	waitDone(t, runLoop(t, l, src))

	assert.Equal(t, []string{"schedule one", "bad input"}, h.commands())
	text := out.String()
	assert.Contains(t, text, "done: schedule one")
	assert.Contains(t, text, "Command parsing failed: bad input")
	assert.Contains(t, text, "Exiting assistant...")
}

func TestRunStopsAtEOF(t *testing.T) {
	h := &recordingHandler{}
	l := NewLoop(h, nil, NewPrinter(io.Discard, true))

	waitDone(t, runLoop(t, l, NewScanner(strings.NewReader("a\nb"))))
	assert.Equal(t, []string{"a", "b"}, h.commands())
}

func TestRunStopsOnCancel(t *testing.T) {
	l := NewLoop(&recordingHandler{}, nil, NewPrinter(io.Discard, true))
	src := newChanSource()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx, src) }()

	cancel()
	waitDone(t, errCh)

	_, err := l.Submit(context.Background(), "api", "late")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReminderAndCommandsNeverOverlap(t *testing.T) {
	h := &recordingHandler{delay: 5 * time.Millisecond}
	rem := &countingReminder{}
	l := NewLoop(h, rem, NewPrinter(io.Discard, true))
	src := newChanSource()
	errCh := runLoop(t, l, src)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Remind()
			rep, err := l.Submit(context.Background(), "api", "remote")
			assert.NoError(t, err)
			assert.True(t, rep.OK)
		}()
	}
	src.lines <- "local"
	wg.Wait()
	close(src.lines)
	waitDone(t, errCh)

	assert.False(t, h.overlap)
	assert.Len(t, h.commands(), 6)
	assert.Equal(t, 5, rem.count())
}

func TestSubmitReturnsReport(t *testing.T) {
	out := &syncBuffer{}
	l := NewLoop(&recordingHandler{}, nil, NewPrinter(out, true))
	src := newChanSource()
	errCh := runLoop(t, l, src)

	rep, err := l.Submit(context.Background(), "api", "bad thing")
	require.NoError(t, err)
	assert.False(t, rep.OK)
	assert.Equal(t, apperr.KindParseFailure, rep.Kind)
	assert.Contains(t, out.String(), "[api] bad thing")

	src.lines <- "exit"
	waitDone(t, errCh)
}

func TestReminderIsPrinted(t *testing.T) {
	out := &syncBuffer{}
	rem := &countingReminder{}
	l := NewLoop(&recordingHandler{}, rem, NewPrinter(out, true))
	l.Remind()

	waitDone(t, runLoop(t, l, NewScanner(strings.NewReader(""))))
	assert.Equal(t, 1, rem.count())
	assert.Contains(t, out.String(), "Daily Reminder: Review your tasks and meetings for today.")
}

// blockingHandler waits until released or its context ends, and records
// what the context said.
type blockingHandler struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (h *blockingHandler) Handle(ctx context.Context, raw string) dispatch.Report {
	close(h.started)
	select {
	case <-ctx.Done():
	case <-h.release:
	case <-time.After(2 * time.Second):
	}
	h.ctxErr <- ctx.Err()
	return dispatch.Report{OK: true, Message: "done: " + raw}
}

func TestCancelLetsInFlightCommandFinish(t *testing.T) {
	h := &blockingHandler{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	out := &syncBuffer{}
	l := NewLoop(h, nil, NewPrinter(out, true))
	src := newChanSource()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx, src) }()

	src.lines <- "schedule a meeting with john tomorrow at 10"
	select {
	case <-h.started:
	case <-time.After(5 * time.Second):
		t.Fatal("command was not handled")
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	close(h.release)

	require.NoError(t, <-h.ctxErr)
	waitDone(t, errCh)
	assert.Contains(t, out.String(), "done: schedule a meeting with john tomorrow at 10")
}
