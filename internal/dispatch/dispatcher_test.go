package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"assistant/internal/apperr"
	"assistant/internal/command"
	"assistant/internal/llm"
	"assistant/internal/meeting"
	"assistant/internal/model"
)

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) Schedule(ctx context.Context, pc model.ParsedCommand) (meeting.Outcome, error) {
	args := m.Called(ctx, pc)
	return args.Get(0).(meeting.Outcome), args.Error(1)
}

type mockInterpreter struct {
	mock.Mock
}

func (m *mockInterpreter) Interpret(ctx context.Context, raw string) (llm.Result, error) {
	args := m.Called(ctx, raw)
	return args.Get(0).(llm.Result), args.Error(1)
}

type panicScheduler struct{}

func (panicScheduler) Schedule(context.Context, model.ParsedCommand) (meeting.Outcome, error) {
	panic("boom")
}

func sampleOutcome() meeting.Outcome {
	start := time.Date(2025, 1, 16, 10, 0, 0, 0, time.UTC)
	return meeting.Outcome{
		Meeting: model.ResolvedMeeting{Emails: []string{"john@example.com"}, Start: start, End: start.Add(30 * time.Minute)},
		Event:   model.CreatedEvent{ID: "e1", HTMLLink: "https://cal/e1"},
	}
}

func TestHandleSchedulesParsedCommand(t *testing.T) {
	sched := &mockScheduler{}
	sched.On("Schedule", mock.Anything, mock.MatchedBy(func(pc model.ParsedCommand) bool {
		return pc.Raw == "schedule a meeting with john tomorrow at 10am" &&
			pc.DayReference == "tomorrow" && pc.Hour == 10 && pc.HasHour
	})).Return(sampleOutcome(), nil).Once()

	rep := New(command.NewParser(30), sched).Handle(context.Background(), "  schedule a meeting with john tomorrow at 10am ")
	assert.True(t, rep.OK)
	assert.Equal(t, model.IntentScheduleMeeting, rep.Intent)
	assert.Contains(t, rep.Message, "Meeting scheduled with john@example.com")
	sched.AssertExpectations(t)
}

func TestHandleUnparseableWithoutInterpreter(t *testing.T) {
	sched := &mockScheduler{}
	d := New(command.NewParser(30), sched)

	for _, in := range []string{"", "   ", "what's for lunch"} {
		rep := d.Handle(context.Background(), in)
		assert.False(t, rep.OK, in)
		assert.Equal(t, apperr.KindParseFailure, rep.Kind, in)
		assert.Contains(t, rep.Message, "Command parsing failed")
	}
	sched.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestHandleFallsBackToInterpreter(t *testing.T) {
	in := &mockInterpreter{}
	in.On("Interpret", mock.Anything, "book john for friday 3pm").Return(llm.Result{
		Intent:  "schedule",
		Details: map[string]any{"person": "john", "date": "Friday", "time": "3 PM"},
	}, nil).Once()

	sched := &mockScheduler{}
	sched.On("Schedule", mock.Anything, mock.MatchedBy(func(pc model.ParsedCommand) bool {
		return pc.DayReference == "friday" && pc.Hour == 15 && pc.DurationMinutes == 45 &&
			pc.Raw == "book john for friday 3pm"
	})).Return(sampleOutcome(), nil).Once()

	d := New(command.NewParser(45), sched, WithInterpreter(in, 45))
	rep := d.Handle(context.Background(), "book john for friday 3pm")
	assert.True(t, rep.OK, rep.Message)
	in.AssertExpectations(t)
	sched.AssertExpectations(t)
}

func TestHandleGrammarMatchSkipsInterpreter(t *testing.T) {
	in := &mockInterpreter{}
	sched := &mockScheduler{}
	sched.On("Schedule", mock.Anything, mock.Anything).Return(sampleOutcome(), nil)

	rep := New(command.NewParser(30), sched, WithInterpreter(in, 30)).
		Handle(context.Background(), "schedule a meeting with john today at 9")
	assert.True(t, rep.OK)
	in.AssertNotCalled(t, "Interpret", mock.Anything, mock.Anything)
}

func TestHandleUnknownIntent(t *testing.T) {
	in := &mockInterpreter{}
	in.On("Interpret", mock.Anything, mock.Anything).Return(llm.Result{Intent: "email"}, nil)
	sched := &mockScheduler{}

	rep := New(command.NewParser(30), sched, WithInterpreter(in, 30)).Handle(context.Background(), "email bob the report")
	assert.False(t, rep.OK)
	assert.Equal(t, apperr.KindUnknown, rep.Kind)
	assert.Equal(t, model.IntentUnknown, rep.Intent)
	assert.Contains(t, rep.Message, "Unknown intent")
	sched.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestHandleInterpreterFailure(t *testing.T) {
	in := &mockInterpreter{}
	in.On("Interpret", mock.Anything, mock.Anything).
		Return(llm.Result{}, apperr.Collaborator("llm.interpret", errors.New("connection refused")))

	rep := New(command.NewParser(30), &mockScheduler{}, WithInterpreter(in, 30)).Handle(context.Background(), "hmm")
	assert.False(t, rep.OK)
	assert.Equal(t, apperr.KindCollaboratorFailure, rep.Kind)
	assert.Contains(t, rep.Message, "connection refused")
}

func TestHandleReportsSchedulerKinds(t *testing.T) {
	for _, tc := range []struct {
		err  error
		kind apperr.Kind
		text string
	}{
		{apperr.MissingFields("meeting.schedule", "hour"), apperr.KindMissingFields, "Missing required details"},
		{apperr.UnknownDayReference("temporal.resolve", "someday"), apperr.KindUnknownDayReference, `"someday"`},
		{apperr.Collaborator("calendar.create_event", errors.New("403 forbidden")), apperr.KindCollaboratorFailure, "403 forbidden"},
		{errors.New("plain"), apperr.KindUnknown, "plain"},
	} {
		sched := &mockScheduler{}
		sched.On("Schedule", mock.Anything, mock.Anything).Return(meeting.Outcome{}, tc.err)

		rep := New(command.NewParser(30), sched).Handle(context.Background(), "schedule a meeting with john someday at 9")
		assert.False(t, rep.OK)
		assert.Equal(t, tc.kind, rep.Kind)
		assert.Equal(t, model.IntentScheduleMeeting, rep.Intent)
		assert.Contains(t, rep.Message, tc.text)
	}
}

func TestHandleContinuesAfterFailure(t *testing.T) {
	sched := &mockScheduler{}
	sched.On("Schedule", mock.Anything, mock.Anything).Return(meeting.Outcome{}, apperr.Collaborator("calendar.create_event", errors.New("down"))).Once()
	sched.On("Schedule", mock.Anything, mock.Anything).Return(sampleOutcome(), nil).Once()

	d := New(command.NewParser(30), sched)
	first := d.Handle(context.Background(), "schedule a meeting with john today at 9")
	second := d.Handle(context.Background(), "schedule a meeting with john today at 10")

	assert.False(t, first.OK)
	assert.True(t, second.OK)
	sched.AssertNumberOfCalls(t, "Schedule", 2)
}

func TestHandleRecoversPanic(t *testing.T) {
	d := New(command.NewParser(30), panicScheduler{})

	var rep Report
	require.NotPanics(t, func() {
		rep = d.Handle(context.Background(), "schedule a meeting with john today at 9")
	})
	assert.False(t, rep.OK)
	assert.Contains(t, rep.Message, "boom")
}
