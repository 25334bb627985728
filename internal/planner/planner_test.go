package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// stubGenerator returns a canned response, or an error, and records the
// prompt it was called with.
type stubGenerator struct {
	response string
	err      error
	prompt   string
	calls    int
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, wantJSON bool) (string, error) {
	s.calls++
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestBreakDownTask_EndToEnd(t *testing.T) {
	gen := &stubGenerator{response: `{
		"subtasks": [
			{"text": "Review notes", "start_time": "2024-01-15T14:00:00Z", "end_time": "2024-01-15T15:00:00Z", "order_index": 2},
			{"text": "Gather materials", "start_time": "2024-01-15T13:30:00Z", "end_time": "2024-01-15T14:00:00Z", "order_index": 1},
			{"text": "Practice problems", "start_time": "2024-01-15T15:00:00Z", "end_time": "2024-01-15T16:00:00Z", "order_index": 3}
		]
	}`}

	p := New(gen, WithLocation(time.UTC))

	start := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)

	got := p.BreakDownTask(context.Background(), "Study session", &start, &end, "")
	if len(got) != 3 {
		t.Fatalf("expected 3 subtasks, got %d", len(got))
	}

	for i, sub := range got {
		if sub.OrderIndex != i+1 {
			t.Errorf("subtask %d has order_index %d, want %d", i, sub.OrderIndex, i+1)
		}
		if !sub.StartTime.Before(sub.EndTime) {
			t.Errorf("subtask %d: start %v not before end %v", i, sub.StartTime, sub.EndTime)
		}
		if sub.EndTime.After(end) {
			t.Errorf("subtask %d ends after the task window: %v", i, sub.EndTime)
		}
	}

	// The prompt carries the task, the window, and the output contract.
	if !strings.Contains(gen.prompt, "Study session") {
		t.Error("prompt should contain the task text")
	}
	if !strings.Contains(gen.prompt, "2024-01-15T14:00:00") {
		t.Error("prompt should contain the start time")
	}
	if !strings.Contains(gen.prompt, `"subtasks"`) {
		t.Error("prompt should describe the subtasks JSON contract")
	}
}

func TestBreakDownTask_GeneratorError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model unavailable")}
	p := New(gen, WithLocation(time.UTC))

	got := p.BreakDownTask(context.Background(), "Anything", nil, nil, "")
	if len(got) != 0 {
		t.Errorf("expected empty list on generator error, got %d", len(got))
	}
}

func TestBreakDownTask_NilGenerator(t *testing.T) {
	p := New(nil, WithLocation(time.UTC))

	got := p.BreakDownTask(context.Background(), "Anything", nil, nil, "")
	if len(got) != 0 {
		t.Errorf("expected empty list with nil generator, got %d", len(got))
	}
}

func TestBreakDownTask_NotePropagates(t *testing.T) {
	gen := &stubGenerator{response: `{"subtasks": []}`}
	p := New(gen, WithLocation(time.UTC))

	p.BreakDownTask(context.Background(), "Doctor appointment", nil, nil, "30 minutes travel each way")
	if !strings.Contains(gen.prompt, "30 minutes travel each way") {
		t.Error("prompt should contain the note")
	}
}

func TestBreakDownTask_BaseDateFromClock(t *testing.T) {
	gen := &stubGenerator{response: `{"subtasks": []}`}
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	p := New(gen, WithLocation(time.UTC), WithClock(func() time.Time { return now }))

	p.BreakDownTask(context.Background(), "No window task", nil, nil, "")
	if !strings.Contains(gen.prompt, "2024-06-01") {
		t.Error("prompt should be stamped with today's date when no start time is given")
	}
}

func TestDetermineOptimalTime_EndToEnd(t *testing.T) {
	// The model proposes a slot overlapping the meeting on the wrong date;
	// the engine forwards it with date and duration corrections only.
	gen := &stubGenerator{response: `{"start_time": "2024-01-16T09:30:00Z", "end_time": "2024-01-16T11:15:00Z"}`}
	p := New(gen, WithLocation(time.UTC))

	slots := []ScheduleSlot{
		{
			StartTime: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			Text:      "Meeting",
		},
	}
	target := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	got := p.DetermineOptimalTime(context.Background(), "Gym", 60, slots, "", target)
	if got == nil {
		t.Fatal("expected interval, got nil")
	}

	if got.StartTime.Day() != 15 {
		t.Errorf("date not corrected to target: %v", got.StartTime)
	}
	if want := got.StartTime.Add(60 * time.Minute); !got.EndTime.Equal(want) {
		t.Errorf("duration not corrected: end = %v, want %v", got.EndTime, want)
	}

	// Busy intervals appear in the prompt.
	if !strings.Contains(gen.prompt, "Meeting") {
		t.Error("prompt should list the busy slot")
	}
	if !strings.Contains(gen.prompt, "60 minutes") {
		t.Error("prompt should state the required duration")
	}
}

func TestDetermineOptimalTime_DefaultsToToday(t *testing.T) {
	gen := &stubGenerator{response: `{"start_time": "2024-06-01T10:00:00Z", "end_time": "2024-06-01T10:30:00Z"}`}
	now := time.Date(2024, 6, 1, 8, 15, 0, 0, time.UTC)
	p := New(gen, WithLocation(time.UTC), WithClock(func() time.Time { return now }))

	got := p.DetermineOptimalTime(context.Background(), "Errand", 30, nil, "", time.Time{})
	if got == nil {
		t.Fatal("expected interval, got nil")
	}
	if got.StartTime.Day() != 1 || got.StartTime.Month() != 6 {
		t.Errorf("expected today's date, got %v", got.StartTime)
	}
	if !strings.Contains(gen.prompt, "2024-06-01") {
		t.Error("prompt should carry today's date")
	}
}

func TestDetermineOptimalTime_Failures(t *testing.T) {
	target := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	t.Run("nil generator", func(t *testing.T) {
		p := New(nil, WithLocation(time.UTC))
		if got := p.DetermineOptimalTime(context.Background(), "Gym", 60, nil, "", target); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("generator error", func(t *testing.T) {
		p := New(&stubGenerator{err: errors.New("boom")}, WithLocation(time.UTC))
		if got := p.DetermineOptimalTime(context.Background(), "Gym", 60, nil, "", target); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		gen := &stubGenerator{response: `{}`}
		p := New(gen, WithLocation(time.UTC))
		if got := p.DetermineOptimalTime(context.Background(), "Gym", 0, nil, "", target); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
		if gen.calls != 0 {
			t.Error("generator should not be called for invalid duration")
		}
	})

	t.Run("garbage response", func(t *testing.T) {
		p := New(&stubGenerator{response: "cannot help"}, WithLocation(time.UTC))
		if got := p.DetermineOptimalTime(context.Background(), "Gym", 60, nil, "", target); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}
