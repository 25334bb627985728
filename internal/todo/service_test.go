package todo

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/planora/planora/internal/planner"
	"github.com/planora/planora/internal/store"
)

// scriptedGenerator returns canned responses in order and records prompts.
type scriptedGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string, _ bool) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.responses) == 0 {
		return "", errors.New("no scripted response left")
	}
	resp := g.responses[0]
	g.responses = g.responses[1:]
	return resp, nil
}

func newTestService(t *testing.T, gen planner.Generator) (*Service, *store.DB) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "planora.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	pl := planner.New(gen, planner.WithLocation(time.UTC))
	svc := NewService(ServiceConfig{
		Store:    db,
		Planner:  pl,
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) },
	})
	return svc, db
}

func TestCreateTask_Plain(t *testing.T) {
	svc, db := newTestService(t, nil)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Text: "  Buy groceries  "})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.Text != "Buy groceries" {
		t.Errorf("text = %q, want trimmed", task.Text)
	}

	got, err := db.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.StartTime != nil || got.EndTime != nil {
		t.Error("plain task should be unscheduled")
	}
}

func TestCreateTask_EmptyText(t *testing.T) {
	svc, _ := newTestService(t, nil)

	if _, err := svc.CreateTask(context.Background(), CreateTaskInput{Text: "   "}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestCreateTask_WithBreakdown(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{
		"subtasks": [
			{"text": "Pack bag", "start_time": "2024-01-15T13:30:00", "end_time": "2024-01-15T14:00:00", "order_index": 1},
			{"text": "Study chapter 1", "start_time": "2024-01-15T14:00:00", "end_time": "2024-01-15T15:00:00", "order_index": 2}
		]
	}`}}
	svc, _ := newTestService(t, gen)
	ctx := context.Background()

	start := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)
	task, err := svc.CreateTask(ctx, CreateTaskInput{
		Text:            "Study session",
		StartTime:       &start,
		EndTime:         &end,
		ShouldBreakdown: true,
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	subs, err := svc.Subtasks(ctx, task.ID)
	if err != nil {
		t.Fatalf("Subtasks failed: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subs))
	}
	if subs[0].Text != "Pack bag" || subs[1].Text != "Study chapter 1" {
		t.Errorf("subtasks out of order: %q, %q", subs[0].Text, subs[1].Text)
	}
	if subs[0].ParentID == nil || *subs[0].ParentID != task.ID {
		t.Error("subtask not linked to parent")
	}
	wantStart := time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)
	if subs[0].StartTime == nil || !subs[0].StartTime.Equal(wantStart) {
		t.Errorf("subtask start = %v, want %v", subs[0].StartTime, wantStart)
	}
}

func TestCreateTask_BreakdownFailureStillCreates(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("model overloaded")}
	svc, db := newTestService(t, gen)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Text: "Write report", ShouldBreakdown: true})
	if err != nil {
		t.Fatalf("CreateTask should survive a generation failure, got %v", err)
	}

	if _, err := db.GetTask(ctx, task.ID); err != nil {
		t.Fatalf("task not persisted: %v", err)
	}
	subs, _ := svc.Subtasks(ctx, task.ID)
	if len(subs) != 0 {
		t.Errorf("expected no subtasks, got %d", len(subs))
	}
}

func TestCreateTask_NilGenerator(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Text: "Offline task", ShouldBreakdown: true})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	subs, _ := svc.Subtasks(ctx, task.ID)
	if len(subs) != 0 {
		t.Errorf("expected no subtasks without a gateway, got %d", len(subs))
	}
}

func TestCreateTask_DurationOnly(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		`{"start_time": "2024-01-15T10:30:00", "end_time": "2024-01-15T11:15:00"}`,
	}}
	svc, db := newTestService(t, gen)
	ctx := context.Background()

	// An existing commitment the planner must be told about.
	busyStart := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	busyEnd := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	if err := db.CreateTask(ctx, &store.Task{Text: "Standup", StartTime: &busyStart, EndTime: &busyEnd}); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	task, err := svc.CreateTask(ctx, CreateTaskInput{
		Text:            "Gym",
		DurationMinutes: 45,
		TargetDate:      time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	wantStart := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 1, 15, 11, 15, 0, 0, time.UTC)
	if task.StartTime == nil || !task.StartTime.Equal(wantStart) {
		t.Errorf("start = %v, want %v", task.StartTime, wantStart)
	}
	if task.EndTime == nil || !task.EndTime.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", task.EndTime, wantEnd)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "Standup") {
		t.Error("existing commitment missing from the scheduling prompt")
	}
}

func TestCreateTask_DurationOnly_NoSlotStaysUnscheduled(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("model overloaded")}
	svc, _ := newTestService(t, gen)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Text: "Gym", DurationMinutes: 45})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.StartTime != nil || task.EndTime != nil {
		t.Error("task should stay unscheduled when no slot is found")
	}
}

func TestListAndToggle(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{`{
		"subtasks": [
			{"text": "Step one", "start_time": "2024-01-15T09:00:00", "end_time": "2024-01-15T09:30:00", "order_index": 1}
		]
	}`}}
	svc, _ := newTestService(t, gen)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Text: "Big job", ShouldBreakdown: true})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	list, err := svc.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 top-level task, got %d", len(list))
	}
	if len(list[0].Subtasks) != 1 {
		t.Errorf("expected attached subtask, got %d", len(list[0].Subtasks))
	}

	if err := svc.ToggleTask(ctx, task.ID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	got, err := svc.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if !got.Completed {
		t.Error("toggle should complete the task")
	}
	if err := svc.ToggleTask(ctx, task.ID); err != nil {
		t.Fatalf("ToggleTask failed: %v", err)
	}
	got, _ = svc.GetTask(ctx, task.ID)
	if got.Completed {
		t.Error("second toggle should uncomplete the task")
	}
}

func TestUpdateTaskText_Empty(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{Text: "Original"})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := svc.UpdateTaskText(ctx, task.ID, " "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestReminderWorkflow(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.AddReminder(ctx, ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}

	r, err := svc.AddReminder(ctx, " Water plants ")
	if err != nil {
		t.Fatalf("AddReminder failed: %v", err)
	}
	if r.Text != "Water plants" {
		t.Errorf("text = %q, want trimmed", r.Text)
	}

	if err := svc.ToggleReminder(ctx, r.ID, true); err != nil {
		t.Fatalf("ToggleReminder failed: %v", err)
	}
	list, err := svc.ListReminders(ctx)
	if err != nil {
		t.Fatalf("ListReminders failed: %v", err)
	}
	if len(list) != 1 || !list[0].Completed {
		t.Errorf("unexpected reminder list: %+v", list)
	}

	if err := svc.DeleteAllReminders(ctx); err != nil {
		t.Fatalf("DeleteAllReminders failed: %v", err)
	}
	list, _ = svc.ListReminders(ctx)
	if len(list) != 0 {
		t.Errorf("expected empty reminders, got %d", len(list))
	}
}
