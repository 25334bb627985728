// Package todo implements the task-creation workflow: it persists todos and
// reminders through the record store and drives the planner for automatic
// breakdown and optimal-time placement. Planner failures never fail the
// workflow; a task is always persisted, at worst without generated subtasks.
package todo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/planora/planora/internal/log"
	"github.com/planora/planora/internal/planner"
	"github.com/planora/planora/internal/store"
)

// ErrEmptyText is returned when a task or reminder has no text.
var ErrEmptyText = errors.New("text is required")

// Service is the task workflow facade used by the HTTP layer.
type Service struct {
	store   store.Store
	planner *planner.Planner
	logger  log.Logger
	loc     *time.Location
	now     func() time.Time
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Store   store.Store
	Planner *planner.Planner
	Logger  log.Logger
	// Location is the timezone used for day boundaries. Defaults to time.Local.
	Location *time.Location
	// Now overrides the time source (for tests).
	Now func() time.Time
}

// NewService creates the task workflow service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Noop
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:   cfg.Store,
		planner: cfg.Planner,
		logger:  logger.WithValues(log.Kv{"svc": "todo.Service"}),
		loc:     loc,
		now:     now,
	}
}

// CreateTaskInput is the payload for creating a todo.
type CreateTaskInput struct {
	Text      string     `json:"text"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	// DurationMinutes, when set without a window, asks the planner to find
	// an optimal slot of this length on the target date first.
	DurationMinutes int    `json:"duration_minutes"`
	Note            string `json:"note"`
	ShouldBreakdown bool   `json:"should_breakdown"`
	// TargetDate is the day for duration-only placement. Zero means today.
	TargetDate time.Time `json:"target_date"`
}

// TaskWithSubtasks is a top-level task with its children attached.
type TaskWithSubtasks struct {
	*store.Task
	Subtasks []*store.Task `json:"subtasks,omitempty"`
}

// CreateTask persists a new todo. When a duration is given without a window,
// the planner first computes an optimal start/end pair against that day's
// commitments; when breakdown was requested, generated subtasks are persisted
// as children. Neither step can fail the creation itself.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (*store.Task, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	task := &store.Task{
		Text:            text,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		ShouldBreakdown: in.ShouldBreakdown,
	}

	// Duration-only tasks get a window computed before anything is stored,
	// so the breakdown below can work inside it.
	if in.DurationMinutes > 0 && in.StartTime == nil && in.EndTime == nil {
		if interval := s.placeByDuration(ctx, text, in); interval != nil {
			task.StartTime = &interval.StartTime
			task.EndTime = &interval.EndTime
		} else {
			s.logger.Infof("no automatic slot for %q, task stays unscheduled", text)
		}
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	if in.ShouldBreakdown {
		s.breakdownAndPersist(ctx, task, in.Note)
	}

	return task, nil
}

// placeByDuration asks the planner for an optimal window on the target date.
func (s *Service) placeByDuration(ctx context.Context, text string, in CreateTaskInput) *planner.Interval {
	targetDate := in.TargetDate
	if targetDate.IsZero() {
		targetDate = s.now()
	}
	dayStart := midnight(targetDate, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	committed, err := s.store.TasksInWindow(ctx, dayStart, dayEnd)
	if err != nil {
		s.logger.Errorf("loading schedule for %s: %v", dayStart.Format("2006-01-02"), err)
		committed = nil
	}

	slots := make([]planner.ScheduleSlot, 0, len(committed))
	for _, t := range committed {
		slots = append(slots, planner.ScheduleSlot{
			StartTime: *t.StartTime,
			EndTime:   *t.EndTime,
			Text:      t.Text,
		})
	}

	return s.planner.DetermineOptimalTime(ctx, text, in.DurationMinutes, slots, in.Note, dayStart)
}

// breakdownAndPersist runs the breakdown and stores the proposals. Failures
// are logged and swallowed.
func (s *Service) breakdownAndPersist(ctx context.Context, task *store.Task, note string) {
	proposals := s.planner.BreakDownTask(ctx, task.Text, task.StartTime, task.EndTime, note)
	if len(proposals) == 0 {
		return
	}

	subtasks := make([]*store.Task, 0, len(proposals))
	for _, prop := range proposals {
		start := prop.StartTime
		end := prop.EndTime
		subtasks = append(subtasks, &store.Task{
			Text:       prop.Text,
			ParentID:   &task.ID,
			OrderIndex: prop.OrderIndex,
			StartTime:  &start,
			EndTime:    &end,
		})
	}

	if err := s.store.CreateTasks(ctx, subtasks); err != nil {
		s.logger.Errorf("persisting %d subtasks for %s: %v", len(subtasks), task.ID, err)
		return
	}
	s.logger.Infof("created %d subtasks for %q", len(subtasks), task.Text)
}

// ListTasks returns all top-level tasks with their subtasks attached.
func (s *Service) ListTasks(ctx context.Context) ([]*TaskWithSubtasks, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*TaskWithSubtasks, 0, len(tasks))
	for _, t := range tasks {
		subs, err := s.store.ListSubtasks(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &TaskWithSubtasks{Task: t, Subtasks: subs})
	}
	return out, nil
}

// GetTask returns one task with its subtasks.
func (s *Service) GetTask(ctx context.Context, id string) (*TaskWithSubtasks, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubtasks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TaskWithSubtasks{Task: t, Subtasks: subs}, nil
}

// ToggleTask flips completion on a task.
func (s *Service) ToggleTask(ctx context.Context, id string) error {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	return s.store.SetTaskCompleted(ctx, id, !t.Completed)
}

// UpdateTaskText renames a task.
func (s *Service) UpdateTaskText(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return s.store.UpdateTaskText(ctx, id, text)
}

// UpdateTaskTimes moves or clears a task's window.
func (s *Service) UpdateTaskTimes(ctx context.Context, id string, start, end *time.Time) error {
	return s.store.UpdateTaskTimes(ctx, id, start, end)
}

// DeleteTask removes a task and its subtasks.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}

// Subtasks returns a task's children.
func (s *Service) Subtasks(ctx context.Context, parentID string) ([]*store.Task, error) {
	return s.store.ListSubtasks(ctx, parentID)
}

// DetermineOptimalTime exposes the scheduling engine for the HTTP layer,
// loading that day's commitments from the store.
func (s *Service) DetermineOptimalTime(ctx context.Context, text string, durationMinutes int, note string, targetDate time.Time) *planner.Interval {
	return s.placeByDuration(ctx, strings.TrimSpace(text), CreateTaskInput{
		DurationMinutes: durationMinutes,
		Note:            note,
		TargetDate:      targetDate,
	})
}

// AddReminder creates a reminder.
func (s *Service) AddReminder(ctx context.Context, text string) (*store.Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	r := &store.Reminder{Text: text}
	if err := s.store.CreateReminder(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListReminders returns all reminders.
func (s *Service) ListReminders(ctx context.Context) ([]*store.Reminder, error) {
	return s.store.ListReminders(ctx)
}

// ToggleReminder flips completion on a reminder.
func (s *Service) ToggleReminder(ctx context.Context, id string, completed bool) error {
	return s.store.SetReminderCompleted(ctx, id, completed)
}

// DeleteReminder removes one reminder.
func (s *Service) DeleteReminder(ctx context.Context, id string) error {
	return s.store.DeleteReminder(ctx, id)
}

// DeleteAllReminders clears the list.
func (s *Service) DeleteAllReminders(ctx context.Context) error {
	return s.store.DeleteAllReminders(ctx)
}

// midnight returns t's calendar date at 00:00 in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
