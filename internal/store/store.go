// Package store provides SQLite-based persistence for Planora tasks and
// reminders. Tasks form a two-level tree: top-level todos and their generated
// subtasks, linked by parent_id.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Task is a user-visible to-do item, optionally a child of another task.
type Task struct {
	ID              string     `json:"id"`
	Text            string     `json:"text"`
	Completed       bool       `json:"completed"`
	ParentID        *string    `json:"parent_id"`
	OrderIndex      int        `json:"order_index"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	ShouldBreakdown bool       `json:"should_breakdown"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Reminder is a standalone checklist entry with no scheduling.
type Reminder struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the record-store boundary the task workflow talks to.
type Store interface {
	// CreateTask inserts a task, assigning ID and timestamps when unset.
	CreateTask(ctx context.Context, t *Task) error
	// CreateTasks inserts several tasks in one transaction.
	CreateTasks(ctx context.Context, ts []*Task) error
	// GetTask returns a task by id, or ErrNotFound.
	GetTask(ctx context.Context, id string) (*Task, error)
	// ListTasks returns all top-level tasks, scheduled ones first.
	ListTasks(ctx context.Context) ([]*Task, error)
	// ListSubtasks returns a task's children ordered by order_index.
	ListSubtasks(ctx context.Context, parentID string) ([]*Task, error)
	// SetTaskCompleted flips a task's completion state.
	SetTaskCompleted(ctx context.Context, id string, completed bool) error
	// UpdateTaskText replaces a task's text.
	UpdateTaskText(ctx context.Context, id, text string) error
	// UpdateTaskTimes sets or clears a task's start/end window.
	UpdateTaskTimes(ctx context.Context, id string, start, end *time.Time) error
	// DeleteTask removes a task and, through the schema, its subtasks.
	DeleteTask(ctx context.Context, id string) error
	// TasksInWindow returns uncompleted top-level tasks whose window
	// overlaps [from, to). These become schedule slots for the planner.
	TasksInWindow(ctx context.Context, from, to time.Time) ([]*Task, error)

	// CreateReminder inserts a reminder, assigning ID and timestamps when unset.
	CreateReminder(ctx context.Context, r *Reminder) error
	// ListReminders returns all reminders, newest first.
	ListReminders(ctx context.Context) ([]*Reminder, error)
	// SetReminderCompleted flips a reminder's completion state.
	SetReminderCompleted(ctx context.Context, id string, completed bool) error
	// DeleteReminder removes a reminder by id.
	DeleteReminder(ctx context.Context, id string) error
	// DeleteAllReminders clears the reminders list.
	DeleteAllReminders(ctx context.Context) error
}
