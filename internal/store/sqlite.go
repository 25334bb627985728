package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	text             TEXT NOT NULL,
	completed        INTEGER NOT NULL DEFAULT 0,
	parent_id        TEXT REFERENCES tasks(id) ON DELETE CASCADE,
	order_index      INTEGER NOT NULL DEFAULT 0,
	start_time       TEXT,
	end_time         TEXT,
	should_breakdown INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_start ON tasks(start_time);

CREATE TABLE IF NOT EXISTS reminders (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// DB is the SQLite implementation of Store.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at the given path, creating
// parent directories as needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const taskColumns = `id, text, completed, parent_id, order_index, start_time, end_time, should_breakdown, created_at, updated_at`

// CreateTask inserts a task, assigning ID and timestamps when unset.
func (db *DB) CreateTask(ctx context.Context, t *Task) error {
	prepareTask(t)

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Text, boolToInt(t.Completed), t.ParentID, t.OrderIndex,
		timeToDB(t.StartTime), timeToDB(t.EndTime), boolToInt(t.ShouldBreakdown),
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// CreateTasks inserts several tasks in one transaction.
func (db *DB) CreateTasks(ctx context.Context, ts []*Task) error {
	if len(ts) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range ts {
		prepareTask(t)
		_, err := stmt.ExecContext(ctx,
			t.ID, t.Text, boolToInt(t.Completed), t.ParentID, t.OrderIndex,
			timeToDB(t.StartTime), timeToDB(t.EndTime), boolToInt(t.ShouldBreakdown),
			t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert task %q: %w", t.Text, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTask returns a task by id, or ErrNotFound.
func (db *DB) GetTask(ctx context.Context, id string) (*Task, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns all top-level tasks, scheduled ones first.
func (db *DB) ListTasks(ctx context.Context) ([]*Task, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_id IS NULL
		ORDER BY start_time IS NULL, start_time, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListSubtasks returns a task's children ordered by order_index.
func (db *DB) ListSubtasks(ctx context.Context, parentID string) ([]*Task, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_id = ?
		ORDER BY order_index`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// SetTaskCompleted flips a task's completion state.
func (db *DB) SetTaskCompleted(ctx context.Context, id string, completed bool) error {
	return db.updateTask(ctx, id,
		`UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ?`,
		boolToInt(completed), nowDB(), id)
}

// UpdateTaskText replaces a task's text.
func (db *DB) UpdateTaskText(ctx context.Context, id, text string) error {
	return db.updateTask(ctx, id,
		`UPDATE tasks SET text = ?, updated_at = ? WHERE id = ?`,
		text, nowDB(), id)
}

// UpdateTaskTimes sets or clears a task's start/end window.
func (db *DB) UpdateTaskTimes(ctx context.Context, id string, start, end *time.Time) error {
	return db.updateTask(ctx, id,
		`UPDATE tasks SET start_time = ?, end_time = ?, updated_at = ? WHERE id = ?`,
		timeToDB(start), timeToDB(end), nowDB(), id)
}

// DeleteTask removes a task; the ON DELETE CASCADE clause removes subtasks.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TasksInWindow returns uncompleted top-level tasks whose window overlaps
// [from, to).
func (db *DB) TasksInWindow(ctx context.Context, from, to time.Time) ([]*Task, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_id IS NULL
		  AND completed = 0
		  AND start_time IS NOT NULL
		  AND end_time IS NOT NULL
		  AND start_time < ?
		  AND end_time > ?
		ORDER BY start_time`,
		to.UTC().Format(time.RFC3339), from.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("tasks in window: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// CreateReminder inserts a reminder, assigning ID and timestamps when unset.
func (db *DB) CreateReminder(ctx context.Context, r *Reminder) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO reminders (id, text, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Text, boolToInt(r.Completed),
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// ListReminders returns all reminders, newest first.
func (db *DB) ListReminders(ctx context.Context) ([]*Reminder, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, text, completed, created_at, updated_at
		FROM reminders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*Reminder
	for rows.Next() {
		var r Reminder
		var completed int
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.Text, &completed, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.Completed = completed != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		reminders = append(reminders, &r)
	}
	return reminders, rows.Err()
}

// SetReminderCompleted flips a reminder's completion state.
func (db *DB) SetReminderCompleted(ctx context.Context, id string, completed bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE reminders SET completed = ?, updated_at = ? WHERE id = ?`,
		boolToInt(completed), nowDB(), id)
	if err != nil {
		return fmt.Errorf("update reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReminder removes a reminder by id.
func (db *DB) DeleteReminder(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllReminders clears the reminders list.
func (db *DB) DeleteAllReminders(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return fmt.Errorf("delete all reminders: %w", err)
	}
	return nil
}

func (db *DB) updateTask(ctx context.Context, id, query string, args ...any) error {
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// prepareTask fills generated fields before insert.
func prepareTask(t *Task) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var completed, shouldBreakdown int
	var parentID, startTime, endTime sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&t.ID, &t.Text, &completed, &parentID, &t.OrderIndex,
		&startTime, &endTime, &shouldBreakdown, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	t.Completed = completed != 0
	t.ShouldBreakdown = shouldBreakdown != 0
	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	t.StartTime = timeFromDB(startTime)
	t.EndTime = timeFromDB(endTime)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func timeToDB(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func timeFromDB(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nowDB() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
