package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/internal/recurrence"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task is a single to-do item owned by a user.
type Task struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    string           `json:"priority"`
	Tags        []string         `json:"tags,omitempty"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	Completed   bool             `json:"completed"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Recurrence  *recurrence.Rule `json:"recurrence,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// StatusFilter selects which tasks a listing returns.
type StatusFilter string

// Listing filters. Unknown values behave like FilterAll.
const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = "pending"
	FilterCompleted StatusFilter = "completed"
)

// ParseStatusFilter normalizes a filter string; empty means all.
func ParseStatusFilter(s string) StatusFilter {
	switch StatusFilter(s) {
	case FilterPending:
		return FilterPending
	case FilterCompleted:
		return FilterCompleted
	default:
		return FilterAll
	}
}

// NewTask describes a task to be created.
type NewTask struct {
	Title       string
	Description string
	Priority    string
	Tags        []string
	DueDate     *time.Time
	Recurrence  *recurrence.Rule
}

// TaskUpdate holds optional field changes; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	Tags        *[]string
	DueDate     *time.Time
	Recurrence  *recurrence.Rule
}

// CreateTask inserts a task for the user and returns it.
func (s *Store) CreateTask(ctx context.Context, userID string, nt NewTask) (*Task, error) {
	now := time.Now().UTC()

	t := &Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       nt.Title,
		Description: nt.Description,
		Priority:    nt.Priority,
		Tags:        nt.Tags,
		DueDate:     nt.DueDate,
		Recurrence:  nt.Recurrence,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}

	tags, err := marshalJSON(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	rec, err := marshalJSON(t.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("encode recurrence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, priority, tags, due_date, completed, recurrence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?, ?)
	`, t.ID, t.UserID, t.Title, t.Description, t.Priority, tags, t.DueDate, rec, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return t, nil
}

const taskColumns = `id, user_id, title, description, priority, tags, due_date, completed, completed_at, recurrence, created_at, updated_at`

// ListTasks returns the user's tasks matching the filter, ordered by
// creation time ascending. This ordering is the contract positional
// index resolution depends on, so it must never change.
func (s *Store) ListTasks(ctx context.Context, userID string, filter StatusFilter) ([]*Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	switch filter {
	case FilterPending:
		q += ` AND completed = FALSE`
	case FilterCompleted:
		q += ` AND completed = TRUE`
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SearchTasks returns the user's tasks whose title or description
// contains the query, case-insensitively, ordered by creation time.
func (s *Store) SearchTasks(ctx context.Context, userID, query string) ([]*Task, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND (title LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)
		ORDER BY created_at ASC, id ASC
	`, userID, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// GetTask returns the task if it exists and belongs to the user.
func (s *Store) GetTask(ctx context.Context, taskID, userID string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?
	`, taskID, userID)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// UpdateTask applies the non-nil fields of upd to the user's task.
func (s *Store) UpdateTask(ctx context.Context, taskID, userID string, upd TaskUpdate) (*Task, error) {
	t, err := s.GetTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.Tags != nil {
		t.Tags = *upd.Tags
	}
	if upd.DueDate != nil {
		t.DueDate = upd.DueDate
	}
	if upd.Recurrence != nil {
		t.Recurrence = upd.Recurrence
	}
	t.UpdatedAt = time.Now().UTC()

	tags, err := marshalJSON(t.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	rec, err := marshalJSON(t.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("encode recurrence: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, priority = ?, tags = ?, due_date = ?, recurrence = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, t.Title, t.Description, t.Priority, tags, t.DueDate, rec, t.UpdatedAt, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	return t, nil
}

// DeleteTask removes the user's task. Returns false when no such task
// exists; deleting an already-deleted task is not an error.
func (s *Store) DeleteTask(ctx context.Context, taskID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = ? AND user_id = ?
	`, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetCompleted marks the user's task complete or pending. Completing a
// recurring task also creates its next occurrence.
func (s *Store) SetCompleted(ctx context.Context, taskID, userID string, completed bool) (*Task, error) {
	t, err := s.GetTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	wasCompleted := t.Completed

	now := time.Now().UTC()
	t.Completed = completed
	if completed {
		t.CompletedAt = &now
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		UPDATE tasks SET completed = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, t.Completed, t.CompletedAt, t.UpdatedAt, taskID, userID)
	if err != nil {
		return nil, fmt.Errorf("set completed: %w", err)
	}

	// Clone only on the incomplete-to-complete transition. Completing an
	// already-completed task must not mint another occurrence.
	if completed && !wasCompleted && t.Recurrence != nil {
		if err := s.createNextOccurrence(ctx, t); err != nil {
			return nil, fmt.Errorf("create next occurrence: %w", err)
		}
	}

	return t, nil
}

// ToggleCompleted flips the completion flag of the user's task.
func (s *Store) ToggleCompleted(ctx context.Context, taskID, userID string) (*Task, error) {
	t, err := s.GetTask(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}
	return s.SetCompleted(ctx, taskID, userID, !t.Completed)
}

// DueWithin returns the user's incomplete tasks due between now and
// now+window, soonest first.
func (s *Store) DueWithin(ctx context.Context, userID string, window time.Duration) ([]*Task, error) {
	now := time.Now().UTC()
	until := now.Add(window)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND completed = FALSE AND due_date IS NOT NULL AND due_date >= ? AND due_date <= ?
		ORDER BY due_date ASC
	`, userID, now, until)
	if err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// createNextOccurrence clones a completed recurring task at its next due
// date. The anchor is the task's due date when it has one, otherwise its
// creation time.
func (s *Store) createNextOccurrence(ctx context.Context, t *Task) error {
	anchor := t.CreatedAt
	if t.DueDate != nil {
		anchor = *t.DueDate
	}

	next, ok := recurrence.NextOccurrence(t.Recurrence, anchor)
	if !ok {
		return nil
	}

	_, err := s.CreateTask(ctx, t.UserID, NewTask{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Tags:        t.Tags,
		DueDate:     &next,
		Recurrence:  t.Recurrence,
	})
	return err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*Task, error) {
	var t Task
	var tags, rec sql.NullString
	var due, completedAt sql.NullTime

	err := r.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.Priority,
		&tags, &due, &t.Completed, &completedAt, &rec, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	if completedAt.Valid {
		c := completedAt.Time.UTC()
		t.CompletedAt = &c
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if rec.Valid && rec.String != "" {
		t.Recurrence = &recurrence.Rule{}
		if err := json.Unmarshal([]byte(rec.String), t.Recurrence); err != nil {
			return nil, fmt.Errorf("decode recurrence: %w", err)
		}
	}

	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// marshalJSON encodes v for a nullable TEXT column. Nil slices and nil
// pointers are stored as NULL rather than the string "null".
func marshalJSON(v any) (any, error) {
	switch x := v.(type) {
	case []string:
		if x == nil {
			return nil, nil
		}
	case *recurrence.Rule:
		if x == nil {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
