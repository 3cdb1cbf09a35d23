// Package tools defines the task operations the model can call.
package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/taskdeck/taskdeck/internal/llm"
	"github.com/taskdeck/taskdeck/internal/store"
)

// TaskStore is the slice of the task store the tools need.
type TaskStore interface {
	CreateTask(ctx context.Context, userID string, nt store.NewTask) (*store.Task, error)
	ListTasks(ctx context.Context, userID string, filter store.StatusFilter) ([]*store.Task, error)
	UpdateTask(ctx context.Context, taskID, userID string, upd store.TaskUpdate) (*store.Task, error)
	DeleteTask(ctx context.Context, taskID, userID string) (bool, error)
	SetCompleted(ctx context.Context, taskID, userID string, completed bool) (*store.Task, error)
}

// Tool is one callable task operation.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, userID string, args map[string]any) string
}

// Registry holds the tools exposed to the model.
type Registry struct {
	tools map[string]*Tool
	order []string
	store TaskStore
}

// NewRegistry creates the registry with the builtin task tools.
func NewRegistry(ts TaskStore) *Registry {
	r := &Registry{
		tools: make(map[string]*Tool),
		store: ts,
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "add_task",
		Description: "Add a new task to the user's task list",
		Parameters: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "STRING",
					"description": "Title of the task",
				},
				"description": map[string]any{
					"type":        "STRING",
					"description": "Description of the task",
				},
				"due_date": map[string]any{
					"type":        "STRING",
					"description": "Due date of the task in YYYY-MM-DD format",
				},
				"time": map[string]any{
					"type":        "STRING",
					"description": "Time of the task in HH:MM format",
				},
			},
			"required": []string{"title", "description"},
		},
		Handler: r.handleAddTask,
	})

	r.Register(&Tool{
		Name:        "list_tasks",
		Description: "List all tasks for the user",
		Parameters: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"status_filter": map[string]any{
					"type":        "STRING",
					"description": "Filter for task status: 'all', 'pending', or 'completed'",
				},
			},
		},
		Handler: r.handleListTasks,
	})

	r.Register(&Tool{
		Name:        "complete_task",
		Description: "Mark a task as complete",
		Parameters: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "STRING",
					"description": "ID of the task to mark as complete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: r.handleCompleteTask,
	})

	r.Register(&Tool{
		Name:        "update_task",
		Description: "Update a task's title or description",
		Parameters: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "STRING",
					"description": "ID of the task to update",
				},
				"title": map[string]any{
					"type":        "STRING",
					"description": "New title for the task (optional)",
				},
				"description": map[string]any{
					"type":        "STRING",
					"description": "New description for the task (optional)",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: r.handleUpdateTask,
	})

	r.Register(&Tool{
		Name:        "delete_task",
		Description: "Delete a task",
		Parameters: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "STRING",
					"description": "ID of the task to delete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: r.handleDeleteTask,
	})
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Declarations returns the tool definitions for the model, in
// registration order.
func (r *Registry) Declarations() []llm.FunctionDeclaration {
	decls := make([]llm.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		decls = append(decls, llm.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return decls
}

// Dispatch runs a tool on behalf of a user and returns the status text
// fed back to the model. Failures become text too; the model decides
// how to explain them.
func (r *Registry) Dispatch(ctx context.Context, userID, name string, args map[string]any) string {
	tool := r.tools[name]
	if tool == nil {
		return fmt.Sprintf("Unknown function: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return tool.Handler(ctx, userID, args)
}

// Tool handlers

func (r *Registry) handleAddTask(ctx context.Context, userID string, args map[string]any) string {
	title := stringArg(args, "title")
	if title == "" {
		title = "Untitled Task"
	}
	description := stringArg(args, "description")

	nt := store.NewTask{Title: title, Description: description}
	if due, ok := combineDueDate(stringArg(args, "due_date"), stringArg(args, "time")); ok {
		nt.DueDate = &due
	}

	if _, err := r.store.CreateTask(ctx, userID, nt); err != nil {
		return fmt.Sprintf("Error adding task: %v", err)
	}
	return fmt.Sprintf("Successfully added task '%s' to your list.", title)
}

func (r *Registry) handleListTasks(ctx context.Context, userID string, args map[string]any) string {
	filter := store.ParseStatusFilter(stringArg(args, "status_filter"))

	tasks, err := r.store.ListTasks(ctx, userID, filter)
	if err != nil {
		return fmt.Sprintf("Error listing tasks: %v", err)
	}
	if len(tasks) == 0 {
		return "You don't have any tasks right now."
	}

	var b strings.Builder
	b.WriteString("Your tasks:")
	for i, t := range tasks {
		fmt.Fprintf(&b, "\n[%d] %s - %s", i+1, t.Title, t.Description)
	}
	return b.String()
}

func (r *Registry) handleCompleteTask(ctx context.Context, userID string, args map[string]any) string {
	taskID, err := resolveTaskID(ctx, r.store, userID, stringArg(args, "task_id"))
	if err != nil {
		return fmt.Sprintf("Error completing task: %v", err)
	}

	if _, err := r.store.SetCompleted(ctx, taskID, userID, true); err != nil {
		if err == store.ErrNotFound {
			return "Error completing task: Task not found"
		}
		return fmt.Sprintf("Error completing task: %v", err)
	}
	return "Task marked as complete successfully!"
}

func (r *Registry) handleUpdateTask(ctx context.Context, userID string, args map[string]any) string {
	taskID, err := resolveTaskID(ctx, r.store, userID, stringArg(args, "task_id"))
	if err != nil {
		return fmt.Sprintf("Error updating task: %v", err)
	}

	var upd store.TaskUpdate
	if v, ok := args["title"].(string); ok {
		upd.Title = &v
	}
	if v, ok := args["description"].(string); ok {
		upd.Description = &v
	}

	if _, err := r.store.UpdateTask(ctx, taskID, userID, upd); err != nil {
		if err == store.ErrNotFound {
			return "Error updating task: Task not found"
		}
		return fmt.Sprintf("Error updating task: %v", err)
	}
	return "Task updated successfully!"
}

func (r *Registry) handleDeleteTask(ctx context.Context, userID string, args map[string]any) string {
	taskID, err := resolveTaskID(ctx, r.store, userID, stringArg(args, "task_id"))
	if err != nil {
		return fmt.Sprintf("Error deleting task: %v", err)
	}

	deleted, err := r.store.DeleteTask(ctx, taskID, userID)
	if err != nil {
		return fmt.Sprintf("Error deleting task: %v", err)
	}
	if !deleted {
		return "Error deleting task: Task not found"
	}
	return "Task deleted successfully!"
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// combineDueDate merges a YYYY-MM-DD date and optional HH:MM time into
// a single timestamp. A date without a time lands at midnight.
func combineDueDate(date, clock string) (time.Time, bool) {
	if date == "" {
		return time.Time{}, false
	}
	layout, value := "2006-01-02", date
	if clock != "" {
		layout, value = "2006-01-02T15:04", date+"T"+clock
	}
	due, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, false
	}
	return due.UTC(), true
}
