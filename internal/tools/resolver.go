package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/taskdeck/taskdeck/internal/store"
)

var uuidRe = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// resolveTaskID turns a model-supplied identifier into a task id. The
// model may echo back a real UUID or a 1-based position from the last
// rendered list; positions resolve against the unfiltered listing in
// creation order, the same order the listing is rendered in.
func resolveTaskID(ctx context.Context, ts TaskStore, userID, raw string) (string, error) {
	if uuidRe.MatchString(raw) {
		return raw, nil
	}

	idx, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("Invalid task identifier: %s", raw)
	}

	tasks, err := ts.ListTasks(ctx, userID, store.FilterAll)
	if err != nil {
		return "", fmt.Errorf("Could not fetch task list: %v", err)
	}

	if idx < 1 || idx > len(tasks) {
		return "", fmt.Errorf("Task with index %s not found. Available tasks: %d.", raw, len(tasks))
	}
	return tasks[idx-1].ID, nil
}
