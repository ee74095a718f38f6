package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/usetaskchat/taskchat/store"
)

const (
	maxTaskTitleLength       = 200
	maxTaskDescriptionLength = 1000
	defaultListLimit         = 50
	maxListLimit             = 100
)

// TaskStore is the slice of the storage layer the task tools need.
type TaskStore interface {
	CreateTask(ctx context.Context, create *store.Task) (*store.Task, error)
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	CountTasks(ctx context.Context, find *store.FindTask) (int64, error)
	GetTask(ctx context.Context, find *store.FindTask) (*store.Task, error)
	UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error)
	DeleteTask(ctx context.Context, delete *store.DeleteTask) error
}

// RegisterTaskTools registers the task management tools against the store.
func RegisterTaskTools(registry *Registry, ts TaskStore) error {
	tools := []Tool{
		&addTaskTool{store: ts},
		&listTasksTool{store: ts},
		&completeTaskTool{store: ts},
		&updateTaskTool{store: ts},
		&deleteTaskTool{store: ts},
	}
	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func invalidInput(field, msg string) *ToolResult {
	return &ToolResult{Success: false, Error: fmt.Sprintf("%s: %s", field, msg)}
}

// parseDueDate accepts RFC 3339 timestamps. Dates in the past are valid;
// users record overdue items all the time.
func parseDueDate(raw string) (int64, *ToolResult) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, invalidInput("due_date", "must be an RFC 3339 timestamp, e.g. 2026-09-01T12:00:00Z")
	}
	return t.Unix(), nil
}

func taskPayload(task *store.Task) map[string]any {
	payload := map[string]any{
		"id":          task.ID,
		"title":       task.Title,
		"description": task.Description,
		"completed":   task.Completed,
		"created_at":  time.Unix(task.CreatedTs, 0).UTC().Format(time.RFC3339),
		"updated_at":  time.Unix(task.UpdatedTs, 0).UTC().Format(time.RFC3339),
	}
	if task.DueTs != nil {
		payload["due_date"] = time.Unix(*task.DueTs, 0).UTC().Format(time.RFC3339)
	}
	return payload
}

// addTaskTool creates a task for the owner.
type addTaskTool struct {
	store TaskStore
}

func (t *addTaskTool) Name() string {
	return "add_task"
}

func (t *addTaskTool) Description() string {
	return "Create a new task for the user. Requires a title; description and due date are optional."
}

func (t *addTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short task title, 1-200 characters",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Optional longer description, up to 1000 characters",
			},
			"due_date": map[string]any{
				"type":        "string",
				"description": "Optional due date as an RFC 3339 timestamp",
			},
		},
		"required": []string{"title"},
	}
}

func (t *addTaskTool) Run(ctx context.Context, ownerID int32, input json.RawMessage) (*ToolResult, error) {
	var args struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		DueDate     string `json:"due_date"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return invalidInput("input", "malformed arguments"), nil
	}

	title := strings.TrimSpace(args.Title)
	if title == "" {
		return invalidInput("title", "is required"), nil
	}
	if len([]rune(title)) > maxTaskTitleLength {
		return invalidInput("title", fmt.Sprintf("must be at most %d characters", maxTaskTitleLength)), nil
	}
	description := strings.TrimSpace(args.Description)
	if len([]rune(description)) > maxTaskDescriptionLength {
		return invalidInput("description", fmt.Sprintf("must be at most %d characters", maxTaskDescriptionLength)), nil
	}

	create := &store.Task{
		CreatorID:   ownerID,
		Title:       title,
		Description: description,
	}
	if args.DueDate != "" {
		dueTs, fail := parseDueDate(args.DueDate)
		if fail != nil {
			return fail, nil
		}
		create.DueTs = &dueTs
	}

	task, err := t.store.CreateTask(ctx, create)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Success: true, Data: taskPayload(task)}, nil
}

// listTasksTool lists the owner's tasks with optional status filtering.
type listTasksTool struct {
	store TaskStore
}

func (t *listTasksTool) Name() string {
	return "list_tasks"
}

func (t *listTasksTool) Description() string {
	return "List the user's tasks, optionally filtered by completion status."
}

func (t *listTasksTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{
				"type":        "string",
				"enum":        []string{"all", "complete", "incomplete"},
				"description": "Filter by completion status, defaults to all",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of tasks to return, defaults to 50, at most 100",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Number of tasks to skip for pagination",
			},
		},
	}
}

func (t *listTasksTool) Run(ctx context.Context, ownerID int32, input json.RawMessage) (*ToolResult, error) {
	var args struct {
		Status string `json:"status"`
		Limit  *int   `json:"limit"`
		Offset *int   `json:"offset"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return invalidInput("input", "malformed arguments"), nil
	}

	find := &store.FindTask{CreatorID: &ownerID}
	switch args.Status {
	case "", "all":
	case "complete":
		completed := true
		find.Completed = &completed
	case "incomplete":
		completed := false
		find.Completed = &completed
	default:
		return invalidInput("status", "must be one of all, complete, incomplete"), nil
	}

	limit := defaultListLimit
	if args.Limit != nil {
		if *args.Limit < 1 {
			return invalidInput("limit", "must be at least 1"), nil
		}
		limit = *args.Limit
		if limit > maxListLimit {
			limit = maxListLimit
		}
	}
	offset := 0
	if args.Offset != nil {
		if *args.Offset < 0 {
			return invalidInput("offset", "must not be negative"), nil
		}
		offset = *args.Offset
	}
	find.Limit = &limit
	find.Offset = &offset

	tasks, err := t.store.ListTasks(ctx, find)
	if err != nil {
		return nil, err
	}
	total, err := t.store.CountTasks(ctx, &store.FindTask{CreatorID: &ownerID, Completed: find.Completed})
	if err != nil {
		return nil, err
	}

	payloads := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		payloads = append(payloads, taskPayload(task))
	}
	return &ToolResult{Success: true, Data: map[string]any{
		"tasks":  payloads,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	}}, nil
}

// completeTaskTool toggles a task's completion state. Re-completing a task is
// a successful no-op, not an error.
type completeTaskTool struct {
	store TaskStore
}

func (t *completeTaskTool) Name() string {
	return "complete_task"
}

func (t *completeTaskTool) Description() string {
	return "Mark one of the user's tasks as complete, or incomplete when completed is false."
}

func (t *completeTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{
				"type":        "integer",
				"description": "Identifier of the task to update",
			},
			"completed": map[string]any{
				"type":        "boolean",
				"description": "Target completion state, defaults to true",
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *completeTaskTool) Run(ctx context.Context, ownerID int32, input json.RawMessage) (*ToolResult, error) {
	var args struct {
		TaskID    *int32 `json:"task_id"`
		Completed *bool  `json:"completed"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return invalidInput("input", "malformed arguments"), nil
	}
	if args.TaskID == nil {
		return invalidInput("task_id", "is required"), nil
	}
	target := true
	if args.Completed != nil {
		target = *args.Completed
	}

	task, err := t.store.GetTask(ctx, &store.FindTask{ID: args.TaskID, CreatorID: &ownerID})
	if err != nil {
		return nil, err
	}
	if task == nil {
		return invalidInput("task_id", fmt.Sprintf("no task with id %d", *args.TaskID)), nil
	}
	if task.Completed == target {
		payload := taskPayload(task)
		payload["changed"] = false
		return &ToolResult{Success: true, Data: payload}, nil
	}

	now := time.Now().Unix()
	updated, err := t.store.UpdateTask(ctx, &store.UpdateTask{
		ID:        *args.TaskID,
		CreatorID: ownerID,
		Completed: &target,
		UpdatedTs: &now,
	})
	if err != nil {
		return nil, err
	}
	payload := taskPayload(updated)
	payload["changed"] = true
	return &ToolResult{Success: true, Data: payload}, nil
}

// updateTaskTool applies a partial update to a task.
type updateTaskTool struct {
	store TaskStore
}

func (t *updateTaskTool) Name() string {
	return "update_task"
}

func (t *updateTaskTool) Description() string {
	return "Update a task's title, description or due date. Only the provided fields change; an empty due_date clears it."
}

func (t *updateTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{
				"type":        "integer",
				"description": "Identifier of the task to update",
			},
			"title": map[string]any{
				"type":        "string",
				"description": "New title, 1-200 characters",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "New description, up to 1000 characters",
			},
			"due_date": map[string]any{
				"type":        "string",
				"description": "New due date as an RFC 3339 timestamp, or an empty string to clear it",
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *updateTaskTool) Run(ctx context.Context, ownerID int32, input json.RawMessage) (*ToolResult, error) {
	var args struct {
		TaskID      *int32  `json:"task_id"`
		Title       *string `json:"title"`
		Description *string `json:"description"`
		DueDate     *string `json:"due_date"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return invalidInput("input", "malformed arguments"), nil
	}
	if args.TaskID == nil {
		return invalidInput("task_id", "is required"), nil
	}
	if args.Title == nil && args.Description == nil && args.DueDate == nil {
		return invalidInput("input", "at least one of title, description, due_date is required"), nil
	}

	now := time.Now().Unix()
	update := &store.UpdateTask{ID: *args.TaskID, CreatorID: ownerID, UpdatedTs: &now}
	if args.Title != nil {
		title := strings.TrimSpace(*args.Title)
		if title == "" {
			return invalidInput("title", "must not be empty"), nil
		}
		if len([]rune(title)) > maxTaskTitleLength {
			return invalidInput("title", fmt.Sprintf("must be at most %d characters", maxTaskTitleLength)), nil
		}
		update.Title = &title
	}
	if args.Description != nil {
		description := strings.TrimSpace(*args.Description)
		if len([]rune(description)) > maxTaskDescriptionLength {
			return invalidInput("description", fmt.Sprintf("must be at most %d characters", maxTaskDescriptionLength)), nil
		}
		update.Description = &description
	}
	if args.DueDate != nil {
		if *args.DueDate == "" {
			var cleared *int64
			update.DueTs = &cleared
		} else {
			dueTs, fail := parseDueDate(*args.DueDate)
			if fail != nil {
				return fail, nil
			}
			due := &dueTs
			update.DueTs = &due
		}
	}

	task, err := t.store.UpdateTask(ctx, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalidInput("task_id", fmt.Sprintf("no task with id %d", *args.TaskID)), nil
		}
		return nil, err
	}
	return &ToolResult{Success: true, Data: taskPayload(task)}, nil
}

// deleteTaskTool deletes a task.
type deleteTaskTool struct {
	store TaskStore
}

func (t *deleteTaskTool) Name() string {
	return "delete_task"
}

func (t *deleteTaskTool) Description() string {
	return "Delete one of the user's tasks permanently."
}

func (t *deleteTaskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task_id": map[string]any{
				"type":        "integer",
				"description": "Identifier of the task to delete",
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *deleteTaskTool) Run(ctx context.Context, ownerID int32, input json.RawMessage) (*ToolResult, error) {
	var args struct {
		TaskID *int32 `json:"task_id"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return invalidInput("input", "malformed arguments"), nil
	}
	if args.TaskID == nil {
		return invalidInput("task_id", "is required"), nil
	}

	err := t.store.DeleteTask(ctx, &store.DeleteTask{ID: *args.TaskID, CreatorID: ownerID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalidInput("task_id", fmt.Sprintf("no task with id %d", *args.TaskID)), nil
		}
		return nil, err
	}
	return &ToolResult{Success: true, Data: map[string]any{"deleted_id": *args.TaskID}}, nil
}
