package v1

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	errs "github.com/usetaskchat/taskchat/internal/errors"
	"github.com/usetaskchat/taskchat/store"
)

const (
	maxTaskTitleLength       = 200
	maxTaskDescriptionLength = 1000
)

type taskPayload struct {
	ID          int32  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	DueTs       *int64 `json:"due_ts,omitempty"`
	CreatedTs   int64  `json:"created_ts"`
	UpdatedTs   int64  `json:"updated_ts"`
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueTs       *int64 `json:"due_ts"`
}

// updateTaskRequest uses pointers so absent fields stay untouched. DueTs is
// raw so that a present-but-null value (clear the due date) stays
// distinguishable from an absent one.
type updateTaskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Completed   *bool           `json:"completed"`
	DueTs       json.RawMessage `json:"due_ts"`
}

type taskListResponse struct {
	Tasks []*taskPayload `json:"tasks"`
	Total int64          `json:"total"`
}

type taskStatsResponse struct {
	TotalTasks     int64   `json:"total_tasks"`
	CompletedTasks int64   `json:"completed_tasks"`
	PendingTasks   int64   `json:"pending_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

// ListTasks returns the caller's tasks, optionally filtered by status.
func (s *APIV1Service) ListTasks(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	limit, offset := paginationParams(c)

	find := &store.FindTask{
		CreatorID: &ownerID,
		Limit:     &limit,
		Offset:    &offset,
	}
	switch c.QueryParam("status") {
	case "", "all":
	case "complete":
		completed := true
		find.Completed = &completed
	case "incomplete":
		completed := false
		find.Completed = &completed
	default:
		return s.respondError(c, errs.InvalidArgument("status", "must be one of all, complete, incomplete"))
	}

	tasks, err := s.Store.ListTasks(c.Request().Context(), find)
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to list tasks", err))
	}
	total, err := s.Store.CountTasks(c.Request().Context(), &store.FindTask{CreatorID: &ownerID, Completed: find.Completed})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to count tasks", err))
	}

	payloads := make([]*taskPayload, 0, len(tasks))
	for _, task := range tasks {
		payloads = append(payloads, toTaskPayload(task))
	}
	return c.JSON(http.StatusOK, &taskListResponse{Tasks: payloads, Total: total})
}

// TaskStats returns the caller's task counts and completion rate as a
// percentage rounded to two decimals.
func (s *APIV1Service) TaskStats(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	total, err := s.Store.CountTasks(c.Request().Context(), &store.FindTask{CreatorID: &ownerID})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to count tasks", err))
	}
	completed := true
	completedCount, err := s.Store.CountTasks(c.Request().Context(), &store.FindTask{CreatorID: &ownerID, Completed: &completed})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to count completed tasks", err))
	}

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(completedCount)/float64(total)*10000) / 100
	}
	return c.JSON(http.StatusOK, &taskStatsResponse{
		TotalTasks:     total,
		CompletedTasks: completedCount,
		PendingTasks:   total - completedCount,
		CompletionRate: rate,
	})
}

// CreateTask creates a task for the caller.
func (s *APIV1Service) CreateTask(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, errs.InvalidArgument("", "malformed request body"))
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return s.respondError(c, errs.InvalidArgument("title", "is required"))
	}
	if len([]rune(title)) > maxTaskTitleLength {
		return s.respondError(c, errs.InvalidArgument("title", "must be at most 200 characters"))
	}
	description := strings.TrimSpace(req.Description)
	if len([]rune(description)) > maxTaskDescriptionLength {
		return s.respondError(c, errs.InvalidArgument("description", "must be at most 1000 characters"))
	}

	now := time.Now().Unix()
	task, err := s.Store.CreateTask(c.Request().Context(), &store.Task{
		CreatorID:   ownerID,
		Title:       title,
		Description: description,
		DueTs:       req.DueTs,
		CreatedTs:   now,
		UpdatedTs:   now,
	})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to create task", err))
	}
	return c.JSON(http.StatusCreated, toTaskPayload(task))
}

// GetTask returns one owned task.
func (s *APIV1Service) GetTask(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	taskID, err := pathID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	task, err := s.Store.GetTask(c.Request().Context(), &store.FindTask{ID: &taskID, CreatorID: &ownerID})
	if err != nil {
		return s.respondError(c, errs.StorageError("failed to load task", err))
	}
	if task == nil {
		return s.respondError(c, errs.NotFound("task not found"))
	}
	return c.JSON(http.StatusOK, toTaskPayload(task))
}

// UpdateTask applies a partial update to an owned task.
func (s *APIV1Service) UpdateTask(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	taskID, err := pathID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	var req updateTaskRequest
	if err := c.Bind(&req); err != nil {
		return s.respondError(c, errs.InvalidArgument("", "malformed request body"))
	}
	if req.Title == nil && req.Description == nil && req.Completed == nil && len(req.DueTs) == 0 {
		return s.respondError(c, errs.InvalidArgument("", "at least one field is required"))
	}

	now := time.Now().Unix()
	update := &store.UpdateTask{ID: taskID, CreatorID: ownerID, UpdatedTs: &now}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return s.respondError(c, errs.InvalidArgument("title", "must not be empty"))
		}
		if len([]rune(title)) > maxTaskTitleLength {
			return s.respondError(c, errs.InvalidArgument("title", "must be at most 200 characters"))
		}
		update.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if len([]rune(description)) > maxTaskDescriptionLength {
			return s.respondError(c, errs.InvalidArgument("description", "must be at most 1000 characters"))
		}
		update.Description = &description
	}
	update.Completed = req.Completed
	if len(req.DueTs) > 0 {
		if string(req.DueTs) == "null" {
			var cleared *int64
			update.DueTs = &cleared
		} else {
			var dueTs int64
			if err := json.Unmarshal(req.DueTs, &dueTs); err != nil {
				return s.respondError(c, errs.InvalidArgument("due_ts", "must be a unix timestamp or null"))
			}
			due := &dueTs
			update.DueTs = &due
		}
	}

	task, err := s.Store.UpdateTask(c.Request().Context(), update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.respondError(c, errs.NotFound("task not found"))
		}
		return s.respondError(c, errs.StorageError("failed to update task", err))
	}
	return c.JSON(http.StatusOK, toTaskPayload(task))
}

// DeleteTask removes an owned task.
func (s *APIV1Service) DeleteTask(c echo.Context) error {
	ownerID, err := s.ownerID(c)
	if err != nil {
		return s.respondError(c, err)
	}
	taskID, err := pathID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := s.Store.DeleteTask(c.Request().Context(), &store.DeleteTask{ID: taskID, CreatorID: ownerID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.respondError(c, errs.NotFound("task not found"))
		}
		return s.respondError(c, errs.StorageError("failed to delete task", err))
	}
	return c.NoContent(http.StatusNoContent)
}

func toTaskPayload(task *store.Task) *taskPayload {
	return &taskPayload{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		DueTs:       task.DueTs,
		CreatedTs:   task.CreatedTs,
		UpdatedTs:   task.UpdatedTs,
	}
}
