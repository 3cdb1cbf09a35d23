package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taskdeck/taskdeck/internal/recurrence"
	"github.com/taskdeck/taskdeck/internal/store"
)

type taskCreateRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    string           `json:"priority"`
	Tags        []string         `json:"tags"`
	DueDate     *time.Time       `json:"due_date"`
	Recurrence  *recurrence.Rule `json:"recurrence"`
}

type taskUpdateRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *string          `json:"priority"`
	Tags        *[]string        `json:"tags"`
	DueDate     *time.Time       `json:"due_date"`
	Recurrence  *recurrence.Rule `json:"recurrence"`
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var req taskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	task, err := s.store.CreateTask(r.Context(), userID, store.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		DueDate:     req.DueDate,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		s.logger.Error("create task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, task, s.logger)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request, userID string) {
	if q := r.URL.Query().Get("search"); q != "" {
		tasks, err := s.store.SearchTasks(r.Context(), userID, q)
		if err != nil {
			s.logger.Error("search tasks failed", "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "failed to search tasks")
			return
		}
		writeJSON(w, map[string]any{"tasks": tasks}, s.logger)
		return
	}

	filter := store.ParseStatusFilter(r.URL.Query().Get("status"))
	tasks, err := s.store.ListTasks(r.Context(), userID, filter)
	if err != nil {
		s.logger.Error("list tasks failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, map[string]any{"tasks": tasks}, s.logger)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request, userID string) {
	task, err := s.store.GetTask(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		if err == store.ErrNotFound {
			s.errorResponse(w, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.Error("get task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, task, s.logger)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	var req taskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task, err := s.store.UpdateTask(r.Context(), r.PathValue("id"), userID, store.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		DueDate:     req.DueDate,
		Recurrence:  req.Recurrence,
	})
	if err != nil {
		if err == store.ErrNotFound {
			s.errorResponse(w, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.Error("update task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update task")
		return
	}
	writeJSON(w, task, s.logger)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request, userID string) {
	deleted, err := s.store.DeleteTask(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		s.logger.Error("delete task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete task")
		return
	}
	if !deleted {
		s.errorResponse(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, map[string]any{
		"success": true,
		"message": "Task deleted successfully",
	}, s.logger)
}

func (s *Server) handleTaskToggle(w http.ResponseWriter, r *http.Request, userID string) {
	task, err := s.store.ToggleCompleted(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		if err == store.ErrNotFound {
			s.errorResponse(w, http.StatusNotFound, "Task not found")
			return
		}
		s.logger.Error("toggle task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to toggle task")
		return
	}
	writeJSON(w, task, s.logger)
}

// handleTaskNotifications returns the user's incomplete tasks due
// within the next hour.
func (s *Server) handleTaskNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	tasks, err := s.store.DueWithin(r.Context(), userID, time.Hour)
	if err != nil {
		s.logger.Error("due tasks failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	writeJSON(w, map[string]any{"notifications": tasks}, s.logger)
}
