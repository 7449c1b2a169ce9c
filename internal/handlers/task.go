package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskhub/apiserver/internal/services"
	"github.com/taskhub/apiserver/internal/store"
)

var allowedTaskFields = map[string]bool{
	"description": true,
	"completed":   true,
}

// TaskHandler provides owner-scoped task CRUD endpoints.
type TaskHandler struct {
	tasks *services.TaskService
}

// NewTaskHandler constructs a handler with the provided service.
func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// TaskRouter registers task routes on the given router. Every route
// requires authentication.
func TaskRouter(r chi.Router, tasks *services.TaskService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewTaskHandler(tasks)

	r.Use(authMiddleware)
	r.Post("/", handler.CreateTask)
	r.Get("/", handler.ListTasks)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Patch("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
	})
}

type TaskCreateRequest struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req TaskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	task, err := h.tasks.Create(r.Context(), user.ID, req.Description, req.Completed)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// ListTasks supports ?completed=true|false, ?sortBy=field:asc|desc,
// and ?limit= / ?skip= pagination.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	filter, err := parseTaskFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.tasks.List(r.Context(), user.ID, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Get(r.Context(), id, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// UpdateTask applies an allow-listed update. Any field outside
// {description, completed} rejects the whole request and leaves the
// task unchanged.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	for field := range raw {
		if !allowedTaskFields[field] {
			writeError(w, http.StatusBadRequest, "invalid update")
			return
		}
	}

	update, err := decodeTaskUpdate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	task, err := h.tasks.Update(r.Context(), id, user.ID, update)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Delete(r.Context(), id, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func parseTaskID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "taskID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid task id")
	}
	return id, nil
}

func parseTaskFilter(r *http.Request) (store.TaskFilter, error) {
	var filter store.TaskFilter
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("completed")); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return store.TaskFilter{}, errors.New("invalid completed filter")
		}
		filter.Completed = &completed
	}

	if raw := strings.TrimSpace(query.Get("sortBy")); raw != "" {
		parts := strings.SplitN(raw, ":", 2)
		filter.SortBy = parts[0]
		if len(parts) == 2 {
			switch parts[1] {
			case "asc":
			case "desc":
				filter.SortDesc = true
			default:
				return store.TaskFilter{}, errors.New("invalid sort direction")
			}
		}
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return store.TaskFilter{}, errors.New("invalid limit")
		}
		filter.Limit = limit
	}

	if raw := strings.TrimSpace(query.Get("skip")); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return store.TaskFilter{}, errors.New("invalid skip")
		}
		filter.Skip = skip
	}

	return filter, nil
}

func decodeTaskUpdate(raw map[string]json.RawMessage) (services.TaskUpdate, error) {
	var update services.TaskUpdate
	if value, ok := raw["description"]; ok {
		var description string
		if err := json.Unmarshal(value, &description); err != nil {
			return services.TaskUpdate{}, err
		}
		update.Description = &description
	}
	if value, ok := raw["completed"]; ok {
		var completed bool
		if err := json.Unmarshal(value, &completed); err != nil {
			return services.TaskUpdate{}, err
		}
		update.Completed = &completed
	}
	return update, nil
}
