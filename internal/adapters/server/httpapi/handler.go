// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hylla/kundkoll/internal/adapters/server/common"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// UserHeader carries the caller's user id. Requests without it act as the configured default user.
const UserHeader = "X-Kundkoll-User"

// UserNameHeader optionally carries the caller's display name.
const UserNameHeader = "X-Kundkoll-User-Name"

// defaultEventLimit bounds activity event listings without an explicit limit.
const defaultEventLimit = 50

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service common.Service
	router  chi.Router
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over the transport service.
func NewHandler(service common.Service) *Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()
	r.Use(actorMiddleware)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.handleListClients)
		r.Post("/", h.handleCreateClient)
		r.Route("/{clientID}", func(r chi.Router) {
			r.Get("/", h.handleGetClient)
			r.Post("/archive", h.handleArchiveClient)
			r.Get("/activities", h.handleListActivities)
			r.Post("/activities", h.handleLogActivity)
			r.Post("/activities/changes", h.handleApplyActivityChange)
			r.Get("/activity_events", h.handleListActivityEvents)
			r.Post("/activity_view", h.handleActivityView)
		})
	})
	r.Patch("/activities/{activityID}", h.handleUpdateActivity)
	r.Delete("/activities/{activityID}", h.handleDeleteActivity)

	r.Get("/projects", h.handleListProjects)
	r.Post("/projects", h.handleCreateProject)
	r.Get("/projects/{projectID}/timeline", h.handleTimeline)

	r.Post("/tasks", h.handleCreateTask)
	r.Patch("/tasks/{taskID}", h.handleUpdateTask)
	r.Delete("/tasks/{taskID}", h.handleDeleteTask)

	r.Get("/reminders", h.handleListReminders)
	r.Post("/reminders", h.handleCreateReminder)
	r.Post("/reminders/{reminderID}/complete", h.handleCompleteReminder)

	r.Get("/dashboard", h.handleDashboard)
	r.Put("/dashboard/preferences", h.handleSavePreferences)

	h.router = r
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "api service is not configured",
		})
		return
	}
	h.router.ServeHTTP(w, r)
}

// actorMiddleware attaches the caller identity from request headers.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := app.WithActor(r.Context(), app.Actor{
			UserID:      userID,
			DisplayName: strings.TrimSpace(r.Header.Get(UserNameHeader)),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleListClients serves GET `/clients`.
func (h *Handler) handleListClients(w http.ResponseWriter, r *http.Request) {
	includeArchived, err := parseBoolQuery(r, "include_archived")
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	clients, err := h.service.ListClients(r.Context(), includeArchived)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": clients})
}

// handleCreateClient serves POST `/clients`.
func (h *Handler) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req common.CreateClientRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	client, err := h.service.CreateClient(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// handleGetClient serves GET `/clients/{id}`.
func (h *Handler) handleGetClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// handleArchiveClient serves POST `/clients/{id}/archive`.
func (h *Handler) handleArchiveClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.service.ArchiveClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// handleListActivities serves GET `/clients/{id}/activities`.
func (h *Handler) handleListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.service.ListClientActivities(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": activities})
}

// handleLogActivity serves POST `/clients/{id}/activities`.
func (h *Handler) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	var req common.LogActivityRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.service.LogActivity(r.Context(), chi.URLParam(r, "clientID"), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleApplyActivityChange serves POST `/clients/{id}/activities/changes`.
func (h *Handler) handleApplyActivityChange(w http.ResponseWriter, r *http.Request) {
	var change domain.ActivityChange
	if err := decodeJSONBody(r.Context(), w, r, &change); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.service.ApplyActivityChange(r.Context(), chi.URLParam(r, "clientID"), change)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleListActivityEvents serves GET `/clients/{id}/activity_events`.
func (h *Handler) handleListActivityEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a positive integer",
				Context: map[string]any{"limit": raw},
			})
			return
		}
		limit = parsed
	}
	events, err := h.service.ListActivityEvents(r.Context(), chi.URLParam(r, "clientID"), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

// handleActivityView serves POST `/clients/{id}/activity_view`.
func (h *Handler) handleActivityView(w http.ResponseWriter, r *http.Request) {
	var req common.ActivityViewRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	view, err := h.service.ClientActivityView(r.Context(), chi.URLParam(r, "clientID"), req.Pending)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": view})
}

// handleUpdateActivity serves PATCH `/activities/{id}`.
func (h *Handler) handleUpdateActivity(w http.ResponseWriter, r *http.Request) {
	var payload domain.ActivityPayload
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	out, err := h.service.UpdateActivity(r.Context(), chi.URLParam(r, "activityID"), payload)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteActivity serves DELETE `/activities/{id}`.
func (h *Handler) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteActivity(r.Context(), chi.URLParam(r, "activityID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListProjects serves GET `/projects`.
func (h *Handler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context(), strings.TrimSpace(r.URL.Query().Get("client_id")))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": projects})
}

// handleCreateProject serves POST `/projects`.
func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req common.CreateProjectRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	project, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// handleTimeline serves GET `/projects/{id}/timeline`.
func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.TaskTimeline(r.Context(), chi.URLParam(r, "projectID"), r.URL.Query()["collapsed"])
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req common.CreateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.service.CreateTask(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleUpdateTask serves PATCH `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req common.UpdateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.service.UpdateTask(r.Context(), chi.URLParam(r, "taskID"), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTask(r.Context(), chi.URLParam(r, "taskID")); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListReminders serves GET `/reminders`.
func (h *Handler) handleListReminders(w http.ResponseWriter, r *http.Request) {
	until := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("until")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "until must be an RFC3339 timestamp",
				Context: map[string]any{"until": raw},
			})
			return
		}
		until = parsed
	}
	reminders, err := h.service.ListDueReminders(r.Context(), until)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": reminders})
}

// handleCreateReminder serves POST `/reminders`.
func (h *Handler) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req common.CreateReminderRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	reminder, err := h.service.CreateReminder(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reminder)
}

// handleCompleteReminder serves POST `/reminders/{id}/complete`.
func (h *Handler) handleCompleteReminder(w http.ResponseWriter, r *http.Request) {
	reminder, err := h.service.CompleteReminder(r.Context(), chi.URLParam(r, "reminderID"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reminder)
}

// handleDashboard serves GET `/dashboard`.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.Dashboard(r.Context(), r.URL.Query()["only"])
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleSavePreferences serves PUT `/dashboard/preferences`.
func (h *Handler) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var req common.SavePreferenceRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	page, err := h.service.SavePreferences(r.Context(), req, r.URL.Query()["only"])
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// parseBoolQuery parses one optional boolean query parameter.
func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, errors.Join(common.ErrInvalidRequest, err))
	}
	return value, nil
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
			Hint:    "Restore the client before adding work to it.",
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
