// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/kundkoll/internal/activity"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/domain"
	"github.com/hylla/kundkoll/internal/tasktree"
)

// ErrInvalidRequest reports malformed or semantically invalid transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports writes rejected by the current state of a resource.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a backend that is not configured or not reachable.
var ErrUnavailable = errors.New("service unavailable")

// CreateClientRequest captures one client creation request.
type CreateClientRequest struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// CreateProjectRequest captures one project creation request.
type CreateProjectRequest struct {
	ClientID    string               `json:"client_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Status      domain.ProjectStatus `json:"status,omitempty"`
}

// CreateTaskRequest captures one task creation request.
type CreateTaskRequest struct {
	ProjectID   string            `json:"project_id"`
	ParentID    string            `json:"parent_id,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      domain.TaskStatus `json:"status,omitempty"`
	Priority    domain.Priority   `json:"priority,omitempty"`
	StartAt     *time.Time        `json:"start_at,omitempty"`
	DueAt       *time.Time        `json:"due_at,omitempty"`
	IsMilestone bool              `json:"is_milestone,omitempty"`
	Order       *int              `json:"order,omitempty"`
}

// UpdateTaskRequest captures one partial task update. Absent fields keep their
// current value. Nil ParentID and Order keep the current placement; an empty
// ParentID moves the task to the root.
type UpdateTaskRequest struct {
	Title        *string            `json:"title,omitempty"`
	Description  *string            `json:"description,omitempty"`
	Status       *domain.TaskStatus `json:"status,omitempty"`
	Priority     *domain.Priority   `json:"priority,omitempty"`
	StartAt      *time.Time         `json:"start_at,omitempty"`
	DueAt        *time.Time         `json:"due_at,omitempty"`
	ClearStartAt bool               `json:"clear_start_at,omitempty"`
	ClearDueAt   bool               `json:"clear_due_at,omitempty"`
	IsMilestone  *bool              `json:"is_milestone,omitempty"`
	ParentID     *string            `json:"parent_id,omitempty"`
	Order        *int               `json:"order,omitempty"`
}

// LogActivityRequest captures one new activity for a client.
type LogActivityRequest struct {
	Type       domain.ActivityType `json:"type,omitempty"`
	Summary    string              `json:"summary"`
	Data       map[string]any      `json:"data,omitempty"`
	OccurredAt *time.Time          `json:"occurred_at,omitempty"`
}

// ActivityViewRequest carries the caller's pending changes for one merged view.
type ActivityViewRequest struct {
	Pending []domain.ActivityChange `json:"pending"`
}

// CreateReminderRequest captures one reminder creation request.
type CreateReminderRequest struct {
	ClientID string    `json:"client_id"`
	TaskID   string    `json:"task_id,omitempty"`
	Title    string    `json:"title"`
	DueAt    time.Time `json:"due_at"`
}

// SavePreferenceRequest captures one dashboard preference write.
type SavePreferenceRequest struct {
	Layout    []domain.WidgetConfig `json:"layout"`
	DateRange domain.DateRange      `json:"date_range,omitempty"`
}

// ClientService defines client reads and writes.
type ClientService interface {
	ListClients(context.Context, bool) ([]domain.Client, error)
	GetClient(context.Context, string) (domain.Client, error)
	CreateClient(context.Context, CreateClientRequest) (domain.Client, error)
	ArchiveClient(context.Context, string) (domain.Client, error)
}

// ProjectService defines project and task tree operations.
type ProjectService interface {
	ListProjects(context.Context, string) ([]domain.Project, error)
	CreateProject(context.Context, CreateProjectRequest) (domain.Project, error)
	TaskTimeline(context.Context, string, []string) ([]tasktree.Row, error)
	CreateTask(context.Context, CreateTaskRequest) (domain.Task, error)
	UpdateTask(context.Context, string, UpdateTaskRequest) (domain.Task, error)
	DeleteTask(context.Context, string) error
}

// ActivityService defines client timeline operations.
type ActivityService interface {
	ListClientActivities(context.Context, string) ([]domain.Activity, error)
	ListActivityEvents(context.Context, string, int) ([]domain.ActivityEvent, error)
	LogActivity(context.Context, string, LogActivityRequest) (domain.Activity, error)
	UpdateActivity(context.Context, string, domain.ActivityPayload) (domain.Activity, error)
	DeleteActivity(context.Context, string) error
	ApplyActivityChange(context.Context, string, domain.ActivityChange) (domain.Activity, error)
	ClientActivityView(context.Context, string, []domain.ActivityChange) ([]activity.Display, error)
}

// ReminderService defines reminder operations.
type ReminderService interface {
	ListDueReminders(context.Context, time.Time) ([]domain.Reminder, error)
	CreateReminder(context.Context, CreateReminderRequest) (domain.Reminder, error)
	CompleteReminder(context.Context, string) (domain.Reminder, error)
}

// DashboardService defines dashboard reads and preference writes. Both return
// only the page fields named in the trailing selection.
type DashboardService interface {
	Dashboard(context.Context, []string) (app.DashboardPage, error)
	SavePreferences(context.Context, SavePreferenceRequest, []string) (app.DashboardPage, error)
}

// Service is the full transport-facing backend served over REST and MCP.
type Service interface {
	ClientService
	ProjectService
	ActivityService
	ReminderService
	DashboardService
}
