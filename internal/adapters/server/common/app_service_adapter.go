package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/kundkoll/internal/activity"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/domain"
	"github.com/hylla/kundkoll/internal/tasktree"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

var _ Service = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// ListClients lists clients ordered by name.
func (a *AppServiceAdapter) ListClients(ctx context.Context, includeArchived bool) ([]domain.Client, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	clients, err := a.service.ListClients(ctx, includeArchived)
	if err != nil {
		return nil, mapAppError("list clients", err)
	}
	return clients, nil
}

// GetClient returns one client.
func (a *AppServiceAdapter) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	if err := a.ready(); err != nil {
		return domain.Client{}, err
	}
	client, err := a.service.GetClient(ctx, clientID)
	if err != nil {
		return domain.Client{}, mapAppError("get client", err)
	}
	return client, nil
}

// CreateClient creates one client.
func (a *AppServiceAdapter) CreateClient(ctx context.Context, in CreateClientRequest) (domain.Client, error) {
	if err := a.ready(); err != nil {
		return domain.Client{}, err
	}
	client, err := a.service.CreateClient(ctx, app.CreateClientInput{
		Name:    in.Name,
		Company: in.Company,
		Email:   in.Email,
		Phone:   in.Phone,
		Notes:   in.Notes,
	})
	if err != nil {
		return domain.Client{}, mapAppError("create client", err)
	}
	return client, nil
}

// ArchiveClient archives one client.
func (a *AppServiceAdapter) ArchiveClient(ctx context.Context, clientID string) (domain.Client, error) {
	if err := a.ready(); err != nil {
		return domain.Client{}, err
	}
	client, err := a.service.ArchiveClient(ctx, clientID)
	if err != nil {
		return domain.Client{}, mapAppError("archive client", err)
	}
	return client, nil
}

// ListProjects lists projects for one client, or all when clientID is empty.
func (a *AppServiceAdapter) ListProjects(ctx context.Context, clientID string) ([]domain.Project, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	projects, err := a.service.ListProjects(ctx, clientID)
	if err != nil {
		return nil, mapAppError("list projects", err)
	}
	return projects, nil
}

// CreateProject creates one project.
func (a *AppServiceAdapter) CreateProject(ctx context.Context, in CreateProjectRequest) (domain.Project, error) {
	if err := a.ready(); err != nil {
		return domain.Project{}, err
	}
	project, err := a.service.CreateProject(ctx, app.CreateProjectInput{
		ClientID:    in.ClientID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
	})
	if err != nil {
		return domain.Project{}, mapAppError("create project", err)
	}
	return project, nil
}

// TaskTimeline flattens one project's task tree, hiding the descendants of collapsed ids.
func (a *AppServiceAdapter) TaskTimeline(ctx context.Context, projectID string, collapsed []string) ([]tasktree.Row, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	rows, err := a.service.TaskTimeline(ctx, projectID, collapsedSet(collapsed))
	if err != nil {
		return nil, mapAppError("task timeline", err)
	}
	return rows, nil
}

// CreateTask creates one task.
func (a *AppServiceAdapter) CreateTask(ctx context.Context, in CreateTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.CreateTask(ctx, app.CreateTaskInput{
		ProjectID:   in.ProjectID,
		ParentID:    in.ParentID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		StartAt:     in.StartAt,
		DueAt:       in.DueAt,
		IsMilestone: in.IsMilestone,
		Order:       in.Order,
	})
	if err != nil {
		return domain.Task{}, mapAppError("create task", err)
	}
	return task, nil
}

// UpdateTask updates one task.
func (a *AppServiceAdapter) UpdateTask(ctx context.Context, taskID string, in UpdateTaskRequest) (domain.Task, error) {
	if err := a.ready(); err != nil {
		return domain.Task{}, err
	}
	task, err := a.service.UpdateTask(ctx, app.UpdateTaskInput{
		TaskID: taskID,
		Patch: domain.TaskPatch{
			Title:        in.Title,
			Description:  in.Description,
			Status:       in.Status,
			Priority:     in.Priority,
			StartAt:      in.StartAt,
			DueAt:        in.DueAt,
			ClearStartAt: in.ClearStartAt,
			ClearDueAt:   in.ClearDueAt,
			IsMilestone:  in.IsMilestone,
		},
		ParentID: in.ParentID,
		Order:    in.Order,
	})
	if err != nil {
		return domain.Task{}, mapAppError("update task", err)
	}
	return task, nil
}

// DeleteTask deletes one task and lifts its children one level.
func (a *AppServiceAdapter) DeleteTask(ctx context.Context, taskID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return mapAppError("delete task", a.service.DeleteTask(ctx, taskID))
}

// ListClientActivities lists confirmed activities for one client.
func (a *AppServiceAdapter) ListClientActivities(ctx context.Context, clientID string) ([]domain.Activity, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	activities, err := a.service.ListClientActivities(ctx, clientID)
	if err != nil {
		return nil, mapAppError("list activities", err)
	}
	return activities, nil
}

// ListActivityEvents lists the audit trail for one client.
func (a *AppServiceAdapter) ListActivityEvents(ctx context.Context, clientID string, limit int) ([]domain.ActivityEvent, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	events, err := a.service.ListActivityEvents(ctx, clientID, limit)
	if err != nil {
		return nil, mapAppError("list activity events", err)
	}
	return events, nil
}

// LogActivity records one activity for a client.
func (a *AppServiceAdapter) LogActivity(ctx context.Context, clientID string, in LogActivityRequest) (domain.Activity, error) {
	if err := a.ready(); err != nil {
		return domain.Activity{}, err
	}
	out, err := a.service.LogActivity(ctx, app.LogActivityInput{
		ClientID:   clientID,
		Type:       in.Type,
		Summary:    in.Summary,
		Data:       in.Data,
		OccurredAt: in.OccurredAt,
	})
	if err != nil {
		return domain.Activity{}, mapAppError("log activity", err)
	}
	return out, nil
}

// UpdateActivity applies a partial payload to one activity.
func (a *AppServiceAdapter) UpdateActivity(ctx context.Context, activityID string, payload domain.ActivityPayload) (domain.Activity, error) {
	if err := a.ready(); err != nil {
		return domain.Activity{}, err
	}
	out, err := a.service.UpdateActivity(ctx, activityID, payload)
	if err != nil {
		return domain.Activity{}, mapAppError("update activity", err)
	}
	return out, nil
}

// DeleteActivity deletes one activity.
func (a *AppServiceAdapter) DeleteActivity(ctx context.Context, activityID string) error {
	if err := a.ready(); err != nil {
		return err
	}
	return mapAppError("delete activity", a.service.DeleteActivity(ctx, activityID))
}

// ApplyActivityChange confirms one queued change.
func (a *AppServiceAdapter) ApplyActivityChange(ctx context.Context, clientID string, change domain.ActivityChange) (domain.Activity, error) {
	if err := a.ready(); err != nil {
		return domain.Activity{}, err
	}
	out, err := a.service.ApplyActivityChange(ctx, clientID, change)
	if err != nil {
		return domain.Activity{}, mapAppError("apply activity change", err)
	}
	return out, nil
}

// ClientActivityView merges confirmed activities with pending changes.
func (a *AppServiceAdapter) ClientActivityView(ctx context.Context, clientID string, pending []domain.ActivityChange) ([]activity.Display, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	view, err := a.service.ClientActivityView(ctx, clientID, pending)
	if err != nil {
		return nil, mapAppError("activity view", err)
	}
	return view, nil
}

// ListDueReminders lists open reminders due at or before until.
func (a *AppServiceAdapter) ListDueReminders(ctx context.Context, until time.Time) ([]domain.Reminder, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	reminders, err := a.service.ListDueReminders(ctx, until)
	if err != nil {
		return nil, mapAppError("list reminders", err)
	}
	return reminders, nil
}

// CreateReminder creates one reminder.
func (a *AppServiceAdapter) CreateReminder(ctx context.Context, in CreateReminderRequest) (domain.Reminder, error) {
	if err := a.ready(); err != nil {
		return domain.Reminder{}, err
	}
	reminder, err := a.service.CreateReminder(ctx, app.CreateReminderInput{
		ClientID: in.ClientID,
		TaskID:   in.TaskID,
		Title:    in.Title,
		DueAt:    in.DueAt,
	})
	if err != nil {
		return domain.Reminder{}, mapAppError("create reminder", err)
	}
	return reminder, nil
}

// CompleteReminder marks one reminder done.
func (a *AppServiceAdapter) CompleteReminder(ctx context.Context, reminderID string) (domain.Reminder, error) {
	if err := a.ready(); err != nil {
		return domain.Reminder{}, err
	}
	reminder, err := a.service.CompleteReminder(ctx, reminderID)
	if err != nil {
		return domain.Reminder{}, mapAppError("complete reminder", err)
	}
	return reminder, nil
}

// Dashboard builds the requested dashboard fields for the context actor.
func (a *AppServiceAdapter) Dashboard(ctx context.Context, only []string) (app.DashboardPage, error) {
	if err := a.ready(); err != nil {
		return app.DashboardPage{}, err
	}
	page, err := a.service.Dashboard(ctx, only)
	if err != nil {
		return app.DashboardPage{}, mapAppError("dashboard", err)
	}
	return page, nil
}

// SavePreferences stores the context actor's preference and returns the
// requested dashboard fields computed after the write.
func (a *AppServiceAdapter) SavePreferences(ctx context.Context, in SavePreferenceRequest, only []string) (app.DashboardPage, error) {
	if err := a.ready(); err != nil {
		return app.DashboardPage{}, err
	}
	if _, err := app.ParseDashboardFields(only); err != nil {
		return app.DashboardPage{}, mapAppError("save preferences", err)
	}
	if _, err := a.service.SaveDashboardPreference(ctx, domain.DashboardPreference{
		Layout:    in.Layout,
		DateRange: in.DateRange,
	}); err != nil {
		return app.DashboardPage{}, mapAppError("save preferences", err)
	}
	page, err := a.service.Dashboard(ctx, only)
	if err != nil {
		return app.DashboardPage{}, mapAppError("save preferences", err)
	}
	return page, nil
}

// SaveDashboardPreference stores one preference and discards the reloaded page.
// A non-empty pref.UserID names the owner and overrides the context actor.
func (a *AppServiceAdapter) SaveDashboardPreference(ctx context.Context, pref domain.DashboardPreference, only []string) error {
	if userID := strings.TrimSpace(pref.UserID); userID != "" {
		ctx = app.WithActor(ctx, app.Actor{UserID: userID})
	}
	_, err := a.SavePreferences(ctx, SavePreferenceRequest{
		Layout:    pref.Layout,
		DateRange: pref.DateRange,
	}, only)
	return err
}

// collapsedSet converts a collapsed id list into the lookup set used by tasktree.
func collapsedSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, raw := range ids {
		for part := range strings.SplitSeq(raw, ",") {
			if id := strings.TrimSpace(part); id != "" {
				out[id] = true
			}
		}
	}
	return out
}

// mapAppError maps app/domain errors into stable transport-facing categories.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrClientArchived):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidSchedule),
		errors.Is(err, domain.ErrInvalidParent),
		errors.Is(err, domain.ErrInvalidActivityType),
		errors.Is(err, domain.ErrInvalidChangeKind),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidWidget),
		errors.Is(err, app.ErrInvalidParent),
		errors.Is(err, app.ErrInvalidDashboardField),
		errors.Is(err, app.ErrInvalidActivityData),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
