package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/kundkoll/internal/adapters/storage/sqlite"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/domain"
)

// newTestAdapter builds an adapter over an in-memory sqlite-backed service.
func newTestAdapter(t *testing.T) *AppServiceAdapter {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	next := 0
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := app.NewService(repo, func() string {
		next++
		return fmt.Sprintf("id-%d", next)
	}, func() time.Time { return now }, app.ServiceConfig{})
	return NewAppServiceAdapter(svc)
}

// TestAppServiceAdapterMapsErrors verifies app and domain errors map to transport categories.
func TestAppServiceAdapterMapsErrors(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)

	if _, err := adapter.GetClient(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetClient() error = %v, want ErrNotFound", err)
	}
	if _, err := adapter.CreateClient(ctx, CreateClientRequest{Name: "  "}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("CreateClient() error = %v, want ErrInvalidRequest", err)
	}
	if _, err := adapter.CreateClient(ctx, CreateClientRequest{Name: "Acme", Email: "nope"}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("CreateClient() error = %v, want ErrInvalidEmail kept in chain", err)
	}

	client, err := adapter.CreateClient(ctx, CreateClientRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	if _, err := adapter.ArchiveClient(ctx, client.ID); err != nil {
		t.Fatalf("ArchiveClient() error = %v", err)
	}
	if _, err := adapter.CreateProject(ctx, CreateProjectRequest{ClientID: client.ID, Name: "Late"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("CreateProject() error = %v, want ErrConflict", err)
	}

	var nilAdapter *AppServiceAdapter
	if _, err := nilAdapter.ListClients(ctx, false); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("nil ListClients() error = %v, want ErrUnavailable", err)
	}
}

// TestAppServiceAdapterTimelineCollapsed verifies collapsed ids hide descendants.
func TestAppServiceAdapterTimelineCollapsed(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)
	client, err := adapter.CreateClient(ctx, CreateClientRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	project, err := adapter.CreateProject(ctx, CreateProjectRequest{ClientID: client.ID, Name: "Launch"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	parent, err := adapter.CreateTask(ctx, CreateTaskRequest{ProjectID: project.ID, Title: "Parent"})
	if err != nil {
		t.Fatalf("CreateTask(parent) error = %v", err)
	}
	if _, err := adapter.CreateTask(ctx, CreateTaskRequest{ProjectID: project.ID, ParentID: parent.ID, Title: "Child"}); err != nil {
		t.Fatalf("CreateTask(child) error = %v", err)
	}

	rows, err := adapter.TaskTimeline(ctx, project.ID, nil)
	if err != nil {
		t.Fatalf("TaskTimeline() error = %v", err)
	}
	if len(rows) != 2 || rows[1].Depth != 1 {
		t.Fatalf("unexpected expanded rows %#v", rows)
	}
	rows, err = adapter.TaskTimeline(ctx, project.ID, []string{parent.ID})
	if err != nil {
		t.Fatalf("TaskTimeline(collapsed) error = %v", err)
	}
	if len(rows) != 1 || !rows[0].Collapsed || !rows[0].HasChildren {
		t.Fatalf("unexpected collapsed rows %#v", rows)
	}

	self := parent.ID
	if _, err := adapter.UpdateTask(ctx, parent.ID, UpdateTaskRequest{ParentID: &self}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("UpdateTask(self parent) error = %v, want ErrInvalidRequest", err)
	}
}

// TestAppServiceAdapterPatchTaskPartial verifies a PATCH body only changes the fields it carries.
func TestAppServiceAdapterPatchTaskPartial(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)
	client, err := adapter.CreateClient(ctx, CreateClientRequest{Name: "Acme"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	project, err := adapter.CreateProject(ctx, CreateProjectRequest{ClientID: client.ID, Name: "Launch"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	parent, err := adapter.CreateTask(ctx, CreateTaskRequest{ProjectID: project.ID, Title: "Phase 1"})
	if err != nil {
		t.Fatalf("CreateTask(parent) error = %v", err)
	}
	due := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	task, err := adapter.CreateTask(ctx, CreateTaskRequest{
		ProjectID:   project.ID,
		Title:       "Go live",
		Description: "cut over DNS",
		Status:      domain.TaskStatusInProgress,
		Priority:    domain.PriorityUrgent,
		DueAt:       &due,
		IsMilestone: true,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	patch := func(body string) domain.Task {
		t.Helper()
		var req UpdateTaskRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", body, err)
		}
		updated, err := adapter.UpdateTask(ctx, task.ID, req)
		if err != nil {
			t.Fatalf("UpdateTask(%s) error = %v", body, err)
		}
		return updated
	}
	assertDetails := func(got domain.Task, wantTitle string) {
		t.Helper()
		if got.Title != wantTitle || got.Description != "cut over DNS" {
			t.Fatalf("unexpected text fields %#v", got)
		}
		if got.Status != domain.TaskStatusInProgress || got.Priority != domain.PriorityUrgent || !got.IsMilestone {
			t.Fatalf("unexpected state fields %#v", got)
		}
		if got.DueAt == nil || !got.DueAt.Equal(due) {
			t.Fatalf("unexpected due date %v", got.DueAt)
		}
	}

	moved := patch(fmt.Sprintf(`{"parent_id":%q}`, parent.ID))
	if moved.ParentID != parent.ID {
		t.Fatalf("expected parent %q, got %q", parent.ID, moved.ParentID)
	}
	assertDetails(moved, "Go live")

	renamed := patch(`{"title":"renamed"}`)
	if renamed.ParentID != parent.ID {
		t.Fatalf("title-only patch moved task to %q", renamed.ParentID)
	}
	assertDetails(renamed, "renamed")

	stored, err := adapter.TaskTimeline(ctx, project.ID, nil)
	if err != nil {
		t.Fatalf("TaskTimeline() error = %v", err)
	}
	if len(stored) != 2 || stored[1].Task.ID != task.ID || stored[1].Depth != 1 {
		t.Fatalf("unexpected timeline rows %#v", stored)
	}
	assertDetails(stored[1].Task, "renamed")
}

// TestAppServiceAdapterSavePreferences verifies partial reload after a preference write.
func TestAppServiceAdapterSavePreferences(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)
	layout := []domain.WidgetConfig{
		{ID: domain.WidgetMetrics, Visible: true, Order: 0},
		{ID: domain.WidgetSummary, Visible: false, Order: 1},
	}

	page, err := adapter.SavePreferences(ctx, SavePreferenceRequest{Layout: layout, DateRange: domain.DateRangeWeek}, []string{"preferences,currentDateRange"})
	if err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	if page.Summary != nil || page.Metrics != nil {
		t.Fatalf("expected unrequested fields to stay empty, got %#v", page)
	}
	if page.Preferences == nil || len(page.Preferences.Layout) != 2 || page.Preferences.Layout[0].ID != domain.WidgetMetrics {
		t.Fatalf("unexpected preferences %#v", page.Preferences)
	}
	if page.CurrentDateRange != domain.DateRangeWeek {
		t.Fatalf("expected week range, got %q", page.CurrentDateRange)
	}

	if _, err := adapter.SavePreferences(ctx, SavePreferenceRequest{Layout: layout}, []string{"bogus"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("SavePreferences(bogus field) error = %v, want ErrInvalidRequest", err)
	}
	bad := []domain.WidgetConfig{{ID: "weather"}}
	if err := adapter.SaveDashboardPreference(ctx, domain.DashboardPreference{Layout: bad}, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("SaveDashboardPreference(bad widget) error = %v, want ErrInvalidRequest", err)
	}
}

// TestAppServiceAdapterSaveDashboardPreferenceOwner verifies the preference's user id owns the write.
func TestAppServiceAdapterSaveDashboardPreferenceOwner(t *testing.T) {
	ctx := context.Background()
	adapter := newTestAdapter(t)
	layout := []domain.WidgetConfig{{ID: domain.WidgetReminders, Visible: true, Order: 0}}

	if err := adapter.SaveDashboardPreference(ctx, domain.DashboardPreference{
		UserID:    "u-9",
		Layout:    layout,
		DateRange: domain.DateRangeQuarter,
	}, []string{"preferences"}); err != nil {
		t.Fatalf("SaveDashboardPreference() error = %v", err)
	}

	owner, err := adapter.Dashboard(app.WithActor(ctx, app.Actor{UserID: "u-9"}), []string{"preferences"})
	if err != nil {
		t.Fatalf("Dashboard(u-9) error = %v", err)
	}
	if owner.Preferences == nil || len(owner.Preferences.Layout) != 1 || owner.Preferences.DateRange != domain.DateRangeQuarter {
		t.Fatalf("expected saved layout for u-9, got %#v", owner.Preferences)
	}

	fallback, err := adapter.Dashboard(ctx, []string{"preferences"})
	if err != nil {
		t.Fatalf("Dashboard(default user) error = %v", err)
	}
	if fallback.Preferences == nil || len(fallback.Preferences.Layout) != len(domain.DefaultWidgets()) {
		t.Fatalf("expected default layout for the default user, got %#v", fallback.Preferences)
	}
}

// TestCollapsedSet verifies comma-separated and repeated collapse values.
func TestCollapsedSet(t *testing.T) {
	if got := collapsedSet(nil); got != nil {
		t.Fatalf("expected nil set, got %#v", got)
	}
	got := collapsedSet([]string{"a, b", "", "c"})
	if len(got) != 3 || !got["a"] || !got["b"] || !got["c"] {
		t.Fatalf("unexpected set %#v", got)
	}
}
