package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hylla/kundkoll/internal/domain"
)

type fakeRepo struct {
	clients     map[string]domain.Client
	projects    map[string]domain.Project
	tasks       map[string]domain.Task
	activities  map[string]domain.Activity
	events      []domain.ActivityEvent
	reminders   map[string]domain.Reminder
	preferences map[string]domain.DashboardPreference
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clients:     map[string]domain.Client{},
		projects:    map[string]domain.Project{},
		tasks:       map[string]domain.Task{},
		activities:  map[string]domain.Activity{},
		reminders:   map[string]domain.Reminder{},
		preferences: map[string]domain.DashboardPreference{},
	}
}

func (f *fakeRepo) CreateClient(_ context.Context, c domain.Client) error {
	f.clients[c.ID] = c
	return nil
}

func (f *fakeRepo) UpdateClient(_ context.Context, c domain.Client) error {
	if _, ok := f.clients[c.ID]; !ok {
		return ErrNotFound
	}
	f.clients[c.ID] = c
	return nil
}

func (f *fakeRepo) GetClient(_ context.Context, id string) (domain.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return domain.Client{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) ListClients(_ context.Context, includeArchived bool) ([]domain.Client, error) {
	out := make([]domain.Client, 0, len(f.clients))
	for _, c := range f.clients {
		if !includeArchived && c.ArchivedAt != nil {
			continue
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Client) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeRepo) CreateProject(_ context.Context, p domain.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdateProject(_ context.Context, p domain.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProject(_ context.Context, id string) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProjects(_ context.Context, clientID string) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(f.projects))
	for _, p := range f.projects {
		if clientID != "" && p.ClientID != clientID {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Project) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeRepo) CreateTask(_ context.Context, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, t domain.Task) error {
	if _, ok := f.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTasks(_ context.Context, projectID string) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b domain.Task) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeRepo) DeleteTask(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeRepo) recordEvent(a domain.Activity, op domain.ChangeKind, actorID string) {
	f.events = append(f.events, domain.ActivityEvent{
		ID:         int64(len(f.events) + 1),
		ClientID:   a.ClientID,
		ActivityID: a.ID,
		Operation:  op,
		UserID:     actorID,
		OccurredAt: a.UpdatedAt,
	})
}

func (f *fakeRepo) CreateActivity(_ context.Context, a domain.Activity, actorID string) error {
	f.activities[a.ID] = a.Clone()
	f.recordEvent(a, domain.ChangeKindCreate, actorID)
	return nil
}

func (f *fakeRepo) UpdateActivity(_ context.Context, a domain.Activity, actorID string) error {
	if _, ok := f.activities[a.ID]; !ok {
		return ErrNotFound
	}
	f.activities[a.ID] = a.Clone()
	f.recordEvent(a, domain.ChangeKindUpdate, actorID)
	return nil
}

func (f *fakeRepo) DeleteActivity(_ context.Context, a domain.Activity, actorID string) error {
	if _, ok := f.activities[a.ID]; !ok {
		return ErrNotFound
	}
	delete(f.activities, a.ID)
	f.recordEvent(a, domain.ChangeKindDelete, actorID)
	return nil
}

func (f *fakeRepo) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	a, ok := f.activities[id]
	if !ok {
		return domain.Activity{}, ErrNotFound
	}
	return a.Clone(), nil
}

func (f *fakeRepo) ListActivities(_ context.Context, clientID string) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0)
	for _, a := range f.activities {
		if a.ClientID == clientID {
			out = append(out, a.Clone())
		}
	}
	slices.SortFunc(out, func(a, b domain.Activity) int { return b.OccurredAt.Compare(a.OccurredAt) })
	return out, nil
}

func (f *fakeRepo) ListRecentActivities(_ context.Context, limit int) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0, len(f.activities))
	for _, a := range f.activities {
		out = append(out, a.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Activity) int { return b.OccurredAt.Compare(a.OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ListActivityEvents(_ context.Context, clientID string, limit int) ([]domain.ActivityEvent, error) {
	out := make([]domain.ActivityEvent, 0)
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].ClientID == clientID {
			out = append(out, f.events[i])
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) CreateReminder(_ context.Context, r domain.Reminder) error {
	f.reminders[r.ID] = r
	return nil
}

func (f *fakeRepo) UpdateReminder(_ context.Context, r domain.Reminder) error {
	f.reminders[r.ID] = r
	return nil
}

func (f *fakeRepo) GetReminder(_ context.Context, id string) (domain.Reminder, error) {
	r, ok := f.reminders[id]
	if !ok {
		return domain.Reminder{}, ErrNotFound
	}
	return r, nil
}

func (f *fakeRepo) ListReminders(_ context.Context, includeCompleted bool) ([]domain.Reminder, error) {
	out := make([]domain.Reminder, 0, len(f.reminders))
	for _, r := range f.reminders {
		if !includeCompleted && !r.Open() {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Reminder) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (f *fakeRepo) GetDashboardPreference(_ context.Context, userID string) (domain.DashboardPreference, error) {
	p, ok := f.preferences[userID]
	if !ok {
		return domain.DashboardPreference{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) UpsertDashboardPreference(_ context.Context, p domain.DashboardPreference) error {
	f.preferences[p.UserID] = p
	return nil
}

func (f *fakeRepo) ListDashboardPreferences(_ context.Context) ([]domain.DashboardPreference, error) {
	out := make([]domain.DashboardPreference, 0, len(f.preferences))
	for _, p := range f.preferences {
		out = append(out, p)
	}
	return out, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, time.Time) {
	t.Helper()
	repo := newFakeRepo()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	n := 0
	svc := NewService(repo, func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}, func() time.Time { return now }, ServiceConfig{})
	return svc, repo, now
}

func seedProject(t *testing.T, svc *Service) (domain.Client, domain.Project) {
	t.Helper()
	client, err := svc.CreateClient(context.Background(), CreateClientInput{Name: "Acme", Email: "Ops@Acme.test"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	project, err := svc.CreateProject(context.Background(), CreateProjectInput{ClientID: client.ID, Name: "Launch"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return client, project
}

func TestCreateClientAndProject(t *testing.T) {
	svc, _, _ := newTestService(t)
	client, project := seedProject(t, svc)
	if client.Email != "ops@acme.test" {
		t.Fatalf("expected lowercased email, got %q", client.Email)
	}
	if project.ClientID != client.ID || project.Status != domain.ProjectStatusActive {
		t.Fatalf("unexpected project %#v", project)
	}

	if _, err := svc.CreateProject(context.Background(), CreateProjectInput{ClientID: "missing", Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ArchiveClient(context.Background(), client.ID); err != nil {
		t.Fatalf("ArchiveClient() error = %v", err)
	}
	if _, err := svc.CreateProject(context.Background(), CreateProjectInput{ClientID: client.ID, Name: "x"}); !errors.Is(err, ErrClientArchived) {
		t.Fatalf("expected ErrClientArchived, got %v", err)
	}
	clients, err := svc.ListClients(context.Background(), false)
	if err != nil {
		t.Fatalf("ListClients() error = %v", err)
	}
	if len(clients) != 0 {
		t.Fatalf("expected archived client hidden, got %d", len(clients))
	}
	if _, err := svc.RestoreClient(context.Background(), client.ID); err != nil {
		t.Fatalf("RestoreClient() error = %v", err)
	}
}

func TestUpdateClient(t *testing.T) {
	svc, _, _ := newTestService(t)
	client, _ := seedProject(t, svc)
	updated, err := svc.UpdateClient(context.Background(), UpdateClientInput{ClientID: client.ID, Name: "Acme AB", Company: "Acme"})
	if err != nil {
		t.Fatalf("UpdateClient() error = %v", err)
	}
	if updated.Name != "Acme AB" || updated.Email != "" {
		t.Fatalf("unexpected update %#v", updated)
	}
	if _, err := svc.UpdateClient(context.Background(), UpdateClientInput{ClientID: client.ID, Name: " "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestCreateTaskAppendsSiblingOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, project := seedProject(t, svc)
	ctx := context.Background()

	first, err := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "Plan"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	second, err := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "Build"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	child, err := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ParentID: first.ID, Title: "Scope"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if first.Order != 0 || second.Order != 1 || child.Order != 0 {
		t.Fatalf("unexpected orders %d %d %d", first.Order, second.Order, child.Order)
	}
	if _, err := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ParentID: "nope", Title: "x"}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent, got %v", err)
	}
}

func TestUpdateTaskRejectsCycle(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, project := seedProject(t, svc)
	ctx := context.Background()
	a, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "A"})
	b, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ParentID: a.ID, Title: "B"})
	c, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ParentID: b.ID, Title: "C"})

	parent := c.ID
	_, err := svc.UpdateTask(ctx, UpdateTaskInput{TaskID: a.ID, ParentID: &parent})
	if !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent for cycle, got %v", err)
	}
	self := a.ID
	if _, err := svc.UpdateTask(ctx, UpdateTaskInput{TaskID: a.ID, ParentID: &self}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent for self parent, got %v", err)
	}

	root := ""
	moved, err := svc.UpdateTask(ctx, UpdateTaskInput{TaskID: c.ID, Patch: domain.TaskPatch{Title: ptr("C renamed")}, ParentID: &root})
	if err != nil {
		t.Fatalf("UpdateTask() error = %v", err)
	}
	if !moved.IsRoot() || moved.Title != "C renamed" || moved.Order != 1 {
		t.Fatalf("unexpected moved task %#v", moved)
	}
}

func TestUpdateTaskRejectsBadSchedule(t *testing.T) {
	svc, _, now := newTestService(t)
	_, project := seedProject(t, svc)
	task, _ := svc.CreateTask(context.Background(), CreateTaskInput{ProjectID: project.ID, Title: "A"})
	start := now.Add(48 * time.Hour)
	due := now
	_, err := svc.UpdateTask(context.Background(), UpdateTaskInput{TaskID: task.ID, Patch: domain.TaskPatch{StartAt: &start, DueAt: &due}})
	if !errors.Is(err, domain.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestUpdateTaskKeepsAbsentFields(t *testing.T) {
	svc, _, now := newTestService(t)
	_, project := seedProject(t, svc)
	ctx := context.Background()
	parent, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "Parent"})
	due := now.Add(72 * time.Hour)
	task, err := svc.CreateTask(ctx, CreateTaskInput{
		ProjectID:   project.ID,
		Title:       "Launch",
		Description: "go live",
		Status:      domain.TaskStatusInProgress,
		Priority:    domain.PriorityUrgent,
		DueAt:       &due,
		IsMilestone: true,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	moved, err := svc.UpdateTask(ctx, UpdateTaskInput{TaskID: task.ID, ParentID: &parent.ID})
	if err != nil {
		t.Fatalf("UpdateTask(parent only) error = %v", err)
	}
	if moved.ParentID != parent.ID || moved.Title != "Launch" || moved.Description != "go live" {
		t.Fatalf("unexpected moved task %#v", moved)
	}
	if moved.Status != domain.TaskStatusInProgress || moved.Priority != domain.PriorityUrgent || !moved.IsMilestone {
		t.Fatalf("parent-only update reset details %#v", moved)
	}
	if moved.DueAt == nil || !moved.DueAt.Equal(due) {
		t.Fatalf("parent-only update dropped due date %#v", moved.DueAt)
	}

	renamed, err := svc.UpdateTask(ctx, UpdateTaskInput{TaskID: task.ID, Patch: domain.TaskPatch{Title: ptr("Launch v2")}})
	if err != nil {
		t.Fatalf("UpdateTask(title only) error = %v", err)
	}
	if renamed.Title != "Launch v2" || renamed.ParentID != parent.ID || renamed.Description != "go live" {
		t.Fatalf("unexpected renamed task %#v", renamed)
	}
	if renamed.Status != domain.TaskStatusInProgress || renamed.Priority != domain.PriorityUrgent || !renamed.IsMilestone || renamed.DueAt == nil {
		t.Fatalf("title-only update reset details %#v", renamed)
	}

	cleared, err := svc.UpdateTask(ctx, UpdateTaskInput{TaskID: task.ID, Patch: domain.TaskPatch{ClearDueAt: true, IsMilestone: ptr(false)}})
	if err != nil {
		t.Fatalf("UpdateTask(clear due) error = %v", err)
	}
	if cleared.DueAt != nil || cleared.IsMilestone {
		t.Fatalf("expected cleared due date and milestone, got %#v", cleared)
	}

	if _, err := svc.UpdateTask(ctx, UpdateTaskInput{TaskID: task.ID, Patch: domain.TaskPatch{Title: ptr("  ")}}); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle for blank title, got %v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestDeleteTaskReparentsChildren(t *testing.T) {
	svc, repo, _ := newTestService(t)
	_, project := seedProject(t, svc)
	ctx := context.Background()
	a, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "A"})
	b, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ParentID: a.ID, Title: "B"})
	c, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ParentID: b.ID, Title: "C"})

	if err := svc.DeleteTask(ctx, b.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if _, ok := repo.tasks[b.ID]; ok {
		t.Fatal("expected task deleted")
	}
	if got := repo.tasks[c.ID].ParentID; got != a.ID {
		t.Fatalf("expected child reparented to %q, got %q", a.ID, got)
	}
}

func TestTaskTimeline(t *testing.T) {
	svc, _, now := newTestService(t)
	_, project := seedProject(t, svc)
	ctx := context.Background()
	parent, _ := svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "Parent"})
	due := now.Add(72 * time.Hour)
	_, _ = svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, ParentID: parent.ID, Title: "Child", DueAt: &due})

	rows, err := svc.TaskTimeline(ctx, project.ID, nil)
	if err != nil {
		t.Fatalf("TaskTimeline() error = %v", err)
	}
	if len(rows) != 2 || rows[1].Depth != 1 {
		t.Fatalf("unexpected rows %#v", rows)
	}
	if rows[0].DisplayDue == nil || !rows[0].DisplayDue.Equal(due) {
		t.Fatalf("expected aggregated due date, got %v", rows[0].DisplayDue)
	}

	rows, err = svc.TaskTimeline(ctx, project.ID, map[string]bool{parent.ID: true})
	if err != nil {
		t.Fatalf("TaskTimeline() error = %v", err)
	}
	if len(rows) != 1 || !rows[0].Collapsed {
		t.Fatalf("expected collapsed parent only, got %#v", rows)
	}
	if _, err := svc.TaskTimeline(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestActivityLifecycleUsesActor(t *testing.T) {
	svc, repo, _ := newTestService(t)
	client, _ := seedProject(t, svc)
	ctx := WithActor(context.Background(), Actor{UserID: " anna "})

	a, err := svc.LogActivity(ctx, LogActivityInput{ClientID: client.ID, Type: domain.ActivityTypeCall, Summary: "intro call"})
	if err != nil {
		t.Fatalf("LogActivity() error = %v", err)
	}
	if a.UserID != "anna" {
		t.Fatalf("expected actor user, got %q", a.UserID)
	}
	summary := "follow-up"
	updated, err := svc.UpdateActivity(ctx, a.ID, domain.ActivityPayload{Summary: &summary})
	if err != nil {
		t.Fatalf("UpdateActivity() error = %v", err)
	}
	if updated.Summary != "follow-up" || updated.Type != domain.ActivityTypeCall {
		t.Fatalf("unexpected update %#v", updated)
	}
	if err := svc.DeleteActivity(context.Background(), a.ID); err != nil {
		t.Fatalf("DeleteActivity() error = %v", err)
	}

	events, err := svc.ListActivityEvents(context.Background(), client.ID, 10)
	if err != nil {
		t.Fatalf("ListActivityEvents() error = %v", err)
	}
	if len(events) != 3 || events[0].Operation != domain.ChangeKindDelete || events[0].UserID != DefaultUserID {
		t.Fatalf("unexpected events %#v", events)
	}
	if len(repo.activities) != 0 {
		t.Fatalf("expected no activities left, got %d", len(repo.activities))
	}
}

func TestApplyActivityChange(t *testing.T) {
	svc, _, _ := newTestService(t)
	client, _ := seedProject(t, svc)
	ctx := context.Background()
	summary := "hello"

	created, err := svc.ApplyActivityChange(ctx, client.ID, domain.ActivityChange{
		Kind:    domain.ChangeKindCreate,
		Payload: domain.ActivityPayload{Summary: &summary},
	})
	if err != nil {
		t.Fatalf("ApplyActivityChange(create) error = %v", err)
	}
	if created.Type != domain.ActivityTypeNote || created.Summary != "hello" {
		t.Fatalf("unexpected created activity %#v", created)
	}

	other, err := svc.CreateClient(ctx, CreateClientInput{Name: "Other"})
	if err != nil {
		t.Fatalf("CreateClient() error = %v", err)
	}
	if _, err := svc.ApplyActivityChange(ctx, other.ID, domain.ActivityChange{Kind: domain.ChangeKindDelete, ActivityID: created.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign client, got %v", err)
	}
	if _, err := svc.ApplyActivityChange(ctx, client.ID, domain.ActivityChange{Kind: "move"}); !errors.Is(err, domain.ErrInvalidChangeKind) {
		t.Fatalf("expected ErrInvalidChangeKind, got %v", err)
	}
	deleted, err := svc.ApplyActivityChange(ctx, client.ID, domain.ActivityChange{Kind: domain.ChangeKindDelete, ActivityID: created.ID})
	if err != nil {
		t.Fatalf("ApplyActivityChange(delete) error = %v", err)
	}
	if deleted.ID != created.ID {
		t.Fatalf("expected deleted activity returned, got %#v", deleted)
	}
}

func TestClientActivityView(t *testing.T) {
	svc, _, now := newTestService(t)
	client, _ := seedProject(t, svc)
	ctx := context.Background()
	older := now.Add(-time.Hour)
	first, _ := svc.LogActivity(ctx, LogActivityInput{ClientID: client.ID, Summary: "first", OccurredAt: &older})
	second, _ := svc.LogActivity(ctx, LogActivityInput{ClientID: client.ID, Summary: "second"})
	edited := "second edited"

	view, err := svc.ClientActivityView(ctx, client.ID, []domain.ActivityChange{
		{ID: "c1", Kind: domain.ChangeKindCreate},
		{Kind: domain.ChangeKindDelete, ActivityID: first.ID},
		{Kind: domain.ChangeKindUpdate, ActivityID: second.ID, Payload: domain.ActivityPayload{Summary: &edited}},
	})
	if err != nil {
		t.Fatalf("ClientActivityView() error = %v", err)
	}
	if len(view) != 2 {
		t.Fatalf("expected 2 rows, got %#v", view)
	}
	if view[0].ID != "tmp-c1" || !view[0].IsPending || view[0].UserID != DefaultUserID {
		t.Fatalf("unexpected pending create %#v", view[0])
	}
	if view[1].ID != second.ID || view[1].Summary != edited || !view[1].IsPending {
		t.Fatalf("unexpected pending update %#v", view[1])
	}

	if _, err := svc.ClientActivityView(ctx, client.ID, []domain.ActivityChange{{Kind: domain.ChangeKindUpdate}}); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestRemindersDueOrder(t *testing.T) {
	svc, _, now := newTestService(t)
	client, _ := seedProject(t, svc)
	ctx := context.Background()
	late, _ := svc.CreateReminder(ctx, CreateReminderInput{ClientID: client.ID, Title: "late", DueAt: now.Add(48 * time.Hour)})
	early, _ := svc.CreateReminder(ctx, CreateReminderInput{ClientID: client.ID, Title: "early", DueAt: now.Add(time.Hour)})
	_, _ = svc.CreateReminder(ctx, CreateReminderInput{ClientID: client.ID, Title: "far", DueAt: now.Add(30 * 24 * time.Hour)})

	due, err := svc.ListDueReminders(ctx, now.Add(72*time.Hour))
	if err != nil {
		t.Fatalf("ListDueReminders() error = %v", err)
	}
	if len(due) != 2 || due[0].ID != early.ID || due[1].ID != late.ID {
		t.Fatalf("unexpected due reminders %#v", due)
	}
	done, err := svc.CompleteReminder(ctx, early.ID)
	if err != nil {
		t.Fatalf("CompleteReminder() error = %v", err)
	}
	if done.Open() {
		t.Fatal("expected completed reminder")
	}
	due, _ = svc.ListDueReminders(ctx, now.Add(72*time.Hour))
	if len(due) != 1 {
		t.Fatalf("expected completed reminder hidden, got %d", len(due))
	}
	if _, err := svc.CreateReminder(ctx, CreateReminderInput{ClientID: client.ID, TaskID: "missing", Title: "x", DueAt: now}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing task, got %v", err)
	}
}

func TestDashboardPreferenceDefaultsAndSave(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := WithActor(context.Background(), Actor{UserID: "anna"})

	pref, err := svc.GetDashboardPreference(ctx, "")
	if err != nil {
		t.Fatalf("GetDashboardPreference() error = %v", err)
	}
	if pref.UserID != "anna" || pref.DateRange != domain.DateRangeMonth || len(pref.Layout) != len(domain.DefaultWidgets()) {
		t.Fatalf("unexpected default preference %#v", pref)
	}

	layout := []domain.WidgetConfig{{ID: domain.WidgetMetrics, Visible: true, Order: 3}, {ID: domain.WidgetSummary, Visible: false, Order: 1}}
	saved, err := svc.SaveDashboardPreference(ctx, domain.DashboardPreference{Layout: layout, DateRange: domain.DateRangeWeek})
	if err != nil {
		t.Fatalf("SaveDashboardPreference() error = %v", err)
	}
	if saved.UserID != "anna" || !slices.Equal(saved.Layout, layout) {
		t.Fatalf("expected layout stored verbatim, got %#v", saved)
	}
	got, _ := svc.GetDashboardPreference(ctx, "anna")
	if got.DateRange != domain.DateRangeWeek {
		t.Fatalf("expected saved range, got %q", got.DateRange)
	}

	_, err = svc.SaveDashboardPreference(ctx, domain.DashboardPreference{Layout: []domain.WidgetConfig{{ID: "bogus"}}})
	if !errors.Is(err, domain.ErrInvalidWidget) {
		t.Fatalf("expected ErrInvalidWidget, got %v", err)
	}
}

func TestDashboardPartialFields(t *testing.T) {
	svc, _, now := newTestService(t)
	client, project := seedProject(t, svc)
	ctx := context.Background()
	overdue := now.Add(-time.Hour)
	_, _ = svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "late", DueAt: &overdue})
	_, _ = svc.CreateTask(ctx, CreateTaskInput{ProjectID: project.ID, Title: "done", Status: domain.TaskStatusDone})
	_, _ = svc.LogActivity(ctx, LogActivityInput{ClientID: client.ID, Type: domain.ActivityTypeCall})
	_, _ = svc.CreateReminder(ctx, CreateReminderInput{ClientID: client.ID, Title: "call", DueAt: now.Add(time.Hour)})

	page, err := svc.Dashboard(ctx, []string{"summary,metrics", "preferences", "currentDateRange"})
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if page.Summary == nil || page.Metrics == nil || page.Preferences == nil || page.CurrentDateRange != domain.DateRangeMonth {
		t.Fatalf("expected requested fields, got %#v", page)
	}
	if page.Reminders != nil || page.RecentActivities != nil {
		t.Fatalf("expected unrequested fields empty, got %#v", page)
	}
	want := DashboardSummary{Clients: 1, ActiveProjects: 1, OpenTasks: 1, OverdueTasks: 1, OpenReminders: 1}
	if *page.Summary != want {
		t.Fatalf("summary = %#v, want %#v", *page.Summary, want)
	}
	if page.Metrics.Activities != 1 || page.Metrics.ActivitiesByType[domain.ActivityTypeCall] != 1 || page.Metrics.NewClients != 1 || page.Metrics.TasksCompleted != 1 {
		t.Fatalf("unexpected metrics %#v", page.Metrics)
	}

	full, err := svc.Dashboard(ctx, nil)
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if len(full.Reminders) != 1 || len(full.RecentActivities) != 1 {
		t.Fatalf("expected reminders and activities in full page, got %#v", full)
	}
	if _, err := svc.Dashboard(ctx, []string{"bogus"}); !errors.Is(err, ErrInvalidDashboardField) {
		t.Fatalf("expected ErrInvalidDashboardField, got %v", err)
	}
}
