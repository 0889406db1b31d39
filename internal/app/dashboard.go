package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/kundkoll/internal/domain"
)

// CreateReminderInput holds input values for create reminder operations.
type CreateReminderInput struct {
	ClientID string
	TaskID   string
	Title    string
	DueAt    time.Time
}

// CreateReminder creates reminder.
func (s *Service) CreateReminder(ctx context.Context, in CreateReminderInput) (domain.Reminder, error) {
	if _, err := s.repo.GetClient(ctx, strings.TrimSpace(in.ClientID)); err != nil {
		return domain.Reminder{}, err
	}
	if taskID := strings.TrimSpace(in.TaskID); taskID != "" {
		if _, err := s.repo.GetTask(ctx, taskID); err != nil {
			return domain.Reminder{}, err
		}
	}
	reminder, err := domain.NewReminder(domain.ReminderInput{
		ID:       s.idGen(),
		ClientID: in.ClientID,
		TaskID:   in.TaskID,
		Title:    in.Title,
		DueAt:    in.DueAt,
	}, s.clock())
	if err != nil {
		return domain.Reminder{}, err
	}
	if err := s.repo.CreateReminder(ctx, reminder); err != nil {
		return domain.Reminder{}, err
	}
	return reminder, nil
}

// CompleteReminder marks one reminder done. Completing twice keeps the first timestamp.
func (s *Service) CompleteReminder(ctx context.Context, reminderID string) (domain.Reminder, error) {
	reminder, err := s.repo.GetReminder(ctx, strings.TrimSpace(reminderID))
	if err != nil {
		return domain.Reminder{}, err
	}
	if !reminder.Open() {
		return reminder, nil
	}
	reminder.Complete(s.clock())
	if err := s.repo.UpdateReminder(ctx, reminder); err != nil {
		return domain.Reminder{}, err
	}
	return reminder, nil
}

// ListDueReminders lists open reminders due at or before until, earliest first.
func (s *Service) ListDueReminders(ctx context.Context, until time.Time) ([]domain.Reminder, error) {
	reminders, err := s.repo.ListReminders(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if !r.Open() || r.DueAt.After(until) {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b domain.Reminder) int {
		return a.DueAt.Compare(b.DueAt)
	})
	return out, nil
}

// GetDashboardPreference returns the stored preference for userID, or the
// defaults when none was saved. An empty userID selects the context actor.
func (s *Service) GetDashboardPreference(ctx context.Context, userID string) (domain.DashboardPreference, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = s.actorID(ctx)
	}
	pref, err := s.repo.GetDashboardPreference(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return domain.DefaultDashboardPreference(userID, s.defaultDateRange), nil
	}
	if err != nil {
		return domain.DashboardPreference{}, err
	}
	return pref, nil
}

// SaveDashboardPreference creates or replaces one user's preference. The
// layout is stored as submitted after validation.
func (s *Service) SaveDashboardPreference(ctx context.Context, pref domain.DashboardPreference) (domain.DashboardPreference, error) {
	userID := strings.TrimSpace(pref.UserID)
	if userID == "" {
		userID = s.actorID(ctx)
	}
	if pref.DateRange == "" {
		pref.DateRange = s.defaultDateRange
	}
	stored, err := domain.NewDashboardPreference(userID, pref.Layout, pref.DateRange, s.clock())
	if err != nil {
		return domain.DashboardPreference{}, err
	}
	if err := s.repo.UpsertDashboardPreference(ctx, stored); err != nil {
		return domain.DashboardPreference{}, err
	}
	return stored, nil
}

// Dashboard field names accepted by partial reloads.
const (
	DashboardFieldSummary          = "summary"
	DashboardFieldMetrics          = "metrics"
	DashboardFieldPreferences      = "preferences"
	DashboardFieldCurrentDateRange = "currentDateRange"
	DashboardFieldReminders        = "reminders"
	DashboardFieldRecentActivities = "recentActivities"
)

var dashboardFields = []string{
	DashboardFieldSummary,
	DashboardFieldMetrics,
	DashboardFieldPreferences,
	DashboardFieldCurrentDateRange,
	DashboardFieldReminders,
	DashboardFieldRecentActivities,
}

// DashboardSummary counts the book of business.
type DashboardSummary struct {
	Clients        int `json:"clients"`
	ActiveProjects int `json:"active_projects"`
	OpenTasks      int `json:"open_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
	OpenReminders  int `json:"open_reminders"`
}

// DashboardMetrics aggregates activity inside the selected date range.
type DashboardMetrics struct {
	From             time.Time                   `json:"from"`
	To               time.Time                   `json:"to"`
	Activities       int                         `json:"activities"`
	ActivitiesByType map[domain.ActivityType]int `json:"activities_by_type"`
	NewClients       int                         `json:"new_clients"`
	TasksCompleted   int                         `json:"tasks_completed"`
}

// DashboardPage holds the requested dashboard fields. Fields that were not
// requested stay nil or empty and are omitted from JSON.
type DashboardPage struct {
	Summary          *DashboardSummary           `json:"summary,omitempty"`
	Metrics          *DashboardMetrics           `json:"metrics,omitempty"`
	Preferences      *domain.DashboardPreference `json:"preferences,omitempty"`
	CurrentDateRange domain.DateRange            `json:"currentDateRange,omitempty"`
	Reminders        []domain.Reminder           `json:"reminders,omitempty"`
	RecentActivities []domain.Activity           `json:"recentActivities,omitempty"`
}

// ParseDashboardFields validates a partial reload selection. Empty input
// selects every field.
func ParseDashboardFields(only []string) (map[string]bool, error) {
	selected := map[string]bool{}
	for _, raw := range only {
		for part := range strings.SplitSeq(raw, ",") {
			field := strings.TrimSpace(part)
			if field == "" {
				continue
			}
			if !slices.Contains(dashboardFields, field) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidDashboardField, field)
			}
			selected[field] = true
		}
	}
	if len(selected) == 0 {
		for _, field := range dashboardFields {
			selected[field] = true
		}
	}
	return selected, nil
}

// Dashboard builds the dashboard for the context actor, computing only the
// fields named in only.
func (s *Service) Dashboard(ctx context.Context, only []string) (DashboardPage, error) {
	fields, err := ParseDashboardFields(only)
	if err != nil {
		return DashboardPage{}, err
	}
	pref, err := s.GetDashboardPreference(ctx, "")
	if err != nil {
		return DashboardPage{}, err
	}
	now := s.clock().UTC()

	var page DashboardPage
	if fields[DashboardFieldPreferences] {
		page.Preferences = &pref
	}
	if fields[DashboardFieldCurrentDateRange] {
		page.CurrentDateRange = pref.DateRange
	}
	if fields[DashboardFieldSummary] {
		summary, err := s.dashboardSummary(ctx, now)
		if err != nil {
			return DashboardPage{}, err
		}
		page.Summary = &summary
	}
	if fields[DashboardFieldMetrics] {
		metrics, err := s.dashboardMetrics(ctx, pref.DateRange, now)
		if err != nil {
			return DashboardPage{}, err
		}
		page.Metrics = &metrics
	}
	if fields[DashboardFieldReminders] {
		reminders, err := s.ListDueReminders(ctx, now.Add(s.reminderHorizon))
		if err != nil {
			return DashboardPage{}, err
		}
		page.Reminders = reminders
	}
	if fields[DashboardFieldRecentActivities] {
		recent, err := s.repo.ListRecentActivities(ctx, s.recentActivityLimit)
		if err != nil {
			return DashboardPage{}, err
		}
		page.RecentActivities = recent
	}
	return page, nil
}

func (s *Service) dashboardSummary(ctx context.Context, now time.Time) (DashboardSummary, error) {
	var summary DashboardSummary
	clients, err := s.repo.ListClients(ctx, false)
	if err != nil {
		return DashboardSummary{}, err
	}
	summary.Clients = len(clients)
	tasks, projects, err := s.allTasks(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	for _, p := range projects {
		if p.Status == domain.ProjectStatusActive {
			summary.ActiveProjects++
		}
	}
	for _, t := range tasks {
		if t.Status == domain.TaskStatusDone {
			continue
		}
		summary.OpenTasks++
		if t.DueAt != nil && t.DueAt.Before(now) {
			summary.OverdueTasks++
		}
	}
	reminders, err := s.repo.ListReminders(ctx, false)
	if err != nil {
		return DashboardSummary{}, err
	}
	for _, r := range reminders {
		if r.Open() {
			summary.OpenReminders++
		}
	}
	return summary, nil
}

func (s *Service) dashboardMetrics(ctx context.Context, r domain.DateRange, now time.Time) (DashboardMetrics, error) {
	from, to := r.Window(now)
	metrics := DashboardMetrics{
		From:             from,
		To:               to,
		ActivitiesByType: map[domain.ActivityType]int{},
	}
	within := func(ts time.Time) bool {
		return !ts.Before(from) && !ts.After(to)
	}
	clients, err := s.repo.ListClients(ctx, true)
	if err != nil {
		return DashboardMetrics{}, err
	}
	for _, c := range clients {
		if within(c.CreatedAt) {
			metrics.NewClients++
		}
		activities, err := s.repo.ListActivities(ctx, c.ID)
		if err != nil {
			return DashboardMetrics{}, err
		}
		for _, a := range activities {
			if !within(a.OccurredAt) {
				continue
			}
			metrics.Activities++
			metrics.ActivitiesByType[a.Type]++
		}
	}
	tasks, _, err := s.allTasks(ctx)
	if err != nil {
		return DashboardMetrics{}, err
	}
	for _, t := range tasks {
		if t.Status == domain.TaskStatusDone && within(t.UpdatedAt) {
			metrics.TasksCompleted++
		}
	}
	return metrics, nil
}

func (s *Service) allTasks(ctx context.Context) ([]domain.Task, []domain.Project, error) {
	projects, err := s.repo.ListProjects(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	var tasks []domain.Task
	for _, p := range projects {
		projectTasks, err := s.repo.ListTasks(ctx, p.ID)
		if err != nil {
			return nil, nil, err
		}
		tasks = append(tasks, projectTasks...)
	}
	return tasks, projects, nil
}
