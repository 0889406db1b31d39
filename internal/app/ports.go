package app

import (
	"context"

	"github.com/hylla/kundkoll/internal/domain"
)

// Repository represents repository data used by this package.
type Repository interface {
	CreateClient(context.Context, domain.Client) error
	UpdateClient(context.Context, domain.Client) error
	GetClient(context.Context, string) (domain.Client, error)
	ListClients(context.Context, bool) ([]domain.Client, error)

	CreateProject(context.Context, domain.Project) error
	UpdateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context, string) ([]domain.Project, error)

	CreateTask(context.Context, domain.Task) error
	UpdateTask(context.Context, domain.Task) error
	GetTask(context.Context, string) (domain.Task, error)
	ListTasks(context.Context, string) ([]domain.Task, error)
	DeleteTask(context.Context, string) error

	// Activity writes record one activity event attributed to the given actor
	// in the same transaction.
	CreateActivity(context.Context, domain.Activity, string) error
	UpdateActivity(context.Context, domain.Activity, string) error
	DeleteActivity(context.Context, domain.Activity, string) error
	GetActivity(context.Context, string) (domain.Activity, error)
	ListActivities(context.Context, string) ([]domain.Activity, error)
	ListRecentActivities(context.Context, int) ([]domain.Activity, error)
	ListActivityEvents(context.Context, string, int) ([]domain.ActivityEvent, error)

	CreateReminder(context.Context, domain.Reminder) error
	UpdateReminder(context.Context, domain.Reminder) error
	GetReminder(context.Context, string) (domain.Reminder, error)
	ListReminders(context.Context, bool) ([]domain.Reminder, error)

	GetDashboardPreference(context.Context, string) (domain.DashboardPreference, error)
	UpsertDashboardPreference(context.Context, domain.DashboardPreference) error
	ListDashboardPreferences(context.Context) ([]domain.DashboardPreference, error)
}
