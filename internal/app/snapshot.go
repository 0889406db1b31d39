package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/kundkoll/internal/domain"
	"github.com/hylla/kundkoll/internal/tasktree"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "kundkoll.snapshot.v1"

// Snapshot represents snapshot data used by this package.
type Snapshot struct {
	Version     string                       `json:"version"`
	ExportedAt  time.Time                    `json:"exported_at"`
	Clients     []domain.Client              `json:"clients"`
	Projects    []domain.Project             `json:"projects"`
	Tasks       []domain.Task                `json:"tasks"`
	Activities  []domain.Activity            `json:"activities,omitempty"`
	Reminders   []domain.Reminder            `json:"reminders,omitempty"`
	Preferences []domain.DashboardPreference `json:"preferences,omitempty"`
}

// ExportSnapshot handles export snapshot.
func (s *Service) ExportSnapshot(ctx context.Context, includeArchived bool) (Snapshot, error) {
	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
	}
	clients, err := s.repo.ListClients(ctx, includeArchived)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Clients = clients
	included := make(map[string]struct{}, len(clients))
	for _, c := range clients {
		included[c.ID] = struct{}{}
		activities, err := s.repo.ListActivities(ctx, c.ID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Activities = append(snap.Activities, activities...)
	}

	projects, err := s.repo.ListProjects(ctx, "")
	if err != nil {
		return Snapshot{}, err
	}
	for _, p := range projects {
		if _, ok := included[p.ClientID]; !ok {
			continue
		}
		snap.Projects = append(snap.Projects, p)
		tasks, err := s.repo.ListTasks(ctx, p.ID)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Tasks = append(snap.Tasks, tasks...)
	}

	reminders, err := s.repo.ListReminders(ctx, true)
	if err != nil {
		return Snapshot{}, err
	}
	for _, r := range reminders {
		if _, ok := included[r.ClientID]; ok {
			snap.Reminders = append(snap.Reminders, r)
		}
	}

	prefs, err := s.repo.ListDashboardPreferences(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Preferences = prefs
	snap.sort()
	return snap, nil
}

// ImportSnapshot validates snap and upserts every record it contains.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	actorID := s.actorID(ctx)
	for _, c := range snap.Clients {
		if err := upsert(ctx, c.ID, s.repo.GetClient, s.repo.CreateClient, s.repo.UpdateClient, c); err != nil {
			return fmt.Errorf("import client %q: %w", c.ID, err)
		}
	}
	for _, p := range snap.Projects {
		if err := upsert(ctx, p.ID, s.repo.GetProject, s.repo.CreateProject, s.repo.UpdateProject, p); err != nil {
			return fmt.Errorf("import project %q: %w", p.ID, err)
		}
	}
	for _, t := range snap.Tasks {
		if err := upsert(ctx, t.ID, s.repo.GetTask, s.repo.CreateTask, s.repo.UpdateTask, t); err != nil {
			return fmt.Errorf("import task %q: %w", t.ID, err)
		}
	}
	for _, a := range snap.Activities {
		create := func(ctx context.Context, a domain.Activity) error { return s.repo.CreateActivity(ctx, a, actorID) }
		update := func(ctx context.Context, a domain.Activity) error { return s.repo.UpdateActivity(ctx, a, actorID) }
		if err := upsert(ctx, a.ID, s.repo.GetActivity, create, update, a); err != nil {
			return fmt.Errorf("import activity %q: %w", a.ID, err)
		}
	}
	for _, r := range snap.Reminders {
		if err := upsert(ctx, r.ID, s.repo.GetReminder, s.repo.CreateReminder, s.repo.UpdateReminder, r); err != nil {
			return fmt.Errorf("import reminder %q: %w", r.ID, err)
		}
	}
	for _, pref := range snap.Preferences {
		if err := s.repo.UpsertDashboardPreference(ctx, pref); err != nil {
			return fmt.Errorf("import dashboard preference %q: %w", pref.UserID, err)
		}
	}
	return nil
}

// upsert creates v when get reports ErrNotFound and updates it otherwise.
func upsert[T any](
	ctx context.Context,
	id string,
	get func(context.Context, string) (T, error),
	create func(context.Context, T) error,
	update func(context.Context, T) error,
	v T,
) error {
	_, err := get(ctx, id)
	switch {
	case err == nil:
		return update(ctx, v)
	case errors.Is(err, ErrNotFound):
		return create(ctx, v)
	default:
		return err
	}
}

// Validate checks snapshot version, ids, references, and task hierarchy.
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.Version) != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	clientIDs := map[string]struct{}{}
	for idx, c := range s.Clients {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: clients[%d] requires id and name", ErrInvalidSnapshot, idx)
		}
		if _, dup := clientIDs[c.ID]; dup {
			return fmt.Errorf("%w: duplicate client id %q", ErrInvalidSnapshot, c.ID)
		}
		clientIDs[c.ID] = struct{}{}
	}
	projectIDs := map[string]struct{}{}
	for idx, p := range s.Projects {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: projects[%d] requires id and name", ErrInvalidSnapshot, idx)
		}
		if _, ok := clientIDs[p.ClientID]; !ok {
			return fmt.Errorf("%w: project %q references unknown client %q", ErrInvalidSnapshot, p.ID, p.ClientID)
		}
		if _, dup := projectIDs[p.ID]; dup {
			return fmt.Errorf("%w: duplicate project id %q", ErrInvalidSnapshot, p.ID)
		}
		projectIDs[p.ID] = struct{}{}
	}
	byProject := map[string][]domain.Task{}
	for idx, t := range s.Tasks {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Title) == "" {
			return fmt.Errorf("%w: tasks[%d] requires id and title", ErrInvalidSnapshot, idx)
		}
		if _, ok := projectIDs[t.ProjectID]; !ok {
			return fmt.Errorf("%w: task %q references unknown project %q", ErrInvalidSnapshot, t.ID, t.ProjectID)
		}
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	for projectID, tasks := range byProject {
		if err := tasktree.Validate(tasks); err != nil {
			return fmt.Errorf("%w: project %q tasks: %w", ErrInvalidSnapshot, projectID, err)
		}
	}
	for idx, a := range s.Activities {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("%w: activities[%d] requires id", ErrInvalidSnapshot, idx)
		}
		if _, ok := clientIDs[a.ClientID]; !ok {
			return fmt.Errorf("%w: activity %q references unknown client %q", ErrInvalidSnapshot, a.ID, a.ClientID)
		}
		if !domain.ValidActivityType(a.Type) {
			return fmt.Errorf("%w: activity %q: %w", ErrInvalidSnapshot, a.ID, domain.ErrInvalidActivityType)
		}
		if err := validateActivityData(a.Type, a.Data); err != nil {
			return fmt.Errorf("%w: activity %q: %w", ErrInvalidSnapshot, a.ID, err)
		}
	}
	for idx, r := range s.Reminders {
		if strings.TrimSpace(r.ID) == "" {
			return fmt.Errorf("%w: reminders[%d] requires id", ErrInvalidSnapshot, idx)
		}
		if _, ok := clientIDs[r.ClientID]; !ok {
			return fmt.Errorf("%w: reminder %q references unknown client %q", ErrInvalidSnapshot, r.ID, r.ClientID)
		}
	}
	for idx, pref := range s.Preferences {
		if strings.TrimSpace(pref.UserID) == "" {
			return fmt.Errorf("%w: preferences[%d] requires user_id", ErrInvalidSnapshot, idx)
		}
		if err := domain.ValidateLayout(pref.Layout); err != nil {
			return fmt.Errorf("%w: preferences[%d]: %w", ErrInvalidSnapshot, idx, err)
		}
	}
	return nil
}

// sort orders snapshot records deterministically.
func (s *Snapshot) sort() {
	slices.SortFunc(s.Clients, func(a, b domain.Client) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Projects, func(a, b domain.Project) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Tasks, func(a, b domain.Task) int {
		if c := strings.Compare(a.ProjectID, b.ProjectID); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	slices.SortFunc(s.Activities, func(a, b domain.Activity) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Reminders, func(a, b domain.Reminder) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Preferences, func(a, b domain.DashboardPreference) int { return strings.Compare(a.UserID, b.UserID) })
}
