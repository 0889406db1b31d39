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

// DefaultUserID identifies the local user when no actor is attached.
const DefaultUserID = "local"

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultUserID        string
	DefaultDateRange     domain.DateRange
	RecentActivityLimit  int
	DashboardReminderDue time.Duration
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service represents service data used by this package.
type Service struct {
	repo                Repository
	idGen               IDGenerator
	clock               Clock
	defaultUserID       string
	defaultDateRange    domain.DateRange
	recentActivityLimit int
	reminderHorizon     time.Duration
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	cfg.DefaultUserID = strings.TrimSpace(cfg.DefaultUserID)
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = DefaultUserID
	}
	if _, err := domain.ParseDateRange(string(cfg.DefaultDateRange)); err != nil {
		cfg.DefaultDateRange = domain.DateRangeMonth
	}
	if cfg.RecentActivityLimit <= 0 {
		cfg.RecentActivityLimit = 10
	}
	if cfg.DashboardReminderDue <= 0 {
		cfg.DashboardReminderDue = 7 * 24 * time.Hour
	}
	return &Service{
		repo:                repo,
		idGen:               idGen,
		clock:               clock,
		defaultUserID:       cfg.DefaultUserID,
		defaultDateRange:    cfg.DefaultDateRange,
		recentActivityLimit: cfg.RecentActivityLimit,
		reminderHorizon:     cfg.DashboardReminderDue,
	}
}

// CreateClientInput holds input values for create client operations.
type CreateClientInput struct {
	Name    string
	Company string
	Email   string
	Phone   string
	Notes   string
}

// UpdateClientInput holds input values for update client operations.
type UpdateClientInput struct {
	ClientID string
	Name     string
	Company  string
	Email    string
	Phone    string
	Notes    string
}

// CreateClient creates client.
func (s *Service) CreateClient(ctx context.Context, in CreateClientInput) (domain.Client, error) {
	client, err := domain.NewClient(domain.ClientInput{
		ID:      s.idGen(),
		Name:    in.Name,
		Company: in.Company,
		Email:   in.Email,
		Phone:   in.Phone,
		Notes:   in.Notes,
	}, s.clock())
	if err != nil {
		return domain.Client{}, err
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

// UpdateClient updates state for the requested operation.
func (s *Service) UpdateClient(ctx context.Context, in UpdateClientInput) (domain.Client, error) {
	client, err := s.repo.GetClient(ctx, in.ClientID)
	if err != nil {
		return domain.Client{}, err
	}
	if err := client.UpdateDetails(domain.ClientInput{
		ID:      client.ID,
		Name:    in.Name,
		Company: in.Company,
		Email:   in.Email,
		Phone:   in.Phone,
		Notes:   in.Notes,
	}, s.clock()); err != nil {
		return domain.Client{}, err
	}
	if err := s.repo.UpdateClient(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

// GetClient returns one client.
func (s *Service) GetClient(ctx context.Context, clientID string) (domain.Client, error) {
	return s.repo.GetClient(ctx, strings.TrimSpace(clientID))
}

// ListClients lists clients ordered by name.
func (s *Service) ListClients(ctx context.Context, includeArchived bool) ([]domain.Client, error) {
	clients, err := s.repo.ListClients(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(clients, func(a, b domain.Client) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return clients, nil
}

// ArchiveClient archives client.
func (s *Service) ArchiveClient(ctx context.Context, clientID string) (domain.Client, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	client.Archive(s.clock())
	if err := s.repo.UpdateClient(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

// RestoreClient restores client.
func (s *Service) RestoreClient(ctx context.Context, clientID string) (domain.Client, error) {
	client, err := s.repo.GetClient(ctx, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	client.Restore(s.clock())
	if err := s.repo.UpdateClient(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

// CreateProjectInput holds input values for create project operations.
type CreateProjectInput struct {
	ClientID    string
	Name        string
	Description string
	Status      domain.ProjectStatus
}

// CreateProject creates project.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	client, err := s.repo.GetClient(ctx, strings.TrimSpace(in.ClientID))
	if err != nil {
		return domain.Project{}, err
	}
	if client.ArchivedAt != nil {
		return domain.Project{}, ErrClientArchived
	}
	project, err := domain.NewProject(domain.ProjectInput{
		ID:          s.idGen(),
		ClientID:    client.ID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
	}, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	return s.repo.GetProject(ctx, strings.TrimSpace(projectID))
}

// ListProjects lists projects for one client, or every project when clientID is empty.
func (s *Service) ListProjects(ctx context.Context, clientID string) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx, strings.TrimSpace(clientID))
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	ProjectID   string
	ParentID    string
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.Priority
	StartAt     *time.Time
	DueAt       *time.Time
	IsMilestone bool
	Order       *int
}

// UpdateTaskInput holds input values for update task operations. Only the
// present fields change; nil ParentID and Order keep the current placement.
type UpdateTaskInput struct {
	TaskID   string
	Patch    domain.TaskPatch
	ParentID *string
	Order    *int
}

// CreateTask creates task. Without an explicit order the task is appended
// after its last sibling.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return domain.Task{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, projectID)
	if err != nil {
		return domain.Task{}, err
	}
	parentID := strings.TrimSpace(in.ParentID)
	if parentID != "" && !slices.ContainsFunc(tasks, func(t domain.Task) bool { return t.ID == parentID }) {
		return domain.Task{}, fmt.Errorf("%w: parent %q not in project", ErrInvalidParent, parentID)
	}
	order := nextSiblingOrder(tasks, parentID)
	if in.Order != nil {
		order = *in.Order
	}

	task, err := domain.NewTask(domain.TaskInput{
		ID:          s.idGen(),
		ProjectID:   projectID,
		ParentID:    parentID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		StartAt:     in.StartAt,
		DueAt:       in.DueAt,
		IsMilestone: in.IsMilestone,
		Order:       order,
	}, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTask updates state for the requested operation. A parent change that
// would introduce a cycle is rejected with ErrInvalidParent.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(in.TaskID))
	if err != nil {
		return domain.Task{}, err
	}
	now := s.clock()
	if err := task.ApplyPatch(in.Patch, now); err != nil {
		return domain.Task{}, err
	}
	if in.ParentID != nil || in.Order != nil {
		parentID, order := task.ParentID, task.Order
		if in.ParentID != nil {
			parentID = strings.TrimSpace(*in.ParentID)
		}
		if in.Order != nil {
			order = *in.Order
		}
		if err := s.reparent(ctx, &task, parentID, order, in.Order == nil && parentID != task.ParentID); err != nil {
			return domain.Task{}, err
		}
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// reparent moves task under parentID after checking the project hierarchy.
func (s *Service) reparent(ctx context.Context, task *domain.Task, parentID string, order int, appendOrder bool) error {
	if parentID == task.ID {
		return fmt.Errorf("%w: %w", ErrInvalidParent, tasktree.ErrSelfParent)
	}
	tasks, err := s.repo.ListTasks(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	if appendOrder {
		order = nextSiblingOrder(tasks, parentID)
	}
	candidate := slices.Clone(tasks)
	for i := range candidate {
		if candidate[i].ID == task.ID {
			candidate[i].ParentID = parentID
		}
	}
	if err := tasktree.Validate(candidate); err != nil {
		if errors.Is(err, tasktree.ErrCycle) || errors.Is(err, tasktree.ErrSelfParent) || errors.Is(err, tasktree.ErrUnknownParent) {
			return fmt.Errorf("%w: %w", ErrInvalidParent, err)
		}
		return err
	}
	return task.Reparent(parentID, order, s.clock())
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return s.repo.GetTask(ctx, strings.TrimSpace(taskID))
}

// ListTasks lists tasks for one project.
func (s *Service) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	return s.repo.ListTasks(ctx, strings.TrimSpace(projectID))
}

// DeleteTask deletes one task and moves its children to the deleted task's parent.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	task, err := s.repo.GetTask(ctx, strings.TrimSpace(taskID))
	if err != nil {
		return err
	}
	tasks, err := s.repo.ListTasks(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	now := s.clock()
	for _, child := range tasks {
		if child.ParentID != task.ID {
			continue
		}
		if err := child.Reparent(task.ParentID, child.Order, now); err != nil {
			return err
		}
		if err := s.repo.UpdateTask(ctx, child); err != nil {
			return err
		}
	}
	return s.repo.DeleteTask(ctx, task.ID)
}

// TaskTimeline returns the visible timeline rows for one project.
func (s *Service) TaskTimeline(ctx context.Context, projectID string, collapsed map[string]bool) ([]tasktree.Row, error) {
	projectID = strings.TrimSpace(projectID)
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.repo.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return tasktree.Flatten(tasks, collapsed), nil
}

// nextSiblingOrder returns one past the highest order among parentID's children.
func nextSiblingOrder(tasks []domain.Task, parentID string) int {
	order := 0
	for _, t := range tasks {
		if t.ParentID == parentID && t.Order >= order {
			order = t.Order + 1
		}
	}
	return order
}
