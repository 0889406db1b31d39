package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

var validTaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusBlocked}

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	ParentID    string     `json:"parent_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	IsMilestone bool       `json:"is_milestone"`
	Order       int        `json:"order"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type TaskInput struct {
	ID          string
	ProjectID   string
	ParentID    string
	Title       string
	Description string
	Status      TaskStatus
	Priority    Priority
	StartAt     *time.Time
	DueAt       *time.Time
	IsMilestone bool
	Order       int
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.ParentID = strings.TrimSpace(in.ParentID)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.ProjectID == "" {
		return Task{}, ErrInvalidID
	}
	if in.ParentID == in.ID {
		return Task{}, ErrInvalidParent
	}
	t := Task{
		ID:        in.ID,
		ProjectID: in.ProjectID,
		ParentID:  in.ParentID,
		Order:     in.Order,
		CreatedAt: now.UTC(),
	}
	if err := t.UpdateDetails(in, now); err != nil {
		return Task{}, err
	}
	return t, nil
}

// UpdateDetails replaces title, description, status, priority, schedule, and
// milestone flag. Hierarchy fields are changed through Reparent.
func (t *Task) UpdateDetails(in TaskInput, now time.Time) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return ErrInvalidTitle
	}
	if in.Status == "" {
		in.Status = TaskStatusTodo
	}
	if !slices.Contains(validTaskStatuses, in.Status) {
		return ErrInvalidStatus
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return ErrInvalidPriority
	}
	startAt := normalizeTS(in.StartAt)
	dueAt := normalizeTS(in.DueAt)
	if startAt != nil && dueAt != nil && startAt.After(*dueAt) {
		return ErrInvalidSchedule
	}
	t.Title = title
	t.Description = strings.TrimSpace(in.Description)
	t.Status = in.Status
	t.Priority = in.Priority
	t.StartAt = startAt
	t.DueAt = dueAt
	t.IsMilestone = in.IsMilestone
	t.UpdatedAt = now.UTC()
	return nil
}

// TaskPatch carries the optional detail fields of a task update. Nil fields
// keep the current value; ClearStartAt and ClearDueAt drop a schedule bound.
type TaskPatch struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *Priority
	StartAt      *time.Time
	DueAt        *time.Time
	ClearStartAt bool
	ClearDueAt   bool
	IsMilestone  *bool
}

// ApplyPatch overlays the present fields of p and revalidates the result.
func (t *Task) ApplyPatch(p TaskPatch, now time.Time) error {
	in := TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		StartAt:     t.StartAt,
		DueAt:       t.DueAt,
		IsMilestone: t.IsMilestone,
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.Priority != nil {
		in.Priority = *p.Priority
	}
	switch {
	case p.ClearStartAt:
		in.StartAt = nil
	case p.StartAt != nil:
		in.StartAt = p.StartAt
	}
	switch {
	case p.ClearDueAt:
		in.DueAt = nil
	case p.DueAt != nil:
		in.DueAt = p.DueAt
	}
	if p.IsMilestone != nil {
		in.IsMilestone = *p.IsMilestone
	}
	return t.UpdateDetails(in, now)
}

func (t *Task) Reparent(parentID string, order int, now time.Time) error {
	parentID = strings.TrimSpace(parentID)
	if parentID == t.ID {
		return ErrInvalidParent
	}
	t.ParentID = parentID
	t.Order = order
	t.UpdatedAt = now.UTC()
	return nil
}

func (t Task) IsRoot() bool {
	return t.ParentID == ""
}

func normalizeTS(in *time.Time) *time.Time {
	if in == nil || in.IsZero() {
		return nil
	}
	ts := in.UTC().Truncate(time.Second)
	return &ts
}
