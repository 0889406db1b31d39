package domain

import (
	"slices"
	"strings"
	"time"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
)

var validProjectStatuses = []ProjectStatus{ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted}

// Project groups tasks delivered for one client.
type Project struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"client_id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectInput holds the editable project fields.
type ProjectInput struct {
	ID          string
	ClientID    string
	Name        string
	Description string
	Status      ProjectStatus
}

// NewProject constructs a validated project.
func NewProject(in ProjectInput, now time.Time) (Project, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" || in.ClientID == "" {
		return Project{}, ErrInvalidID
	}
	if in.Name == "" {
		return Project{}, ErrInvalidName
	}
	if in.Status == "" {
		in.Status = ProjectStatusActive
	}
	if !slices.Contains(validProjectStatuses, in.Status) {
		return Project{}, ErrInvalidStatus
	}
	return Project{
		ID:          in.ID,
		ClientID:    in.ClientID,
		Name:        in.Name,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}
