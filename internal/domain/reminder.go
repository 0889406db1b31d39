package domain

import (
	"strings"
	"time"
)

type Reminder struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"client_id"`
	TaskID      string     `json:"task_id,omitempty"`
	Title       string     `json:"title"`
	DueAt       time.Time  `json:"due_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ReminderInput struct {
	ID       string
	ClientID string
	TaskID   string
	Title    string
	DueAt    time.Time
}

func NewReminder(in ReminderInput, now time.Time) (Reminder, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ID == "" || in.ClientID == "" {
		return Reminder{}, ErrInvalidID
	}
	if in.Title == "" {
		return Reminder{}, ErrInvalidTitle
	}
	if in.DueAt.IsZero() {
		return Reminder{}, ErrInvalidSchedule
	}
	return Reminder{
		ID:        in.ID,
		ClientID:  in.ClientID,
		TaskID:    strings.TrimSpace(in.TaskID),
		Title:     in.Title,
		DueAt:     in.DueAt.UTC(),
		CreatedAt: now.UTC(),
	}, nil
}

func (r *Reminder) Complete(now time.Time) {
	ts := now.UTC()
	r.CompletedAt = &ts
}

// Open reports whether the reminder still needs attention.
func (r Reminder) Open() bool {
	return r.CompletedAt == nil
}
