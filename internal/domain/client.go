package domain

import (
	"strings"
	"time"
)

// Client represents one customer record.
type Client struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Company    string     `json:"company,omitempty"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// ClientInput holds the editable client fields.
type ClientInput struct {
	ID      string
	Name    string
	Company string
	Email   string
	Phone   string
	Notes   string
}

// NewClient constructs a validated client record.
func NewClient(in ClientInput, now time.Time) (Client, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return Client{}, ErrInvalidID
	}
	c := Client{
		ID:        in.ID,
		CreatedAt: now.UTC(),
	}
	if err := c.UpdateDetails(in, now); err != nil {
		return Client{}, err
	}
	return c, nil
}

// UpdateDetails replaces the editable fields of a client.
func (c *Client) UpdateDetails(in ClientInput, now time.Time) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" && !validEmail(email) {
		return ErrInvalidEmail
	}
	c.Name = name
	c.Company = strings.TrimSpace(in.Company)
	c.Email = email
	c.Phone = strings.TrimSpace(in.Phone)
	c.Notes = strings.TrimSpace(in.Notes)
	c.UpdatedAt = now.UTC()
	return nil
}

// Archive marks the client archived.
func (c *Client) Archive(now time.Time) {
	ts := now.UTC()
	c.ArchivedAt = &ts
	c.UpdatedAt = ts
}

// Restore clears the archived marker.
func (c *Client) Restore(now time.Time) {
	c.ArchivedAt = nil
	c.UpdatedAt = now.UTC()
}

func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t\n")
}
