package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ActivityType classifies one timeline entry.
type ActivityType string

// ActivityType values accepted on the client timeline.
const (
	ActivityTypeNote    ActivityType = "note"
	ActivityTypeCall    ActivityType = "call"
	ActivityTypeEmail   ActivityType = "email"
	ActivityTypeMeeting ActivityType = "meeting"
	ActivityTypeTask    ActivityType = "task"
	ActivityTypeOther   ActivityType = "other"
)

var validActivityTypes = []ActivityType{
	ActivityTypeNote,
	ActivityTypeCall,
	ActivityTypeEmail,
	ActivityTypeMeeting,
	ActivityTypeTask,
	ActivityTypeOther,
}

// ActivityTypes returns every accepted activity type in display order.
func ActivityTypes() []ActivityType {
	return slices.Clone(validActivityTypes)
}

// ValidActivityType reports whether the value is a known activity type.
func ValidActivityType(t ActivityType) bool {
	return slices.Contains(validActivityTypes, t)
}

// Activity is one server-confirmed entry on a client's timeline.
type Activity struct {
	ID         string         `json:"id"`
	ClientID   string         `json:"client_id"`
	UserID     string         `json:"user_id"`
	Type       ActivityType   `json:"type"`
	Summary    string         `json:"summary"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ActivityInput holds values for a new activity.
type ActivityInput struct {
	ID         string
	ClientID   string
	UserID     string
	Type       ActivityType
	Summary    string
	Data       map[string]any
	OccurredAt *time.Time
}

// NewActivity constructs a validated activity. OccurredAt defaults to now.
func NewActivity(in ActivityInput, now time.Time) (Activity, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ClientID = strings.TrimSpace(in.ClientID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.ID == "" || in.ClientID == "" || in.UserID == "" {
		return Activity{}, ErrInvalidID
	}
	if in.Type == "" {
		in.Type = ActivityTypeNote
	}
	if !ValidActivityType(in.Type) {
		return Activity{}, ErrInvalidActivityType
	}
	occurredAt := now.UTC()
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		occurredAt = in.OccurredAt.UTC()
	}
	return Activity{
		ID:         in.ID,
		ClientID:   in.ClientID,
		UserID:     in.UserID,
		Type:       in.Type,
		Summary:    strings.TrimSpace(in.Summary),
		Data:       cloneData(in.Data),
		OccurredAt: occurredAt,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

// Apply overlays the fields present in the payload.
func (a *Activity) Apply(p ActivityPayload, now time.Time) error {
	if p.Type != "" {
		if !ValidActivityType(p.Type) {
			return ErrInvalidActivityType
		}
		a.Type = p.Type
	}
	if p.Summary != nil {
		a.Summary = strings.TrimSpace(*p.Summary)
	}
	if p.Data != nil {
		a.Data = cloneData(p.Data)
	}
	if p.OccurredAt != nil && !p.OccurredAt.IsZero() {
		a.OccurredAt = p.OccurredAt.UTC()
	}
	a.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a copy that shares no map storage with the receiver.
func (a Activity) Clone() Activity {
	a.Data = cloneData(a.Data)
	return a
}

// ActivityPayload carries the optional fields of a pending change. Nil fields
// are absent.
type ActivityPayload struct {
	Type       ActivityType   `json:"type,omitempty"`
	Summary    *string        `json:"summary,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt *time.Time     `json:"occurred_at,omitempty"`
}

// ChangeKind identifies the mutation a pending change performs.
type ChangeKind string

// ChangeKind values for pending activity changes.
const (
	ChangeKindCreate ChangeKind = "create"
	ChangeKindUpdate ChangeKind = "update"
	ChangeKindDelete ChangeKind = "delete"
)

// ActivityChange is a local, not yet confirmed mutation of the timeline.
type ActivityChange struct {
	ID         string          `json:"id,omitempty"`
	ClientID   string          `json:"client_id,omitempty"`
	Kind       ChangeKind      `json:"type"`
	ActivityID string          `json:"activity_id,omitempty"`
	Payload    ActivityPayload `json:"activity_data"`
}

// Validate checks the kind and its target requirements.
func (c ActivityChange) Validate() error {
	switch c.Kind {
	case ChangeKindCreate:
		if c.Payload.Type != "" && !ValidActivityType(c.Payload.Type) {
			return ErrInvalidActivityType
		}
		return nil
	case ChangeKindUpdate:
		if strings.TrimSpace(c.ActivityID) == "" {
			return ErrInvalidID
		}
		if c.Payload.Type != "" && !ValidActivityType(c.Payload.Type) {
			return ErrInvalidActivityType
		}
		return nil
	case ChangeKindDelete:
		if strings.TrimSpace(c.ActivityID) == "" {
			return ErrInvalidID
		}
		return nil
	default:
		return ErrInvalidChangeKind
	}
}

// ActivityEvent is one audit row recorded for every persisted activity write.
type ActivityEvent struct {
	ID         int64      `json:"id"`
	ClientID   string     `json:"client_id"`
	ActivityID string     `json:"activity_id"`
	Operation  ChangeKind `json:"operation"`
	UserID     string     `json:"user_id"`
	OccurredAt time.Time  `json:"occurred_at"`
}

func cloneData(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return maps.Clone(in)
}
