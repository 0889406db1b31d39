// Package activity merges server-confirmed timeline entries with locally
// queued, not yet confirmed changes.
package activity

import (
	"maps"
	"strings"
	"time"

	"github.com/hylla/kundkoll/internal/domain"
	"github.com/oklog/ulid/v2"
)

// TempIDPrefix marks ids synthesized for pending creations. Server ids are
// UUIDs and never carry it.
const TempIDPrefix = "tmp-"

// Display is one timeline entry as the user should see it right now.
type Display struct {
	domain.Activity
	IsPending bool `json:"is_pending"`
}

// MergeOptions injects the non-deterministic inputs of Merge.
type MergeOptions struct {
	Now       func() time.Time
	NewTempID func() string
}

// NewTempID returns a fresh temporary id: a millisecond timestamp plus
// monotonic entropy, so ids sort by creation and never repeat in-process.
func NewTempID() string {
	return TempIDPrefix + ulid.Make().String()
}

// IsTempID reports whether id was synthesized for a pending creation.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Merge builds the display list from the server list and the pending changes
// in queue order. Deleted entries are dropped. The first update targeting an
// entry is overlaid on a copy and later updates for the same id are ignored.
// Pending creations come first, followed by the server list in its original
// order. Inputs are not modified.
func Merge(server []domain.Activity, changes []domain.ActivityChange, clientID, userID string, opts MergeOptions) []Display {
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()

	deleted := map[string]struct{}{}
	updates := map[string]domain.ActivityPayload{}
	var creates []domain.ActivityChange
	for _, change := range changes {
		switch change.Kind {
		case domain.ChangeKindDelete:
			if change.ActivityID != "" {
				deleted[change.ActivityID] = struct{}{}
			}
		case domain.ChangeKindUpdate:
			if change.ActivityID == "" {
				continue
			}
			if _, seen := updates[change.ActivityID]; !seen {
				updates[change.ActivityID] = change.Payload
			}
		case domain.ChangeKindCreate:
			creates = append(creates, change)
		}
	}

	out := make([]Display, 0, len(creates)+len(server))
	for _, change := range creates {
		out = append(out, Display{
			Activity:  synthesize(change, clientID, userID, now, tempID(change, opts.NewTempID)),
			IsPending: true,
		})
	}
	for _, a := range server {
		if _, gone := deleted[a.ID]; gone {
			continue
		}
		payload, updated := updates[a.ID]
		if !updated {
			out = append(out, Display{Activity: a.Clone()})
			continue
		}
		out = append(out, Display{Activity: overlay(a, payload), IsPending: true})
	}
	return out
}

// tempID prefers the injected generator, then the queue-assigned change id so
// a pending row keeps its id across merges.
func tempID(change domain.ActivityChange, gen func() string) string {
	if gen != nil {
		return gen()
	}
	if change.ID != "" {
		return TempIDPrefix + change.ID
	}
	return NewTempID()
}

func synthesize(change domain.ActivityChange, clientID, userID string, now time.Time, id string) domain.Activity {
	p := change.Payload
	a := domain.Activity{
		ID:         id,
		ClientID:   clientID,
		UserID:     userID,
		Type:       p.Type,
		Data:       map[string]any{},
		OccurredAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if a.Type == "" {
		a.Type = domain.ActivityTypeNote
	}
	if p.Summary != nil {
		a.Summary = *p.Summary
	}
	if p.Data != nil {
		a.Data = maps.Clone(p.Data)
	}
	if p.OccurredAt != nil && !p.OccurredAt.IsZero() {
		a.OccurredAt = p.OccurredAt.UTC()
	}
	return a
}

func overlay(a domain.Activity, p domain.ActivityPayload) domain.Activity {
	out := a.Clone()
	if p.Type != "" {
		out.Type = p.Type
	}
	if p.Summary != nil {
		out.Summary = *p.Summary
	}
	if p.Data != nil {
		out.Data = maps.Clone(p.Data)
	}
	if p.OccurredAt != nil && !p.OccurredAt.IsZero() {
		out.OccurredAt = p.OccurredAt.UTC()
	}
	return out
}
