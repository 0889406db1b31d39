package activity

import (
	"slices"
	"sync"

	"github.com/hylla/kundkoll/internal/domain"
	"github.com/oklog/ulid/v2"
)

// Queue holds pending activity changes in submission order until the server
// confirms them. It is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	changes []domain.ActivityChange
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue validates and appends one change, assigning an id when missing.
func (q *Queue) Enqueue(change domain.ActivityChange) (domain.ActivityChange, error) {
	if err := change.Validate(); err != nil {
		return domain.ActivityChange{}, err
	}
	if change.ID == "" {
		change.ID = ulid.Make().String()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.changes = append(q.changes, change)
	return change, nil
}

// Confirm removes the change once the server has applied it. It reports
// whether the change was still queued.
func (q *Queue) Confirm(changeID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx := slices.IndexFunc(q.changes, func(c domain.ActivityChange) bool {
		return c.ID == changeID
	})
	if idx < 0 {
		return false
	}
	q.changes = slices.Delete(q.changes, idx, idx+1)
	return true
}

// Changes returns a snapshot of the queued changes for one client, or all of
// them when clientID is empty.
func (q *Queue) Changes(clientID string) []domain.ActivityChange {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.ActivityChange, 0, len(q.changes))
	for _, c := range q.changes {
		if clientID != "" && c.ClientID != clientID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Len reports the number of queued changes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes)
}
