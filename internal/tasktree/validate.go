package tasktree

import (
	"errors"
	"fmt"

	"github.com/hylla/kundkoll/internal/domain"
)

// Hierarchy validation failures reported by Validate.
var (
	ErrCycle         = errors.New("task parent cycle")
	ErrSelfParent    = errors.New("task is its own parent")
	ErrUnknownParent = errors.New("task parent not found")
	ErrDuplicateID   = errors.New("duplicate task id")
)

// Validate checks the parent links of one task collection. Every problem is
// reported; the result joins them and matches the sentinel errors with errors.Is.
func Validate(tasks []domain.Task) error {
	parents := make(map[string]string, len(tasks))
	order := make([]string, 0, len(tasks))
	var errs []error
	for _, task := range tasks {
		if _, dup := parents[task.ID]; dup {
			errs = append(errs, fmt.Errorf("task %q: %w", task.ID, ErrDuplicateID))
			continue
		}
		parents[task.ID] = task.ParentID
		order = append(order, task.ID)
	}
	for _, id := range order {
		parentID := parents[id]
		switch {
		case parentID == "":
		case parentID == id:
			errs = append(errs, fmt.Errorf("task %q: %w", id, ErrSelfParent))
		default:
			if _, ok := parents[parentID]; !ok {
				errs = append(errs, fmt.Errorf("task %q parent %q: %w", id, parentID, ErrUnknownParent))
			}
		}
	}

	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(order))
	for _, id := range order {
		var path []string
		cur := id
		for {
			if state[cur] == done {
				break
			}
			if state[cur] == onPath {
				// Self-parents are already reported above.
				if parents[cur] != cur {
					errs = append(errs, fmt.Errorf("task %q: %w", cur, ErrCycle))
				}
				break
			}
			state[cur] = onPath
			path = append(path, cur)
			next, ok := parents[cur]
			if !ok || next == "" {
				break
			}
			if _, known := parents[next]; !known {
				break
			}
			cur = next
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return errors.Join(errs...)
}
