// Package tasktree turns a flat task forest into ordered, depth-annotated rows
// for timeline rendering.
package tasktree

import (
	"cmp"
	"slices"
	"time"

	"github.com/hylla/kundkoll/internal/domain"
)

// Row is one rendered line of the task timeline.
type Row struct {
	Task        domain.Task `json:"task"`
	Depth       int         `json:"depth"`
	HasChildren bool        `json:"has_children"`
	Collapsed   bool        `json:"collapsed"`
	// DisplayStart and DisplayDue hold the task's own dates for leaves and the
	// subtree roll-up for parents.
	DisplayStart *time.Time `json:"display_start,omitempty"`
	DisplayDue   *time.Time `json:"display_due,omitempty"`
}

// span is the aggregated schedule of one subtree.
type span struct {
	start *time.Time
	due   *time.Time
}

// forest indexes one task collection for a single Flatten call.
type forest struct {
	byID     map[string]domain.Task
	roots    []domain.Task
	children map[string][]domain.Task
	memo     map[string]span
	visiting map[string]bool
}

// Flatten returns the visible rows of the task forest in depth-first pre-order.
// Siblings are ordered by Order, keeping input order on ties. Children of a
// collapsed task are omitted. Tasks whose parent is not in the collection are
// left out, as are tasks that are only reachable through a parent cycle.
func Flatten(tasks []domain.Task, collapsed map[string]bool) []Row {
	f := newForest(tasks)
	out := make([]Row, 0, len(f.byID))
	emitted := make(map[string]struct{}, len(f.byID))

	var walk func(task domain.Task, depth int)
	walk = func(task domain.Task, depth int) {
		if _, ok := emitted[task.ID]; ok {
			return
		}
		emitted[task.ID] = struct{}{}

		kids := f.children[task.ID]
		row := Row{
			Task:         task,
			Depth:        depth,
			HasChildren:  len(kids) > 0,
			Collapsed:    collapsed[task.ID],
			DisplayStart: task.StartAt,
			DisplayDue:   task.DueAt,
		}
		if row.HasChildren {
			s := f.aggregate(task.ID)
			row.DisplayStart = s.start
			row.DisplayDue = s.due
		}
		out = append(out, row)
		if row.Collapsed {
			return
		}
		for _, child := range kids {
			walk(child, depth+1)
		}
	}
	for _, root := range f.roots {
		walk(root, 0)
	}
	return out
}

// newForest groups tasks by parent in one pass and sorts every sibling list.
func newForest(tasks []domain.Task) *forest {
	f := &forest{
		byID:     make(map[string]domain.Task, len(tasks)),
		children: map[string][]domain.Task{},
		memo:     map[string]span{},
		visiting: map[string]bool{},
	}
	unique := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.ID == "" {
			continue
		}
		if _, dup := f.byID[task.ID]; dup {
			continue
		}
		f.byID[task.ID] = task
		unique = append(unique, task)
	}
	for _, task := range unique {
		if task.ParentID == "" {
			f.roots = append(f.roots, task)
			continue
		}
		if _, ok := f.byID[task.ParentID]; !ok {
			continue
		}
		f.children[task.ParentID] = append(f.children[task.ParentID], task)
	}

	sortSiblings(f.roots)
	for _, kids := range f.children {
		sortSiblings(kids)
	}
	return f
}

// aggregate returns the earliest start and latest due over the task and all of
// its descendants, memoized per id.
func (f *forest) aggregate(id string) span {
	if s, ok := f.memo[id]; ok {
		return s
	}
	task := f.byID[id]
	s := span{start: task.StartAt, due: task.DueAt}
	if f.visiting[id] {
		return s
	}
	f.visiting[id] = true
	for _, child := range f.children[id] {
		cs := f.aggregate(child.ID)
		s.start = earliest(s.start, cs.start)
		s.due = latest(s.due, cs.due)
	}
	delete(f.visiting, id)
	f.memo[id] = s
	return s
}

func sortSiblings(tasks []domain.Task) {
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		return cmp.Compare(a.Order, b.Order)
	})
}

func earliest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}

func latest(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}
