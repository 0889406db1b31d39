package tasktree

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/hylla/kundkoll/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) *time.Time {
	ts := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	return &ts
}

func task(id, parentID string, order int) domain.Task {
	return domain.Task{ID: id, ProjectID: "p1", ParentID: parentID, Title: id, Order: order}
}

func rowIDs(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Task.ID)
	}
	return out
}

func TestFlattenOrdersPreOrderBySiblingOrder(t *testing.T) {
	tasks := []domain.Task{
		task("b", "", 2),
		task("a2", "a", 5),
		task("a", "", 1),
		task("a1", "a", 3),
		task("a1x", "a1", 0),
		task("b1", "b", 0),
	}

	rows := Flatten(tasks, nil)

	assert.Equal(t, []string{"a", "a1", "a1x", "a2", "b", "b1"}, rowIDs(rows))
	depths := map[string]int{}
	for _, r := range rows {
		depths[r.Task.ID] = r.Depth
	}
	assert.Equal(t, map[string]int{"a": 0, "a1": 1, "a1x": 2, "a2": 1, "b": 0, "b1": 1}, depths)
	assert.True(t, rows[0].HasChildren)
	assert.False(t, rows[2].HasChildren)
}

func TestFlattenStableForEqualOrder(t *testing.T) {
	tasks := []domain.Task{
		task("root", "", 0),
		task("z", "root", 1),
		task("y", "root", 1),
		task("x", "root", 0),
	}

	rows := Flatten(tasks, nil)

	assert.Equal(t, []string{"root", "x", "z", "y"}, rowIDs(rows))
}

func TestFlattenRootsAtDepthZero(t *testing.T) {
	tasks := []domain.Task{task("r1", "", 0), task("r2", "", -4), task("c", "r1", 0)}

	rows := Flatten(tasks, nil)

	for _, r := range rows {
		if r.Task.ParentID == "" {
			assert.Equal(t, 0, r.Depth, "root %s", r.Task.ID)
		}
	}
	assert.Equal(t, []string{"r2", "r1", "c"}, rowIDs(rows))
}

func TestFlattenCollapsedHidesDescendants(t *testing.T) {
	tasks := []domain.Task{
		task("a", "", 0),
		task("a1", "a", 0),
		task("a1x", "a1", 0),
		task("b", "", 1),
	}

	rows := Flatten(tasks, map[string]bool{"a": true})

	require.Equal(t, []string{"a", "b"}, rowIDs(rows))
	assert.True(t, rows[0].HasChildren)
	assert.True(t, rows[0].Collapsed)
}

func TestFlattenCollapsedInnerNodeKeepsSiblings(t *testing.T) {
	tasks := []domain.Task{
		task("a", "", 0),
		task("a1", "a", 0),
		task("a1x", "a1", 0),
		task("a2", "a", 1),
	}

	rows := Flatten(tasks, map[string]bool{"a1": true})

	assert.Equal(t, []string{"a", "a1", "a2"}, rowIDs(rows))
}

func TestFlattenAggregatesParentDates(t *testing.T) {
	parent := task("p", "", 0)
	c1 := task("c1", "p", 0)
	c1.StartAt, c1.DueAt = day(5), day(8)
	c2 := task("c2", "p", 1)
	c2.StartAt, c2.DueAt = day(10), day(20)

	rows := Flatten([]domain.Task{parent, c1, c2}, nil)

	require.Len(t, rows, 3)
	require.NotNil(t, rows[0].DisplayStart)
	require.NotNil(t, rows[0].DisplayDue)
	assert.True(t, rows[0].DisplayStart.Equal(*day(5)))
	assert.True(t, rows[0].DisplayDue.Equal(*day(20)))
	assert.True(t, rows[1].DisplayStart.Equal(*day(5)))
	assert.True(t, rows[2].DisplayDue.Equal(*day(20)))
}

func TestFlattenAggregateIncludesOwnAndDeepDates(t *testing.T) {
	parent := task("p", "", 0)
	parent.StartAt, parent.DueAt = day(3), day(4)
	mid := task("m", "p", 0)
	leaf := task("l", "m", 0)
	leaf.StartAt, leaf.DueAt = day(6), day(25)

	rows := Flatten([]domain.Task{parent, mid, leaf}, map[string]bool{"p": true})

	require.Len(t, rows, 1)
	assert.True(t, rows[0].DisplayStart.Equal(*day(3)))
	assert.True(t, rows[0].DisplayDue.Equal(*day(25)))
}

func TestFlattenLeafKeepsOwnDates(t *testing.T) {
	leaf := task("l", "", 0)
	leaf.DueAt = day(9)

	rows := Flatten([]domain.Task{leaf}, nil)

	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].DisplayStart)
	assert.True(t, rows[0].DisplayDue.Equal(*day(9)))
}

func TestFlattenDropsOrphans(t *testing.T) {
	tasks := []domain.Task{task("a", "", 0), task("orphan", "gone", 0), task("orphan-kid", "orphan", 0)}

	rows := Flatten(tasks, nil)

	assert.Equal(t, []string{"a"}, rowIDs(rows))
}

func TestFlattenTerminatesOnCycle(t *testing.T) {
	tasks := []domain.Task{
		task("root", "", 0),
		task("x", "y", 0),
		task("y", "x", 0),
		task("self", "self", 0),
	}

	rows := Flatten(tasks, nil)

	assert.Equal(t, []string{"root"}, rowIDs(rows))
}

func TestFlattenSkipsDuplicateIDs(t *testing.T) {
	first := task("a", "", 0)
	first.Title = "first"
	second := task("a", "", 1)
	second.Title = "second"

	rows := Flatten([]domain.Task{first, second}, nil)

	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0].Task.Title)
}

func TestFlattenDeepChainIsLinear(t *testing.T) {
	const depth = 2000
	tasks := make([]domain.Task, 0, depth)
	parentID := ""
	for i := range depth {
		id := "t" + strconv.Itoa(i)
		tk := task(id, parentID, 0)
		tk.DueAt = day(1 + i%28)
		tasks = append(tasks, tk)
		parentID = id
	}

	rows := Flatten(tasks, nil)

	require.Len(t, rows, depth)
	assert.Equal(t, depth-1, rows[depth-1].Depth)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate([]domain.Task{task("a", "", 0), task("b", "a", 0)}))

	err := Validate([]domain.Task{
		task("a", "b", 0),
		task("b", "c", 0),
		task("c", "a", 0),
		task("d", "d", 0),
		task("e", "missing", 0),
		task("e", "", 0),
		task("f", "a", 0),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))
	assert.True(t, errors.Is(err, ErrSelfParent))
	assert.True(t, errors.Is(err, ErrUnknownParent))
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func TestValidateReportsCycleOnce(t *testing.T) {
	err := Validate([]domain.Task{task("a", "b", 0), task("b", "a", 0), task("c", "a", 0)})

	require.Error(t, err)
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 1)
}
