package activity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hylla/kundkoll/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

func fixedOptions() MergeOptions {
	n := 0
	return MergeOptions{
		Now: func() time.Time { return fixedNow },
		NewTempID: func() string {
			n++
			return fmt.Sprintf("tmp-%d", n)
		},
	}
}

func serverActivity(id, summary string) domain.Activity {
	return domain.Activity{
		ID:         id,
		ClientID:   "c1",
		UserID:     "u-server",
		Type:       domain.ActivityTypeCall,
		Summary:    summary,
		Data:       map[string]any{"duration": 5},
		OccurredAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func ids(rows []Display) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID)
	}
	return out
}

func TestMergeDeleteExcludesActivity(t *testing.T) {
	server := []domain.Activity{serverActivity("1", "a"), serverActivity("2", "b")}
	changes := []domain.ActivityChange{{Kind: domain.ChangeKindDelete, ActivityID: "1"}}

	got := Merge(server, changes, "c1", "u1", fixedOptions())

	assert.Equal(t, []string{"2"}, ids(got))
	assert.False(t, got[0].IsPending)
}

func TestMergeCreateSynthesizesPendingEntry(t *testing.T) {
	changes := []domain.ActivityChange{{
		Kind:    domain.ChangeKindCreate,
		Payload: domain.ActivityPayload{Summary: ptr("hello")},
	}}

	got := Merge(nil, changes, "c1", "u1", MergeOptions{Now: func() time.Time { return fixedNow }})

	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Summary)
	assert.True(t, got[0].IsPending)
	assert.True(t, IsTempID(got[0].ID))
	assert.Equal(t, "c1", got[0].ClientID)
	assert.Equal(t, "u1", got[0].UserID)
	assert.Equal(t, domain.ActivityTypeNote, got[0].Type)
	assert.Equal(t, map[string]any{}, got[0].Data)
	assert.True(t, got[0].OccurredAt.Equal(fixedNow))
}

func TestMergeCreateDefaults(t *testing.T) {
	occurred := time.Date(2026, 3, 30, 8, 0, 0, 0, time.UTC)
	changes := []domain.ActivityChange{
		{Kind: domain.ChangeKindCreate},
		{Kind: domain.ChangeKindCreate, Payload: domain.ActivityPayload{
			Type:       domain.ActivityTypeMeeting,
			Data:       map[string]any{"room": "B"},
			OccurredAt: &occurred,
		}},
	}

	got := Merge(nil, changes, "c1", "u1", fixedOptions())

	require.Len(t, got, 2)
	assert.Equal(t, "", got[0].Summary)
	assert.Equal(t, map[string]any{}, got[0].Data)
	assert.True(t, got[0].OccurredAt.Equal(fixedNow))
	assert.Equal(t, domain.ActivityTypeMeeting, got[1].Type)
	assert.Equal(t, map[string]any{"room": "B"}, got[1].Data)
	assert.True(t, got[1].OccurredAt.Equal(occurred))
}

func TestMergeUpdateOverlaysAndMarksPending(t *testing.T) {
	server := []domain.Activity{serverActivity("2", "old")}
	changes := []domain.ActivityChange{{
		Kind:       domain.ChangeKindUpdate,
		ActivityID: "2",
		Payload:    domain.ActivityPayload{Summary: ptr("new")},
	}}

	got := Merge(server, changes, "c1", "u1", fixedOptions())

	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Summary)
	assert.True(t, got[0].IsPending)
	assert.Equal(t, domain.ActivityTypeCall, got[0].Type)
	assert.True(t, got[0].OccurredAt.Equal(server[0].OccurredAt), "occurred_at falls back to the original")
	assert.Equal(t, "old", server[0].Summary, "server input must not be modified")
}

func TestMergeFirstUpdateWins(t *testing.T) {
	server := []domain.Activity{serverActivity("2", "old")}
	changes := []domain.ActivityChange{
		{Kind: domain.ChangeKindUpdate, ActivityID: "2", Payload: domain.ActivityPayload{Summary: ptr("first")}},
		{Kind: domain.ChangeKindUpdate, ActivityID: "2", Payload: domain.ActivityPayload{Summary: ptr("second")}},
	}

	got := Merge(server, changes, "c1", "u1", fixedOptions())

	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Summary)
}

func TestMergeDeleteBeatsUpdate(t *testing.T) {
	server := []domain.Activity{serverActivity("2", "old")}
	changes := []domain.ActivityChange{
		{Kind: domain.ChangeKindUpdate, ActivityID: "2", Payload: domain.ActivityPayload{Summary: ptr("new")}},
		{Kind: domain.ChangeKindDelete, ActivityID: "2"},
	}

	got := Merge(server, changes, "c1", "u1", fixedOptions())

	assert.Empty(t, got)
}

func TestMergeOrdersCreationsFirst(t *testing.T) {
	server := []domain.Activity{serverActivity("s1", "a"), serverActivity("s2", "b"), serverActivity("s3", "c")}
	changes := []domain.ActivityChange{
		{Kind: domain.ChangeKindCreate, Payload: domain.ActivityPayload{Summary: ptr("x")}},
		{Kind: domain.ChangeKindDelete, ActivityID: "s2"},
		{Kind: domain.ChangeKindCreate, Payload: domain.ActivityPayload{Summary: ptr("y")}},
	}

	got := Merge(server, changes, "c1", "u1", fixedOptions())

	assert.Equal(t, []string{"tmp-1", "tmp-2", "s1", "s3"}, ids(got))
}

func TestMergeIsDeterministicWithInjectedInputs(t *testing.T) {
	server := []domain.Activity{serverActivity("s1", "a")}
	changes := []domain.ActivityChange{
		{Kind: domain.ChangeKindCreate, Payload: domain.ActivityPayload{Summary: ptr("x")}},
		{Kind: domain.ChangeKindUpdate, ActivityID: "s1", Payload: domain.ActivityPayload{Summary: ptr("b")}},
	}

	first := Merge(server, changes, "c1", "u1", fixedOptions())
	second := Merge(server, changes, "c1", "u1", fixedOptions())

	assert.Equal(t, first, second)
}

func TestMergeUsesChangeIDForStableTempID(t *testing.T) {
	changes := []domain.ActivityChange{{ID: "01HX", Kind: domain.ChangeKindCreate}}

	got := Merge(nil, changes, "c1", "u1", MergeOptions{})

	require.Len(t, got, 1)
	assert.Equal(t, "tmp-01HX", got[0].ID)
}

func TestNewTempIDUnique(t *testing.T) {
	seen := map[string]struct{}{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 250 {
				id := NewTempID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 2000)
}
