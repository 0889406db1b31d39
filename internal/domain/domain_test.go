package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewClientNormalizes(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	c, err := NewClient(ClientInput{
		ID:      "c1",
		Name:    "  Acme AB  ",
		Company: " Acme ",
		Email:   " Sales@Acme.SE ",
	}, now)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Name != "Acme AB" || c.Company != "Acme" {
		t.Fatalf("unexpected client %#v", c)
	}
	if c.Email != "sales@acme.se" {
		t.Fatalf("unexpected email %q", c.Email)
	}
	if !c.CreatedAt.Equal(now) || !c.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected timestamps %#v", c)
	}
}

func TestNewClientValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewClient(ClientInput{ID: "", Name: "ok"}, now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewClient(ClientInput{ID: "c1", Name: "   "}, now); err != ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewClient(ClientInput{ID: "c1", Name: "x", Email: "nope"}, now); err != ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestClientArchiveRestore(t *testing.T) {
	now := time.Now()
	c, err := NewClient(ClientInput{ID: "c1", Name: "x"}, now)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.Archive(now.Add(time.Minute))
	if c.ArchivedAt == nil {
		t.Fatal("expected archived_at to be set")
	}
	c.Restore(now.Add(2 * time.Minute))
	if c.ArchivedAt != nil {
		t.Fatal("expected archived_at to be nil")
	}
}

func TestNewProjectDefaults(t *testing.T) {
	now := time.Now()
	p, err := NewProject(ProjectInput{ID: "p1", ClientID: "c1", Name: " Website "}, now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if p.Name != "Website" || p.Status != ProjectStatusActive {
		t.Fatalf("unexpected project %#v", p)
	}
	if _, err := NewProject(ProjectInput{ID: "p1", ClientID: "c1", Name: "x", Status: "gone"}, now); err != ErrInvalidStatus {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestNewTaskDefaults(t *testing.T) {
	now := time.Now()
	task, err := NewTask(TaskInput{
		ID:        "t1",
		ProjectID: "p1",
		Title:     "  Ship feature ",
		Order:     7,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if task.Priority != PriorityMedium {
		t.Fatalf("expected default medium, got %q", task.Priority)
	}
	if task.Status != TaskStatusTodo {
		t.Fatalf("expected default todo, got %q", task.Status)
	}
	if task.Title != "Ship feature" || task.Order != 7 || !task.IsRoot() {
		t.Fatalf("unexpected task %#v", task)
	}
}

func TestNewTaskValidation(t *testing.T) {
	now := time.Now()
	start := now.Add(48 * time.Hour)
	due := now.Add(24 * time.Hour)
	cases := []struct {
		name string
		in   TaskInput
		want error
	}{
		{name: "missing id", in: TaskInput{ProjectID: "p1", Title: "x"}, want: ErrInvalidID},
		{name: "missing title", in: TaskInput{ID: "t1", ProjectID: "p1"}, want: ErrInvalidTitle},
		{name: "bad priority", in: TaskInput{ID: "t1", ProjectID: "p1", Title: "x", Priority: "bad"}, want: ErrInvalidPriority},
		{name: "bad status", in: TaskInput{ID: "t1", ProjectID: "p1", Title: "x", Status: "bad"}, want: ErrInvalidStatus},
		{name: "self parent", in: TaskInput{ID: "t1", ProjectID: "p1", ParentID: "t1", Title: "x"}, want: ErrInvalidParent},
		{name: "start after due", in: TaskInput{ID: "t1", ProjectID: "p1", Title: "x", StartAt: &start, DueAt: &due}, want: ErrInvalidSchedule},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTask(tc.in, now); err != tc.want {
				t.Fatalf("NewTask() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTaskReparent(t *testing.T) {
	now := time.Now()
	task, err := NewTask(TaskInput{ID: "t1", ProjectID: "p1", Title: "x"}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}
	if err := task.Reparent("t1", 0, now); err != ErrInvalidParent {
		t.Fatalf("expected ErrInvalidParent, got %v", err)
	}
	if err := task.Reparent(" t0 ", 3, now.Add(time.Minute)); err != nil {
		t.Fatalf("Reparent() error = %v", err)
	}
	if task.ParentID != "t0" || task.Order != 3 || task.IsRoot() {
		t.Fatalf("unexpected reparent state %#v", task)
	}
}

func TestTaskApplyPatchKeepsAbsentFields(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)
	due := now.Add(72 * time.Hour)
	task, err := NewTask(TaskInput{
		ID:          "t1",
		ProjectID:   "p1",
		Title:       "Launch",
		Description: "go live",
		Status:      TaskStatusBlocked,
		Priority:    PriorityHigh,
		StartAt:     &start,
		DueAt:       &due,
		IsMilestone: true,
	}, now)
	if err != nil {
		t.Fatalf("NewTask() error = %v", err)
	}

	title := "Launch v2"
	if err := task.ApplyPatch(TaskPatch{Title: &title}, now); err != nil {
		t.Fatalf("ApplyPatch(title) error = %v", err)
	}
	if task.Title != "Launch v2" || task.Description != "go live" || task.Status != TaskStatusBlocked {
		t.Fatalf("unexpected patched task %#v", task)
	}
	if task.Priority != PriorityHigh || !task.IsMilestone || task.StartAt == nil || task.DueAt == nil {
		t.Fatalf("title patch reset other fields %#v", task)
	}

	if err := task.ApplyPatch(TaskPatch{ClearStartAt: true}, now); err != nil {
		t.Fatalf("ApplyPatch(clear start) error = %v", err)
	}
	if task.StartAt != nil || task.DueAt == nil {
		t.Fatalf("expected only start cleared, got start=%v due=%v", task.StartAt, task.DueAt)
	}

	late := due.Add(time.Hour)
	if err := task.ApplyPatch(TaskPatch{StartAt: &late}, now); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	blank := " "
	if err := task.ApplyPatch(TaskPatch{Title: &blank}, now); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
}

func TestNewActivityDefaultsAndApply(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a, err := NewActivity(ActivityInput{ID: "a1", ClientID: "c1", UserID: "u1", Summary: " called "}, now)
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	if a.Type != ActivityTypeNote || a.Summary != "called" || !a.OccurredAt.Equal(now) {
		t.Fatalf("unexpected activity %#v", a)
	}
	if a.Data == nil {
		t.Fatal("expected empty data map")
	}

	summary := "left voicemail"
	occurred := now.Add(-time.Hour)
	if err := a.Apply(ActivityPayload{Type: ActivityTypeCall, Summary: &summary, OccurredAt: &occurred}, now.Add(time.Minute)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if a.Type != ActivityTypeCall || a.Summary != summary || !a.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected applied activity %#v", a)
	}
	if err := a.Apply(ActivityPayload{Type: "fax"}, now); err != ErrInvalidActivityType {
		t.Fatalf("expected ErrInvalidActivityType, got %v", err)
	}
}

func TestActivityCloneDetachesData(t *testing.T) {
	a := Activity{ID: "a1", Data: map[string]any{"k": "v"}}
	b := a.Clone()
	b.Data["k"] = "changed"
	if a.Data["k"] != "v" {
		t.Fatalf("expected original data untouched, got %#v", a.Data)
	}
}

func TestActivityChangeValidate(t *testing.T) {
	cases := []struct {
		change ActivityChange
		want   error
	}{
		{change: ActivityChange{Kind: ChangeKindCreate}, want: nil},
		{change: ActivityChange{Kind: ChangeKindUpdate}, want: ErrInvalidID},
		{change: ActivityChange{Kind: ChangeKindDelete, ActivityID: "a1"}, want: nil},
		{change: ActivityChange{Kind: "upsert"}, want: ErrInvalidChangeKind},
		{change: ActivityChange{Kind: ChangeKindCreate, Payload: ActivityPayload{Type: "fax"}}, want: ErrInvalidActivityType},
	}
	for _, tc := range cases {
		if err := tc.change.Validate(); err != tc.want {
			t.Fatalf("Validate(%#v) error = %v, want %v", tc.change, err, tc.want)
		}
	}
}

func TestNewReminderValidation(t *testing.T) {
	now := time.Now()
	if _, err := NewReminder(ReminderInput{ID: "r1", ClientID: "c1", Title: "x"}, now); err != ErrInvalidSchedule {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
	r, err := NewReminder(ReminderInput{ID: "r1", ClientID: "c1", Title: "follow up", DueAt: now}, now)
	if err != nil {
		t.Fatalf("NewReminder() error = %v", err)
	}
	if !r.Open() {
		t.Fatal("expected open reminder")
	}
	r.Complete(now)
	if r.Open() {
		t.Fatal("expected completed reminder")
	}
}

func TestDateRangeParseShiftWindow(t *testing.T) {
	if _, err := ParseDateRange("fortnight"); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	r, err := ParseDateRange(" Quarter ")
	if err != nil {
		t.Fatalf("ParseDateRange() error = %v", err)
	}
	if r != DateRangeQuarter {
		t.Fatalf("unexpected range %q", r)
	}
	if got := DateRangeYear.Shift(1); got != DateRangeWeek {
		t.Fatalf("expected wrap to week, got %q", got)
	}
	if got := DateRangeWeek.Shift(-1); got != DateRangeYear {
		t.Fatalf("expected wrap to year, got %q", got)
	}
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	from, to := DateRangeWeek.Window(now)
	if !to.Equal(now) || !from.Equal(now.AddDate(0, 0, -7)) {
		t.Fatalf("unexpected week window %s..%s", from, to)
	}
}

func TestValidateLayout(t *testing.T) {
	if err := ValidateLayout(DefaultWidgets()); err != nil {
		t.Fatalf("ValidateLayout(default) error = %v", err)
	}
	dup := []WidgetConfig{{ID: WidgetSummary}, {ID: WidgetSummary}}
	if err := ValidateLayout(dup); !errors.Is(err, ErrInvalidWidget) {
		t.Fatalf("expected ErrInvalidWidget for duplicate, got %v", err)
	}
	unknown := []WidgetConfig{{ID: "weather"}}
	if err := ValidateLayout(unknown); !errors.Is(err, ErrInvalidWidget) {
		t.Fatalf("expected ErrInvalidWidget for unknown id, got %v", err)
	}
}

func TestSortedLayoutStable(t *testing.T) {
	in := []WidgetConfig{
		{ID: WidgetMetrics, Order: 1},
		{ID: WidgetSummary, Order: 0},
		{ID: WidgetReminders, Order: 1},
	}
	got := SortedLayout(in)
	if got[0].ID != WidgetSummary || got[1].ID != WidgetMetrics || got[2].ID != WidgetReminders {
		t.Fatalf("unexpected order %#v", got)
	}
	if in[0].ID != WidgetMetrics {
		t.Fatal("expected input left untouched")
	}
}

func TestNewDashboardPreference(t *testing.T) {
	now := time.Now()
	if _, err := NewDashboardPreference("", DefaultWidgets(), DateRangeMonth, now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := NewDashboardPreference("u1", DefaultWidgets(), "decade", now); err != ErrInvalidDateRange {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	pref, err := NewDashboardPreference("u1", DefaultWidgets(), DateRangeWeek, now)
	if err != nil {
		t.Fatalf("NewDashboardPreference() error = %v", err)
	}
	if pref.UserID != "u1" || len(pref.Layout) != 5 || pref.DateRange != DateRangeWeek {
		t.Fatalf("unexpected preference %#v", pref)
	}
	def := DefaultDashboardPreference("u1", "bogus")
	if def.DateRange != DateRangeMonth {
		t.Fatalf("expected month fallback, got %q", def.DateRange)
	}
}
