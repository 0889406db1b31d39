package domain

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DateRange selects the reporting window of the dashboard.
type DateRange string

// DateRange values in cycling order.
const (
	DateRangeWeek    DateRange = "week"
	DateRangeMonth   DateRange = "month"
	DateRangeQuarter DateRange = "quarter"
	DateRangeYear    DateRange = "year"
)

var dateRanges = []DateRange{DateRangeWeek, DateRangeMonth, DateRangeQuarter, DateRangeYear}

// DateRanges returns all selectable ranges in cycling order.
func DateRanges() []DateRange {
	return slices.Clone(dateRanges)
}

// ParseDateRange normalizes raw input into a known range.
func ParseDateRange(raw string) (DateRange, error) {
	r := DateRange(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(dateRanges, r) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateRange, raw)
	}
	return r, nil
}

// Window returns the [from, to] interval ending at now.
func (r DateRange) Window(now time.Time) (time.Time, time.Time) {
	to := now.UTC()
	switch r {
	case DateRangeWeek:
		return to.AddDate(0, 0, -7), to
	case DateRangeQuarter:
		return to.AddDate(0, -3, 0), to
	case DateRangeYear:
		return to.AddDate(-1, 0, 0), to
	default:
		return to.AddDate(0, -1, 0), to
	}
}

// Shift moves delta steps through the cycling order, wrapping at both ends.
func (r DateRange) Shift(delta int) DateRange {
	idx := slices.Index(dateRanges, r)
	if idx < 0 {
		idx = 0
	}
	n := len(dateRanges)
	return dateRanges[((idx+delta)%n+n)%n]
}

// Widget ids rendered by the dashboard.
const (
	WidgetSummary        = "summary"
	WidgetMetrics        = "metrics"
	WidgetReminders      = "reminders"
	WidgetRecentActivity = "recent_activity"
	WidgetTasksDue       = "tasks_due"
)

var knownWidgets = []string{WidgetSummary, WidgetMetrics, WidgetReminders, WidgetRecentActivity, WidgetTasksDue}

// WidgetConfig places one dashboard tile.
type WidgetConfig struct {
	ID      string `json:"id"`
	Visible bool   `json:"visible"`
	Order   int    `json:"order"`
}

// DefaultWidgets returns the canonical layout with every tile visible.
func DefaultWidgets() []WidgetConfig {
	out := make([]WidgetConfig, 0, len(knownWidgets))
	for idx, id := range knownWidgets {
		out = append(out, WidgetConfig{ID: id, Visible: true, Order: idx})
	}
	return out
}

// ValidateLayout rejects unknown and duplicated widget ids.
func ValidateLayout(layout []WidgetConfig) error {
	seen := map[string]struct{}{}
	for idx, w := range layout {
		if !slices.Contains(knownWidgets, w.ID) {
			return fmt.Errorf("%w: layout[%d] unknown id %q", ErrInvalidWidget, idx, w.ID)
		}
		if _, ok := seen[w.ID]; ok {
			return fmt.Errorf("%w: layout[%d] duplicated id %q", ErrInvalidWidget, idx, w.ID)
		}
		seen[w.ID] = struct{}{}
	}
	return nil
}

// SortedLayout returns a copy ordered by Order, keeping input order on ties.
func SortedLayout(layout []WidgetConfig) []WidgetConfig {
	out := slices.Clone(layout)
	slices.SortStableFunc(out, func(a, b WidgetConfig) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return out
}

// DashboardPreference is the per-user dashboard state stored on the server.
type DashboardPreference struct {
	UserID    string         `json:"user_id,omitempty"`
	Layout    []WidgetConfig `json:"layout"`
	DateRange DateRange      `json:"date_range"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
}

// DefaultDashboardPreference returns the preference used before a user saves one.
func DefaultDashboardPreference(userID string, r DateRange) DashboardPreference {
	if !slices.Contains(dateRanges, r) {
		r = DateRangeMonth
	}
	return DashboardPreference{
		UserID:    strings.TrimSpace(userID),
		Layout:    DefaultWidgets(),
		DateRange: r,
	}
}

// NewDashboardPreference validates and stamps one preference write.
func NewDashboardPreference(userID string, layout []WidgetConfig, r DateRange, now time.Time) (DashboardPreference, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return DashboardPreference{}, ErrInvalidID
	}
	if !slices.Contains(dateRanges, r) {
		return DashboardPreference{}, ErrInvalidDateRange
	}
	if err := ValidateLayout(layout); err != nil {
		return DashboardPreference{}, err
	}
	return DashboardPreference{
		UserID:    userID,
		Layout:    slices.Clone(layout),
		DateRange: r,
		UpdatedAt: now.UTC(),
	}, nil
}
