package tui

import (
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/kundkoll/internal/dashboard"
	"github.com/hylla/kundkoll/internal/domain"
)

var widgetTitles = map[string]string{
	domain.WidgetSummary:        "Summary",
	domain.WidgetMetrics:        "Metrics",
	domain.WidgetReminders:      "Reminders",
	domain.WidgetRecentActivity: "Recent activity",
	domain.WidgetTasksDue:       "Tasks due",
}

// handleDashboardLoaded merges a full or partial page. The first page carrying
// preferences seeds the layout and the debouncer; later pages never overwrite
// local layout edits.
func (m Model) handleDashboardLoaded(msg dashboardLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.status = describeErr("load dashboard failed", msg.err)
		return m, nil
	}
	page := msg.page
	if page.Summary != nil {
		m.page.Summary = page.Summary
	}
	if page.Metrics != nil {
		m.page.Metrics = page.Metrics
	}
	if page.Reminders != nil {
		m.page.Reminders = page.Reminders
	}
	if page.RecentActivities != nil {
		m.page.RecentActivities = page.RecentActivities
	}
	if page.CurrentDateRange != "" {
		m.page.CurrentDateRange = page.CurrentDateRange
	}
	if page.Preferences != nil && m.debouncer == nil {
		pref := *page.Preferences
		if pref.UserID == "" {
			pref.UserID = m.userID
		}
		if len(pref.Layout) == 0 {
			pref.Layout = domain.DefaultWidgets()
		}
		m.page.Preferences = &pref
		m.layout = domain.SortedLayout(pref.Layout)
		if pref.DateRange != "" {
			m.dateRange = pref.DateRange
		}
		record := m.saveErr.record
		m.debouncer = dashboard.NewDebouncer(m.svc, pref, dashboard.Options{
			Quiet:   m.debounceQuiet,
			Logger:  m.logger,
			OnError: record,
		})
	}
	return m, nil
}

func (m Model) handleDashboardKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.moveUp):
		m.selectedWidget = clamp(m.selectedWidget-1, 0, len(m.layout)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedWidget = clamp(m.selectedWidget+1, 0, len(m.layout)-1)
		return m, nil
	}
	if m.debouncer == nil {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.toggleWidget):
		if len(m.layout) == 0 {
			return m, nil
		}
		m.layout = toggleWidget(m.layout, m.selectedWidget)
		m.debouncer.SetLayout(m.layout)
		return m, nil
	case key.Matches(msg, m.keys.widgetUp), key.Matches(msg, m.keys.widgetDown):
		delta := 1
		if key.Matches(msg, m.keys.widgetUp) {
			delta = -1
		}
		layout, selected, moved := moveWidget(m.layout, m.selectedWidget, delta)
		if !moved {
			return m, nil
		}
		m.layout = layout
		m.selectedWidget = selected
		m.debouncer.SetLayout(m.layout)
		return m, nil
	case key.Matches(msg, m.keys.rangePrev), key.Matches(msg, m.keys.rangeNext):
		delta := 1
		if key.Matches(msg, m.keys.rangePrev) {
			delta = -1
		}
		m.dateRange = m.dateRange.Shift(delta)
		m.status = "saving range..."
		d := m.debouncer
		r := m.dateRange
		return m, func() tea.Msg {
			d.SetDateRange(r)
			return rangeSavedMsg{dateRange: r}
		}
	}
	return m, nil
}

// toggleWidget returns a copy of layout with the visibility of idx flipped.
func toggleWidget(layout []domain.WidgetConfig, idx int) []domain.WidgetConfig {
	out := slices.Clone(layout)
	if idx < 0 || idx >= len(out) {
		return out
	}
	out[idx].Visible = !out[idx].Visible
	return out
}

// moveWidget swaps idx with its neighbour and renumbers Order to match the
// new positions.
func moveWidget(layout []domain.WidgetConfig, idx, delta int) ([]domain.WidgetConfig, int, bool) {
	target := idx + delta
	if idx < 0 || idx >= len(layout) || target < 0 || target >= len(layout) {
		return layout, idx, false
	}
	out := slices.Clone(layout)
	out[idx], out[target] = out[target], out[idx]
	for i := range out {
		out[i].Order = i
	}
	return out, target, true
}

func (m Model) renderDashboard() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)

	if m.debouncer == nil {
		return muted.Render("loading dashboard...")
	}
	rangeLine := fmt.Sprintf("range: %s", m.dateRange)
	if m.page.CurrentDateRange != "" && m.page.CurrentDateRange != m.dateRange {
		rangeLine += muted.Render(fmt.Sprintf("  (server: %s)", m.page.CurrentDateRange))
	}
	if m.debouncer.Pending() {
		rangeLine += muted.Render("  layout unsaved")
	}
	lines := []string{titleStyle.Render("Dashboard") + "  " + rangeLine, ""}
	for idx, w := range m.layout {
		check := "[x]"
		if !w.Visible {
			check = "[ ]"
		}
		line := fmt.Sprintf("%s %s", check, widgetTitle(w.ID))
		if w.Visible {
			if body := m.widgetBody(w.ID); body != "" {
				line += muted.Render("  " + body)
			}
		}
		if idx == m.selectedWidget {
			line = selectedStyle.Render("│ ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func widgetTitle(id string) string {
	if title, ok := widgetTitles[id]; ok {
		return title
	}
	return id
}

// widgetBody renders the one-line content of a visible widget.
func (m Model) widgetBody(id string) string {
	switch id {
	case domain.WidgetSummary:
		s := m.page.Summary
		if s == nil {
			return ""
		}
		return fmt.Sprintf("%d clients • %d active projects • %d open tasks (%d overdue)", s.Clients, s.ActiveProjects, s.OpenTasks, s.OverdueTasks)
	case domain.WidgetMetrics:
		mt := m.page.Metrics
		if mt == nil {
			return ""
		}
		return fmt.Sprintf("%d activities • %d new clients • %d tasks done", mt.Activities, mt.NewClients, mt.TasksCompleted)
	case domain.WidgetReminders:
		if s := m.page.Summary; s != nil {
			return fmt.Sprintf("%d open", s.OpenReminders)
		}
		return fmt.Sprintf("%d due", len(m.page.Reminders))
	case domain.WidgetRecentActivity:
		if len(m.page.RecentActivities) == 0 {
			return "none"
		}
		latest := m.page.RecentActivities[0]
		return truncate(string(latest.Type)+": "+latest.Summary, 48)
	case domain.WidgetTasksDue:
		if s := m.page.Summary; s != nil {
			return fmt.Sprintf("%d overdue", s.OverdueTasks)
		}
	}
	return ""
}
