package tui

import (
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/kundkoll/internal/domain"
	"github.com/hylla/kundkoll/internal/tasktree"
)

func (m Model) currentProject() (domain.Project, bool) {
	if len(m.projects) == 0 {
		return domain.Project{}, false
	}
	return m.projects[clamp(m.selectedProject, 0, len(m.projects)-1)], true
}

// collapsedIDs returns the sorted collapsed task ids of one project.
func (m Model) collapsedIDs(projectID string) []string {
	ids := make([]string, 0, len(m.collapsed[projectID]))
	for id, on := range m.collapsed[projectID] {
		if on {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (m Model) loadTimeline() tea.Cmd {
	project, ok := m.currentProject()
	if !ok {
		return nil
	}
	svc := m.svc
	ctx := m.ctx()
	collapsed := m.collapsedIDs(project.ID)
	return func() tea.Msg {
		rows, err := svc.TaskTimeline(ctx, project.ID, collapsed)
		return timelineLoadedMsg{projectID: project.ID, rows: rows, err: err}
	}
}

func (m Model) handleTimelineLoaded(msg timelineLoadedMsg) (tea.Model, tea.Cmd) {
	project, ok := m.currentProject()
	if !ok || project.ID != msg.projectID {
		return m, nil
	}
	if msg.err != nil {
		m.status = describeErr("load timeline failed", msg.err)
		return m, nil
	}
	if m.collapseByDefault && !m.seeded[project.ID] {
		m.seeded[project.ID] = true
		parents := map[string]bool{}
		for _, row := range msg.rows {
			if row.HasChildren {
				parents[row.Task.ID] = true
			}
		}
		if len(parents) > 0 {
			m.collapsed[project.ID] = parents
			return m, m.loadTimeline()
		}
	}
	m.rows = msg.rows
	if m.focusTaskID != "" {
		for idx, row := range m.rows {
			if row.Task.ID == m.focusTaskID {
				m.selectedRow = idx
				break
			}
		}
		m.focusTaskID = ""
	}
	m.selectedRow = clamp(m.selectedRow, 0, len(m.rows)-1)
	return m, nil
}

func (m Model) handleTimelineKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.moveUp):
		m.selectedRow = clamp(m.selectedRow-1, 0, len(m.rows)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedRow = clamp(m.selectedRow+1, 0, len(m.rows)-1)
		return m, nil
	case key.Matches(msg, m.keys.prevScope), key.Matches(msg, m.keys.nextScope):
		if len(m.projects) < 2 {
			return m, nil
		}
		delta := 1
		if key.Matches(msg, m.keys.prevScope) {
			delta = -1
		}
		m.selectedProject = wrapIndex(m.selectedProject, delta, len(m.projects))
		m.rows = nil
		m.selectedRow = 0
		return m, m.loadTimeline()
	case key.Matches(msg, m.keys.toggleCollapse):
		return m.toggleSelectedRow()
	}
	return m, nil
}

// toggleSelectedRow flips the collapse state of the selected parent and
// refetches the flattened rows, keeping the cursor on the same task.
func (m Model) toggleSelectedRow() (tea.Model, tea.Cmd) {
	project, ok := m.currentProject()
	if !ok || len(m.rows) == 0 {
		return m, nil
	}
	row := m.rows[clamp(m.selectedRow, 0, len(m.rows)-1)]
	if !row.HasChildren {
		m.status = "no subtasks"
		return m, nil
	}
	set := m.collapsed[project.ID]
	if set == nil {
		set = map[string]bool{}
		m.collapsed[project.ID] = set
	}
	if set[row.Task.ID] {
		delete(set, row.Task.ID)
		m.status = "expanded " + row.Task.Title
	} else {
		set[row.Task.ID] = true
		m.status = "collapsed " + row.Task.Title
	}
	m.focusTaskID = row.Task.ID
	return m, m.loadTimeline()
}

func (m Model) renderTimeline() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Strikethrough(true)

	project, ok := m.currentProject()
	if !ok {
		return "No projects yet.\nCreate one over the API or import a snapshot."
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(project.Name)
	if len(m.projects) > 1 {
		header += muted.Render(fmt.Sprintf("  (%d/%d)", m.selectedProject+1, len(m.projects)))
	}
	lines := []string{header}
	if len(m.rows) == 0 {
		return strings.Join(append(lines, muted.Render("(no tasks)")), "\n")
	}
	titleWidth := max(12, m.width-36)
	for idx, row := range m.rows {
		line := timelineRowText(row, titleWidth)
		switch {
		case idx == m.selectedRow:
			line = selectedStyle.Render("│ " + line)
		case row.Task.Status == domain.TaskStatusDone:
			line = "  " + doneStyle.Render(line)
		default:
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// timelineRowText renders one flattened row: indent, collapse marker,
// milestone marker, title, then the aggregate date span.
func timelineRowText(row tasktree.Row, titleWidth int) string {
	indent := strings.Repeat("  ", min(row.Depth, 8))
	marker := "  "
	switch {
	case row.HasChildren && row.Collapsed:
		marker = "▸ "
	case row.HasChildren:
		marker = "▾ "
	}
	title := row.Task.Title
	if row.Task.IsMilestone {
		title = "◆ " + title
	}
	title = truncate(title, max(1, titleWidth-2*min(row.Depth, 8)))
	span := formatDay(row.DisplayStart) + " → " + formatDay(row.DisplayDue)
	return fmt.Sprintf("%s%s%s  %s  [%s]", indent, marker, title, span, row.Task.Status)
}
