package tui

import (
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/kundkoll/internal/activity"
	"github.com/hylla/kundkoll/internal/domain"
)

func (m Model) currentClient() (domain.Client, bool) {
	if len(m.clients) == 0 {
		return domain.Client{}, false
	}
	return m.clients[clamp(m.selectedClient, 0, len(m.clients)-1)], true
}

func (m Model) selectedDisplay() (activity.Display, bool) {
	if len(m.entries) == 0 {
		return activity.Display{}, false
	}
	return m.entries[clamp(m.selectedEntry, 0, len(m.entries)-1)], true
}

func (m Model) loadActivities() tea.Cmd {
	client, ok := m.currentClient()
	if !ok {
		return nil
	}
	svc := m.svc
	ctx := m.ctx()
	return func() tea.Msg {
		list, err := svc.ListClientActivities(ctx, client.ID)
		return activitiesLoadedMsg{clientID: client.ID, activities: list, err: err}
	}
}

// refreshEntries rebuilds the display list from the last server list and the
// changes still queued for the current client.
func (m *Model) refreshEntries() {
	client, ok := m.currentClient()
	if !ok {
		m.entries = nil
		m.selectedEntry = 0
		return
	}
	m.entries = activity.Merge(m.serverActivities, m.queue.Changes(client.ID), client.ID, m.userID, activity.MergeOptions{Now: m.now})
	m.selectedEntry = clamp(m.selectedEntry, 0, len(m.entries)-1)
}

func (m Model) handleActivityKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.moveUp):
		m.selectedEntry = clamp(m.selectedEntry-1, 0, len(m.entries)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedEntry = clamp(m.selectedEntry+1, 0, len(m.entries)-1)
		return m, nil
	case key.Matches(msg, m.keys.prevScope), key.Matches(msg, m.keys.nextScope):
		if len(m.clients) < 2 {
			return m, nil
		}
		delta := 1
		if key.Matches(msg, m.keys.prevScope) {
			delta = -1
		}
		m.selectedClient = wrapIndex(m.selectedClient, delta, len(m.clients))
		m.serverActivities = nil
		m.selectedEntry = 0
		m.refreshEntries()
		return m, m.loadActivities()
	case key.Matches(msg, m.keys.toggleDetail):
		m.showDetail = !m.showDetail
		return m, nil
	case key.Matches(msg, m.keys.newNote):
		if _, ok := m.currentClient(); !ok {
			m.status = "no client selected"
			return m, nil
		}
		m.mode = modeNewNote
		m.input = newModalInput("note: ", "what happened?", "", 500)
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.editSummary):
		entry, ok := m.editableEntry()
		if !ok {
			return m, nil
		}
		m.mode = modeEditSummary
		m.editingID = entry.ID
		m.input = newModalInput("summary: ", "", entry.Summary, 500)
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.deleteEntry):
		entry, ok := m.editableEntry()
		if !ok {
			return m, nil
		}
		return m.submitChange(domain.ActivityChange{Kind: domain.ChangeKindDelete, ActivityID: entry.ID})
	case key.Matches(msg, m.keys.copyID):
		entry, ok := m.selectedDisplay()
		if !ok {
			return m, nil
		}
		write := m.copyText
		id := entry.ID
		return m, func() tea.Msg {
			return copiedMsg{id: id, err: write(id)}
		}
	}
	return m, nil
}

// editableEntry returns the selected entry when it exists on the server.
func (m *Model) editableEntry() (activity.Display, bool) {
	entry, ok := m.selectedDisplay()
	if !ok {
		m.status = "no activity selected"
		return activity.Display{}, false
	}
	if activity.IsTempID(entry.ID) {
		m.status = "entry is still being saved"
		return activity.Display{}, false
	}
	return entry, true
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	mode := m.mode
	target := m.editingID
	m.mode = modeNone
	m.editingID = ""
	if value == "" {
		m.status = "summary is required"
		return m, nil
	}
	switch mode {
	case modeNewNote:
		return m.submitChange(domain.ActivityChange{
			Kind:    domain.ChangeKindCreate,
			Payload: domain.ActivityPayload{Type: domain.ActivityTypeNote, Summary: &value},
		})
	case modeEditSummary:
		return m.submitChange(domain.ActivityChange{
			Kind:       domain.ChangeKindUpdate,
			ActivityID: target,
			Payload:    domain.ActivityPayload{Summary: &value},
		})
	}
	return m, nil
}

// submitChange queues change so it shows immediately, then sends it.
func (m Model) submitChange(change domain.ActivityChange) (tea.Model, tea.Cmd) {
	client, ok := m.currentClient()
	if !ok {
		m.status = "no client selected"
		return m, nil
	}
	change.ClientID = client.ID
	queued, err := m.queue.Enqueue(change)
	if err != nil {
		m.status = describeErr("invalid change", err)
		return m, nil
	}
	m.refreshEntries()
	m.status = "saving..."
	svc := m.svc
	ctx := m.ctx()
	return m, func() tea.Msg {
		result, err := svc.ApplyActivityChange(ctx, client.ID, queued)
		return changeAppliedMsg{clientID: client.ID, change: queued, result: result, err: err}
	}
}

// handleChangeApplied drops the change from the queue either way. On success
// the server result replaces the pending entry before the list is reloaded.
func (m Model) handleChangeApplied(msg changeAppliedMsg) (tea.Model, tea.Cmd) {
	m.queue.Confirm(msg.change.ID)
	current, ok := m.currentClient()
	onCurrent := ok && current.ID == msg.clientID
	if msg.err != nil {
		m.status = describeErr("save failed", msg.err)
		if onCurrent {
			m.refreshEntries()
		}
		return m, nil
	}
	m.status = "saved"
	if !onCurrent {
		return m, nil
	}
	m.serverActivities = applyConfirmed(m.serverActivities, msg.change.Kind, msg.result)
	m.refreshEntries()
	return m, m.loadActivities()
}

// applyConfirmed folds one server-confirmed write into a copy of list.
func applyConfirmed(list []domain.Activity, kind domain.ChangeKind, result domain.Activity) []domain.Activity {
	idx := slices.IndexFunc(list, func(a domain.Activity) bool { return a.ID == result.ID })
	switch kind {
	case domain.ChangeKindCreate:
		if idx >= 0 {
			return list
		}
		return append([]domain.Activity{result}, list...)
	case domain.ChangeKindUpdate:
		if idx < 0 {
			return list
		}
		out := slices.Clone(list)
		out[idx] = result
		return out
	default:
		if idx < 0 {
			return list
		}
		return slices.Delete(slices.Clone(list), idx, idx+1)
	}
}

func (m Model) renderActivity() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	pendingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)

	client, ok := m.currentClient()
	if !ok {
		return "No clients yet.\nCreate one over the API or import a snapshot."
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(accent).Render(client.Name)
	if client.Company != "" {
		header += muted.Render("  " + client.Company)
	}
	if n := len(m.queue.Changes(client.ID)); n > 0 {
		header += pendingStyle.Render(fmt.Sprintf("  %d pending", n))
	}
	lines := []string{header}
	if len(m.entries) == 0 {
		return strings.Join(append(lines, muted.Render("(no activity)")), "\n")
	}
	summaryWidth := max(12, m.width-34)
	for idx, entry := range m.entries {
		line := fmt.Sprintf("%s  %-7s  %s", entry.OccurredAt.UTC().Format("2006-01-02 15:04"), entry.Type, truncate(entry.Summary, summaryWidth))
		if entry.IsPending {
			line += " " + pendingStyle.Render("(pending)")
		}
		if idx == m.selectedEntry {
			line = selectedStyle.Render("│ ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if m.showDetail {
		if entry, ok := m.selectedDisplay(); ok {
			if detail := m.detail.render(activityMarkdown(entry), max(24, m.width-4)); detail != "" {
				lines = append(lines, "", detail)
			}
		}
	}
	return strings.Join(lines, "\n")
}
