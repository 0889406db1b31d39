package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/log"
	"github.com/hylla/kundkoll/internal/activity"
	"github.com/hylla/kundkoll/internal/app"
	"github.com/hylla/kundkoll/internal/dashboard"
	"github.com/hylla/kundkoll/internal/domain"
	"github.com/hylla/kundkoll/internal/tasktree"
)

// Service is the backend the TUI reads and writes through. Both the local
// app adapter and the REST client satisfy it.
type Service interface {
	ListClients(context.Context, bool) ([]domain.Client, error)
	ListProjects(context.Context, string) ([]domain.Project, error)
	TaskTimeline(context.Context, string, []string) ([]tasktree.Row, error)
	ListClientActivities(context.Context, string) ([]domain.Activity, error)
	ApplyActivityChange(context.Context, string, domain.ActivityChange) (domain.Activity, error)
	Dashboard(context.Context, []string) (app.DashboardPage, error)
	dashboard.Saver
}

// Screen selects the active view.
type Screen int

// Screens in tab order.
const (
	ScreenTimeline Screen = iota
	ScreenActivity
	ScreenDashboard
)

var screenNames = []string{"timeline", "activity", "dashboard"}

func (s Screen) String() string {
	if int(s) < 0 || int(s) >= len(screenNames) {
		return "unknown"
	}
	return screenNames[s]
}

// ParseScreen resolves a screen by name; empty selects the timeline.
func ParseScreen(name string) (Screen, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ScreenTimeline, nil
	}
	for idx, candidate := range screenNames {
		if candidate == name {
			return Screen(idx), nil
		}
	}
	return ScreenTimeline, fmt.Errorf("unknown screen %q", name)
}

type inputMode int

const (
	modeNone inputMode = iota
	modeNewNote
	modeEditSummary
)

// dashboardReloadFields is the partial reload requested after a range change.
var dashboardReloadFields = []string{app.DashboardFieldSummary, app.DashboardFieldMetrics, app.DashboardFieldCurrentDateRange}

// Model is the kundkoll terminal UI.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error
	status string

	help help.Model
	keys keyMap

	screen   Screen
	userID   string
	userName string
	logger   *log.Logger
	now      func() time.Time
	copyText func(string) error

	collapseByDefault bool
	debounceQuiet     time.Duration

	projects        []domain.Project
	selectedProject int
	rows            []tasktree.Row
	selectedRow     int
	collapsed       map[string]map[string]bool
	seeded          map[string]bool
	focusTaskID     string

	clients          []domain.Client
	selectedClient   int
	serverActivities []domain.Activity
	entries          []activity.Display
	selectedEntry    int
	queue            *activity.Queue
	showDetail       bool
	detail           *markdownRenderer

	page           app.DashboardPage
	layout         []domain.WidgetConfig
	selectedWidget int
	dateRange      domain.DateRange
	debouncer      *dashboard.Debouncer
	saveErr        *saveErrors

	mode      inputMode
	input     textinput.Model
	editingID string
}

// saveErrors keeps the last background save failure reported by the debouncer.
type saveErrors struct {
	mu   sync.Mutex
	last error
}

func (s *saveErrors) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = err
}

func (s *saveErrors) take() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.last
	s.last = nil
	return err
}

type scopeLoadedMsg struct {
	clients  []domain.Client
	projects []domain.Project
	err      error
}

type timelineLoadedMsg struct {
	projectID string
	rows      []tasktree.Row
	err       error
}

type activitiesLoadedMsg struct {
	clientID   string
	activities []domain.Activity
	err        error
}

type changeAppliedMsg struct {
	clientID string
	change   domain.ActivityChange
	result   domain.Activity
	err      error
}

type dashboardLoadedMsg struct {
	page app.DashboardPage
	err  error
}

type rangeSavedMsg struct {
	dateRange domain.DateRange
}

type copiedMsg struct {
	id  string
	err error
}

// NewModel constructs the UI over svc.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:           svc,
		status:        "loading...",
		help:          h,
		keys:          newKeyMap(),
		userID:        "local",
		logger:        log.New(io.Discard),
		now:           time.Now,
		copyText:      defaultClipboard,
		debounceQuiet: dashboard.DefaultQuiet,
		collapsed:     map[string]map[string]bool{},
		seeded:        map[string]bool{},
		queue:         activity.NewQueue(),
		showDetail:    true,
		detail:        &markdownRenderer{},
		dateRange:     domain.DateRangeMonth,
		saveErr:       &saveErrors{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads clients, projects, and the dashboard.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadScope, m.loadDashboard(nil))
}

// Update applies one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case scopeLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.clients = msg.clients
		m.projects = msg.projects
		m.selectedClient = clamp(m.selectedClient, 0, len(m.clients)-1)
		m.selectedProject = clamp(m.selectedProject, 0, len(m.projects)-1)
		if m.status == "loading..." || m.status == "reloading..." {
			m.status = "ready"
		}
		return m, tea.Batch(m.loadTimeline(), m.loadActivities())

	case timelineLoadedMsg:
		return m.handleTimelineLoaded(msg)

	case activitiesLoadedMsg:
		if client, ok := m.currentClient(); !ok || client.ID != msg.clientID {
			return m, nil
		}
		if msg.err != nil {
			m.status = describeErr("load activities failed", msg.err)
			return m, nil
		}
		m.serverActivities = msg.activities
		m.refreshEntries()
		return m, nil

	case changeAppliedMsg:
		return m.handleChangeApplied(msg)

	case dashboardLoadedMsg:
		return m.handleDashboardLoaded(msg)

	case rangeSavedMsg:
		if err := m.saveErr.take(); err != nil {
			m.status = describeErr("save failed", err)
		} else {
			m.status = "range saved: " + string(msg.dateRange)
		}
		return m, m.loadDashboard(dashboardReloadFields)

	case copiedMsg:
		if msg.err != nil {
			m.status = describeErr("copy failed", msg.err)
			return m, nil
		}
		m.status = "copied " + msg.id
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)

	default:
		if m.mode != modeNone {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil
	}
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.debouncer.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.err = nil
		m.status = "reloading..."
		return m, tea.Batch(m.loadScope, m.loadDashboard(nil))
	case key.Matches(msg, m.keys.nextView):
		m.screen = Screen((int(m.screen) + 1) % len(screenNames))
		return m, nil
	case key.Matches(msg, m.keys.prevView):
		m.screen = Screen((int(m.screen) + len(screenNames) - 1) % len(screenNames))
		return m, nil
	}
	if m.err != nil {
		return m, nil
	}
	switch m.screen {
	case ScreenTimeline:
		return m.handleTimelineKey(msg)
	case ScreenActivity:
		return m.handleActivityKey(msg)
	default:
		return m.handleDashboardKey(msg)
	}
}

func (m Model) handleInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.editingID = ""
		m.status = "cancelled"
		return m, nil
	case "enter":
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ctx returns a context carrying the configured user for attribution.
func (m Model) ctx() context.Context {
	return app.WithActor(context.Background(), app.Actor{UserID: m.userID, DisplayName: m.userName})
}

func (m Model) loadScope() tea.Msg {
	ctx := m.ctx()
	clients, err := m.svc.ListClients(ctx, false)
	if err != nil {
		return scopeLoadedMsg{err: err}
	}
	projects, err := m.svc.ListProjects(ctx, "")
	if err != nil {
		return scopeLoadedMsg{err: err}
	}
	return scopeLoadedMsg{clients: clients, projects: projects}
}

func (m Model) loadDashboard(only []string) tea.Cmd {
	svc := m.svc
	ctx := m.ctx()
	return func() tea.Msg {
		page, err := svc.Dashboard(ctx, only)
		return dashboardLoadedMsg{page: page, err: err}
	}
}

// newModalInput constructs a focused single-line input.
func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

// View renders the active screen.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	sections := []string{m.renderTabs(), ""}
	switch m.screen {
	case ScreenTimeline:
		sections = append(sections, m.renderTimeline())
	case ScreenActivity:
		sections = append(sections, m.renderActivity())
	default:
		sections = append(sections, m.renderDashboard())
	}
	if m.mode != modeNone {
		sections = append(sections, "", m.input.View())
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, "", statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

func (m Model) renderTabs() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Render("kundkoll")
	active := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	inactive := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	parts := []string{title}
	for idx, name := range screenNames {
		if Screen(idx) == m.screen {
			parts = append(parts, active.Render("["+name+"]"))
			continue
		}
		parts = append(parts, inactive.Render(" "+name+" "))
	}
	return strings.Join(parts, "  ")
}

// clamp bounds v to [minV, maxV], returning minV when the range is empty.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// wrapIndex moves current by delta around total entries.
func wrapIndex(current, delta, total int) int {
	if total <= 0 {
		return 0
	}
	return ((current+delta)%total + total) % total
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit <= 1 {
		return string(rs[:limit])
	}
	return string(rs[:limit-1]) + "…"
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.UTC().Format("Jan 02")
}

func describeErr(prefix string, err error) string {
	return fmt.Sprintf("%s: %v", prefix, err)
}
