package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/groupsync/internal/api"
	"github.com/five82/groupsync/internal/engine"
	"github.com/five82/groupsync/internal/prefs"
	"github.com/five82/groupsync/internal/schedule"
	"github.com/five82/groupsync/internal/state"
)

const statusTTL = 6 * time.Second

// EntitySource lists the entities that can own a schedule.
type EntitySource interface {
	FetchEntities(ctx context.Context) ([]api.Entity, error)
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Engine    *engine.Engine
	Entities  EntitySource
	Initial   []api.Entity
	ThemeName string
	Prefs     prefs.Prefs
	PrefsPath string
	LogPath   string
	Logger    *slog.Logger
}

type (
	storeChangedMsg struct{}
	storeClosedMsg  struct{}
	clockMsg        time.Time
)

type entitiesMsg struct {
	entities []api.Entity
	err      error
}

type opKind int

const (
	opEnable opKind = iota
	opDisable
	opRunNow
	opRefresh
)

type opDoneMsg struct {
	op     opKind
	scope  schedule.Scope
	label  string
	preset *schedule.Preset
	err    error
}

type statusLine struct {
	text  string
	isErr bool
	at    time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	eng       *engine.Engine
	source    EntitySource
	log       *slog.Logger
	prefs     prefs.Prefs
	prefsPath string
	logPath   string

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	width    int
	height   int
	ready    bool
	showHelp bool
	modal    Modal
	status   statusLine
	now      time.Time

	// Data state
	snapshot state.Snapshot
	view     state.View
	rows     []row
	entities []api.Entity
	cursor   int
	busy     map[string]bool

	// Subscriptions
	notify      <-chan struct{}
	unsubscribe func()
	mounts      *mountSet

	// Log pane
	showLogs    bool
	logView     viewport.Model
	logLines    []string
	lastLogRead time.Time
}

// New creates the model and mounts the initial widgets.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = opts.Prefs.Theme
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	notify, unsubscribe := opts.Engine.Subscribe()
	m := Model{
		ctx:         ctx,
		eng:         opts.Engine,
		source:      opts.Entities,
		log:         logger,
		prefs:       opts.Prefs,
		prefsPath:   prefsPath,
		logPath:     opts.LogPath,
		theme:       GetTheme(themeName),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		now:         time.Now(),
		entities:    opts.Initial,
		busy:        make(map[string]bool),
		notify:      notify,
		unsubscribe: unsubscribe,
		mounts:      newMountSet(opts.Engine),
	}
	m.refresh()
	return m
}

// Close releases every mount and the store subscription.
func (m Model) Close() {
	m.mounts.closeAll()
	m.unsubscribe()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForChange(m.notify), clockCmd()}
	if len(m.entities) == 0 && m.source != nil {
		cmds = append(cmds, m.fetchEntitiesCmd())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		if !m.ready {
			m.logView = newLogViewport(msg.Width)
		}
		m.logView.Width = msg.Width
		m.ready = true
		return m, nil

	case storeChangedMsg:
		m.refresh()
		return m, waitForChange(m.notify)

	case storeClosedMsg:
		return m, nil

	case entitiesMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Loading entities failed: %v", msg.err), true)
			return m, nil
		}
		m.entities = msg.entities
		m.refresh()
		return m, nil

	case opDoneMsg:
		m.handleOpDone(msg)
		return m, nil

	case clockMsg:
		m.now = time.Time(msg)
		if !m.status.at.IsZero() && m.now.Sub(m.status.at) > statusTTL {
			m.status = statusLine{}
		}
		cmds := []tea.Cmd{clockCmd()}
		if m.showLogs && m.now.Sub(m.lastLogRead) >= logRefreshEvery {
			m.lastLogRead = m.now
			cmds = append(cmds, readLogsCmd(m.logPath))
		}
		return m, tea.Batch(cmds...)

	case logLinesMsg:
		if msg.err != nil {
			m.log.Debug("log pane read failed", "error", msg.err)
			return m, nil
		}
		atBottom := m.logView.AtBottom()
		m.logLines = msg.lines
		m.logView.SetContent(formatLogLines(m.logLines, m.theme.Styles()))
		if atBottom {
			m.logView.GotoBottom()
		}
		return m, nil
	}

	return m, nil
}

// refresh re-reads the store, recomputes the widget rows and reconciles the
// engine mounts with what is rendered.
func (m *Model) refresh() {
	m.snapshot, m.view = m.eng.Snapshot()
	m.rows = buildRows(m.snapshot, m.view, m.entities)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}

	var active *schedule.Scope
	if m.view.HasActive {
		s := m.view.Active.Scope
		active = &s
	}
	m.mounts.sync(m.rows, active)
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = statusLine{text: text, isErr: isErr, at: m.now}
}

func (m *Model) handleOpDone(msg opDoneMsg) {
	delete(m.busy, msg.scope.Key())

	if msg.err != nil {
		m.log.Warn("operation failed", "scope", msg.scope.Key(), "error", msg.err)
		switch msg.op {
		case opEnable:
			m.setStatus(fmt.Sprintf("Enable %s failed: %v", msg.label, msg.err), true)
		case opDisable:
			m.setStatus(fmt.Sprintf("Disable %s failed: %v", msg.label, msg.err), true)
		case opRunNow:
			m.setStatus(fmt.Sprintf("Sync now failed: %v", msg.err), true)
		case opRefresh:
			m.setStatus(fmt.Sprintf("Refresh failed: %v", msg.err), true)
		}
		return
	}

	switch msg.op {
	case opEnable:
		m.setStatus(fmt.Sprintf("%s schedule enabled", msg.label), false)
		if msg.preset != nil {
			m.prefs.LastPreset = msg.preset
			m.savePrefs()
		}
	case opDisable:
		m.setStatus(fmt.Sprintf("%s schedule disabled", msg.label), false)
	case opRunNow:
		m.setStatus("Sync started", false)
	case opRefresh:
		m.setStatus("Refreshed", false)
	}
}

func (m *Model) savePrefs() {
	m.prefs.Theme = m.theme.Name
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.log.Warn("save prefs failed", "error", err)
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if !closed {
			m.modal = modal
			return m, cmd
		}
		m.modal = nil
		if d, ok := modal.(*presetDialog); ok && d.submitted != nil {
			cmd = tea.Batch(cmd, m.enableCmd(d.scope, m.labelFor(d.scope), *d.submitted))
		}
		return m, cmd
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.logView.SetContent(formatLogLines(m.logLines, m.theme.Styles()))
		return m, nil

	case key.Matches(msg, m.keys.ToggleLogs):
		m.showLogs = !m.showLogs
		if m.showLogs {
			m.lastLogRead = m.now
			return m, readLogsCmd(m.logPath)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		r, ok := m.selected()
		if !ok || m.busy[r.Scope.Key()] {
			return m, nil
		}
		if r.Present {
			return m, m.disableCmd(r.Scope, r.Label)
		}
		m.modal = newPresetDialog(r.Scope, "Enable "+r.Label+" auto-sync", m.prefs.Preset())
		return m, nil

	case key.Matches(msg, m.keys.Preset):
		r, ok := m.selected()
		if !ok || m.busy[r.Scope.Key()] {
			return m, nil
		}
		m.modal = newPresetDialog(r.Scope, "Schedule for "+r.Label, m.prefs.Preset())
		return m, nil

	case key.Matches(msg, m.keys.RunNow):
		return m, m.runNowCmd()

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.refreshCmd(), m.fetchEntitiesCmd())
	}

	if m.showLogs {
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) selected() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) labelFor(scope schedule.Scope) string {
	if scope.IsGlobal() {
		return "Global"
	}
	if name := m.entityLabels()[scope.Key()]; name != "" {
		return name
	}
	return scope.EntityID
}

func (m Model) entityLabels() map[string]string {
	out := make(map[string]string, len(m.entities))
	for _, e := range m.entities {
		out[schedule.Entity(e.ID).Key()] = e.DisplayName()
	}
	return out
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return storeClosedMsg{}
		}
		return storeChangedMsg{}
	}
}

func clockCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func (m Model) enableCmd(scope schedule.Scope, label string, preset schedule.Preset) tea.Cmd {
	m.busy[scope.Key()] = true
	eng, ctx := m.eng, m.ctx
	return func() tea.Msg {
		err := eng.Enable(ctx, scope, preset)
		return opDoneMsg{op: opEnable, scope: scope, label: label, preset: &preset, err: err}
	}
}

func (m Model) disableCmd(scope schedule.Scope, label string) tea.Cmd {
	m.busy[scope.Key()] = true
	eng, ctx := m.eng, m.ctx
	return func() tea.Msg {
		err := eng.Disable(ctx, scope)
		return opDoneMsg{op: opDisable, scope: scope, label: label, err: err}
	}
}

func (m Model) runNowCmd() tea.Cmd {
	eng, ctx := m.eng, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: opRunNow, err: eng.RunNow(ctx)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	eng, ctx := m.eng, m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: opRefresh, err: eng.RefreshAll(ctx)}
	}
}

func (m Model) fetchEntitiesCmd() tea.Cmd {
	if m.source == nil {
		return nil
	}
	source, ctx := m.source, m.ctx
	return func() tea.Msg {
		entities, err := source.FetchEntities(ctx)
		return entitiesMsg{entities: entities, err: err}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m Model) renderMain() string {
	styles := m.theme.Styles()

	sections := []string{m.renderHeader(), ""}

	pending := pendingKeys(m.snapshot, m.now, m.eng.PollInterval())
	width := labelWidth(m.rows)
	for i, r := range m.rows {
		sections = append(sections, renderRow(r, styles, i == m.cursor, m.busy[r.Scope.Key()], pending[r.Scope.Key()], width))
	}
	if m.view.GlobalEnabled {
		sections = append(sections, styles.FaintText.Render("  Entity schedules are suspended while the global schedule is on."))
	}

	if timer := renderTimer(m.view, m.entityLabels(), styles); timer != "" {
		sections = append(sections, "", lipgloss.PlaceHorizontal(m.width, lipgloss.Right, timer))
	}

	if m.showLogs {
		sections = append(sections, styles.Pane.Width(m.width).Render(m.logView.View()))
	}

	body := strings.Join(sections, "\n")
	footer := m.renderStatus(styles) + "\n" + styles.Footer.Width(m.width).Render(m.help.View(m.keys))

	gap := m.height - lipgloss.Height(body) - lipgloss.Height(footer)
	if gap > 0 {
		body += strings.Repeat("\n", gap)
	}
	return body + "\n" + footer
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)
	health := m.eng.Health()

	parts := []string{bg.Render("groupsync", styles.Logo)}
	if health.IsOffline() {
		parts = append(parts, bg.Render("● OFFLINE", styles.DangerText))
	} else {
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	}
	if m.view.GlobalEnabled {
		parts = append(parts, bg.Render("Global: ON", styles.AccentText))
	} else {
		parts = append(parts, bg.Render("Global: OFF", styles.MutedText))
	}
	if !health.LastSuccess.IsZero() {
		parts = append(parts, bg.Render("Updated "+health.LastSuccess.Format("15:04:05"), styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, 2))
}

func (m Model) renderStatus(styles Styles) string {
	if m.status.text == "" {
		return ""
	}
	if m.status.isErr {
		return styles.DangerText.Render(m.status.text)
	}
	return styles.SuccessText.Render(m.status.text)
}

func (m Model) renderHelp() string {
	h := m.help
	h.ShowAll = true
	box := m.theme.Styles().Dialog.Render(h.View(m.keys))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
