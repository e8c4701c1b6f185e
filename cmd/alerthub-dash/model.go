package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"alerthub/pkg/cache"
	"alerthub/pkg/command"
	"alerthub/pkg/faults"
	"alerthub/pkg/live"
	"alerthub/pkg/protocol"
	"alerthub/pkg/snapshot"
	"alerthub/pkg/view"
)

// Backend is the slice of session.Session the dashboard drives.
type Backend interface {
	Cache() *cache.Cache
	PushState() live.State
	Health() snapshot.Health
	LastFault() (faults.Fault, bool)
	Refresh(ctx context.Context) error
	Create(ctx context.Context, source string, severity protocol.Severity, message string) (protocol.Event, error)
	Seed(ctx context.Context) (protocol.BatchResult, error)
	Import(ctx context.Context, doc command.ImportDocument) (protocol.BatchResult, error)
	Export(ctx context.Context) (command.ExportDocument, error)
}

// Tab is one of the dashboard's top-level views.
type Tab int

const (
	// DashboardTab shows KPIs and the latest events and notifications.
	DashboardTab Tab = iota
	// EventsTab lists every resident event.
	EventsTab
	// EmailsTab lists notification attempts.
	EmailsTab
	// AuditTab shows the counter grid.
	AuditTab
)

var tabNames = []string{"Dashboard", "Events", "Emails", "Audit"} //nolint:gochecknoglobals // fixed catalogue

func (t Tab) String() string {
	if int(t) < len(tabNames) {
		return tabNames[t]
	}
	return "?"
}

// mode is the active input overlay.
type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeCompose
	modeImport
)

type (
	// tickMsg refreshes connection indicators.
	tickMsg time.Time
	// cacheChangedMsg signals new cache contents.
	cacheChangedMsg struct{}
	createdMsg      struct {
		ev  protocol.Event
		err error
	}
	batchMsg struct {
		verb string
		res  protocol.BatchResult
		err  error
	}
	exportedMsg struct {
		path string
		n    int
		err  error
	}
	refreshedMsg struct{ err error }
)

// Model is the Bubble Tea model for the alerthub dashboard.
type Model struct {
	ctx     context.Context
	backend Backend
	keys    keyMap
	help    help.Model
	theme   Theme
	now     func() time.Time

	tab    Tab
	mode   mode
	width  int
	height int
	cursor int

	events   []protocol.Event
	emails   []protocol.EmailLogEntry
	stats    protocol.Stats
	hasStats bool
	push     live.State
	health   snapshot.Health
	fault    faults.Fault
	hasFault bool

	query      string
	search     textinput.Model
	compose    composeForm
	importPath textinput.Model
	exportDir  string

	notice    string
	noticeErr bool
	busy      bool
}

// newModel creates a Model on the Dashboard tab. Exports land in exportDir.
func newModel(ctx context.Context, b Backend, exportDir string) Model {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "filter events and notifications"

	importPath := textinput.New()
	importPath.Prompt = "import file: "
	importPath.Placeholder = "events.json"

	m := Model{
		ctx:        ctx,
		backend:    b,
		keys:       defaultKeyMap(),
		help:       help.New(),
		theme:      DefaultTheme(),
		now:        time.Now,
		search:     search,
		compose:    newComposeForm(),
		importPath: importPath,
		exportDir:  exportDir,
	}
	return m.syncFromCache().syncStatus()
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForChange blocks until the cache reports a mutation.
func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return cacheChangedMsg{}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.backend.Cache().Changes()), tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case cacheChangedMsg:
		m = m.syncFromCache()
		return m, waitForChange(m.backend.Cache().Changes())

	case tickMsg:
		m = m.syncStatus()
		return m, tickCmd()

	case createdMsg:
		m.busy = false
		if msg.err != nil {
			m = m.setNotice("create failed: "+msg.err.Error(), true)
			return m, nil
		}
		m = m.setNotice(fmt.Sprintf("created event #%d", msg.ev.ID), false)

	case batchMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m = m.setNotice(msg.verb+" failed: "+msg.err.Error(), true)
		case msg.res.Failed() > 0:
			m = m.setNotice(fmt.Sprintf("%s %d of %d events, %d failed", msg.verb, msg.res.Created, msg.res.Attempted, msg.res.Failed()), true)
		default:
			m = m.setNotice(fmt.Sprintf("%s %d events", msg.verb, msg.res.Created), false)
		}

	case exportedMsg:
		m.busy = false
		if msg.err != nil {
			m = m.setNotice("export failed: "+msg.err.Error(), true)
			return m, nil
		}
		m = m.setNotice(fmt.Sprintf("exported %d events to %s", msg.n, msg.path), false)

	case refreshedMsg:
		m.busy = false
		if msg.err != nil {
			m = m.setNotice("refresh failed: "+msg.err.Error(), true)
		}
		m = m.syncStatus()
	}

	return m, nil
}

func (m Model) setNotice(text string, isErr bool) Model {
	m.notice = text
	m.noticeErr = isErr
	return m
}

// syncFromCache copies the cache's current contents into the model.
func (m Model) syncFromCache() Model {
	c := m.backend.Cache()
	m.events = c.Events()
	m.emails = c.EmailLogs()
	m.stats, m.hasStats = c.Stats()
	m = m.clampCursor()
	return m
}

func (m Model) syncStatus() Model {
	m.push = m.backend.PushState()
	m.health = m.backend.Health()
	m.fault, m.hasFault = m.backend.LastFault()
	return m
}

// visibleEvents returns the filtered events.
func (m Model) visibleEvents() []protocol.Event {
	return view.FilterEvents(m.events, m.query)
}

// visibleEmails returns the filtered notification attempts.
func (m Model) visibleEmails() []protocol.EmailLogEntry {
	return view.FilterEmailLogs(m.emails, m.query)
}

func (m Model) listLen() int {
	switch m.tab {
	case EventsTab:
		return len(m.visibleEvents())
	case EmailsTab:
		return len(m.visibleEmails())
	default:
		return 0
	}
}

func (m Model) clampCursor() Model {
	n := m.listLen()
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return m
}

// handleKeyPress processes keyboard input and returns updated model with optional command.
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.mode {
	case modeSearch:
		return m.handleSearchKeys(msg)
	case modeCompose:
		return m.handleComposeKeys(msg)
	case modeImport:
		return m.handleImportKeys(msg)
	default:
		return m.handleNormalKeys(msg)
	}
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextTab):
		m.tab = (m.tab + 1) % Tab(len(tabNames))
		m.cursor = 0
	case key.Matches(msg, m.keys.PrevTab):
		m.tab = (m.tab + Tab(len(tabNames)) - 1) % Tab(len(tabNames))
		m.cursor = 0
	case key.Matches(msg, m.keys.Down):
		if m.cursor < m.listLen()-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Search):
		m.mode = modeSearch
		m.search.SetValue(m.query)
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Cancel):
		m.query = ""
		m = m.clampCursor()
	case key.Matches(msg, m.keys.Compose):
		m.mode = modeCompose
		m.compose = newComposeForm()
		return m, m.compose.Focus()
	case key.Matches(msg, m.keys.Import):
		m.mode = modeImport
		m.importPath.SetValue("")
		return m, m.importPath.Focus()
	case key.Matches(msg, m.keys.Seed):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m = m.setNotice("seeding demo events...", false)
		return m, m.seedCmd()
	case key.Matches(msg, m.keys.Export):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m = m.setNotice("exporting...", false)
		return m, m.exportCmd()
	case key.Matches(msg, m.keys.Refresh):
		m.busy = true
		return m, m.refreshCmd()
	case msg.String() >= "1" && msg.String() <= "4" && len(msg.String()) == 1:
		m.tab = Tab(msg.String()[0] - '1')
		m.cursor = 0
	}
	return m, nil
}

// handleSearchKeys filters live as the query is typed.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeNormal
		m.query = ""
		m.search.Blur()
		return m.clampCursor(), nil
	case key.Matches(msg, m.keys.Submit):
		m.mode = modeNormal
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.query = m.search.Value()
	m.cursor = 0
	return m, cmd
}

func (m Model) handleComposeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeNormal
		m.compose.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		if m.busy {
			return m, nil
		}
		source, severity, message := m.compose.Values()
		m.mode = modeNormal
		m.compose.Blur()
		m.busy = true
		m = m.setNotice("sending...", false)
		return m, m.createCmd(source, severity, message)
	}
	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg, m.keys)
	return m, cmd
}

func (m Model) handleImportKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = modeNormal
		m.importPath.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		path := m.importPath.Value()
		m.mode = modeNormal
		m.importPath.Blur()
		if path == "" || m.busy {
			return m, nil
		}
		m.busy = true
		m = m.setNotice("importing "+path+"...", false)
		return m, m.importCmd(path)
	}
	var cmd tea.Cmd
	m.importPath, cmd = m.importPath.Update(msg)
	return m, cmd
}

func (m Model) createCmd(source string, severity protocol.Severity, message string) tea.Cmd {
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		ev, err := b.Create(ctx, source, severity, message)
		return createdMsg{ev: ev, err: err}
	}
}

func (m Model) seedCmd() tea.Cmd {
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		res, err := b.Seed(ctx)
		return batchMsg{verb: "seeded", res: res, err: err}
	}
}

func (m Model) importCmd(path string) tea.Cmd {
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		f, err := os.Open(path) //nolint:gosec // user-supplied import path, intentional
		if err != nil {
			return batchMsg{verb: "imported", err: err}
		}
		doc, err := command.ParseImport(f)
		_ = f.Close()
		if err != nil {
			return batchMsg{verb: "imported", err: err}
		}
		res, err := b.Import(ctx, doc)
		return batchMsg{verb: "imported", res: res, err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	ctx, b, dir, now := m.ctx, m.backend, m.exportDir, m.now
	return func() tea.Msg {
		doc, err := b.Export(ctx)
		if err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, command.ExportFileName(now()))
		f, err := os.Create(path) //nolint:gosec // export dir chosen by the user
		if err != nil {
			return exportedMsg{err: err}
		}
		if err := command.WriteExport(f, doc); err != nil {
			_ = f.Close()
			return exportedMsg{err: err}
		}
		if err := f.Close(); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path, n: len(doc.Events)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		return refreshedMsg{err: b.Refresh(ctx)}
	}
}
