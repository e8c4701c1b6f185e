package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"alerthub/pkg/cache"
	"alerthub/pkg/command"
	"alerthub/pkg/faults"
	"alerthub/pkg/live"
	"alerthub/pkg/protocol"
	"alerthub/pkg/snapshot"
)

type fakeBackend struct {
	cache   *cache.Cache
	push    live.State
	health  snapshot.Health
	created []protocol.CreateEventRequest
	nextID  int64
	failAll bool
	seeded  int
	imports []command.ImportDocument
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{cache: cache.New(80), nextID: 100}
}

func (f *fakeBackend) Cache() *cache.Cache             { return f.cache }
func (f *fakeBackend) PushState() live.State           { return f.push }
func (f *fakeBackend) Health() snapshot.Health         { return f.health }
func (f *fakeBackend) LastFault() (faults.Fault, bool) { return faults.Fault{}, false }
func (f *fakeBackend) Refresh(context.Context) error   { return nil }

func (f *fakeBackend) Create(_ context.Context, source string, sev protocol.Severity, msg string) (protocol.Event, error) {
	if f.failAll {
		return protocol.Event{}, &protocol.ValidationError{StatusCode: 400}
	}
	req := command.BuildRequest(source, sev, msg)
	f.created = append(f.created, req)
	f.nextID++
	ev := protocol.Event{ID: f.nextID, Source: req.Source, Severity: req.Severity, Message: req.Message}
	f.cache.Ingest(ev)
	return ev, nil
}

func (f *fakeBackend) Seed(context.Context) (protocol.BatchResult, error) {
	f.seeded++
	n := len(command.SeedEvents())
	return protocol.BatchResult{Attempted: n, Created: n}, nil
}

func (f *fakeBackend) Import(_ context.Context, doc command.ImportDocument) (protocol.BatchResult, error) {
	f.imports = append(f.imports, doc)
	return protocol.BatchResult{Attempted: len(doc.Events), Created: len(doc.Events) - 1}, nil
}

func (f *fakeBackend) Export(context.Context) (command.ExportDocument, error) {
	return command.BuildExport(f.cache.Snapshot(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)), nil
}

func seededBackend() *fakeBackend {
	b := newFakeBackend()
	b.cache.ApplySnapshot(protocol.Snapshot{
		Events: []protocol.Event{
			{ID: 3, Source: "router-core", Severity: protocol.SeverityCritical, Channel: protocol.ChannelTCP, Message: "Microcorte de conectividad"},
			{ID: 2, Source: "sensor-b", Severity: protocol.SeverityWarning, Channel: protocol.ChannelHTTP, Message: "Latencia elevada detectada"},
			{ID: 1, Source: "sensor-a", Severity: protocol.SeverityInfo, Channel: protocol.ChannelTCP, Message: "Heartbeat OK"},
		},
		EmailLogs: []protocol.EmailLogEntry{
			{ID: 1, EventID: 3, Status: protocol.EmailSkipped, Detail: "SMTP no configurado"},
		},
		Stats: protocol.Stats{
			TotalEvents: 3,
			Severity:    map[protocol.Severity]int{"critical": 1, "warning": 1, "info": 1},
			Channels:    map[protocol.Channel]int{protocol.ChannelTCP: 2, protocol.ChannelHTTP: 1},
			Email:       protocol.EmailCounts{OK: 0, Fail: 1},
		}.Normalize(),
	})
	return b
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

// runCmd executes cmd and feeds its message back into the model.
func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestStatusBar(t *testing.T) {
	tests := []struct {
		name         string
		push         live.State
		online       bool
		wantContains []string
	}{
		{"everything down", live.StateClosed, false, []string{"push: closed", "backend: offline", "3/80"}},
		{"reconnecting", live.StateConnecting, true, []string{"push: connecting", "backend: online"}},
		{"healthy", live.StateOpen, true, []string{"push: open", "backend: online"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := seededBackend()
			b.push = tt.push
			b.health = snapshot.Health{Online: tt.online}
			m := newModel(context.Background(), b, t.TempDir())
			bar := m.renderStatusBar()
			for _, want := range tt.wantContains {
				if !strings.Contains(bar, want) {
					t.Errorf("status bar missing %q: %s", want, bar)
				}
			}
		})
	}
}

func TestTabsCycle(t *testing.T) {
	m := newModel(context.Background(), seededBackend(), t.TempDir())
	if m.tab != DashboardTab {
		t.Fatalf("initial tab = %v", m.tab)
	}
	m = press(t, m, "tab", "tab", "tab")
	if m.tab != AuditTab {
		t.Errorf("tab = %v, want Audit", m.tab)
	}
	m = press(t, m, "tab")
	if m.tab != DashboardTab {
		t.Errorf("tab = %v, want wrap to Dashboard", m.tab)
	}
	m = press(t, m, "2")
	if m.tab != EventsTab {
		t.Errorf("tab = %v, want Events", m.tab)
	}
}

func TestDashboardShowsKPIsAndRecent(t *testing.T) {
	m := newModel(context.Background(), seededBackend(), t.TempDir())
	out := m.View()
	for _, want := range []string{"Total", "Critical", "0 / 1", "Microcorte de conectividad", "SMTP no configurado"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestSearchFiltersLive(t *testing.T) {
	m := newModel(context.Background(), seededBackend(), t.TempDir())
	m = press(t, m, "2", "/")
	if m.mode != modeSearch {
		t.Fatalf("mode = %v, want search", m.mode)
	}
	m = typeText(t, m, "SENSOR")
	if got := len(m.visibleEvents()); got != 2 {
		t.Errorf("visible events = %d, want 2", got)
	}
	m = press(t, m, "enter")
	if m.mode != modeNormal || m.query != "SENSOR" {
		t.Errorf("after enter: mode %v query %q", m.mode, m.query)
	}
	out := m.View()
	if strings.Contains(out, "Microcorte") {
		t.Error("filtered view still shows non-matching event")
	}
	m = press(t, m, "esc")
	if m.query != "" || len(m.visibleEvents()) != 3 {
		t.Errorf("esc did not clear the filter: %q", m.query)
	}
}

func TestCursorClamps(t *testing.T) {
	m := newModel(context.Background(), seededBackend(), t.TempDir())
	m = press(t, m, "2", "j", "j", "j", "j")
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want clamped at 2", m.cursor)
	}
	m = press(t, m, "k", "k", "k")
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestComposeSendsEvent(t *testing.T) {
	b := seededBackend()
	m := newModel(context.Background(), b, t.TempDir())
	m = press(t, m, "n")
	if m.mode != modeCompose {
		t.Fatalf("mode = %v, want compose", m.mode)
	}
	m = typeText(t, m, "router-edge")
	m = press(t, m, "ctrl+s", "ctrl+s", "tab", "tab")
	m = typeText(t, m, "Enlace caído")

	next, cmd := m.Update(keyMsg("enter"))
	m = next.(Model)
	if m.mode != modeNormal || !m.busy {
		t.Fatalf("after submit: mode %v busy %v", m.mode, m.busy)
	}
	m = runCmd(t, m, cmd)

	if len(b.created) != 1 {
		t.Fatalf("created %d events, want 1", len(b.created))
	}
	req := b.created[0]
	if req.Source != "router-edge" || req.Severity != protocol.SeverityError || req.Message != "Enlace caído" {
		t.Errorf("request = %+v", req)
	}
	if m.busy || !strings.Contains(m.notice, "created event #101") {
		t.Errorf("notice = %q busy = %v", m.notice, m.busy)
	}
}

func TestComposeBlankUsesDefaults(t *testing.T) {
	b := newFakeBackend()
	m := newModel(context.Background(), b, t.TempDir())
	m = press(t, m, "n")
	next, cmd := m.Update(keyMsg("enter"))
	m = next.(Model)
	_ = runCmd(t, m, cmd)
	if len(b.created) != 1 || b.created[0].Source != protocol.DefaultSource || b.created[0].Message != protocol.DefaultMessage {
		t.Errorf("created = %+v", b.created)
	}
}

func TestComposeMessageLimit(t *testing.T) {
	f := newComposeForm()
	_ = f.Focus()
	f.moveFocus(2)
	for range protocol.MaxMessageRunes + 20 {
		f, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}}, defaultKeyMap())
	}
	if f.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", f.Remaining())
	}
	if !strings.Contains(f.View(DefaultTheme()), "300/300") {
		t.Error("counter not shown at the limit")
	}
}

func TestComposeFailureShowsError(t *testing.T) {
	b := newFakeBackend()
	b.failAll = true
	m := newModel(context.Background(), b, t.TempDir())
	m = press(t, m, "n")
	next, cmd := m.Update(keyMsg("enter"))
	m = runCmd(t, next.(Model), cmd)
	if !m.noticeErr || !strings.Contains(m.notice, "create failed") {
		t.Errorf("notice = %q (err %v)", m.notice, m.noticeErr)
	}
}

func TestSeedAndImport(t *testing.T) {
	b := newFakeBackend()
	m := newModel(context.Background(), b, t.TempDir())

	next, cmd := m.Update(keyMsg("s"))
	m = runCmd(t, next.(Model), cmd)
	if b.seeded != 1 || !strings.Contains(m.notice, "seeded 5 events") {
		t.Errorf("seeded = %d, notice %q", b.seeded, m.notice)
	}

	path := filepath.Join(t.TempDir(), "in.json")
	if err := os.WriteFile(path, []byte(`{"events":[{"message":"a"},{"message":"b"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m = press(t, m, "i")
	m = typeText(t, m, path)
	next, cmd = m.Update(keyMsg("enter"))
	m = runCmd(t, next.(Model), cmd)
	if len(b.imports) != 1 || len(b.imports[0].Events) != 2 {
		t.Fatalf("imports = %+v", b.imports)
	}
	if !m.noticeErr || !strings.Contains(m.notice, "imported 1 of 2 events, 1 failed") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	m := newModel(context.Background(), seededBackend(), dir)
	m.now = func() time.Time { return time.UnixMilli(1700000000000) }

	next, cmd := m.Update(keyMsg("e"))
	m = runCmd(t, next.(Model), cmd)
	path := filepath.Join(dir, "alerthub-export-1700000000000.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("export file: %v (notice %q)", err, m.notice)
	}
	var doc command.ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil || len(doc.Events) != 3 {
		t.Errorf("export = %+v, %v", doc, err)
	}
}

func TestCacheChangeUpdatesModel(t *testing.T) {
	b := newFakeBackend()
	m := newModel(context.Background(), b, t.TempDir())
	b.cache.Ingest(protocol.Event{ID: 9, Source: "s", Severity: protocol.SeverityInfo, Message: "pushed"})

	cmd := waitForChange(b.cache.Changes())
	next, _ := m.Update(cmd())
	m = next.(Model)
	if len(m.events) != 1 || m.events[0].ID != 9 {
		t.Errorf("events = %+v", m.events)
	}
}

func TestAuditGrid(t *testing.T) {
	m := newModel(context.Background(), seededBackend(), t.TempDir())
	m = press(t, m, "4")
	out := m.View()
	for _, want := range []string{"Info", "Warning", "Error", "Critical", "TCP", "HTTP", "Email OK", "Email Fail"} {
		if !strings.Contains(out, want) {
			t.Errorf("audit missing %q", want)
		}
	}
}

func TestRobotMode(t *testing.T) {
	data, err := robotMode(seededBackend())
	if err != nil {
		t.Fatalf("robotMode: %v", err)
	}
	var snap robotSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Events) != 3 || snap.KPIs.Critical != 1 || len(snap.Audit) != 8 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestQuit(t *testing.T) {
	m := newModel(context.Background(), newFakeBackend(), t.TempDir())
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
