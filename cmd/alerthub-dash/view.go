package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"alerthub/pkg/live"
	"alerthub/pkg/protocol"
	"alerthub/pkg/view"
)

// View implements tea.Model.
func (m Model) View() string {
	var body string
	switch m.mode {
	case modeCompose:
		body = m.compose.View(m.theme)
	default:
		body = m.renderTab()
	}

	parts := []string{m.renderStatusBar(), m.renderTabs(), body}
	switch m.mode {
	case modeSearch:
		parts = append(parts, m.search.View())
	case modeImport:
		parts = append(parts, m.importPath.View())
	}
	if m.notice != "" {
		style := lipgloss.NewStyle().Foreground(m.theme.Success)
		if m.noticeErr {
			style = style.Foreground(m.theme.Error)
		}
		parts = append(parts, style.Render(m.notice))
	}
	parts = append(parts, m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderStatusBar renders push state, backend health, cache fill and the active filter.
func (m Model) renderStatusBar() string {
	theme := m.theme

	var push string
	switch m.push {
	case live.StateOpen:
		push = lipgloss.NewStyle().Foreground(theme.Success).Render("push: open")
	case live.StateConnecting:
		push = lipgloss.NewStyle().Foreground(theme.Warning).Render("push: connecting")
	default:
		push = lipgloss.NewStyle().Foreground(theme.Error).Render("push: closed")
	}

	var backend string
	if m.health.Online {
		backend = lipgloss.NewStyle().Foreground(theme.Success).Render("backend: online")
	} else {
		backend = lipgloss.NewStyle().Foreground(theme.Error).Render("backend: offline")
	}

	parts := []string{
		push,
		" | ", backend,
		" | Events: ",
		lipgloss.NewStyle().Foreground(theme.Primary).Render(fmt.Sprintf("%d/%d", len(m.events), m.backend.Cache().Capacity())),
	}
	if !m.health.LastSuccess.IsZero() {
		parts = append(parts, " | synced ", m.health.LastSuccess.Format("15:04:05"))
	}
	if m.query != "" {
		parts = append(parts, " | filter: ", lipgloss.NewStyle().Foreground(theme.Warning).Render(m.query))
	}
	if m.hasFault {
		parts = append(parts, " | ", lipgloss.NewStyle().Foreground(theme.Muted).Render(
			fmt.Sprintf("last fault: %s/%s", m.fault.Component, m.fault.Kind)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}

func (m Model) renderTabs() string {
	items := make([]string, 0, len(tabNames))
	for i, name := range tabNames {
		label := fmt.Sprintf(" %d %s ", i+1, name)
		style := lipgloss.NewStyle().Foreground(m.theme.Muted)
		if Tab(i) == m.tab {
			style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(m.theme.Primary)
		}
		items = append(items, style.Render(label))
	}
	return lipgloss.NewStyle().PaddingBottom(1).Render(lipgloss.JoinHorizontal(lipgloss.Left, items...))
}

func (m Model) renderTab() string {
	switch m.tab {
	case EventsTab:
		return m.renderEventList(m.visibleEvents(), true)
	case EmailsTab:
		return m.renderEmailList(m.visibleEmails(), true)
	case AuditTab:
		return m.renderAudit()
	default:
		return m.renderDashboard()
	}
}

// renderDashboard shows the KPI boxes and the latest five events and notifications.
func (m Model) renderDashboard() string {
	kpis := view.ComputeKPIs(m.stats)
	boxes := lipgloss.JoinHorizontal(lipgloss.Top,
		m.kpiBox("Total", strconv.Itoa(kpis.Total), m.theme.Primary),
		m.kpiBox("Critical", strconv.Itoa(kpis.Critical), m.theme.Critical),
		m.kpiBox("Error", strconv.Itoa(kpis.Error), m.theme.Error),
		m.kpiBox("Email ok / fail", kpis.EmailRatio(), m.theme.Success),
	)
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.Secondary)
	return lipgloss.JoinVertical(lipgloss.Left,
		boxes,
		title.Render("Latest events"),
		m.renderEventList(view.Recent(m.visibleEvents(), view.RecentCount), false),
		title.Render("Latest notifications"),
		m.renderEmailList(view.Recent(m.visibleEmails(), view.RecentCount), false),
	)
}

func (m Model) kpiBox(label, value string, color lipgloss.Color) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(18).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Foreground(m.theme.Muted).Render(label),
			lipgloss.NewStyle().Bold(true).Foreground(color).Render(value),
		))
}

// listWindow returns the slice bounds that keep the cursor on screen.
func (m Model) listWindow(n int) (int, int) {
	rows := m.height - 8
	if rows <= 0 || rows >= n {
		return 0, n
	}
	start := max(0, m.cursor-rows+1)
	return start, start + rows
}

func (m Model) renderEventList(events []protocol.Event, selectable bool) string {
	if len(events) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("  no events")
	}
	start, end := 0, len(events)
	if selectable {
		start, end = m.listWindow(len(events))
	}
	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(m.renderEventLine(events[i], selectable && i == m.cursor))
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderEventLine(ev protocol.Event, selected bool) string {
	sev := lipgloss.NewStyle().Width(9).Foreground(m.theme.SeverityColor(ev.Severity)).Render(string(ev.Severity))
	ch := lipgloss.NewStyle().Width(5).Foreground(m.theme.TCP).Render(view.ChannelLabel(ev.Channel))
	line := fmt.Sprintf("#%-5d %s %s %s %-16s %s", ev.ID, ev.CreatedAt, sev, ch, ev.Source, ev.Message)
	if selected {
		return lipgloss.NewStyle().Bold(true).Render("▸ " + line)
	}
	return "  " + line
}

func (m Model) renderEmailList(logs []protocol.EmailLogEntry, selectable bool) string {
	if len(logs) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("  no notifications")
	}
	start, end := 0, len(logs)
	if selectable {
		start, end = m.listWindow(len(logs))
	}
	var b strings.Builder
	for i := start; i < end; i++ {
		l := logs[i]
		color := m.theme.Error
		if l.Status == protocol.EmailSent {
			color = m.theme.Success
		}
		status := lipgloss.NewStyle().Width(8).Foreground(color).Render(string(l.Status))
		prefix := "  "
		if selectable && i == m.cursor {
			prefix = "▸ "
		}
		fmt.Fprintf(&b, "%s%s event #%-5d %s %s", prefix, l.CreatedAt, l.EventID, status, l.Detail)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderAudit lays the eight counters out four per row.
func (m Model) renderAudit() string {
	if !m.hasStats {
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("  waiting for the first snapshot")
	}
	cards := view.Audit(m.stats)
	rows := make([]string, 0, 2)
	for i := 0; i < len(cards); i += 4 {
		cells := make([]string, 0, 4)
		for _, c := range cards[i:min(i+4, len(cards))] {
			cells = append(cells, m.kpiBox(c.Label, strconv.Itoa(c.Value), m.theme.ToneColor(c.Tone)))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
