package main

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"alerthub/pkg/protocol"
)

const (
	fieldSource = iota
	fieldSeverity
	fieldMessage
	fieldCount
)

// composeForm collects a manual event: source, severity and a message capped at
// protocol.MaxMessageRunes characters.
type composeForm struct {
	source   textinput.Model
	message  textinput.Model
	severity protocol.Severity
	focus    int
}

func newComposeForm() composeForm {
	source := textinput.New()
	source.Prompt = ""
	source.Placeholder = protocol.DefaultSource
	source.CharLimit = 80

	message := textinput.New()
	message.Prompt = ""
	message.Placeholder = protocol.DefaultMessage
	message.CharLimit = protocol.MaxMessageRunes

	return composeForm{source: source, message: message, severity: protocol.SeverityInfo}
}

// Focus focuses the first field.
func (f *composeForm) Focus() tea.Cmd {
	f.focus = fieldSource
	f.message.Blur()
	return f.source.Focus()
}

// Blur releases both inputs.
func (f *composeForm) Blur() {
	f.source.Blur()
	f.message.Blur()
}

func (f *composeForm) moveFocus(delta int) tea.Cmd {
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	f.source.Blur()
	f.message.Blur()
	switch f.focus {
	case fieldSource:
		return f.source.Focus()
	case fieldMessage:
		return f.message.Focus()
	}
	return nil
}

// Values returns the entered fields. Blank ones get their defaults at dispatch.
func (f composeForm) Values() (string, protocol.Severity, string) {
	return f.source.Value(), f.severity, f.message.Value()
}

// Remaining is how many message characters may still be typed.
func (f composeForm) Remaining() int {
	return protocol.MaxMessageRunes - utf8.RuneCountInString(f.message.Value())
}

// Update routes a key to the focused field.
func (f composeForm) Update(msg tea.KeyMsg, keys keyMap) (composeForm, tea.Cmd) {
	switch {
	case msg.String() == "tab":
		return f, f.moveFocus(1)
	case msg.String() == "shift+tab":
		return f, f.moveFocus(-1)
	case key.Matches(msg, keys.Severity):
		f.severity = f.severity.Next()
		return f, nil
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldSource:
		f.source, cmd = f.source.Update(msg)
	case fieldMessage:
		f.message, cmd = f.message.Update(msg)
	case fieldSeverity:
		switch msg.String() {
		case " ", "right", "l", "down", "j":
			f.severity = f.severity.Next()
		case "left", "h", "up", "k":
			for range len(protocol.Severities) - 1 {
				f.severity = f.severity.Next()
			}
		}
	}
	return f, cmd
}

// View renders the form box.
func (f composeForm) View(theme Theme) string {
	label := func(i int, text string) string {
		style := lipgloss.NewStyle().Width(10).Foreground(theme.Muted)
		if f.focus == i {
			style = style.Foreground(theme.Primary).Bold(true)
		}
		return style.Render(text)
	}

	sevParts := make([]string, 0, len(protocol.Severities))
	for _, s := range protocol.Severities {
		style := lipgloss.NewStyle().Foreground(theme.Muted)
		if s == f.severity {
			style = lipgloss.NewStyle().Foreground(theme.SeverityColor(s)).Bold(true)
		}
		sevParts = append(sevParts, style.Render(string(s)))
	}

	counterStyle := lipgloss.NewStyle().Foreground(theme.Muted)
	if f.Remaining() == 0 {
		counterStyle = counterStyle.Foreground(theme.Error)
	}
	counter := counterStyle.Render(fmt.Sprintf("%d/%d", utf8.RuneCountInString(f.message.Value()), protocol.MaxMessageRunes))

	body := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render("New event"),
		"",
		label(fieldSource, "source")+f.source.View(),
		label(fieldSeverity, "severity")+strings.Join(sevParts, "  "),
		label(fieldMessage, "message")+f.message.View(),
		lipgloss.NewStyle().PaddingLeft(10).Render(counter),
		"",
		lipgloss.NewStyle().Foreground(theme.Muted).Render("tab next field · ctrl+s severity · enter send · esc cancel"),
	)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Padding(0, 1).
		Render(body)
}
