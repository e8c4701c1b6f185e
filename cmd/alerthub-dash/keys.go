package main

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the dashboard's global bindings.
type keyMap struct {
	Quit     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Search   key.Binding
	Compose  key.Binding
	Seed     key.Binding
	Import   key.Binding
	Export   key.Binding
	Refresh  key.Binding
	Down     key.Binding
	Up       key.Binding
	Cancel   key.Binding
	Submit   key.Binding
	Severity key.Binding
	Field    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		NextTab:  key.NewBinding(key.WithKeys("tab", "l", "right"), key.WithHelp("tab", "next tab")),
		PrevTab:  key.NewBinding(key.WithKeys("shift+tab", "h", "left"), key.WithHelp("shift+tab", "prev tab")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Compose:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new event")),
		Seed:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "seed demo")),
		Import:   key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "import")),
		Export:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Down:     key.NewBinding(key.WithKeys("j", "down")),
		Up:       key.NewBinding(key.WithKeys("k", "up")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Severity: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "severity")),
		Field:    key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextTab, k.Search, k.Compose, k.Seed, k.Import, k.Export, k.Refresh, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Submit, k.Cancel, k.Field, k.Severity}}
}
