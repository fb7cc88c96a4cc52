package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextField key.Binding
	Mode      key.Binding
	Depth     key.Binding
	Run       key.Binding
	OCR       key.Binding
	Ask       key.Binding
	Export    key.Binding
	Clear     key.Binding
	ScrollUp  key.Binding
	ScrollDn  key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	NextField: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch field"),
	),
	Mode: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "input type"),
	),
	Depth: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("C-d", "depth"),
	),
	Run: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("C-r", "run analysis"),
	),
	OCR: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("C-o", "extract text"),
	),
	Ask: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "ask"),
	),
	Export: key.NewBinding(
		key.WithKeys("ctrl+e"),
		key.WithHelp("C-e", "export pdf"),
	),
	Clear: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("C-x", "clear all"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDn: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "quit"),
	),
}
