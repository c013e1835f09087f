package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"vn.io.arda/notifeed/internal/messages"
)

// KeyMap holds the feed view key bindings.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	MarkRead key.Binding
	MarkAll  key.Binding
	Reload   key.Binding
	Delete   key.Binding
	Quit     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", messages.KeyHelpNavigation)),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", messages.KeyHelpNavigation)),
		MarkRead: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", messages.KeyHelpMarkRead)),
		MarkAll:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", messages.KeyHelpMarkAll)),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", messages.KeyHelpReload)),
		Delete:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", messages.KeyHelpDelete)),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", messages.KeyHelpQuit)),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MarkRead, k.MarkAll, k.Reload, k.Delete, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down}, k.ShortHelp()}
}
