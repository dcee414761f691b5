package tui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Send     key.Binding
	Forget   key.Binding
	Continue key.Binding
	Models   key.Binding
	TempUp   key.Binding
	TempDown key.Binding
	CtxUp    key.Binding
	CtxDown  key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Forget: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("C-f", "forget"),
		),
		Continue: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "continue"),
		),
		Models: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "model"),
		),
		TempUp: key.NewBinding(
			key.WithKeys("ctrl+up"),
			key.WithHelp("C-↑/↓", "temperature"),
		),
		TempDown: key.NewBinding(
			key.WithKeys("ctrl+down"),
		),
		CtxUp: key.NewBinding(
			key.WithKeys("ctrl+right"),
			key.WithHelp("C-←/→", "context length"),
		),
		CtxDown: key.NewBinding(
			key.WithKeys("ctrl+left"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h", "f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Forget, k.Continue, k.Models, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Forget, k.Continue},
		{k.Models, k.TempUp, k.CtxUp},
		{k.Help, k.Quit},
	}
}
