package keyboard

import "github.com/charmbracelet/bubbles/key"

type Map struct {
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Follow     key.Binding
	Debug      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func New() Map {
	return Map{
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k", "pgup"),
			key.WithHelp("up/pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down", "j", "pgdown"),
			key.WithHelp("down/pgdn", "scroll down"),
		),
		Follow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "follow logs"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "debug logs"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (m Map) ShortHelp() []key.Binding {
	return []key.Binding{m.Follow, m.Debug, m.Help, m.Quit}
}

func (m Map) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{m.ScrollUp, m.ScrollDown, m.Follow},
		{m.Debug, m.Help, m.Quit},
	}
}
