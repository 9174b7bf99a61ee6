package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	search    key.Binding
	wheel     key.Binding
	sort      key.Binding
	recommend key.Binding
	add       key.Binding
	addAll    key.Binding
	reload    key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		wheel:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "key notation")),
		sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "harmonic sort")),
		recommend: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "recommend")),
		add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		addAll:    key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add all")),
		reload:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.search, k.wheel, k.sort},
		{k.recommend, k.add, k.addAll},
		{k.reload, k.quit},
	}
}
