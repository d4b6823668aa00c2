package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			m.watch.close()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case startedMsg:
		if msg.err != nil {
			m.startErr = msg.err
			m.watch.close()
			return m, tea.Quit
		}
	case snapshotMsg:
		m.snapshot = msg.snapshot
		if m.snapshot.State.Terminal() {
			m.watch.close()
			return m, tea.Quit
		}
		return m, m.watch.next()
	}
	return m, nil
}
