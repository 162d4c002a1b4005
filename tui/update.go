package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.refresh()
		case "j", "down":
			if m.selectedRow < len(m.rows())-1 {
				m.selectedRow++
				m.refresh()
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
				m.refresh()
			}
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			m.selectedRow = 0
			m.refresh()
		case "p":
			m.registry.SetPaused(!m.snapshot.Paused)
			m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.refresh()
		return m, tickCmd()
	}

	return m, nil
}
