package state

import (
	tea "github.com/charmbracelet/bubbletea"
)

// handleKeyMsg processes keyboard input for the TUI.
func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		m.Close()
		return m, tea.Quit
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g":
		m.moveCursor(-len(m.records))
	case "G":
		m.moveCursor(len(m.records))
	case "r":
		return m, m.loadCmd()
	case "m":
		if rec, ok := m.selected(); ok {
			return m, m.markReadCmd(rec.ID)
		}
	case "a":
		if len(m.records) > 0 {
			return m, m.markAllReadCmd()
		}
	case "d":
		if rec, ok := m.selected(); ok {
			return m, m.deleteCmd(rec.ID)
		}
	case "s":
		return m, m.setupCmd()
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	if len(m.records) == 0 {
		m.cursor = 0
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.records)-1)

	if m.cursor < m.viewport.YOffset {
		m.viewport.SetYOffset(m.cursor)
	} else if m.cursor >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(m.cursor - m.viewport.Height + 1)
	}
	m.updateViewportContent()
}
