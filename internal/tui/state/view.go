package state

import (
	"strings"

	"github.com/cristianoliveira/pharmacy-notify/internal/tui/render"
)

// View renders the TUI.
func (m *Model) View() string {
	var s strings.Builder
	s.WriteString(render.Header(m.width))
	s.WriteString("\n")
	s.WriteString(m.viewport.View())
	s.WriteString("\n")
	s.WriteString(render.Status(render.StatusState{
		State:      string(m.snap.State),
		Permission: m.snap.Permission.String(),
		Loading:    m.snap.Loading || m.loading,
		Error:      m.snap.Error,
		Unread:     len(m.records),
		Message:    m.LatestMessage(),
	}))
	s.WriteString("\n")
	s.WriteString(render.Footer())
	return s.String()
}

// updateViewportContent updates the viewport with the current records.
func (m *Model) updateViewportContent() {
	if len(m.records) == 0 {
		m.viewport.SetContent(render.Empty())
		return
	}
	now := m.opts.Now()
	rows := make([]string, 0, len(m.records))
	for i, rec := range m.records {
		rows = append(rows, render.Row(render.RowState{
			Record:   rec,
			Width:    m.width,
			Selected: i == m.cursor,
			Now:      now,
		}))
	}
	m.viewport.SetContent(strings.Join(rows, "\n"))
}
