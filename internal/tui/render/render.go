// Package render draws the inbox table: header, one row per record, the
// provider status line and the footer help.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

const (
	typeWidth            = 12
	statusWidth          = 6
	titleWidth           = 28
	ageWidth             = 5
	idWidth              = 6
	spacesBetweenColumns = 8
	defaultMessageWidth  = 40
)

// RowState defines the inputs needed to render a record row.
type RowState struct {
	Record   notification.Record
	Width    int
	Selected bool
	Now      time.Time
}

// StatusState defines the inputs of the provider status line.
type StatusState struct {
	State      string
	Permission string
	Loading    bool
	Error      string
	Unread     int
	// Message is the latest action result, shown until replaced.
	Message string
}

// Header renders the table header.
func Header(width int) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ansiColorNumber(colors.Blue)))

	header := fmt.Sprintf("%-*s  %-*s  %-*s  %-*s  %-*s  %-*s",
		idWidth, "ID",
		typeWidth, "TYPE",
		statusWidth, "READ",
		titleWidth, "TITLE",
		messageWidth(width), "MESSAGE",
		ageWidth, "AGE",
	)
	return headerStyle.Render(header)
}

// Row renders a single record row.
func Row(state RowState) string {
	rowStyle := lipgloss.NewStyle()
	if state.Selected {
		rowStyle = rowStyle.Background(lipgloss.Color(ansiColorNumber(colors.Blue))).Foreground(lipgloss.Color("0"))
	}

	width := messageWidth(state.Width)
	if state.Width == 0 || width < 10 {
		width = defaultMessageWidth
	}

	row := fmt.Sprintf("%-*d  %-*s  %-*s  %-*s  %-*s  %-*s",
		idWidth, state.Record.ID,
		typeWidth, typeLabel(state.Record.Extra.Type),
		statusWidth, readIcon(state.Record.IsRead),
		titleWidth, truncate(state.Record.Title, titleWidth),
		width, truncate(state.Record.Message, width),
		ageWidth, calculateAge(state.Record.Created(), state.Now),
	)
	return rowStyle.Render(row)
}

// Empty renders the placeholder shown when there is nothing unread.
func Empty() string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("No unread notifications")
}

// Status renders the provider state line.
func Status(state StatusState) string {
	color := colors.Yellow
	switch state.State {
	case "granted":
		color = colors.Green
	case "denied", "error":
		color = colors.Red
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(ansiColorNumber(color)))

	parts := []string{
		fmt.Sprintf("push: %s", state.State),
		fmt.Sprintf("permission: %s", state.Permission),
		fmt.Sprintf("unread: %d", state.Unread),
	}
	if state.Loading {
		parts = append(parts, "setting up...")
	}
	if state.Error != "" {
		parts = append(parts, state.Error)
	}
	line := style.Render(strings.Join(parts, "  "))
	if state.Message != "" {
		line += "  " + lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(state.Message)
	}
	return line
}

// Footer renders the footer with help text.
func Footer() string {
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	help := []string{
		"j/k: move",
		"r: refresh",
		"m: mark read",
		"a: mark all read",
		"d: delete",
		"s: setup",
		"q: quit",
	}
	return helpStyle.Render(strings.Join(help, "  |  "))
}

func messageWidth(width int) int {
	totalFixedWidth := idWidth + typeWidth + statusWidth + titleWidth + ageWidth
	return width - totalFixedWidth - spacesBetweenColumns - 2
}

func typeLabel(typ string) string {
	info := notification.Lookup(typ)
	return info.Emoji + " " + info.Name
}

func readIcon(read bool) string {
	if read {
		return "○"
	}
	return "●"
}

func truncate(value string, width int) string {
	if width <= 3 || utf8.RuneCountInString(value) <= width {
		return value
	}
	return string([]rune(value)[:width-3]) + "..."
}

func calculateAge(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	if now.IsZero() {
		now = time.Now()
	}

	duration := now.Sub(t)
	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	}
	return fmt.Sprintf("%dd", int(duration.Hours()/24))
}

// ansiColorNumber extracts the color number from an ANSI escape sequence.
// Example: "\033[0;34m" -> "34"
func ansiColorNumber(ansi string) string {
	if len(ansi) < 2 {
		return ""
	}
	lastSemicolon := strings.LastIndex(ansi, ";")
	if lastSemicolon == -1 {
		return ""
	}
	return ansi[lastSemicolon+1 : len(ansi)-1]
}
