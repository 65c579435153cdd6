// Package state holds the Bubble Tea model of the notification inbox.
package state

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cristianoliveira/pharmacy-notify/internal/backend"
	"github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/provider"
)

const (
	headerFooterLines     = 3
	defaultViewportWidth  = 100
	defaultViewportHeight = 20
)

// Inbox is the backend surface the TUI reads and mutates.
type Inbox interface {
	Unread(ctx context.Context, cred backend.Credential) ([]notification.Record, error)
	MarkRead(ctx context.Context, cred backend.Credential, id int) error
	MarkAllRead(ctx context.Context, cred backend.Credential) error
	Delete(ctx context.Context, cred backend.Credential, id int) error
}

// Provider exposes setup state and the setup action.
type Provider interface {
	Snapshot() provider.Snapshot
	Subscribe() (<-chan provider.Snapshot, func())
	Setup(ctx context.Context) error
}

// ForegroundSwitch routes pushes to in-app listeners while the inbox is open.
type ForegroundSwitch interface {
	SetForeground(active bool)
}

// Options configure a Model.
type Options struct {
	Context    context.Context
	Inbox      Inbox
	Provider   Provider
	Foreground ForegroundSwitch
	Credential backend.Credential
	Now        func() time.Time
}

// Model represents the TUI model for bubbletea.
type Model struct {
	opts Options

	records  []notification.Record
	cursor   int
	width    int
	height   int
	viewport viewport.Model
	loading  bool

	snap        provider.Snapshot
	updates     <-chan provider.Snapshot
	unsubscribe func()
	status      *errors.StatusLog
}

// NewModel creates the inbox model and switches push delivery to the
// foreground until Close.
func NewModel(opts Options) *Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Model{
		opts:     opts,
		width:    defaultViewportWidth,
		height:   defaultViewportHeight + headerFooterLines,
		viewport: viewport.New(defaultViewportWidth, defaultViewportHeight),
		status:   errors.NewStatusLog(errors.DefaultStatusLimit, opts.Now),
	}
	if opts.Provider != nil {
		m.snap = opts.Provider.Snapshot()
		m.updates, m.unsubscribe = opts.Provider.Subscribe()
	}
	if opts.Foreground != nil {
		opts.Foreground.SetForeground(true)
	}
	m.updateViewportContent()
	return m
}

// Close restores background delivery and stops listening to the provider.
func (m *Model) Close() {
	if m.opts.Foreground != nil {
		m.opts.Foreground.SetForeground(false)
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Init loads the unread list and starts following provider state.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.waitSnapshot())
}

// Update handles messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerFooterLines, 1)
		m.updateViewportContent()
		return m, nil
	case recordsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.status.Error(msg.err.Error())
			return m, nil
		}
		m.records = msg.records
		m.cursor = min(m.cursor, max(len(m.records)-1, 0))
		m.updateViewportContent()
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status.Error(msg.err.Error())
			return m, nil
		}
		m.status.Success(msg.text)
		return m, m.loadCmd()
	case snapshotMsg:
		m.snap = provider.Snapshot(msg)
		return m, m.waitSnapshot()
	case setupDoneMsg:
		if msg.err != nil {
			errors.Report(m.status, msg.err)
			return m, nil
		}
		m.status.Success("Notifications enabled")
		return m, nil
	}
	return m, nil
}

// Records returns the loaded unread records.
func (m *Model) Records() []notification.Record { return m.records }

// Cursor returns the selected row.
func (m *Model) Cursor() int { return m.cursor }

// LatestMessage returns the latest status message text.
func (m *Model) LatestMessage() string {
	if msg, ok := m.status.Latest(); ok {
		return msg.Text
	}
	return ""
}

func (m *Model) selected() (notification.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.records) {
		return notification.Record{}, false
	}
	return m.records[m.cursor], true
}
