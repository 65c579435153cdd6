package state

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/provider"
)

// recordsLoadedMsg carries the result of an unread fetch.
type recordsLoadedMsg struct {
	records []notification.Record
	err     error
}

// actionDoneMsg reports a finished mark/delete call.
type actionDoneMsg struct {
	text string
	err  error
}

// snapshotMsg is a provider state change.
type snapshotMsg provider.Snapshot

// setupDoneMsg reports the end of a setup run.
type setupDoneMsg struct {
	err error
}

func (m *Model) loadCmd() tea.Cmd {
	if m.opts.Inbox == nil {
		return nil
	}
	m.loading = true
	ctx, inbox, cred := m.opts.Context, m.opts.Inbox, m.opts.Credential
	return func() tea.Msg {
		records, err := inbox.Unread(ctx, cred)
		return recordsLoadedMsg{records: records, err: err}
	}
}

func (m *Model) markReadCmd(id int) tea.Cmd {
	ctx, inbox, cred := m.opts.Context, m.opts.Inbox, m.opts.Credential
	return func() tea.Msg {
		if err := inbox.MarkRead(ctx, cred, id); err != nil {
			return actionDoneMsg{err: fmt.Errorf("mark %d as read: %w", id, err)}
		}
		return actionDoneMsg{text: fmt.Sprintf("Marked %d as read", id)}
	}
}

func (m *Model) markAllReadCmd() tea.Cmd {
	ctx, inbox, cred := m.opts.Context, m.opts.Inbox, m.opts.Credential
	return func() tea.Msg {
		if err := inbox.MarkAllRead(ctx, cred); err != nil {
			return actionDoneMsg{err: fmt.Errorf("mark all as read: %w", err)}
		}
		return actionDoneMsg{text: "Marked all as read"}
	}
}

func (m *Model) deleteCmd(id int) tea.Cmd {
	ctx, inbox, cred := m.opts.Context, m.opts.Inbox, m.opts.Credential
	return func() tea.Msg {
		if err := inbox.Delete(ctx, cred, id); err != nil {
			return actionDoneMsg{err: fmt.Errorf("delete %d: %w", id, err)}
		}
		return actionDoneMsg{text: fmt.Sprintf("Deleted %d", id)}
	}
}

func (m *Model) setupCmd() tea.Cmd {
	if m.opts.Provider == nil {
		return nil
	}
	ctx, p := m.opts.Context, m.opts.Provider
	return func() tea.Msg {
		return setupDoneMsg{err: p.Setup(ctx)}
	}
}

// waitSnapshot blocks until the provider publishes a new state.
func (m *Model) waitSnapshot() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}
