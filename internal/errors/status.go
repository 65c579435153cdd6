package errors

import (
	"sync"
	"time"
)

// Severity ranks a status entry.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeveritySuccess
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "success"
	}
}

// Entry is one line of the status history.
type Entry struct {
	Text     string
	Severity Severity
	At       time.Time
}

// DefaultStatusLimit is how many entries a StatusLog keeps by default.
const DefaultStatusLimit = 50

// StatusLog is an ErrorHandler that keeps the most recent messages for the
// inbox status line instead of printing them.
type StatusLog struct {
	limit int
	now   func() time.Time

	mu      sync.RWMutex
	entries []Entry
}

// NewStatusLog keeps up to limit entries, stamped with now.
func NewStatusLog(limit int, now func() time.Time) *StatusLog {
	if limit <= 0 {
		limit = DefaultStatusLimit
	}
	if now == nil {
		now = time.Now
	}
	return &StatusLog{limit: limit, now: now}
}

func (l *StatusLog) Error(msg string)   { l.add(msg, SeverityError) }
func (l *StatusLog) Warning(msg string) { l.add(msg, SeverityWarning) }
func (l *StatusLog) Info(msg string)    { l.add(msg, SeverityInfo) }
func (l *StatusLog) Success(msg string) { l.add(msg, SeveritySuccess) }

func (l *StatusLog) add(msg string, sev Severity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Text: msg, Severity: sev, At: l.now()})
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = append(l.entries[:0], l.entries[over:]...)
	}
}

// Latest returns the newest entry.
func (l *StatusLog) Latest() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a copy of the history, oldest first.
func (l *StatusLog) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Clear empties the history.
func (l *StatusLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
