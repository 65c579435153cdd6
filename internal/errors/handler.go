package errors

import (
	"sync"

	"github.com/cristianoliveira/pharmacy-notify/internal/colors"
)

// ErrorHandler surfaces messages at four severities. The CLI prints them,
// the inbox keeps them for its status line.
type ErrorHandler interface {
	Error(msg string)
	Warning(msg string)
	Info(msg string)
	Success(msg string)
}

// Console is the colored terminal output behind CLIHandler.
type Console interface {
	Error(msgs ...string)
	Warning(msgs ...string)
	Info(msgs ...string)
	Success(msgs ...string)
}

type colorsConsole struct{}

func (colorsConsole) Error(msgs ...string)   { colors.Error(msgs...) }
func (colorsConsole) Warning(msgs ...string) { colors.Warning(msgs...) }
func (colorsConsole) Info(msgs ...string)    { colors.Info(msgs...) }
func (colorsConsole) Success(msgs ...string) { colors.Success(msgs...) }

// CLIHandler prints to a Console and counts the errors it printed.
type CLIHandler struct {
	out Console

	mu     sync.Mutex
	errors int
}

// NewCLIHandler returns a handler printing to out.
func NewCLIHandler(out Console) *CLIHandler {
	if out == nil {
		out = colorsConsole{}
	}
	return &CLIHandler{out: out}
}

// NewDefaultCLIHandler returns a handler printing through internal/colors.
func NewDefaultCLIHandler() *CLIHandler {
	return NewCLIHandler(nil)
}

func (h *CLIHandler) Error(msg string) {
	h.mu.Lock()
	h.errors++
	h.mu.Unlock()
	h.out.Error(msg)
}

func (h *CLIHandler) Warning(msg string) { h.out.Warning(msg) }
func (h *CLIHandler) Info(msg string)    { h.out.Info(msg) }
func (h *CLIHandler) Success(msg string) { h.out.Success(msg) }

// Errors returns how many errors were printed.
func (h *CLIHandler) Errors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.errors
}
