// Package hooks runs user scripts at hook points. Scripts live in
// {hooks_dir}/{hook point}/, run in name order and receive the event as
// environment variables.
package hooks

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/cristianoliveira/pharmacy-notify/internal/display"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

// Hook points.
const (
	PointNotificationShown = "notification-shown"
	PointSetupComplete     = "setup-complete"
)

// Failure modes.
const (
	FailureAbort  = "abort"
	FailureWarn   = "warn"
	FailureIgnore = "ignore"
)

// Options configure a Runner.
type Options struct {
	Dir         string
	Enabled     bool
	FailureMode string
	Async       bool
	// AsyncTimeout bounds each async script. Defaults to 30s.
	AsyncTimeout time.Duration
	// MaxAsync bounds concurrently running async scripts. Defaults to 10.
	MaxAsync int
	Logger   logging.Logger
}

// Runner executes hook scripts.
type Runner struct {
	opts Options
	log  logging.Logger

	mu      sync.Mutex
	pending int
	wg      sync.WaitGroup
}

// New returns a runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.FailureMode == "" {
		opts.FailureMode = FailureWarn
	}
	if opts.AsyncTimeout <= 0 {
		opts.AsyncTimeout = 30 * time.Second
	}
	if opts.MaxAsync <= 0 {
		opts.MaxAsync = 10
	}
	return &Runner{opts: opts, log: opts.Logger.With("component", "hooks")}
}

// FromConfig builds a runner from the global configuration.
func FromConfig(log logging.Logger) *Runner {
	return New(Options{
		Dir:          config.Get("hooks_dir", ""),
		Enabled:      config.GetBool("hooks_enabled", true),
		FailureMode:  config.Get("hooks_failure_mode", FailureWarn),
		Async:        config.GetBool("hooks_async", false),
		AsyncTimeout: config.GetDuration("hooks_async_timeout", 30*time.Second),
		MaxAsync:     config.GetInt("hooks_max_async", 10),
		Logger:       log,
	})
}

// Init creates the hooks directory.
func (r *Runner) Init() error {
	if r.opts.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(r.opts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create hooks directory %s: %w", r.opts.Dir, err)
	}
	return nil
}

// Run executes the scripts of hookPoint. Only the abort failure mode
// returns script errors.
func (r *Runner) Run(ctx context.Context, hookPoint string, env map[string]string) error {
	if !r.opts.Enabled || r.opts.Dir == "" {
		return nil
	}
	scripts := r.scripts(hookPoint)
	if len(scripts) == 0 {
		return nil
	}
	r.log.Debug("running hooks", "point", hookPoint, "scripts", len(scripts))

	environ := r.environ(hookPoint, env)
	for _, script := range scripts {
		if r.opts.Async {
			r.startAsync(script, environ)
			continue
		}
		if err := r.runSync(ctx, script, environ); err != nil && r.opts.FailureMode == FailureAbort {
			return err
		}
	}
	return nil
}

// scripts returns the executable files of hookPoint sorted by name.
func (r *Runner) scripts(hookPoint string) []string {
	dir := filepath.Join(r.opts.Dir, hookPoint)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		info, err := os.Stat(path)
		if err != nil || info.Mode()&0111 == 0 {
			continue
		}
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (r *Runner) environ(hookPoint string, env map[string]string) []string {
	vars := map[string]string{
		"HOOK_POINT":     hookPoint,
		"HOOK_TIMESTAMP": time.Now().Format(time.RFC3339),
	}
	if exe, err := os.Executable(); err == nil {
		vars["PHARMACY_NOTIFY_BINARY"] = exe
	}
	for k, v := range env {
		vars[k] = v
	}
	out := os.Environ()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}

func (r *Runner) runSync(ctx context.Context, script string, environ []string) error {
	name := filepath.Base(script)
	start := time.Now()
	cmd := exec.CommandContext(ctx, script)
	cmd.Env = environ
	// Scripts may leave children holding the output pipe.
	cmd.WaitDelay = time.Second
	output, err := cmd.CombinedOutput()
	if err == nil {
		r.log.Debug("hook completed", "hook", name, "duration", time.Since(start).String())
		return nil
	}

	err = fmt.Errorf("hook %s failed: %w, output: %s", name, err, strings.TrimSpace(string(output)))
	switch r.opts.FailureMode {
	case FailureWarn, FailureAbort:
		r.log.Warn("hook failed", "hook", name, "error", err)
	}
	return err
}

func (r *Runner) startAsync(script string, environ []string) {
	name := filepath.Base(script)
	r.mu.Lock()
	if r.pending >= r.opts.MaxAsync {
		r.mu.Unlock()
		r.log.Warn("too many async hooks pending, skipping", "hook", name, "max", r.opts.MaxAsync)
		return
	}
	r.pending++
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.pending--
			r.mu.Unlock()
			r.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.AsyncTimeout)
		defer cancel()
		if err := r.runSync(ctx, script, environ); err != nil && ctx.Err() == context.DeadlineExceeded {
			r.log.Warn("async hook timed out", "hook", name, "timeout", r.opts.AsyncTimeout.String())
		}
	}()
}

// Wait blocks until every async hook has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Pending returns the number of running async hooks.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// Env renders d as hook environment variables.
func Env(d notification.Delivery) map[string]string {
	return map[string]string{
		"NOTIFICATION_TITLE":   d.Title,
		"NOTIFICATION_BODY":    d.Body,
		"NOTIFICATION_TYPE":    d.Data.Type,
		"NOTIFICATION_TAG":     d.Data.Tag,
		"NOTIFICATION_ID":      strconv.Itoa(d.Data.NotificationID),
		"NOTIFICATION_URL":     d.ClickURL(),
		"NOTIFICATION_CHANNEL": string(d.Channel),
	}
}

// Notifier runs the notification-shown hooks after next shows a
// notification. With the abort failure mode a failing hook is returned
// as the Show error.
type Notifier struct {
	next   display.Notifier
	runner *Runner
}

// Wrap returns next with hooks attached.
func Wrap(next display.Notifier, runner *Runner) *Notifier {
	return &Notifier{next: next, runner: runner}
}

func (n *Notifier) Show(ctx context.Context, d notification.Delivery) error {
	if err := n.next.Show(ctx, d); err != nil {
		return err
	}
	return n.runner.Run(ctx, PointNotificationShown, Env(d))
}
