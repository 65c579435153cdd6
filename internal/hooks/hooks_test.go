package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, point, name, body string) string {
	t.Helper()
	hookDir := filepath.Join(dir, point)
	require.NoError(t, os.MkdirAll(hookDir, 0755))
	path := filepath.Join(hookDir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

type nopNotifier struct{ shown int }

func (n *nopNotifier) Show(context.Context, notification.Delivery) error {
	n.shown++
	return nil
}

func TestRunPassesEnvironmentInOrder(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	writeScript(t, dir, PointNotificationShown, "20-second.sh", `echo "second $NOTIFICATION_ID" >> `+out)
	writeScript(t, dir, PointNotificationShown, "10-first.sh", `echo "first $HOOK_POINT $NOTIFICATION_TITLE" >> `+out)
	// Not executable
	require.NoError(t, os.WriteFile(filepath.Join(dir, PointNotificationShown, "00-skip.sh"), []byte("#!/bin/sh\necho skip >> "+out), 0644))

	r := New(Options{Dir: dir, Enabled: true})
	d := notification.Delivery{
		Payload: notification.FromRecord(notification.Record{ID: 12, Title: "Order"}),
		Channel: notification.ChannelPoll,
	}
	require.NoError(t, r.Run(context.Background(), PointNotificationShown, Env(d)))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"first notification-shown Order", "second 12"}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestFailureModes(t *testing.T) {
	tests := []struct {
		mode    string
		wantErr bool
	}{
		{FailureAbort, true},
		{FailureWarn, false},
		{FailureIgnore, false},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			dir := t.TempDir()
			writeScript(t, dir, PointSetupComplete, "fail.sh", "exit 3")
			r := New(Options{Dir: dir, Enabled: true, FailureMode: tt.mode})
			err := r.Run(context.Background(), PointSetupComplete, nil)
			if tt.wantErr {
				assert.ErrorContains(t, err, "fail.sh")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDisabledAndMissingDir(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, PointSetupComplete, "fail.sh", "exit 1")

	disabled := New(Options{Dir: dir, Enabled: false, FailureMode: FailureAbort})
	assert.NoError(t, disabled.Run(context.Background(), PointSetupComplete, nil))

	missing := New(Options{Dir: filepath.Join(dir, "nope"), Enabled: true, FailureMode: FailureAbort})
	assert.NoError(t, missing.Run(context.Background(), PointSetupComplete, nil))
}

func TestAsyncHooks(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "async.txt")
	writeScript(t, dir, PointSetupComplete, "a.sh", "echo done >> "+out)
	writeScript(t, dir, PointSetupComplete, "b.sh", "exec sleep 5")

	r := New(Options{Dir: dir, Enabled: true, Async: true, AsyncTimeout: 100 * time.Millisecond})
	start := time.Now()
	require.NoError(t, r.Run(context.Background(), PointSetupComplete, nil))
	r.Wait()

	assert.Less(t, time.Since(start), 4*time.Second, "slow hook is killed at the timeout")
	assert.Equal(t, 0, r.Pending())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(data))
}

func TestWrapRunsAfterShow(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, PointNotificationShown, "fail.sh", "exit 1")

	next := &nopNotifier{}
	n := Wrap(next, New(Options{Dir: dir, Enabled: true, FailureMode: FailureAbort}))
	err := n.Show(context.Background(), notification.Delivery{Payload: notification.Payload{Title: "x"}})
	assert.Error(t, err)
	assert.Equal(t, 1, next.shown)
}

func TestFromConfigAndInit(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))
	t.Setenv(config.EnvPrefix+"DOTENV_PATH", filepath.Join(tmp, "none.env"))
	t.Setenv(config.EnvPrefix+"HOOKS_FAILURE_MODE", "ignore")
	t.Setenv(config.EnvPrefix+"HOOKS_MAX_ASYNC", "3")
	config.Load()

	r := FromConfig(nil)
	assert.Equal(t, FailureIgnore, r.opts.FailureMode)
	assert.Equal(t, 3, r.opts.MaxAsync)
	require.NoError(t, r.Init())

	info, err := os.Stat(filepath.Join(tmp, "config", "pharmacy-notify", "hooks"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
