package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "state", "pharmacy-notify.db")
	s, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestNewSQLiteStorageRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	require.Error(t, err)
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Get(ctx, storage.KeyAuthToken)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, storage.KeyAuthToken, "first"))
	require.NoError(t, s.Set(ctx, storage.KeyAuthToken, "second"))
	v, err := s.Get(ctx, storage.KeyAuthToken)
	require.NoError(t, err)
	require.Equal(t, "second", v)

	require.NoError(t, s.Delete(ctx, storage.KeyAuthToken))
	_, err = s.Get(ctx, storage.KeyAuthToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "pharmacy-notify.db")

	s, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, storage.KeyNotificationSound, "false"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, "false", storage.GetOr(ctx, s, storage.KeyNotificationSound, "true"))
}

func TestMarkShownRing(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for _, k := range []string{"id:1", "id:2", "id:3"} {
		fresh, err := s.MarkShown(ctx, k, 2, 0)
		require.NoError(t, err)
		require.True(t, fresh, k)
	}

	fresh, err := s.MarkShown(ctx, "id:3", 2, 0)
	require.NoError(t, err)
	require.False(t, fresh)

	var count int
	require.NoError(t, s.db.Get(&count, `SELECT COUNT(*) FROM shown_notifications`))
	require.Equal(t, 2, count)

	fresh, err = s.MarkShown(ctx, "id:1", 2, 0)
	require.NoError(t, err)
	require.True(t, fresh, "oldest entry should have been trimmed")
}

func TestMarkShownTTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	fresh, err := s.MarkShown(ctx, "tag:x", 10, time.Hour)
	require.NoError(t, err)
	require.True(t, fresh)

	now = now.Add(30 * time.Minute)
	fresh, _ = s.MarkShown(ctx, "tag:x", 10, time.Hour)
	require.False(t, fresh)

	now = now.Add(time.Hour)
	fresh, _ = s.MarkShown(ctx, "tag:x", 10, time.Hour)
	require.True(t, fresh)
}

func TestForgetShownReleasesKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	fresh, err := s.MarkShown(ctx, "id:5", 10, 0)
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, s.ForgetShown(ctx, "id:5"))
	require.NoError(t, s.ForgetShown(ctx, "id:missing"))

	fresh, err = s.MarkShown(ctx, "id:5", 10, 0)
	require.NoError(t, err)
	require.True(t, fresh)
}

func TestMarkShownConcurrentCallersAgree(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.MarkShown(ctx, "id:77", 100, 0)
			if err == nil && ok {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, fresh)
}

func TestDeliveriesAndDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	rec := notification.Record{ID: 9, Title: "Invoice ready", Message: "Invoice #12", Extra: notification.Extra{Type: "invoice"}}
	p := notification.FromRecord(rec)
	require.NoError(t, s.RecordDelivery(ctx, notification.Delivery{Payload: p, Channel: notification.ChannelPoll}))
	require.NoError(t, s.RecordDelivery(ctx, notification.Delivery{Payload: p, Channel: notification.ChannelPoll}))
	require.NoError(t, s.RecordDelivery(ctx, notification.Delivery{Payload: notification.Immediate("Test", "body", "info"), Channel: notification.ChannelImmediate}))

	rows, err := s.ListDeliveries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "immediate", rows[0].Channel)
	require.Equal(t, "notification-9", rows[1].Tag)
	require.Equal(t, "invoice", rows[1].Type)
	require.False(t, rows[1].ShownAt.IsZero())

	dups, err := s.DuplicateDeliveries(ctx)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	require.Equal(t, 9, dups[0].NotificationID)
	require.Equal(t, 2, dups[0].Deliveries)
	require.Equal(t, "poll", dups[0].Channels)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.RecordDelivery(ctx, notification.Delivery{Payload: notification.Payload{Title: "old"}, Channel: notification.ChannelPoll, ShownAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, s.RecordDelivery(ctx, notification.Delivery{Payload: notification.Payload{Title: "new"}, Channel: notification.ChannelPoll}))

	n, err := s.Cleanup(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rows, err := s.ListDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "new", rows[0].Title)
}
