package dedup

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPrefersBackendID(t *testing.T) {
	polled := notification.FromRecord(notification.Record{ID: 4, Title: "Offer", Message: "10% off"})
	pushed := notification.Payload{Title: "Offer!", Body: "different text", Data: notification.Data{NotificationID: 4}}
	tagged := notification.Payload{Data: notification.Data{Tag: "notification-4"}}

	assert.Equal(t, "id:4", Key(polled, CriteriaID))
	assert.Equal(t, "id:4", Key(pushed, CriteriaID))
	assert.Equal(t, "id:4", Key(tagged, CriteriaID))
}

func TestKeyFallbacks(t *testing.T) {
	withTag := notification.Payload{Title: "a", Data: notification.Data{Tag: "promo-7"}}
	assert.Equal(t, "tag:promo-7", Key(withTag, CriteriaID))

	plain := notification.Payload{Title: "a", Body: "b"}
	same := notification.Payload{Title: "a", Body: "b"}
	other := notification.Payload{Title: "a", Body: "c"}
	assert.Equal(t, Key(plain, CriteriaID), Key(same, CriteriaID))
	assert.NotEqual(t, Key(plain, CriteriaID), Key(other, CriteriaID))

	// Content criteria ignores ids
	a := notification.Payload{Title: "x", Data: notification.Data{NotificationID: 1}}
	b := notification.Payload{Title: "x", Data: notification.Data{NotificationID: 2}}
	assert.Equal(t, Key(a, CriteriaContent), Key(b, CriteriaContent))
}

func TestImmediatePayloadsNeverCollide(t *testing.T) {
	keys := BuildKeys([]notification.Payload{
		notification.Immediate("t", "m", "info"),
		notification.Immediate("t", "m", "info"),
	}, CriteriaID)
	assert.NotEqual(t, keys[0], keys[1])
}

func TestParseCriteria(t *testing.T) {
	assert.Equal(t, CriteriaContent, ParseCriteria("Content"))
	assert.Equal(t, CriteriaID, ParseCriteria("whatever"))
}

func TestMemorySet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Hour)

	for _, k := range []string{"a", "b"} {
		fresh, err := m.MarkIfNew(ctx, k)
		require.NoError(t, err)
		require.True(t, fresh)
		time.Sleep(time.Millisecond)
	}
	fresh, _ := m.MarkIfNew(ctx, "a")
	require.False(t, fresh)

	fresh, _ = m.MarkIfNew(ctx, "c")
	require.True(t, fresh)
	require.Equal(t, 2, m.cache.ItemCount())

	// "a" was the oldest and got evicted
	fresh, _ = m.MarkIfNew(ctx, "a")
	require.True(t, fresh)
}

func TestMemorySetExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0, 20*time.Millisecond)
	fresh, _ := m.MarkIfNew(ctx, "k")
	require.True(t, fresh)
	time.Sleep(40 * time.Millisecond)
	fresh, _ = m.MarkIfNew(ctx, "k")
	require.True(t, fresh)
}

func TestStoreSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemory(), 10, 0)
	fresh, err := s.MarkIfNew(ctx, "id:1")
	require.NoError(t, err)
	require.True(t, fresh)
	fresh, err = s.MarkIfNew(ctx, "id:1")
	require.NoError(t, err)
	require.False(t, fresh)
}

type fakeRedis struct {
	seen map[string]bool
	err  error
	ttl  time.Duration
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, _ interface{}, exp time.Duration) *redis.BoolCmd {
	f.ttl = exp
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if f.seen[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.seen[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if f.seen[k] {
			delete(f.seen, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisSet(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{seen: map[string]bool{}}
	r := &Redis{client: fake, ttl: time.Hour}

	fresh, err := r.MarkIfNew(ctx, "id:3")
	require.NoError(t, err)
	require.True(t, fresh)
	require.True(t, fake.seen[redisKeyPrefix+"id:3"])
	require.Equal(t, time.Hour, fake.ttl)

	fresh, err = r.MarkIfNew(ctx, "id:3")
	require.NoError(t, err)
	require.False(t, fresh)

	fake.err = errors.New("connection refused")
	_, err = r.MarkIfNew(ctx, "id:4")
	require.Error(t, err)
}

type failingSet struct{}

func (failingSet) MarkIfNew(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func (failingSet) Forget(context.Context, string) error {
	return errors.New("down")
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	p := notification.FromRecord(notification.Record{ID: 8})

	var nilFilter *Filter
	assert.True(t, nilFilter.Admit(ctx, p))
	assert.True(t, nilFilter.Admit(ctx, p))
	assert.Nil(t, NewFilter(nil, CriteriaID, nil))

	f := NewFilter(NewMemory(10, 0), CriteriaID, nil)
	assert.True(t, f.Admit(ctx, p))
	assert.False(t, f.Admit(ctx, p))

	var buf bytes.Buffer
	failing := NewFilter(failingSet{}, CriteriaID, logging.NewWriter(&buf, "debug"))
	assert.True(t, failing.Admit(ctx, p))
	assert.Contains(t, buf.String(), "dedup lookup failed")
}

func TestFilterReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	p := notification.FromRecord(notification.Record{ID: 9})

	var nilFilter *Filter
	nilFilter.Release(ctx, p)

	sets := map[string]Set{
		"memory": NewMemory(10, time.Hour),
		"store":  NewStore(storage.NewMemory(), 10, time.Hour),
		"redis":  &Redis{client: &fakeRedis{seen: map[string]bool{}}, ttl: time.Hour},
	}
	for name, set := range sets {
		t.Run(name, func(t *testing.T) {
			f := NewFilter(set, CriteriaID, nil)
			require.True(t, f.Admit(ctx, p))
			require.False(t, f.Admit(ctx, p))
			f.Release(ctx, p)
			require.True(t, f.Admit(ctx, p))
			require.False(t, f.Admit(ctx, p))
		})
	}

	var buf bytes.Buffer
	NewFilter(failingSet{}, CriteriaID, logging.NewWriter(&buf, "debug")).Release(ctx, p)
	assert.Contains(t, buf.String(), "dedup release failed")
}
