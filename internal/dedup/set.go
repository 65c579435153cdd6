package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"
)

// Backend names accepted by dedup_backend.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	redisKeyPrefix = "pharmacy-notify:shown:"
)

// Set remembers shown keys.
type Set interface {
	// MarkIfNew records key and reports whether it had not been seen.
	MarkIfNew(ctx context.Context, key string) (bool, error)
	// Forget removes key so it can be claimed again.
	Forget(ctx context.Context, key string) error
}

// Filter gates payloads through a Set. A nil Filter admits everything,
// which is the legacy behaviour of re-notifying on every poll.
type Filter struct {
	set      Set
	criteria Criteria
	log      logging.Logger
}

// NewFilter returns a filter over set. A nil set yields a nil filter.
func NewFilter(set Set, criteria Criteria, log logging.Logger) *Filter {
	if set == nil {
		return nil
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Filter{set: set, criteria: criteria, log: log}
}

// Admit reports whether p should be shown. Set errors admit the payload:
// a duplicate is better than a lost notification.
func (f *Filter) Admit(ctx context.Context, p notification.Payload) bool {
	if f == nil {
		return true
	}
	key := Key(p, f.criteria)
	fresh, err := f.set.MarkIfNew(ctx, key)
	if err != nil {
		f.log.Warn("dedup lookup failed", "key", key, "error", err)
		return true
	}
	if !fresh {
		f.log.Debug("suppressed duplicate notification", "key", key)
	}
	return fresh
}

// Release undoes an Admit for p when nothing was displayed, so the next
// channel or poll may show it.
func (f *Filter) Release(ctx context.Context, p notification.Payload) {
	if f == nil {
		return
	}
	key := Key(p, f.criteria)
	if err := f.set.Forget(ctx, key); err != nil {
		f.log.Warn("dedup release failed", "key", key, "error", err)
	}
}

// Memory is a process-local set with TTL and bounded size.
type Memory struct {
	mu       sync.Mutex
	cache    *gocache.Cache
	ttl      time.Duration
	capacity int
}

// NewMemory returns a memory set. ttl <= 0 keeps keys until evicted by capacity.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	expiration, cleanup := ttl, 10*time.Minute
	if expiration <= 0 {
		// Nothing expires, so no janitor goroutine is needed.
		expiration, cleanup = gocache.NoExpiration, 0
	}
	return &Memory{
		cache:    gocache.New(expiration, cleanup),
		ttl:      expiration,
		capacity: capacity,
	}
}

func (m *Memory) MarkIfNew(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.cache.Add(key, time.Now().UnixNano(), m.ttl); err != nil {
		return false, nil
	}
	if m.capacity > 0 && m.cache.ItemCount() > m.capacity {
		m.evictOldest()
	}
	return true, nil
}

func (m *Memory) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(key)
	return nil
}

func (m *Memory) evictOldest() {
	var (
		oldestKey string
		oldestAt  int64
	)
	for k, item := range m.cache.Items() {
		at, _ := item.Object.(int64)
		if oldestKey == "" || at < oldestAt {
			oldestKey, oldestAt = k, at
		}
	}
	if oldestKey != "" {
		m.cache.Delete(oldestKey)
	}
}

// Store is a set persisted in the local state database, shared by every
// process on the machine.
type Store struct {
	ring     storage.Ring
	capacity int
	ttl      time.Duration
}

// NewStore returns a set over ring.
func NewStore(ring storage.Ring, capacity int, ttl time.Duration) *Store {
	return &Store{ring: ring, capacity: capacity, ttl: ttl}
}

func (s *Store) MarkIfNew(ctx context.Context, key string) (bool, error) {
	return s.ring.MarkShown(ctx, key, s.capacity, s.ttl)
}

func (s *Store) Forget(ctx context.Context, key string) error {
	return s.ring.ForgetShown(ctx, key)
}

// setNXer is the subset of the redis client used by Redis.
type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a set shared across devices through a Redis server.
type Redis struct {
	client setNXer
	ttl    time.Duration
}

// NewRedis returns a set using client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) MarkIfNew(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

func (r *Redis) Forget(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// FromConfig builds the set named by dedup_backend. It returns a nil set
// for "none". The returned closer releases backend connections.
func FromConfig(ring storage.Ring) (Set, func() error, error) {
	capacity := config.GetInt("dedup_capacity", 500)
	ttl := config.GetDuration("dedup_ttl", 24*time.Hour)
	noop := func() error { return nil }

	switch strings.ToLower(config.Get("dedup_backend", BackendSQLite)) {
	case BackendNone:
		return nil, noop, nil
	case BackendMemory:
		return NewMemory(capacity, ttl), noop, nil
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     config.Get("redis_addr", "127.0.0.1:6379"),
			Password: config.Get("redis_password", ""),
			DB:       config.GetInt("redis_db", 0),
		})
		return NewRedis(client, ttl), client.Close, nil
	case BackendSQLite:
		if ring == nil {
			return nil, noop, fmt.Errorf("dedup: sqlite backend requires a store")
		}
		return NewStore(ring, capacity, ttl), noop, nil
	default:
		return nil, noop, fmt.Errorf("dedup: unknown backend %q", config.Get("dedup_backend", ""))
	}
}
