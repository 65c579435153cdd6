package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

// Memory is a process-local Store.
type Memory struct {
	mu         sync.Mutex
	kv         map[string]string
	shown      map[string]time.Time
	deliveries []DeliveryRow
	now        func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		kv:    make(map[string]string),
		shown: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
	return nil
}

func (m *Memory) MarkShown(_ context.Context, key string, capacity int, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if at, ok := m.shown[key]; ok && (ttl <= 0 || now.Sub(at) < ttl) {
		return false, nil
	}
	m.shown[key] = now
	if capacity > 0 && len(m.shown) > capacity {
		keys := make([]string, 0, len(m.shown))
		for k := range m.shown {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return m.shown[keys[i]].Before(m.shown[keys[j]]) })
		for _, k := range keys[:len(keys)-capacity] {
			delete(m.shown, k)
		}
	}
	return true, nil
}

func (m *Memory) ForgetShown(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shown, key)
	return nil
}

func (m *Memory) RecordDelivery(_ context.Context, d notification.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := RowFromDelivery(d)
	row.ID = int64(len(m.deliveries) + 1)
	m.deliveries = append(m.deliveries, row)
	return nil
}

func (m *Memory) ListDeliveries(_ context.Context, limit int) ([]DeliveryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeliveryRow, 0, len(m.deliveries))
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, m.deliveries[i])
	}
	return out, nil
}

func (m *Memory) DuplicateDeliveries(_ context.Context) ([]Duplicate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[int]int)
	channels := make(map[int][]string)
	for _, d := range m.deliveries {
		if d.NotificationID <= 0 {
			continue
		}
		counts[d.NotificationID]++
		if !contains(channels[d.NotificationID], d.Channel) {
			channels[d.NotificationID] = append(channels[d.NotificationID], d.Channel)
		}
	}
	var out []Duplicate
	for id, n := range counts {
		if n > 1 {
			out = append(out, Duplicate{NotificationID: id, Deliveries: n, Channels: strings.Join(channels[id], ",")})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotificationID < out[j].NotificationID })
	return out, nil
}

func (m *Memory) Cleanup(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.deliveries[:0]
	var removed int64
	for _, d := range m.deliveries {
		if d.ShownAt.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	m.deliveries = kept
	return removed, nil
}

func (m *Memory) Close() error { return nil }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
