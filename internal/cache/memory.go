package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

// Memory is an in-process Store. Expired entries are kept until
// overwritten so stale reads can still serve them during an outage.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	value, fresh, ok := m.GetStale(context.Background(), key)
	if !ok || !fresh {
		return nil, false
	}
	return value, true
}

func (m *Memory) GetStale(_ context.Context, key string) ([]byte, bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, false
	}
	fresh := m.now().Sub(entry.storedAt) < entry.ttl
	return entry.value, fresh, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, storedAt: m.now(), ttl: ttl}
}
