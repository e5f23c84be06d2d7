package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

type memoryKey struct {
	ruc model.RUC
	cat Category
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is the in-process Store. Expiry is lazy on Get plus the periodic
// CleanupExpired sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[memoryKey]memoryEntry
	ttls    map[Category]time.Duration

	hits    int64
	misses  int64
	expired int64

	nowFunc func() time.Time
}

// NewMemory creates an in-memory cache. Pass nil ttls to use DefaultTTLs.
func NewMemory(ttls map[Category]time.Duration) *Memory {
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	return &Memory{
		entries: make(map[memoryKey]memoryEntry),
		ttls:    ttls,
		nowFunc: time.Now,
	}
}

func (m *Memory) ttl(cat Category) time.Duration {
	if d, ok := m.ttls[cat]; ok {
		return d
	}
	return time.Hour
}

func (m *Memory) Get(_ context.Context, ruc model.RUC, cat Category) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{ruc: ruc, cat: cat}
	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, false, nil
	}
	if m.nowFunc().After(e.expiresAt) {
		delete(m.entries, key)
		m.expired++
		m.misses++
		return nil, false, nil
	}
	m.hits++
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, ruc model.RUC, cat Category, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey{ruc: ruc, cat: cat}] = memoryEntry{
		value:     value,
		expiresAt: m.nowFunc().Add(m.ttl(cat)),
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, ruc model.RUC) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if key.ruc == ruc {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *Memory) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	var dropped int
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			dropped++
		}
	}
	m.expired += int64(dropped)
	return dropped, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Entries: len(m.entries),
		Hits:    m.hits,
		Misses:  m.misses,
		Expired: m.expired,
	}, nil
}
