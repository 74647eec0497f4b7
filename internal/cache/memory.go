package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const defaultMemoryItems = 10000

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a process local cache. Values are stored encoded so callers
// never share mutable state through it.
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]memoryEntry
	maxItems int
	now      func() time.Time
}

func NewMemoryCache(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMemoryItems
	}
	return &MemoryCache{
		items:    make(map[string]memoryEntry),
		maxItems: maxItems,
		now:      time.Now,
	}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxItems {
		m.evictLocked()
	}
	m.items[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	return nil
}

// evictLocked drops expired entries, and one arbitrary entry if none expired.
func (m *MemoryCache) evictLocked() {
	now := m.now()
	removed := false
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
			removed = true
		}
	}
	if removed {
		return
	}
	for k := range m.items {
		delete(m.items, k)
		return
	}
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()

	if !ok {
		return ErrCacheMiss
	}
	if !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		if current, still := m.items[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"items":     m.Len(),
		"max_items": m.maxItems,
	}
}

func (m *MemoryCache) Health(context.Context) error {
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.items = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}
