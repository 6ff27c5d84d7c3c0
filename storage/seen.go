package storage

import (
	"context"
	"sync"
)

// MemorySeen is an in-process SeenStore. It is safe for concurrent use.
type MemorySeen struct {
	mu   sync.RWMutex
	urls map[string]struct{}
}

// NewMemorySeen creates a store pre-populated with urls.
func NewMemorySeen(urls ...string) *MemorySeen {
	m := &MemorySeen{urls: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		m.urls[u] = struct{}{}
	}
	return m
}

func (m *MemorySeen) Seen(_ context.Context, url string) (bool, error) {
	m.mu.RLock()
	_, ok := m.urls[url]
	m.mu.RUnlock()
	return ok, nil
}

func (m *MemorySeen) Add(_ context.Context, urls ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range urls {
		m.urls[u] = struct{}{}
	}
	return nil
}

// Len returns the number of remembered URLs.
func (m *MemorySeen) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.urls)
}
