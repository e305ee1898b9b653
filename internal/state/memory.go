package state

import (
	"context"
	"sync"
)

// MemoryStore keeps the last saved state in memory. It backs tests and
// daemons started with state.driver=memory.
type MemoryStore struct {
	mu    sync.Mutex
	saved *DaemonState
	saves int
}

// Load returns a copy of the last saved state, or an empty state.
func (m *MemoryStore) Load(_ context.Context) (*DaemonState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return New(), nil
	}
	return m.saved.Clone(), nil
}

// Save records a copy of st.
func (m *MemoryStore) Save(_ context.Context, st *DaemonState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = st.Clone()
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
