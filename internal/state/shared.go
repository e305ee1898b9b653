package state

import (
	"context"
	"log/slog"
	"sync"
)

// Shared owns the one DaemonState instance. Every read and mutation goes
// through Update or View, which hold a single mutex over the whole aggregate.
type Shared struct {
	mu    sync.Mutex
	st    *DaemonState
	store Store

	saveMu  sync.Mutex
	pending sync.WaitGroup
}

// NewShared wraps st; store may be nil for in-memory use.
func NewShared(st *DaemonState, store Store) *Shared {
	if st == nil {
		st = New()
	}
	return &Shared{st: st.normalize(), store: store}
}

// Update runs fn with exclusive access to the state.
func (s *Shared) Update(fn func(st *DaemonState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// View runs fn with the state locked. fn must not retain references.
func (s *Shared) View(fn func(st *DaemonState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

// Snapshot returns a deep copy of the current state.
func (s *Shared) Snapshot() *DaemonState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// Persist saves the current state. The snapshot is taken after acquiring the
// save lock, so a slower earlier save can never overwrite a newer one.
func (s *Shared) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.store.Save(ctx, s.Snapshot())
}

// PersistAsync saves in the background and logs failures; there is no caller
// left to report to.
func (s *Shared) PersistAsync() {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.Persist(context.Background()); err != nil {
			slog.Error("persist state", "err", err)
		}
	}()
}

// Wait blocks until every save started by PersistAsync has finished.
func (s *Shared) Wait() {
	s.pending.Wait()
}
