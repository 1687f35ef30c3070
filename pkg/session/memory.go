package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements an in-memory session store.
// It is safe for concurrent use by multiple goroutines.
//
// If TTL is configured, a background goroutine removes sessions that have
// not been reloaded within the TTL. For multi-instance deployments use
// RedisStore instead.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]State
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryStore creates an in-memory session store with no TTL.
// Sessions are kept until overwritten or deleted.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]State),
	}
}

// NewMemoryStoreWithTTL creates an in-memory session store with automatic
// TTL-based cleanup. The cleanup goroutine must be stopped with Stop() when
// the store is no longer needed.
func NewMemoryStoreWithTTL(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	store := &MemoryStore{
		sessions:      make(map[string]State),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}

	go store.runCleanup()

	return store
}

// Stop shuts down the background cleanup goroutine. Calling Stop multiple
// times or on a store without TTL is safe and does nothing.
func (s *MemoryStore) Stop() {
	if s.cleanupTicker == nil {
		return
	}

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.stopped {
		return
	}

	close(s.stopCleanup)
	<-s.cleanupDone
	s.cleanupTicker.Stop()
	s.stopped = true
}

// Close stops the cleanup goroutine. It satisfies the same shutdown
// interface as RedisStore so callers can tear either store down uniformly.
func (s *MemoryStore) Close() error {
	s.Stop()
	return nil
}

func (s *MemoryStore) runCleanup() {
	defer close(s.cleanupDone)

	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl == 0 {
		return
	}

	now := time.Now()
	for id, st := range s.sessions {
		if now.Sub(st.LoadedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}

// Put replaces the state of a session wholesale.
func (s *MemoryStore) Put(ctx context.Context, session string, st State) error {
	if session == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session] = st
	return nil
}

// Get retrieves the state of a session. found is false when the session has
// never been loaded or has expired.
func (s *MemoryStore) Get(ctx context.Context, session string) (State, bool, error) {
	select {
	case <-ctx.Done():
		return State{}, false, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st, found := s.sessions[session]
	return st, found, nil
}

// Len returns the number of sessions currently stored. Useful for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Delete removes a session. Returns true if one existed.
func (s *MemoryStore) Delete(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.sessions[session]
	delete(s.sessions, session)
	return existed
}
