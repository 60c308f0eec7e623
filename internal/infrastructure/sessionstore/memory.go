package sessionstore

import (
	"context"
	"sync"
	"time"
)

// entry is a stored value with an optional expiration.
type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store using an in-memory map. Suitable for
// single-instance deployments and testing; a background janitor removes
// expired one-shot markers.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemoryStore creates a new in-memory session store and starts its
// cleanup goroutine.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]map[string]entry),
		stopChan: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Get returns the value for the key within the session.
func (s *MemoryStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sid]
	if !ok {
		return "", false, nil
	}
	e, ok := sess[key]
	if !ok || e.expired(time.Now()) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores the value for the key within the session.
func (s *MemoryStore) Set(ctx context.Context, sid, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		sess = make(map[string]entry)
		s.sessions[sid] = sess
	}
	sess[key] = entry{value: value}
	return nil
}

// Delete removes the key from the session.
func (s *MemoryStore) Delete(ctx context.Context, sid, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[sid]; ok {
		delete(sess, key)
		if len(sess) == 0 {
			delete(s.sessions, sid)
		}
	}
	return nil
}

// SetNX stores the value only if the key is absent or expired. Returns true
// when the value was newly set.
func (s *MemoryStore) SetNX(ctx context.Context, sid, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sid]
	if !ok {
		sess = make(map[string]entry)
		s.sessions[sid] = sess
	}

	if e, exists := sess[key]; exists && !e.expired(time.Now()) {
		return false, nil
	}

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	sess[key] = e
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries.
func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for sid, sess := range s.sessions {
		for key, e := range sess {
			if e.expired(now) {
				delete(sess, key)
			}
		}
		if len(sess) == 0 {
			delete(s.sessions, sid)
		}
	}
}

// Size returns the number of live sessions (for testing/monitoring).
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
