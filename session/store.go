package session

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions. Implementations must treat an absent session as
// (nil, nil) rather than an error; expiry policy lives in the Manager.
type Store interface {
	Put(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error

	// DeleteExpired removes sessions idle past ttl and returns how many were
	// removed. Backends with native TTL eviction may return (0, nil).
	DeleteExpired(ctx context.Context, ttl time.Duration) (int, error)
}

// MemoryStore implements Store in memory, for tests and local development
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) Put(_ context.Context, sess *Session, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *sess
	s.sessions[sess.ID] = &c
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	c := *sess
	return &c, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, sess := range s.sessions {
		if sess.IsExpired(now, ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

var _ Store = (*MemoryStore)(nil)
