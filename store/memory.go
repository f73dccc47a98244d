package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sicko7947/agentparty"
)

// MemoryStore implements agentparty.WorkflowStore in memory. It is intended
// for tests and local development; all data is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	workflows map[string]*agentparty.WorkflowState
	history   map[string][]*agentparty.HistoryEntry
}

// NewMemoryStore creates a new in-memory workflow store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows: make(map[string]*agentparty.WorkflowState),
		history:   make(map[string][]*agentparty.HistoryEntry),
	}
}

func (s *MemoryStore) SaveWorkflow(_ context.Context, userID string, state *agentparty.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Deep copy so later caller mutations do not leak into the store
	s.workflows[userID] = state.Clone()
	return nil
}

func (s *MemoryStore) LoadWorkflow(_ context.Context, userID string) (*agentparty.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.workflows[userID]
	if !ok {
		return nil, nil
	}
	return state.Clone(), nil
}

func (s *MemoryStore) DeleteWorkflow(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.workflows, userID)
	return nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, entry *agentparty.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	e := *entry
	s.history[entry.UserID] = append(s.history[entry.UserID], &e)
	return nil
}

func (s *MemoryStore) ListHistory(_ context.Context, userID string, limit int) ([]*agentparty.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[userID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]*agentparty.HistoryEntry, len(entries))
	for i, e := range entries {
		c := *e
		out[i] = &c
	}
	return out, nil
}

var _ agentparty.WorkflowStore = (*MemoryStore)(nil)
