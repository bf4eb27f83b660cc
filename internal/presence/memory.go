package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is the in-process registry for single-instance deployments.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[uuid.UUID]map[string]struct{}),
	}
}

func (s *MemoryStore) Connect(_ context.Context, userID uuid.UUID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users[userID] == nil {
		s.users[userID] = make(map[string]struct{})
	}
	s.users[userID][connID] = struct{}{}
	return nil
}

func (s *MemoryStore) Disconnect(_ context.Context, userID uuid.UUID, connID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns, ok := s.users[userID]
	if !ok {
		return false, nil
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(s.users, userID)
		return true, nil
	}
	return false, nil
}

func (s *MemoryStore) IsOnline(_ context.Context, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]) > 0, nil
}

func (s *MemoryStore) OnlineCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *MemoryStore) Touch(context.Context, uuid.UUID) error {
	return nil
}
