package holds

import (
	"context"
	"sync"

	"posada/internal/models"
)

// MemoryStore keeps holds in process memory. Used as the failover fallback
// and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	holds map[string]models.Hold
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{holds: make(map[string]models.Hold)}
}

func (s *MemoryStore) Save(_ context.Context, hold *models.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[hold.ID] = *hold
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hold, ok := s.holds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &hold, nil
}

func (s *MemoryStore) ListForRoom(_ context.Context, roomID string) ([]*models.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var holds []*models.Hold
	for _, hold := range s.holds {
		if hold.RoomID == roomID {
			h := hold
			holds = append(holds, &h)
		}
	}
	return holds, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*models.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holds := make([]*models.Hold, 0, len(s.holds))
	for _, hold := range s.holds {
		h := hold
		holds = append(holds, &h)
	}
	return holds, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holds[id]; !ok {
		return ErrNotFound
	}
	delete(s.holds, id)
	return nil
}
