package cache

import "sync"

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a mutex-guarded in-memory Store, used in tests and as a
// stand-in when no cache directory is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]int64)}
}

func (s *MemoryStore) Get(id string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seconds, ok := s.entries[id]
	return seconds, ok, nil
}

func (s *MemoryStore) Set(id string, seconds int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = seconds
	return nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) All() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
