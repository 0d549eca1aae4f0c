package history

import (
	"context"
	"sort"
	"sync"

	"github.com/cybergenix/niva/backend/internal/model/chat"
)

// MemoryStore keeps turns in process memory, suitable for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]chat.Turn
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		turns: make(map[string][]chat.Turn),
	}
}

// Create registers the conversation if it is new.
func (s *MemoryStore) Create(_ context.Context, id string) error {
	if err := ValidateConversationID(id); err != nil {
		return err
	}

	s.mu.Lock()
	s.ensureLocked(id)
	s.mu.Unlock()
	return nil
}

// Append adds a turn to the conversation, creating it on first write.
func (s *MemoryStore) Append(_ context.Context, id string, turn chat.Turn) error {
	if err := ValidateConversationID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureLocked(id)
	s.turns[id] = append(s.turns[id], turn)
	return nil
}

// Recent returns the newest limit turns in chronological order.
func (s *MemoryStore) Recent(_ context.Context, id string, limit int) ([]chat.Turn, error) {
	if err := ValidateConversationID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[id]
	if limit < 0 {
		limit = 0
	}
	start := 0
	if len(turns) > limit {
		start = len(turns) - limit
	}

	copied := make([]chat.Turn, len(turns)-start)
	copy(copied, turns[start:])
	return copied, nil
}

// All returns a copy of the full transcript.
func (s *MemoryStore) All(_ context.Context, id string) ([]chat.Turn, error) {
	if err := ValidateConversationID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[id]
	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

// Conversations lists ids in lexical order.
func (s *MemoryStore) Conversations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.turns))
	for id := range s.turns {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

func (s *MemoryStore) ensureLocked(id string) {
	if _, ok := s.turns[id]; ok {
		return
	}
	s.turns[id] = make([]chat.Turn, 0, 16)
}
