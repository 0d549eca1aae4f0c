package persona

import "strings"

// Store exposes persona retrieval for handlers and the assistant pipeline.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
	Default() Persona
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items     []Persona
	defaultID string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
// defaultID selects the persona used when a request names none; an unknown or
// empty id falls back to the first item.
func NewMemoryStore(items []Persona, defaultID string) *MemoryStore {
	store := &MemoryStore{items: append([]Persona(nil), items...)}
	if _, ok := store.FindByID(defaultID); ok {
		store.defaultID = strings.ToLower(strings.TrimSpace(defaultID))
	} else if len(store.items) > 0 {
		store.defaultID = store.items[0].ID
	}
	return store
}

// List returns the configured personas.
func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID looks up a persona by identifier, case-insensitively.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	id = strings.TrimSpace(id)
	for _, item := range s.items {
		if strings.EqualFold(item.ID, id) {
			return item, true
		}
	}
	return Persona{}, false
}

// Default returns the persona answering requests that do not pick one.
func (s *MemoryStore) Default() Persona {
	p, _ := s.FindByID(s.defaultID)
	return p
}
