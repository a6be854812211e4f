package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process StateStore. State survives widget teardown but
// not a host restart; it is the default for tests and ephemeral canvases.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[uuid.UUID][]byte)}
}

// Load returns the persisted state or an empty State if none exists.
func (s *MemoryStore) Load(_ context.Context, widgetID uuid.UUID) (State, error) {
	s.mu.RLock()
	data, ok := s.blobs[widgetID]
	s.mu.RUnlock()

	if !ok {
		return State{}, nil
	}
	return DecodeState(data)
}

// Save encodes and stores the state. Serialization failures leave any prior
// blob untouched.
func (s *MemoryStore) Save(_ context.Context, widgetID uuid.UUID, state State) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.blobs[widgetID] = data
	s.mu.Unlock()
	return nil
}

// Delete discards the persisted state for the widget.
func (s *MemoryStore) Delete(_ context.Context, widgetID uuid.UUID) error {
	s.mu.Lock()
	delete(s.blobs, widgetID)
	s.mu.Unlock()
	return nil
}

// Len reports how many widget blobs are stored. Intended for tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
