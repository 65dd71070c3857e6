package store

import (
	"context"
	"sync"

	"github.com/tabletopd/tabletopd/internal/game"
)

// MemoryStore is a thread-safe in-memory GameStore for tests and
// single-node deployments without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*game.State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string]*game.State)}
}

// Create inserts a new game.
func (s *MemoryStore) Create(_ context.Context, state *game.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[state.ID]; exists {
		return game.ErrGameAlreadyExists
	}
	s.games[state.ID] = state.Clone()
	return nil
}

// FindByID returns a copy of the stored game.
func (s *MemoryStore) FindByID(_ context.Context, id string) (*game.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.games[id]
	if !ok {
		return nil, game.ErrGameNotFound
	}
	return st.Clone(), nil
}

// Update overwrites the game only when the stored version still equals
// expectedVersion.
func (s *MemoryStore) Update(_ context.Context, id string, state *game.State, expectedVersion int64) (*game.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.games[id]
	if !ok {
		return nil, game.ErrGameNotFound
	}
	if cur.Version != expectedVersion {
		return nil, &game.ConcurrencyError{
			GameID:          id,
			ExpectedVersion: expectedVersion,
			ActualVersion:   cur.Version,
		}
	}

	s.games[id] = state.Clone()
	return state.Clone(), nil
}

// Exists reports whether the game id is known.
func (s *MemoryStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.games[id]
	return ok, nil
}
