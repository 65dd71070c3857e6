// Package store provides durable keyed storage for game state with an
// optimistic concurrency check on every update.
package store

import (
	"context"

	"github.com/tabletopd/tabletopd/internal/game"
)

// GameStore is the persistence contract for games. Update is the only write
// path for existing games and performs a compare-and-swap on the stored
// version: the write succeeds only when the durable version still equals
// expectedVersion, otherwise it fails with *game.ConcurrencyError. Reads and
// writes deal in defensive copies; callers never share memory with the
// durable state.
type GameStore interface {
	// Create inserts a new game. Fails with game.ErrGameAlreadyExists when
	// the id is taken.
	Create(ctx context.Context, state *game.State) error

	// FindByID returns the game or game.ErrGameNotFound.
	FindByID(ctx context.Context, id string) (*game.State, error)

	// Update overwrites the game iff the stored version equals
	// expectedVersion, returning the persisted state. Fails with
	// game.ErrGameNotFound or *game.ConcurrencyError.
	Update(ctx context.Context, id string, state *game.State, expectedVersion int64) (*game.State, error)

	// Exists reports whether the game id is known.
	Exists(ctx context.Context, id string) (bool, error)
}
