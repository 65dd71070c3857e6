package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabletopd/tabletopd/internal/game"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
    id         TEXT PRIMARY KEY,
    game_type  TEXT        NOT NULL,
    version    BIGINT      NOT NULL,
    state      JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS games_game_type_idx ON games (game_type);`

const queryInsert = `
INSERT INTO games (id, game_type, version, state, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`

const queryFindByID = `SELECT state FROM games WHERE id = $1`

const queryUpdateIfVersion = `
UPDATE games SET
    version    = $1,
    state      = $2,
    updated_at = $3
WHERE id = $4 AND version = $5`

const queryGetVersion = `SELECT version FROM games WHERE id = $1`

const queryExists = `SELECT EXISTS(SELECT 1 FROM games WHERE id = $1)`

// PostgresStore is a GameStore backed by Postgres. The full game state is
// kept as a JSONB document beside a version column used for the
// compare-and-swap update; the version check in SQL is what guards against
// writers in other processes.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a store on top of an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Migrate creates the games table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create games schema: %w", err)
	}
	return nil
}

// Create inserts a new game.
func (s *PostgresStore) Create(ctx context.Context, state *game.State) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode game state: %w", err)
	}

	tag, err := s.pool.Exec(ctx, queryInsert,
		state.ID, state.GameType, state.Version, doc, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game %s: %w", state.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return game.ErrGameAlreadyExists
	}
	return nil
}

// FindByID returns the game or game.ErrGameNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*game.State, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, queryFindByID, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, game.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}

	var state game.State
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %w", id, err)
	}
	return &state, nil
}

// Update performs the compare-and-swap write. A zero-row update is
// disambiguated into not-found versus version conflict with a follow-up
// version read.
func (s *PostgresStore) Update(ctx context.Context, id string, state *game.State, expectedVersion int64) (*game.State, error) {
	doc, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode game state: %w", err)
	}

	tag, err := s.pool.Exec(ctx, queryUpdateIfVersion,
		state.Version, doc, state.UpdatedAt, id, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to update game %s: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		var actual int64
		verr := s.pool.QueryRow(ctx, queryGetVersion, id).Scan(&actual)
		if errors.Is(verr, pgx.ErrNoRows) {
			return nil, game.ErrGameNotFound
		}
		if verr != nil {
			return nil, fmt.Errorf("failed to inspect game %s after conflicting update: %w", id, verr)
		}
		return nil, &game.ConcurrencyError{
			GameID:          id,
			ExpectedVersion: expectedVersion,
			ActualVersion:   actual,
		}
	}

	return state.Clone(), nil
}

// Exists reports whether the game id is known.
func (s *PostgresStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, queryExists, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check game %s: %w", id, err)
	}
	return exists, nil
}
