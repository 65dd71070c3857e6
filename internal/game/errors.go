package game

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for identity-style failures.
var (
	// ErrGameNotFound indicates the referenced game id is unknown.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameAlreadyExists indicates a create collided with an existing id.
	ErrGameAlreadyExists = errors.New("game already exists")
	// ErrAIPlayerNotFound indicates the referenced AI player id is unknown.
	ErrAIPlayerNotFound = errors.New("ai player not found")
)

// InvalidMoveError indicates a plugin or structural rule rejected the move.
// Reason is human-readable and safe to surface to the caller.
type InvalidMoveError struct {
	Reason string
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid move: %s", e.Reason)
}

// NewInvalidMove builds an InvalidMoveError with the given reason.
func NewInvalidMove(reason string) *InvalidMoveError {
	return &InvalidMoveError{Reason: reason}
}

// UnauthorizedMoveError indicates the right game but the wrong actor: the
// player is not a participant, or it is not their turn.
type UnauthorizedMoveError struct {
	PlayerID string
	Reason   string
}

func (e *UnauthorizedMoveError) Error() string {
	return fmt.Sprintf("unauthorized move by %s: %s", e.PlayerID, e.Reason)
}

// ConcurrencyError indicates an optimistic version mismatch at write time.
// The caller must re-read and retry with a fresh version.
type ConcurrencyError struct {
	GameID          string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrent modification of game %s: expected version %d, found %d",
		e.GameID, e.ExpectedVersion, e.ActualVersion)
}

// AIStrategyNotFoundError indicates the plugin does not register the
// requested AI strategy.
type AIStrategyNotFoundError struct {
	GameType   string
	StrategyID string
}

func (e *AIStrategyNotFoundError) Error() string {
	return fmt.Sprintf("ai strategy %q not registered for game type %q", e.StrategyID, e.GameType)
}

// AITimeoutError indicates the strategy exceeded its declared time limit.
// Timeouts are terminal for the AI-turn attempt and are never retried.
type AITimeoutError struct {
	StrategyID string
	Limit      time.Duration
}

func (e *AITimeoutError) Error() string {
	return fmt.Sprintf("ai strategy %q exceeded time limit %s", e.StrategyID, e.Limit)
}

// AIMoveGenerationError indicates the strategy exhausted its retry budget
// without producing an accepted move.
type AIMoveGenerationError struct {
	StrategyID string
	Attempts   int
	Cause      error
}

func (e *AIMoveGenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ai strategy %q failed to produce a valid move after %d attempts: %v",
			e.StrategyID, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("ai strategy %q failed to produce a valid move after %d attempts", e.StrategyID, e.Attempts)
}

func (e *AIMoveGenerationError) Unwrap() error { return e.Cause }
