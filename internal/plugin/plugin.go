package plugin

import (
	"context"
	"time"

	"github.com/tabletopd/tabletopd/internal/game"
)

// Plugin implements the rules of one game type. Plugins are pure with
// respect to concurrency: the state manager guarantees that calls for a
// given game instance never overlap, and plugins must never retain or
// mutate the states they are handed beyond the returned value.
type Plugin interface {
	// Type returns the game-type string this plugin is registered under.
	Type() string

	// NewGame initializes plugin-owned state for a fresh game. The core has
	// already populated identity, players and lifecycle; plugins typically
	// seed Metadata here.
	NewGame(state *game.State) (*game.State, error)

	// ValidateMove returns the plugin's verdict on a proposed move. It must
	// not mutate state.
	ValidateMove(state *game.State, playerID string, move game.Move) game.ValidationResult

	// ApplyMove returns the state after the move. The core owns the move
	// history, version and timestamps; plugins only update game-specific
	// fields and the current player index.
	ApplyMove(state *game.State, playerID string, move game.Move) (*game.State, error)

	// IsGameOver reports whether the game has reached a terminal position.
	IsGameOver(state *game.State) bool

	// GameResult returns the tagged result for a finished game. Only called
	// after IsGameOver reports true.
	GameResult(state *game.State) game.Result
}

// Hooks is an optional plugin extension. Both hooks are side-effect-only:
// they run synchronously inside the critical section and can neither veto
// the move nor alter the already-computed new state.
type Hooks interface {
	BeforeApplyMove(state *game.State, playerID string, move game.Move)
	AfterApplyMove(state *game.State, playerID string, move game.Move)
}

// AIStrategy generates moves for AI-controlled seats. Generation is
// potentially slow and fallible; the orchestrator bounds it with the
// strategy's declared time limit.
type AIStrategy interface {
	ID() string
	Name() string
	Difficulty() string

	// TimeLimit returns the per-generation deadline. Zero means the
	// orchestrator's default applies.
	TimeLimit() time.Duration

	// GenerateMove produces a move for the AI seat. Implementations should
	// honor ctx cancellation; the orchestrator abandons the attempt when the
	// deadline passes regardless.
	GenerateMove(ctx context.Context, state *game.State, aiPlayerID string) (game.Move, error)
}

// AIProvider is the optional extension a plugin implements to offer AI
// strategies. Plugins without it simply cannot seat AI players.
type AIProvider interface {
	AIStrategies() []AIStrategy
}

// StrategyByID resolves one of p's strategies by id. Returns false when p
// does not implement AIProvider or does not register the id.
func StrategyByID(p Plugin, strategyID string) (AIStrategy, bool) {
	provider, ok := p.(AIProvider)
	if !ok {
		return nil, false
	}
	for _, s := range provider.AIStrategies() {
		if s.ID() == strategyID {
			return s, true
		}
	}
	return nil, false
}
