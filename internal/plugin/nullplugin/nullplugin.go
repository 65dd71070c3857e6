// Package nullplugin provides a rules-free stub plugin that accepts every
// move and never ends the game. It is used by tests and serves as a
// scaffold when bringing up a new game type.
package nullplugin

import (
	"sync"

	"github.com/tabletopd/tabletopd/internal/game"
	"go.uber.org/zap"
)

// GameType is the registry key for the null plugin.
const GameType = "null"

// Plugin accepts every move and rotates the turn. It records hook
// invocations for later inspection.
type Plugin struct {
	logger *zap.Logger

	mu    sync.Mutex
	hooks []HookCall
}

// HookCall records a single before/after hook invocation.
type HookCall struct {
	Phase    string // "before" or "after"
	GameID   string
	PlayerID string
	Action   string
}

// New creates a null plugin. The logger may be nil.
func New(logger *zap.Logger) *Plugin {
	return &Plugin{logger: logger}
}

// Type returns the game-type string.
func (p *Plugin) Type() string { return GameType }

// NewGame accepts any player roster and adds no metadata.
func (p *Plugin) NewGame(state *game.State) (*game.State, error) {
	return state.Clone(), nil
}

// ValidateMove accepts everything.
func (p *Plugin) ValidateMove(state *game.State, playerID string, move game.Move) game.ValidationResult {
	return game.ValidationResult{Valid: true}
}

// ApplyMove rotates the turn to the next seat.
func (p *Plugin) ApplyMove(state *game.State, playerID string, move game.Move) (*game.State, error) {
	next := state.Clone()
	if len(next.Players) > 0 {
		next.CurrentPlayerIndex = (next.CurrentPlayerIndex + 1) % len(next.Players)
	}
	return next, nil
}

// IsGameOver always reports false; null games run until abandoned.
func (p *Plugin) IsGameOver(state *game.State) bool { return false }

// GameResult always reports no result.
func (p *Plugin) GameResult(state *game.State) game.Result {
	return game.Result{Outcome: game.OutcomeNone}
}

// BeforeApplyMove records the invocation.
func (p *Plugin) BeforeApplyMove(state *game.State, playerID string, move game.Move) {
	p.record("before", state, playerID, move)
}

// AfterApplyMove records the invocation.
func (p *Plugin) AfterApplyMove(state *game.State, playerID string, move game.Move) {
	p.record("after", state, playerID, move)
}

func (p *Plugin) record(phase string, state *game.State, playerID string, move game.Move) {
	p.mu.Lock()
	p.hooks = append(p.hooks, HookCall{
		Phase:    phase,
		GameID:   state.ID,
		PlayerID: playerID,
		Action:   move.Action,
	})
	if len(p.hooks) > 200 {
		p.hooks = p.hooks[len(p.hooks)-200:]
	}
	p.mu.Unlock()

	if p.logger != nil {
		p.logger.Debug("null plugin hook",
			zap.String("phase", phase),
			zap.String("game_id", state.ID),
			zap.String("player_id", playerID),
			zap.String("action", move.Action),
		)
	}
}

// HookCalls returns a snapshot of recorded hook invocations.
func (p *Plugin) HookCalls() []HookCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]HookCall(nil), p.hooks...)
}
