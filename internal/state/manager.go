// Package state implements the orchestration core of the platform: the
// serialized, optimistically-versioned read-modify-write pipeline every game
// mutation goes through.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tabletopd/tabletopd/internal/game"
	"github.com/tabletopd/tabletopd/internal/lock"
	"github.com/tabletopd/tabletopd/internal/notify"
	"github.com/tabletopd/tabletopd/internal/plugin"
	"github.com/tabletopd/tabletopd/internal/store"
	"go.uber.org/zap"
)

// AITurnScheduler enqueues an AI turn for asynchronous processing. Schedule
// must not block: the human move that triggered it has already committed and
// is on its way back to the caller.
type AITurnScheduler interface {
	Schedule(gameID, aiPlayerID string)
}

// Manager coordinates all mutations of game state. Per-game serialization
// comes from the lock manager, conflict detection across processes from the
// store's versioned update, and rule decisions from the plugin for the
// game's type.
type Manager struct {
	store     store.GameStore
	plugins   *plugin.Registry
	locks     *lock.Manager
	notifier  notify.Broadcaster
	scheduler AITurnScheduler
	logger    *zap.Logger
}

// NewManager creates a state manager. notifier may be nil, in which case
// notifications are discarded.
func NewManager(st store.GameStore, plugins *plugin.Registry, locks *lock.Manager, notifier notify.Broadcaster, logger *zap.Logger) *Manager {
	if notifier == nil {
		notifier = notify.NopBroadcaster{}
	}
	return &Manager{
		store:    st,
		plugins:  plugins,
		locks:    locks,
		notifier: notifier,
		logger:   logger,
	}
}

// SetAIScheduler wires the AI turn scheduler. Set once during startup,
// before any moves are processed; the orchestrator needs the manager first,
// which is why this is not a constructor argument.
func (m *Manager) SetAIScheduler(s AITurnScheduler) {
	m.scheduler = s
}

// CreateGame creates a game of the given type. seats is the total number of
// players the game is played with; when the initial roster already fills
// every seat the game starts immediately, otherwise it waits for joins.
func (m *Manager) CreateGame(ctx context.Context, gameType string, players []game.Player, seats int) (*game.State, error) {
	p, ok := m.plugins.Get(gameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type %q", gameType)
	}
	if seats < len(players) {
		return nil, fmt.Errorf("seats %d is less than initial players %d", seats, len(players))
	}

	now := time.Now()
	st := &game.State{
		ID:          uuid.New().String(),
		GameType:    gameType,
		Lifecycle:   game.LifecycleCreated,
		Players:     append([]game.Player(nil), players...),
		Seats:       seats,
		MoveHistory: []game.Move{},
		Result:      game.Result{Outcome: game.OutcomeNone},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if len(players) == seats {
		started, err := p.NewGame(st)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize %s game: %w", gameType, err)
		}
		st = started
		st.Lifecycle = game.LifecycleActive
	} else {
		st.Lifecycle = game.LifecycleWaitingForPlayers
	}

	if err := m.store.Create(ctx, st); err != nil {
		return nil, err
	}

	m.logger.Info("game created",
		zap.String("game_id", st.ID),
		zap.String("game_type", gameType),
		zap.Int("players", len(players)),
		zap.Int("seats", seats),
		zap.String("lifecycle", string(st.Lifecycle)),
	)

	m.broadcast(st.ID, notify.Event{Type: notify.EventGameCreated, State: st.Clone()})
	m.maybeScheduleAITurn(st)

	return st, nil
}

// JoinGame seats a player in a waiting game, activating it once the last
// seat fills.
func (m *Manager) JoinGame(ctx context.Context, gameID string, player game.Player) (*game.State, error) {
	var result *game.State

	err := m.locks.WithLock(gameID, func() error {
		cur, err := m.store.FindByID(ctx, gameID)
		if err != nil {
			return err
		}

		if cur.Lifecycle != game.LifecycleWaitingForPlayers {
			return game.NewInvalidMove("Game is not accepting players")
		}
		if _, seated := cur.Participant(player.ID); seated {
			return game.NewInvalidMove("Player already joined")
		}

		next := cur.Clone()
		next.Players = append(next.Players, player)
		next.Version = cur.Version + 1
		next.UpdatedAt = time.Now()

		if len(next.Players) == next.Seats {
			p, ok := m.plugins.Get(next.GameType)
			if !ok {
				return fmt.Errorf("unknown game type %q", next.GameType)
			}
			started, err := p.NewGame(next)
			if err != nil {
				return fmt.Errorf("failed to initialize %s game: %w", next.GameType, err)
			}
			next = started
			next.Lifecycle = game.LifecycleActive
		}

		persisted, err := m.store.Update(ctx, gameID, next, cur.Version)
		if err != nil {
			return err
		}
		result = persisted
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("player joined",
		zap.String("game_id", gameID),
		zap.String("player_id", player.ID),
		zap.String("lifecycle", string(result.Lifecycle)),
	)

	m.broadcast(gameID, notify.Event{Type: notify.EventPlayerJoined, State: result.Clone()})
	m.maybeScheduleAITurn(result)

	return result, nil
}

// AbandonGame terminally abandons a game on behalf of a participant.
func (m *Manager) AbandonGame(ctx context.Context, gameID, playerID string) (*game.State, error) {
	var result *game.State

	err := m.locks.WithLock(gameID, func() error {
		cur, err := m.store.FindByID(ctx, gameID)
		if err != nil {
			return err
		}

		if _, seated := cur.Participant(playerID); !seated {
			return &game.UnauthorizedMoveError{PlayerID: playerID, Reason: "player is not a participant"}
		}
		if cur.Lifecycle.Terminal() {
			return game.NewInvalidMove(terminalReason(cur.Lifecycle))
		}

		next := cur.Clone()
		next.Lifecycle = game.LifecycleAbandoned
		next.Version = cur.Version + 1
		next.UpdatedAt = time.Now()

		persisted, err := m.store.Update(ctx, gameID, next, cur.Version)
		if err != nil {
			return err
		}
		result = persisted
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("game abandoned",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
	)

	m.broadcast(gameID, notify.Event{Type: notify.EventGameAbandoned, State: result.Clone()})

	return result, nil
}

// GetGame returns a read-only snapshot of the game.
func (m *Manager) GetGame(ctx context.Context, gameID string) (*game.State, error) {
	return m.store.FindByID(ctx, gameID)
}

// ValidateMove is the read-only advisory check: it asks the plugin for a
// verdict against the current state without taking the game lock, so it is
// safe to call with arbitrarily high concurrency. A passing verdict is no
// guarantee the same move will still apply later.
func (m *Manager) ValidateMove(ctx context.Context, gameID, playerID string, move game.Move) (game.ValidationResult, error) {
	cur, err := m.store.FindByID(ctx, gameID)
	if err != nil {
		return game.ValidationResult{}, err
	}

	p, ok := m.plugins.Get(cur.GameType)
	if !ok {
		return game.ValidationResult{}, fmt.Errorf("unknown game type %q", cur.GameType)
	}

	return p.ValidateMove(cur, playerID, move), nil
}

// ApplyMove runs the critical mutation path for a single move. The caller
// declares the version it read; if the durable version has moved on by
// write time the call fails with *game.ConcurrencyError and nothing is
// persisted. On success the returned state carries version
// expectedVersion+1 and the move is the last entry of the history.
func (m *Manager) ApplyMove(ctx context.Context, gameID, playerID string, move game.Move, expectedVersion int64) (*game.State, error) {
	var (
		result   *game.State
		finished bool
	)

	err := m.locks.WithLock(gameID, func() error {
		// Re-read under the lock; a caller-supplied snapshot may already be
		// stale by the time the lock is granted.
		cur, err := m.store.FindByID(ctx, gameID)
		if err != nil {
			return err
		}

		if cur.Lifecycle.Terminal() {
			return game.NewInvalidMove(terminalReason(cur.Lifecycle))
		}
		if cur.Lifecycle != game.LifecycleActive {
			return game.NewInvalidMove("Game has not started")
		}

		// Structural turn check, independent of plugin rules.
		if _, seated := cur.Participant(playerID); !seated {
			return &game.UnauthorizedMoveError{PlayerID: playerID, Reason: "player is not a participant"}
		}
		current, ok := cur.CurrentPlayer()
		if !ok {
			return fmt.Errorf("game %s has no current player", gameID)
		}
		if current.ID != playerID {
			return &game.UnauthorizedMoveError{PlayerID: playerID, Reason: "not this player's turn"}
		}

		p, ok := m.plugins.Get(cur.GameType)
		if !ok {
			return fmt.Errorf("unknown game type %q", cur.GameType)
		}

		if verdict := p.ValidateMove(cur, playerID, move); !verdict.Valid {
			return game.NewInvalidMove(verdict.Reason)
		}

		if hooks, ok := p.(plugin.Hooks); ok {
			hooks.BeforeApplyMove(cur, playerID, move)
		}

		next, err := p.ApplyMove(cur, playerID, move)
		if err != nil {
			return fmt.Errorf("plugin failed to apply move: %w", err)
		}

		now := time.Now()
		applied := move
		if applied.Timestamp.IsZero() {
			applied.Timestamp = now
		}
		next.MoveHistory = append(next.MoveHistory, applied)
		next.Version = cur.Version + 1
		next.UpdatedAt = now

		if p.IsGameOver(next) {
			next.Lifecycle = game.LifecycleCompleted
			next.Result = p.GameResult(next)
		}

		// The store's version check is what guards against writers outside
		// this process's lock; expectedVersion is the caller's declaration,
		// not the state just re-read.
		persisted, err := m.store.Update(ctx, gameID, next, expectedVersion)
		if err != nil {
			return err
		}

		if hooks, ok := p.(plugin.Hooks); ok {
			hooks.AfterApplyMove(persisted, playerID, move)
		}

		result = persisted
		finished = persisted.Lifecycle == game.LifecycleCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("move applied",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.String("action", move.Action),
		zap.Int64("version", result.Version),
	)

	lastMove := result.MoveHistory[len(result.MoveHistory)-1]
	m.broadcast(gameID, notify.Event{Type: notify.EventMoveApplied, State: result.Clone(), Move: &lastMove})
	if finished {
		m.broadcast(gameID, notify.Event{Type: notify.EventGameCompleted, State: result.Clone()})
	}

	m.maybeScheduleAITurn(result)

	return result, nil
}

// maybeScheduleAITurn enqueues an AI turn when the game is active and the
// seat to move is AI-controlled. Runs outside the game lock.
func (m *Manager) maybeScheduleAITurn(st *game.State) {
	if m.scheduler == nil || st.Lifecycle != game.LifecycleActive {
		return
	}
	current, ok := st.CurrentPlayer()
	if !ok || !current.IsAI {
		return
	}
	m.scheduler.Schedule(st.ID, current.ID)
}

// broadcast fans an event out without ever letting a notifier failure back
// into the mutation pipeline.
func (m *Manager) broadcast(gameID string, event notify.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notification sink panicked",
				zap.String("game_id", gameID),
				zap.Any("panic", r),
			)
		}
	}()
	event.Timestamp = time.Now()
	m.notifier.Broadcast(gameID, event)
}

func terminalReason(l game.Lifecycle) string {
	if l == game.LifecycleAbandoned {
		return "Game is already abandoned"
	}
	return "Game is already completed"
}
