package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tabletopd/tabletopd/internal/game"
	"github.com/tabletopd/tabletopd/internal/notify"
	"github.com/tabletopd/tabletopd/internal/plugin"
	"go.uber.org/zap"
)

// Retry budgets for a single AI turn. A timed-out generation is terminal
// and consumes the whole turn; other generation failures are retried once;
// validator-rejected moves are retried up to MaxInvalidMoveRetries within
// each generation attempt.
const (
	MaxFailureRetries     = 1
	MaxInvalidMoveRetries = 3

	// DefaultTimeLimit bounds strategies that do not declare their own.
	DefaultTimeLimit = 1000 * time.Millisecond

	defaultQueueSize = 256
)

// GameService is the slice of the state manager the orchestrator needs.
// AI moves go through the exact same ApplyMove path as human moves; there
// is no separate persistence path for AI-authored moves.
type GameService interface {
	GetGame(ctx context.Context, gameID string) (*game.State, error)
	ApplyMove(ctx context.Context, gameID, playerID string, move game.Move, expectedVersion int64) (*game.State, error)
}

// Task is one scheduled AI turn.
type Task struct {
	GameID     string
	AIPlayerID string
}

// Orchestrator processes AI turns from a work queue. Chains of consecutive
// AI turns are trampolined: applying an AI move schedules the next AI turn
// back onto the queue instead of recursing, so an AI-vs-AI game consumes
// constant stack.
type Orchestrator struct {
	games            GameService
	players          *Players
	plugins          *plugin.Registry
	notifier         notify.Broadcaster
	logger           *zap.Logger
	defaultTimeLimit time.Duration

	queue chan Task
}

// NewOrchestrator creates an AI turn orchestrator. notifier may be nil;
// defaultTimeLimit and queueSize fall back to package defaults when zero.
func NewOrchestrator(games GameService, players *Players, plugins *plugin.Registry, notifier notify.Broadcaster, defaultTimeLimit time.Duration, queueSize int, logger *zap.Logger) *Orchestrator {
	if notifier == nil {
		notifier = notify.NopBroadcaster{}
	}
	if defaultTimeLimit <= 0 {
		defaultTimeLimit = DefaultTimeLimit
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Orchestrator{
		games:            games,
		players:          players,
		plugins:          plugins,
		notifier:         notifier,
		logger:           logger,
		defaultTimeLimit: defaultTimeLimit,
		queue:            make(chan Task, queueSize),
	}
}

// Schedule enqueues an AI turn without blocking the caller. When the queue
// is saturated the task is dropped and logged; the turn is recovered the
// next time the game is touched.
func (o *Orchestrator) Schedule(gameID, aiPlayerID string) {
	select {
	case o.queue <- Task{GameID: gameID, AIPlayerID: aiPlayerID}:
	default:
		o.logger.Warn("ai turn queue full, dropping task",
			zap.String("game_id", gameID),
			zap.String("ai_player_id", aiPlayerID),
		)
	}
}

// Run consumes the task queue until ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-o.queue:
			o.runTask(ctx, task)
		}
	}
}

// runTask processes one scheduled turn. Failures are terminal for the
// attempt only: they are logged and announced, never propagated, and the
// game stays in its pre-turn state since no partial move is ever persisted.
func (o *Orchestrator) runTask(ctx context.Context, task Task) {
	if _, err := o.ProcessAITurn(ctx, task.GameID, task.AIPlayerID); err != nil {
		o.logger.Error("ai turn failed",
			zap.String("game_id", task.GameID),
			zap.String("ai_player_id", task.AIPlayerID),
			zap.Error(err),
		)
		o.notifier.Broadcast(task.GameID, notify.Event{
			Type:   notify.EventAITurnFailed,
			Reason: err.Error(),
		})
	}
}

// ProcessAITurn generates, validates and applies one move for an AI seat.
// The resulting state may itself have an AI seat to move; that continuation
// is picked up through the state manager's scheduler, not by recursing here.
func (o *Orchestrator) ProcessAITurn(ctx context.Context, gameID, aiPlayerID string) (*game.State, error) {
	st, err := o.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	// A queued task can go stale: the game may have completed or the turn
	// may have passed before the worker got to it. Not an error.
	if st.Lifecycle != game.LifecycleActive {
		o.logger.Debug("skipping ai turn for inactive game", zap.String("game_id", gameID))
		return st, nil
	}
	current, ok := st.CurrentPlayer()
	if !ok || current.ID != aiPlayerID {
		o.logger.Debug("skipping stale ai turn",
			zap.String("game_id", gameID),
			zap.String("ai_player_id", aiPlayerID),
		)
		return st, nil
	}

	aiPlayer, err := o.players.Get(aiPlayerID)
	if err != nil {
		return nil, err
	}

	p, ok := o.plugins.Get(st.GameType)
	if !ok {
		return nil, fmt.Errorf("unknown game type %q", st.GameType)
	}

	strategy, ok := plugin.StrategyByID(p, aiPlayer.StrategyID)
	if !ok {
		return nil, &game.AIStrategyNotFoundError{GameType: st.GameType, StrategyID: aiPlayer.StrategyID}
	}

	limit := strategy.TimeLimit()
	if limit <= 0 {
		limit = o.defaultTimeLimit
	}

	move, err := o.generateValidMove(ctx, p, strategy, st, aiPlayerID, limit)
	if err != nil {
		return nil, err
	}

	return o.games.ApplyMove(ctx, gameID, aiPlayerID, move, st.Version)
}

// generateValidMove runs the nested retry loops: the outer budget covers
// generation failures, the inner budget validator rejections.
func (o *Orchestrator) generateValidMove(ctx context.Context, p plugin.Plugin, strategy plugin.AIStrategy, st *game.State, aiPlayerID string, limit time.Duration) (game.Move, error) {
	var lastErr error

	for failure := 0; failure <= MaxFailureRetries; failure++ {
		for attempt := 0; attempt <= MaxInvalidMoveRetries; attempt++ {
			move, err := o.generate(ctx, strategy, st, aiPlayerID, limit)
			if err != nil {
				var timeout *game.AITimeoutError
				if errors.As(err, &timeout) || errors.Is(err, context.Canceled) {
					return game.Move{}, err
				}
				lastErr = err
				break
			}

			move.PlayerID = aiPlayerID
			if verdict := p.ValidateMove(st, aiPlayerID, move); !verdict.Valid {
				lastErr = fmt.Errorf("generated move rejected: %s", verdict.Reason)
				if attempt == MaxInvalidMoveRetries {
					return game.Move{}, &game.AIMoveGenerationError{
						StrategyID: strategy.ID(),
						Attempts:   attempt + 1,
						Cause:      lastErr,
					}
				}
				continue
			}

			return move, nil
		}
	}

	return game.Move{}, &game.AIMoveGenerationError{
		StrategyID: strategy.ID(),
		Attempts:   MaxFailureRetries + 1,
		Cause:      lastErr,
	}
}

// generate races one GenerateMove call against the strategy's time limit.
// When the timer wins, the attempt fails with AITimeoutError; the generation
// goroutine is left to notice the canceled context on its own.
func (o *Orchestrator) generate(ctx context.Context, strategy plugin.AIStrategy, st *game.State, aiPlayerID string, limit time.Duration) (game.Move, error) {
	genCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type generated struct {
		move game.Move
		err  error
	}
	done := make(chan generated, 1)

	go func() {
		move, err := strategy.GenerateMove(genCtx, st.Clone(), aiPlayerID)
		done <- generated{move: move, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return game.Move{}, &game.AITimeoutError{StrategyID: strategy.ID(), Limit: limit}
			}
			return game.Move{}, fmt.Errorf("move generation failed: %w", res.err)
		}
		return res.move, nil
	case <-genCtx.Done():
		if err := ctx.Err(); err != nil {
			return game.Move{}, err
		}
		return game.Move{}, &game.AITimeoutError{StrategyID: strategy.ID(), Limit: limit}
	}
}
