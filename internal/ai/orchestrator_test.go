package ai

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tabletopd/tabletopd/internal/game"
	"github.com/tabletopd/tabletopd/internal/lock"
	"github.com/tabletopd/tabletopd/internal/plugin"
	"github.com/tabletopd/tabletopd/internal/plugin/tictactoe"
	"github.com/tabletopd/tabletopd/internal/state"
	"github.com/tabletopd/tabletopd/internal/store"
	"go.uber.org/zap"
)

// scriptedStrategy counts GenerateMove calls and delegates to a behavior
// function, so each test can script exactly how generation behaves.
type scriptedStrategy struct {
	id        string
	timeLimit time.Duration
	calls     atomic.Int64
	generate  func(ctx context.Context, call int64, st *game.State, aiPlayerID string) (game.Move, error)
}

func (s *scriptedStrategy) ID() string               { return s.id }
func (s *scriptedStrategy) Name() string             { return s.id }
func (s *scriptedStrategy) Difficulty() string       { return "test" }
func (s *scriptedStrategy) TimeLimit() time.Duration { return s.timeLimit }

func (s *scriptedStrategy) GenerateMove(ctx context.Context, st *game.State, aiPlayerID string) (game.Move, error) {
	call := s.calls.Add(1)
	return s.generate(ctx, call, st, aiPlayerID)
}

// scriptedPlugin is a permissive rules engine whose validator can be
// overridden per test, carrying the scripted strategies.
type scriptedPlugin struct {
	gameType   string
	strategies []plugin.AIStrategy
	validate   func(st *game.State, playerID string, move game.Move) game.ValidationResult
}

func (p *scriptedPlugin) Type() string { return p.gameType }
func (p *scriptedPlugin) NewGame(st *game.State) (*game.State, error) {
	return st.Clone(), nil
}
func (p *scriptedPlugin) ValidateMove(st *game.State, playerID string, move game.Move) game.ValidationResult {
	if p.validate != nil {
		return p.validate(st, playerID, move)
	}
	return game.ValidationResult{Valid: true}
}
func (p *scriptedPlugin) ApplyMove(st *game.State, _ string, _ game.Move) (*game.State, error) {
	next := st.Clone()
	if len(next.Players) > 0 {
		next.CurrentPlayerIndex = (next.CurrentPlayerIndex + 1) % len(next.Players)
	}
	return next, nil
}
func (p *scriptedPlugin) IsGameOver(*game.State) bool { return false }
func (p *scriptedPlugin) GameResult(*game.State) game.Result {
	return game.Result{Outcome: game.OutcomeNone}
}
func (p *scriptedPlugin) AIStrategies() []plugin.AIStrategy { return p.strategies }

type fixture struct {
	games        *state.Manager
	players      *Players
	orchestrator *Orchestrator
}

func newFixture(t *testing.T, plugins ...plugin.Plugin) *fixture {
	t.Helper()
	registry := plugin.NewRegistry()
	for _, p := range plugins {
		require.NoError(t, registry.Register(p))
	}
	logger := zap.NewNop()
	games := state.NewManager(store.NewMemoryStore(), registry, lock.NewManager(logger), nil, logger)
	players := NewPlayers(logger)
	orch := NewOrchestrator(games, players, registry, nil, 0, 0, logger)
	return &fixture{games: games, players: players, orchestrator: orch}
}

// aiGame creates an active two-seat game where the AI seat is to move.
func (f *fixture) aiGame(t *testing.T, gameType, strategyID string) (*game.State, *game.AIPlayer) {
	t.Helper()
	bot := f.players.Create(gameType, "bot", strategyID, "test", nil)
	st, err := f.games.CreateGame(context.Background(), gameType,
		[]game.Player{{ID: bot.ID, Name: bot.Name, IsAI: true}, {ID: "human"}}, 2)
	require.NoError(t, err)
	return st, bot
}

func validMove(playerID string) game.Move {
	return game.Move{PlayerID: playerID, Action: "noop"}
}

func TestProcessAITurnAppliesGeneratedMove(t *testing.T) {
	strategy := &scriptedStrategy{
		id: "scripted",
		generate: func(_ context.Context, _ int64, _ *game.State, aiPlayerID string) (game.Move, error) {
			return validMove(aiPlayerID), nil
		},
	}
	f := newFixture(t, &scriptedPlugin{gameType: "scripted", strategies: []plugin.AIStrategy{strategy}})
	st, bot := f.aiGame(t, "scripted", "scripted")

	next, err := f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	require.NoError(t, err)

	assert.Equal(t, st.Version+1, next.Version)
	require.Len(t, next.MoveHistory, 1)
	assert.Equal(t, bot.ID, next.MoveHistory[0].PlayerID)
	assert.False(t, next.MoveHistory[0].Timestamp.IsZero())
	assert.Equal(t, int64(1), strategy.calls.Load())
}

func TestAlwaysInvalidStrategyExhaustsInnerBudget(t *testing.T) {
	strategy := &scriptedStrategy{
		id: "stubborn",
		generate: func(_ context.Context, _ int64, _ *game.State, aiPlayerID string) (game.Move, error) {
			return validMove(aiPlayerID), nil
		},
	}
	p := &scriptedPlugin{
		gameType:   "scripted",
		strategies: []plugin.AIStrategy{strategy},
		validate: func(*game.State, string, game.Move) game.ValidationResult {
			return game.ValidationResult{Valid: false, Reason: "never good enough"}
		},
	}
	f := newFixture(t, p)
	st, bot := f.aiGame(t, "scripted", "stubborn")

	_, err := f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	var genErr *game.AIMoveGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, MaxInvalidMoveRetries+1, genErr.Attempts)
	assert.Equal(t, int64(MaxInvalidMoveRetries+1), strategy.calls.Load(),
		"an always-invalid strategy gets exactly the inner budget of generation calls")

	// The failed turn leaves the game untouched.
	cur, err := f.games.GetGame(context.Background(), st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.Version, cur.Version)
	assert.Empty(t, cur.MoveHistory)
}

func TestAlwaysFailingStrategyExhaustsOuterBudget(t *testing.T) {
	strategy := &scriptedStrategy{
		id: "broken",
		generate: func(_ context.Context, _ int64, _ *game.State, _ string) (game.Move, error) {
			return game.Move{}, assert.AnError
		},
	}
	f := newFixture(t, &scriptedPlugin{gameType: "scripted", strategies: []plugin.AIStrategy{strategy}})
	st, bot := f.aiGame(t, "scripted", "broken")

	_, err := f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	var genErr *game.AIMoveGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, MaxFailureRetries+1, genErr.Attempts)
	assert.Equal(t, int64(MaxFailureRetries+1), strategy.calls.Load())
}

func TestFailOnceThenValidSucceeds(t *testing.T) {
	strategy := &scriptedStrategy{
		id: "flaky",
		generate: func(_ context.Context, call int64, _ *game.State, aiPlayerID string) (game.Move, error) {
			if call == 1 {
				return game.Move{}, assert.AnError
			}
			return validMove(aiPlayerID), nil
		},
	}
	f := newFixture(t, &scriptedPlugin{gameType: "scripted", strategies: []plugin.AIStrategy{strategy}})
	st, bot := f.aiGame(t, "scripted", "flaky")

	next, err := f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, st.Version+1, next.Version)
	assert.Equal(t, int64(2), strategy.calls.Load())
}

func TestTimeoutIsTerminalWithNoRetry(t *testing.T) {
	strategy := &scriptedStrategy{
		id:        "sleepy",
		timeLimit: 30 * time.Millisecond,
		generate: func(ctx context.Context, _ int64, _ *game.State, _ string) (game.Move, error) {
			<-ctx.Done()
			return game.Move{}, ctx.Err()
		},
	}
	f := newFixture(t, &scriptedPlugin{gameType: "scripted", strategies: []plugin.AIStrategy{strategy}})
	st, bot := f.aiGame(t, "scripted", "sleepy")

	_, err := f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	var timeout *game.AITimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "sleepy", timeout.StrategyID)
	assert.Equal(t, int64(1), strategy.calls.Load(),
		"a timed out generation consumes the whole turn, no retry")
}

func TestStaleTaskForCompletedGameIsNotAnError(t *testing.T) {
	strategy := &scriptedStrategy{
		id: "scripted",
		generate: func(_ context.Context, _ int64, _ *game.State, aiPlayerID string) (game.Move, error) {
			return validMove(aiPlayerID), nil
		},
	}
	f := newFixture(t, &scriptedPlugin{gameType: "scripted", strategies: []plugin.AIStrategy{strategy}})
	st, bot := f.aiGame(t, "scripted", "scripted")

	_, err := f.games.AbandonGame(context.Background(), st.ID, "human")
	require.NoError(t, err)

	_, err = f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), strategy.calls.Load(), "no generation for a finished game")
}

func TestStaleTaskForWrongTurnIsNotAnError(t *testing.T) {
	strategy := &scriptedStrategy{
		id: "scripted",
		generate: func(_ context.Context, _ int64, _ *game.State, aiPlayerID string) (game.Move, error) {
			return validMove(aiPlayerID), nil
		},
	}
	f := newFixture(t, &scriptedPlugin{gameType: "scripted", strategies: []plugin.AIStrategy{strategy}})

	// Human seat first: it is not the bot's turn.
	bot := f.players.Create("scripted", "bot", "scripted", "test", nil)
	st, err := f.games.CreateGame(context.Background(), "scripted",
		[]game.Player{{ID: "human"}, {ID: bot.ID, IsAI: true}}, 2)
	require.NoError(t, err)

	_, err = f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), strategy.calls.Load())
}

func TestUnknownStrategy(t *testing.T) {
	f := newFixture(t, &scriptedPlugin{gameType: "scripted"})
	st, bot := f.aiGame(t, "scripted", "no-such-strategy")

	_, err := f.orchestrator.ProcessAITurn(context.Background(), st.ID, bot.ID)
	var notFound *game.AIStrategyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "no-such-strategy", notFound.StrategyID)
}

func TestUnknownAIPlayer(t *testing.T) {
	strategy := &scriptedStrategy{
		id: "scripted",
		generate: func(_ context.Context, _ int64, _ *game.State, aiPlayerID string) (game.Move, error) {
			return validMove(aiPlayerID), nil
		},
	}
	f := newFixture(t, &scriptedPlugin{gameType: "scripted", strategies: []plugin.AIStrategy{strategy}})

	st, err := f.games.CreateGame(context.Background(), "scripted",
		[]game.Player{{ID: "ghost", IsAI: true}, {ID: "human"}}, 2)
	require.NoError(t, err)

	_, err = f.orchestrator.ProcessAITurn(context.Background(), st.ID, "ghost")
	assert.ErrorIs(t, err, game.ErrAIPlayerNotFound)
}

// TestAIVersusAIGameRunsToCompletion wires the orchestrator to the state
// manager's scheduler and lets two bots play tic-tac-toe to the end. The
// chain of AI turns flows through the work queue, one task per move.
func TestAIVersusAIGameRunsToCompletion(t *testing.T) {
	registry := plugin.NewRegistry()
	require.NoError(t, registry.Register(tictactoe.New()))

	logger := zap.NewNop()
	games := state.NewManager(store.NewMemoryStore(), registry, lock.NewManager(logger), nil, logger)
	players := NewPlayers(logger)
	orch := NewOrchestrator(games, players, registry, nil, 0, 0, logger)
	games.SetAIScheduler(orch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go orch.Run(ctx)

	botX := players.Create(tictactoe.GameType, "botX", tictactoe.StrategyRandom, "easy", nil)
	botO := players.Create(tictactoe.GameType, "botO", tictactoe.StrategyMinimax, "hard", nil)

	st, err := games.CreateGame(ctx, tictactoe.GameType,
		[]game.Player{
			{ID: botX.ID, Name: botX.Name, IsAI: true},
			{ID: botO.ID, Name: botO.Name, IsAI: true},
		}, 2)
	require.NoError(t, err)

	deadline := time.Now().Add(10 * time.Second)
	var final *game.State
	for time.Now().Before(deadline) {
		cur, err := games.GetGame(ctx, st.ID)
		require.NoError(t, err)
		if cur.Lifecycle.Terminal() {
			final = cur
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NotNil(t, final, "ai-vs-ai game never finished")

	assert.Equal(t, game.LifecycleCompleted, final.Lifecycle)
	assert.NotEqual(t, game.OutcomeNone, final.Result.Outcome)
	assert.GreaterOrEqual(t, len(final.MoveHistory), 5)
	assert.LessOrEqual(t, len(final.MoveHistory), 9)

	// AI-authored moves look exactly like human ones.
	for i, mv := range final.MoveHistory {
		_, seated := final.Participant(mv.PlayerID)
		assert.True(t, seated)
		assert.Equal(t, tictactoe.ActionPlace, mv.Action)
		assert.NotNil(t, mv.Parameters["position"])
		assert.False(t, mv.Timestamp.IsZero())
		if i > 0 {
			assert.False(t, mv.Timestamp.Before(final.MoveHistory[i-1].Timestamp))
		}
	}
}

func TestScheduleDropsWhenQueueFull(t *testing.T) {
	f := newFixture(t, &scriptedPlugin{gameType: "scripted"})

	// The orchestrator is not running, so a tiny queue saturates.
	orch := NewOrchestrator(f.games, f.players, plugin.NewRegistry(), nil, 0, 1, zap.NewNop())
	orch.Schedule("g1", "bot")
	orch.Schedule("g1", "bot") // dropped, must not block
}
