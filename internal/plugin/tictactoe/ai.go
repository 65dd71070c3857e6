package tictactoe

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/tabletopd/tabletopd/internal/game"
	"github.com/tabletopd/tabletopd/internal/plugin"
)

// Strategy ids offered by this plugin.
const (
	StrategyRandom  = "random"
	StrategyMinimax = "minimax"
)

// AIStrategies declares the plugin's AI capability.
func (p *Plugin) AIStrategies() []plugin.AIStrategy {
	return []plugin.AIStrategy{
		&randomStrategy{},
		&minimaxStrategy{},
	}
}

// randomStrategy picks a uniformly random empty cell.
type randomStrategy struct{}

func (s *randomStrategy) ID() string               { return StrategyRandom }
func (s *randomStrategy) Name() string             { return "Random" }
func (s *randomStrategy) Difficulty() string       { return "easy" }
func (s *randomStrategy) TimeLimit() time.Duration { return 0 }

func (s *randomStrategy) GenerateMove(ctx context.Context, state *game.State, aiPlayerID string) (game.Move, error) {
	board, err := boardFrom(state)
	if err != nil {
		return game.Move{}, err
	}

	empty := make([]int, 0, 9)
	for i, c := range board {
		if c == "" {
			empty = append(empty, i)
		}
	}
	if len(empty) == 0 {
		return game.Move{}, fmt.Errorf("no empty cells left")
	}

	return placeMove(aiPlayerID, empty[rand.Intn(len(empty))]), nil
}

// minimaxStrategy plays perfectly via exhaustive minimax. The 3x3 game tree
// is small enough that no pruning or memoization is needed.
type minimaxStrategy struct{}

func (s *minimaxStrategy) ID() string               { return StrategyMinimax }
func (s *minimaxStrategy) Name() string             { return "Minimax" }
func (s *minimaxStrategy) Difficulty() string       { return "hard" }
func (s *minimaxStrategy) TimeLimit() time.Duration { return 2 * time.Second }

func (s *minimaxStrategy) GenerateMove(ctx context.Context, state *game.State, aiPlayerID string) (game.Move, error) {
	board, err := boardFrom(state)
	if err != nil {
		return game.Move{}, err
	}

	myMark, err := markOf(state, aiPlayerID)
	if err != nil {
		return game.Move{}, err
	}

	bestPos := -1
	bestScore := -2
	for i, c := range board {
		if c != "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return game.Move{}, err
		}
		board[i] = myMark
		score := -negamax(board, otherMark(myMark))
		board[i] = ""
		if score > bestScore {
			bestScore = score
			bestPos = i
		}
	}

	if bestPos < 0 {
		return game.Move{}, fmt.Errorf("no empty cells left")
	}
	return placeMove(aiPlayerID, bestPos), nil
}

// negamax scores the position from the perspective of the mark to move:
// +1 winning, 0 drawn, -1 losing.
func negamax(board [9]string, toMove string) int {
	if mark := winningMark(board); mark != "" {
		// The previous mover completed a line; the side to move has lost.
		return -1
	}
	if boardFull(board) {
		return 0
	}

	best := -2
	for i, c := range board {
		if c != "" {
			continue
		}
		board[i] = toMove
		score := -negamax(board, otherMark(toMove))
		board[i] = ""
		if score > best {
			best = score
		}
	}
	return best
}

func otherMark(mark string) string {
	if mark == "X" {
		return "O"
	}
	return "X"
}

func placeMove(playerID string, position int) game.Move {
	return game.Move{
		PlayerID:   playerID,
		Action:     ActionPlace,
		Parameters: map[string]any{"position": position},
	}
}
