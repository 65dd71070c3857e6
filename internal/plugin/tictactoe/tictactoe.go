// Package tictactoe implements the tic-tac-toe game plugin. It doubles as
// the reference implementation for plugin authors: it exercises every
// optional capability (hooks and AI strategies).
package tictactoe

import (
	"fmt"

	"github.com/tabletopd/tabletopd/internal/game"
	"github.com/tabletopd/tabletopd/internal/plugin"
)

// GameType is the registry key for this plugin.
const GameType = "tictactoe"

// ActionPlace is the single move action: place your mark on a cell.
// Parameters: {"position": 0..8}.
const ActionPlace = "place"

const boardKey = "board"

var marks = [2]string{"X", "O"}

var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func init() {
	plugin.Default.MustRegister(New())
}

// Plugin is the tic-tac-toe rules implementation.
type Plugin struct{}

// New creates the tic-tac-toe plugin.
func New() *Plugin {
	return &Plugin{}
}

// Type returns the game-type string.
func (p *Plugin) Type() string { return GameType }

// NewGame seeds an empty 3x3 board. Tic-tac-toe is strictly two-player.
func (p *Plugin) NewGame(state *game.State) (*game.State, error) {
	if len(state.Players) != 2 {
		return nil, fmt.Errorf("tictactoe requires exactly 2 players, got %d", len(state.Players))
	}

	next := state.Clone()
	if next.Metadata == nil {
		next.Metadata = make(map[string]any)
	}
	next.Metadata[boardKey] = emptyBoard()
	return next, nil
}

// ValidateMove checks the action tag, cell bounds and cell occupancy. Turn
// order is enforced structurally by the core before the plugin is consulted.
func (p *Plugin) ValidateMove(state *game.State, playerID string, move game.Move) game.ValidationResult {
	if move.Action != ActionPlace {
		return game.ValidationResult{Reason: fmt.Sprintf("unknown action %q", move.Action)}
	}

	pos, ok := positionParam(move)
	if !ok {
		return game.ValidationResult{Reason: "move requires an integer 'position' parameter"}
	}
	if pos < 0 || pos > 8 {
		return game.ValidationResult{Reason: fmt.Sprintf("position %d out of range 0-8", pos)}
	}

	board, err := boardFrom(state)
	if err != nil {
		return game.ValidationResult{Reason: err.Error()}
	}
	if board[pos] != "" {
		return game.ValidationResult{Reason: fmt.Sprintf("cell %d is already taken", pos)}
	}

	return game.ValidationResult{Valid: true}
}

// ApplyMove places the player's mark and passes the turn.
func (p *Plugin) ApplyMove(state *game.State, playerID string, move game.Move) (*game.State, error) {
	pos, ok := positionParam(move)
	if !ok {
		return nil, fmt.Errorf("move requires an integer 'position' parameter")
	}

	board, err := boardFrom(state)
	if err != nil {
		return nil, err
	}

	mark, err := markOf(state, playerID)
	if err != nil {
		return nil, err
	}

	board[pos] = mark

	next := state.Clone()
	next.Metadata[boardKey] = board[:]
	next.CurrentPlayerIndex = (next.CurrentPlayerIndex + 1) % len(next.Players)
	return next, nil
}

// IsGameOver reports a completed line or a full board.
func (p *Plugin) IsGameOver(state *game.State) bool {
	board, err := boardFrom(state)
	if err != nil {
		return false
	}
	if winningMark(board) != "" {
		return true
	}
	return boardFull(board)
}

// GameResult returns the winner by mark, or an explicit draw on a full board.
func (p *Plugin) GameResult(state *game.State) game.Result {
	board, err := boardFrom(state)
	if err != nil {
		return game.Result{Outcome: game.OutcomeNone}
	}

	if mark := winningMark(board); mark != "" {
		for i, pl := range state.Players {
			if i < len(marks) && marks[i] == mark {
				return game.Result{Outcome: game.OutcomeWin, WinnerID: pl.ID}
			}
		}
	}
	if boardFull(board) {
		return game.Result{Outcome: game.OutcomeDraw}
	}
	return game.Result{Outcome: game.OutcomeNone}
}

func emptyBoard() []string {
	return make([]string, 9)
}

// boardFrom decodes the board from plugin metadata. The board round-trips
// through JSON in the store, so both []string and []any are accepted.
func boardFrom(state *game.State) ([9]string, error) {
	var board [9]string

	raw, ok := state.Metadata[boardKey]
	if !ok {
		return board, fmt.Errorf("game state has no board")
	}

	switch cells := raw.(type) {
	case []string:
		if len(cells) != 9 {
			return board, fmt.Errorf("board has %d cells, want 9", len(cells))
		}
		copy(board[:], cells)
	case []any:
		if len(cells) != 9 {
			return board, fmt.Errorf("board has %d cells, want 9", len(cells))
		}
		for i, c := range cells {
			s, ok := c.(string)
			if !ok {
				return board, fmt.Errorf("board cell %d is not a string", i)
			}
			board[i] = s
		}
	default:
		return board, fmt.Errorf("board has unexpected type %T", raw)
	}

	return board, nil
}

// positionParam extracts the target cell. JSON decoding turns numbers into
// float64, so both forms are accepted.
func positionParam(move game.Move) (int, bool) {
	raw, ok := move.Parameters["position"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func markOf(state *game.State, playerID string) (string, error) {
	for i, pl := range state.Players {
		if pl.ID == playerID {
			if i >= len(marks) {
				return "", fmt.Errorf("player index %d out of range", i)
			}
			return marks[i], nil
		}
	}
	return "", fmt.Errorf("player %s is not seated in this game", playerID)
}

func winningMark(board [9]string) string {
	for _, line := range winningLines {
		if board[line[0]] != "" && board[line[0]] == board[line[1]] && board[line[1]] == board[line[2]] {
			return board[line[0]]
		}
	}
	return ""
}

func boardFull(board [9]string) bool {
	for _, c := range board {
		if c == "" {
			return false
		}
	}
	return true
}
