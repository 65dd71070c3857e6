package game

import (
	"time"
)

// Lifecycle represents the coarse-grained phase of a game instance.
type Lifecycle string

const (
	LifecycleCreated           Lifecycle = "created"
	LifecycleWaitingForPlayers Lifecycle = "waiting_for_players"
	LifecycleActive            Lifecycle = "active"
	LifecycleCompleted         Lifecycle = "completed"
	LifecycleAbandoned         Lifecycle = "abandoned"
)

// Terminal reports whether no further mutation is permitted in this phase.
func (l Lifecycle) Terminal() bool {
	return l == LifecycleCompleted || l == LifecycleAbandoned
}

// CanTransitionTo reports whether the one-directional lifecycle graph permits
// moving from l to next. Re-entry into an earlier phase is never allowed.
func (l Lifecycle) CanTransitionTo(next Lifecycle) bool {
	switch l {
	case LifecycleCreated:
		return next == LifecycleWaitingForPlayers || next == LifecycleActive || next == LifecycleAbandoned
	case LifecycleWaitingForPlayers:
		return next == LifecycleActive || next == LifecycleAbandoned
	case LifecycleActive:
		return next == LifecycleCompleted || next == LifecycleAbandoned
	default:
		return false
	}
}

// Outcome tags the result of a finished game. A draw is an explicit value,
// never inferred from the absence of a winner.
type Outcome string

const (
	OutcomeNone Outcome = "none"
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
)

// Result is the tagged game result. WinnerID is only meaningful when
// Outcome is OutcomeWin.
type Result struct {
	Outcome  Outcome `json:"outcome"`
	WinnerID string  `json:"winner_id,omitempty"`
}

// Player is a seat in a game. AI seats carry IsAI and reference an AIPlayer
// record by the same ID.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IsAI bool   `json:"is_ai,omitempty"`
}

// Move is a single action submitted by a participant. Once appended to a
// game's move history it is immutable.
type Move struct {
	PlayerID   string         `json:"player_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// AIPlayer is the configuration for an AI-controlled seat. Created once at
// game creation and never mutated mid-game.
type AIPlayer struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	GameType      string         `json:"game_type"`
	StrategyID    string         `json:"strategy_id"`
	Difficulty    string         `json:"difficulty,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ValidationResult is a plugin's verdict on a proposed move.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// State is the durable, versioned state of a single game instance. The store
// owns the durable copy; every successful mutation increments Version by
// exactly one.
type State struct {
	ID                 string         `json:"id"`
	GameType           string         `json:"game_type"`
	Lifecycle          Lifecycle      `json:"lifecycle"`
	Players            []Player       `json:"players"`
	Seats              int            `json:"seats"`
	CurrentPlayerIndex int            `json:"current_player_index"`
	MoveHistory        []Move         `json:"move_history"`
	Result             Result         `json:"result"`
	Version            int64          `json:"version"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// CurrentPlayer returns the player whose turn it is. The second return is
// false when the game has no players.
func (s *State) CurrentPlayer() (Player, bool) {
	if len(s.Players) == 0 || s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return Player{}, false
	}
	return s.Players[s.CurrentPlayerIndex], true
}

// Participant returns the player with the given ID if they are seated in
// this game.
func (s *State) Participant(playerID string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

// Clone returns a deep copy of the state. Stores hand out clones so callers
// can never mutate the durable copy in place.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Players = append([]Player(nil), s.Players...)
	cp.MoveHistory = make([]Move, len(s.MoveHistory))
	for i, m := range s.MoveHistory {
		cp.MoveHistory[i] = m
		cp.MoveHistory[i].Parameters = cloneMap(m.Parameters)
	}
	cp.Metadata = cloneMap(s.Metadata)
	return &cp
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch val := v.(type) {
		case map[string]any:
			dst[k] = cloneMap(val)
		case []any:
			dst[k] = append([]any(nil), val...)
		case []string:
			dst[k] = append([]string(nil), val...)
		case []int:
			dst[k] = append([]int(nil), val...)
		default:
			dst[k] = v
		}
	}
	return dst
}
