// Package notify delivers finalized game state transitions to interested
// subscribers. Delivery is best-effort and never blocks or fails the
// mutation pipeline that produced the event.
package notify

import (
	"time"

	"github.com/tabletopd/tabletopd/internal/game"
)

// EventType identifies the kind of state transition being announced.
type EventType string

const (
	EventGameCreated   EventType = "game_created"
	EventPlayerJoined  EventType = "player_joined"
	EventMoveApplied   EventType = "move_applied"
	EventGameCompleted EventType = "game_completed"
	EventGameAbandoned EventType = "game_abandoned"
	EventAITurnFailed  EventType = "ai_turn_failed"
)

// Event is the envelope broadcast to subscribers after a finalized
// transition. State is a snapshot; subscribers must not expect it to be
// updated in place.
type Event struct {
	Type      EventType   `json:"type"`
	GameID    string      `json:"game_id"`
	State     *game.State `json:"state,omitempty"`
	Move      *game.Move  `json:"move,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Broadcaster fans an event out to subscribers of a game. Implementations
// must be non-blocking from the caller's point of view and must swallow
// their own delivery failures.
type Broadcaster interface {
	Broadcast(gameID string, event Event)
}

// NopBroadcaster discards every event.
type NopBroadcaster struct{}

// Broadcast does nothing.
func (NopBroadcaster) Broadcast(string, Event) {}
