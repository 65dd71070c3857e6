package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const broadcastBuffer = 256

// Hub maintains the set of connected subscribers and fans events out to
// them. All client bookkeeping happens on the Run goroutine; the exported
// methods only post to channels, so Broadcast never blocks the mutation
// pipeline even while clients churn.
type Hub struct {
	logger *zap.Logger

	register   chan *Client
	unregister chan *Client
	events     chan Event

	clients map[*Client]struct{}
}

// NewHub creates a hub. Call Run before registering clients.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Event, broadcastBuffer),
		clients:    make(map[*Client]struct{}),
	}
}

// Run processes registrations and event fan-out until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("subscriber connected",
				zap.String("game_id", c.gameID),
				zap.Int("subscribers", len(h.clients)),
			)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				c.close()
				delete(h.clients, c)
				h.logger.Debug("subscriber disconnected",
					zap.String("game_id", c.gameID),
					zap.Int("subscribers", len(h.clients)),
				)
			}
		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

// Broadcast posts an event for fan-out. When the hub's buffer is full the
// event is dropped and logged; callers are never blocked or failed.
func (h *Hub) Broadcast(gameID string, event Event) {
	event.GameID = gameID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case h.events <- event:
	default:
		h.logger.Warn("notification dropped, hub buffer full",
			zap.String("game_id", gameID),
			zap.String("event_type", string(event.Type)),
		)
	}
}

func (h *Hub) deliver(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode notification",
			zap.String("game_id", ev.GameID),
			zap.Error(err),
		)
		return
	}

	for c := range h.clients {
		if c.gameID != "" && c.gameID != ev.GameID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow subscriber: evict rather than stall fan-out.
			h.logger.Warn("evicting slow subscriber", zap.String("game_id", c.gameID))
			c.close()
			delete(h.clients, c)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
