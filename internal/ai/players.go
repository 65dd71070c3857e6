// Package ai manages AI-controlled seats: their configuration records and
// the orchestration of their turns.
package ai

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tabletopd/tabletopd/internal/game"
	"go.uber.org/zap"
)

// Players holds AIPlayer configuration records. A record is created once
// per AI seat at game creation and is never mutated mid-game except through
// an explicit update.
type Players struct {
	logger *zap.Logger

	mu      sync.RWMutex
	players map[string]*game.AIPlayer
}

// NewPlayers creates an empty AI player manager.
func NewPlayers(logger *zap.Logger) *Players {
	return &Players{
		logger:  logger,
		players: make(map[string]*game.AIPlayer),
	}
}

// Create registers a new AI player and returns its record.
func (p *Players) Create(gameType, name, strategyID, difficulty string, configuration map[string]any) *game.AIPlayer {
	player := &game.AIPlayer{
		ID:            uuid.New().String(),
		Name:          name,
		GameType:      gameType,
		StrategyID:    strategyID,
		Difficulty:    difficulty,
		Configuration: configuration,
		CreatedAt:     time.Now(),
	}

	p.mu.Lock()
	p.players[player.ID] = player
	p.mu.Unlock()

	p.logger.Info("ai player created",
		zap.String("ai_player_id", player.ID),
		zap.String("game_type", gameType),
		zap.String("strategy_id", strategyID),
		zap.String("difficulty", difficulty),
	)

	return clonePlayer(player)
}

// Get returns the AI player record or game.ErrAIPlayerNotFound.
func (p *Players) Get(id string) (*game.AIPlayer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	player, ok := p.players[id]
	if !ok {
		return nil, game.ErrAIPlayerNotFound
	}
	return clonePlayer(player), nil
}

// Update replaces the mutable fields of an AI player record.
func (p *Players) Update(id, name, strategyID, difficulty string, configuration map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	player, ok := p.players[id]
	if !ok {
		return game.ErrAIPlayerNotFound
	}

	player.Name = name
	player.StrategyID = strategyID
	player.Difficulty = difficulty
	player.Configuration = configuration
	return nil
}

// Remove deletes an AI player record, typically when its game ends.
func (p *Players) Remove(id string) {
	p.mu.Lock()
	delete(p.players, id)
	p.mu.Unlock()
}

// Count returns the number of registered AI players.
func (p *Players) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.players)
}

func clonePlayer(src *game.AIPlayer) *game.AIPlayer {
	cp := *src
	if src.Configuration != nil {
		cp.Configuration = make(map[string]any, len(src.Configuration))
		for k, v := range src.Configuration {
			cp.Configuration[k] = v
		}
	}
	return &cp
}
