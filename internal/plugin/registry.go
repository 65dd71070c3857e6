package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps game-type strings to plugins. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin under its game type. Registering the same type
// twice is a programming error.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	gameType := p.Type()
	if gameType == "" {
		return fmt.Errorf("plugin has empty game type")
	}
	if _, exists := r.plugins[gameType]; exists {
		return fmt.Errorf("game type %q already registered", gameType)
	}

	r.plugins[gameType] = p
	return nil
}

// MustRegister is Register that panics on error, for init-time registration.
func (r *Registry) MustRegister(p Plugin) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get returns the plugin for a game type.
func (r *Registry) Get(gameType string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[gameType]
	return p, ok
}

// Types returns the registered game types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.plugins))
	for t := range r.plugins {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Default is the process-wide registry that plugin packages register into
// from their init functions via a blank import.
var Default = NewRegistry()
