package lock

import (
	"sync"

	"go.uber.org/zap"
)

// Manager serializes state mutations per game id. Locks are created lazily
// on first use and garbage-collected once the last holder or waiter releases
// them, so the map never grows with the number of finished games. Calls for
// different game ids proceed fully in parallel.
type Manager struct {
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*gameLock
}

type gameLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a new lock manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger,
		locks:  make(map[string]*gameLock),
	}
}

// WithLock executes fn while holding the exclusive lock for gameID. No other
// WithLock call for the same gameID runs concurrently with fn. fn's error is
// returned to the caller after the lock is released. No fairness guarantee is
// made between racing waiters beyond mutual exclusion.
func (m *Manager) WithLock(gameID string, fn func() error) error {
	l := m.acquire(gameID)
	l.mu.Lock()

	defer func() {
		l.mu.Unlock()
		m.release(gameID, l)
	}()

	return fn()
}

func (m *Manager) acquire(gameID string) *gameLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[gameID]
	if !ok {
		l = &gameLock{}
		m.locks[gameID] = l
	}
	l.refs++
	return l
}

func (m *Manager) release(gameID string, l *gameLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, gameID)
	}
}

// ActiveLocks returns the number of game ids currently locked or waited on.
func (m *Manager) ActiveLocks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
