package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLifecycleTransitions(t *testing.T) {
	tests := []struct {
		from    Lifecycle
		to      Lifecycle
		allowed bool
	}{
		{LifecycleCreated, LifecycleWaitingForPlayers, true},
		{LifecycleCreated, LifecycleActive, true},
		{LifecycleCreated, LifecycleAbandoned, true},
		{LifecycleWaitingForPlayers, LifecycleActive, true},
		{LifecycleWaitingForPlayers, LifecycleAbandoned, true},
		{LifecycleActive, LifecycleCompleted, true},
		{LifecycleActive, LifecycleAbandoned, true},
		{LifecycleActive, LifecycleWaitingForPlayers, false},
		{LifecycleCompleted, LifecycleActive, false},
		{LifecycleCompleted, LifecycleAbandoned, false},
		{LifecycleAbandoned, LifecycleActive, false},
		{LifecycleWaitingForPlayers, LifecycleCreated, false},
	}

	for _, tt := range tests {
		got := tt.from.CanTransitionTo(tt.to)
		assert.Equal(t, tt.allowed, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestLifecycleTerminal(t *testing.T) {
	assert.False(t, LifecycleCreated.Terminal())
	assert.False(t, LifecycleWaitingForPlayers.Terminal())
	assert.False(t, LifecycleActive.Terminal())
	assert.True(t, LifecycleCompleted.Terminal())
	assert.True(t, LifecycleAbandoned.Terminal())
}

func TestCurrentPlayer(t *testing.T) {
	st := &State{
		Players:            []Player{{ID: "p1"}, {ID: "p2"}},
		CurrentPlayerIndex: 1,
	}

	p, ok := st.CurrentPlayer()
	assert.True(t, ok)
	assert.Equal(t, "p2", p.ID)

	st.CurrentPlayerIndex = 5
	_, ok = st.CurrentPlayer()
	assert.False(t, ok)

	empty := &State{}
	_, ok = empty.CurrentPlayer()
	assert.False(t, ok)
}

func TestParticipant(t *testing.T) {
	st := &State{Players: []Player{{ID: "p1", Name: "Alice"}, {ID: "p2", Name: "Bob"}}}

	p, ok := st.Participant("p2")
	assert.True(t, ok)
	assert.Equal(t, "Bob", p.Name)

	_, ok = st.Participant("unknown")
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	st := &State{
		ID:        "g1",
		Players:   []Player{{ID: "p1"}},
		Metadata:  map[string]any{"board": []string{"X", "", ""}},
		Version:   3,
		CreatedAt: time.Now(),
		MoveHistory: []Move{
			{PlayerID: "p1", Action: "place", Parameters: map[string]any{"position": 0}},
		},
	}

	cp := st.Clone()
	cp.Players[0].ID = "mutated"
	cp.Metadata["board"].([]string)[0] = "O"
	cp.MoveHistory[0].Parameters["position"] = 8
	cp.Version = 99

	assert.Equal(t, "p1", st.Players[0].ID)
	assert.Equal(t, "X", st.Metadata["board"].([]string)[0])
	assert.Equal(t, 0, st.MoveHistory[0].Parameters["position"])
	assert.Equal(t, int64(3), st.Version)
}

func TestCloneNil(t *testing.T) {
	var st *State
	assert.Nil(t, st.Clone())
}
