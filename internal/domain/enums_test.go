package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycleState_CanTransitionTo(t *testing.T) {
	legal := []struct {
		from LifecycleState
		to   LifecycleState
	}{
		{StatePending, StateScheduled},
		{StatePending, StateRunning},
		{StatePending, StateCancelled},
		{StateScheduled, StateRunning},
		{StateScheduled, StateCancelled},
		{StateRunning, StateAwaitingResults},
		{StateRunning, StateSucceeded},
		{StateRunning, StateFailed},
		{StateRunning, StateCancelled},
		{StateRunning, StateTimedOut},
		{StateAwaitingResults, StateSucceeded},
		{StateAwaitingResults, StateFailed},
		{StateAwaitingResults, StateCancelled},
		{StateAwaitingResults, StateTimedOut},
	}
	for _, tc := range legal {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct {
		from LifecycleState
		to   LifecycleState
	}{
		{StatePending, StateSucceeded},
		{StatePending, StateAwaitingResults},
		{StateScheduled, StateSucceeded},
		{StateScheduled, StateAwaitingResults},
		{StateAwaitingResults, StateRunning},
		{StateSucceeded, StateRunning},
		{StateFailed, StatePending},
		{StateCancelled, StateRunning},
		{StateTimedOut, StateFailed},
	}
	for _, tc := range illegal {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestLifecycleState_IsTerminal(t *testing.T) {
	terminal := []LifecycleState{StateSucceeded, StateFailed, StateCancelled, StateTimedOut}
	for _, state := range terminal {
		assert.True(t, state.IsTerminal(), "%s should be terminal", state)
		assert.Empty(t, legalTransitions[state], "%s must have no outgoing transitions", state)
	}

	for _, state := range []LifecycleState{StatePending, StateScheduled, StateRunning, StateAwaitingResults} {
		assert.False(t, state.IsTerminal(), "%s should not be terminal", state)
	}
}

func TestStrategy_NormalizeTickers(t *testing.T) {
	s := Strategy{Tickers: []string{" aapl ", "MSFT", "", "  ", "nvda"}}
	s.NormalizeTickers()
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, s.Tickers)
}

func TestStrategy_Weight(t *testing.T) {
	assert.Equal(t, 1.0, (&Strategy{}).Weight())
	assert.Equal(t, 1.0, (&Strategy{RuntimeWeight: -2}).Weight())
	assert.Equal(t, 2.5, (&Strategy{RuntimeWeight: 2.5}).Weight())
}
