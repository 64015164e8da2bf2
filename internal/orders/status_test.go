package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHappyPathTransitions(t *testing.T) {
	path := []Status{
		StatusDraft,
		StatusAwaitingEscrow,
		StatusAwaitingFiatPayment,
		StatusAwaitingConfirmation,
		StatusReleased,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]), "%s -> %s", path[i], path[i+1])
	}
}

func TestInvalidTransitions(t *testing.T) {
	cases := []struct{ from, to Status }{
		{StatusDraft, StatusReleased},
		{StatusDraft, StatusShipped},
		{StatusReleased, StatusDisputed},
		{StatusReleased, StatusDraft},
		{StatusRefunded, StatusAwaitingEscrow},
		{StatusAwaitingConfirmation, StatusDraft},
	}

	for _, tc := range cases {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestDisputeBranch(t *testing.T) {
	// A dispute can be raised any time funds are locked and resolves to
	// either side by arbiter decision.
	assert.True(t, CanTransition(StatusEscrowed, StatusDisputed))
	assert.True(t, CanTransition(StatusShipped, StatusDisputed))
	assert.True(t, CanTransition(StatusAwaitingConfirmation, StatusDisputed))
	assert.True(t, CanTransition(StatusDisputed, StatusReleased))
	assert.True(t, CanTransition(StatusDisputed, StatusRefunded))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StatusReleased.IsTerminal())
	assert.True(t, StatusRefunded.IsTerminal())
	assert.False(t, StatusDisputed.IsTerminal())
	assert.False(t, StatusDraft.IsTerminal())
	assert.False(t, StatusShipped.IsTerminal())
}

func TestCountsTowardReputation(t *testing.T) {
	// Only funds-delivered orders are confirmed sales; transient and
	// failed states never contribute to on-chain counters.
	for _, s := range []Status{
		StatusDraft, StatusAwaitingEscrow, StatusEscrowed, StatusAwaitingFiatPayment,
		StatusShipped, StatusAwaitingConfirmation, StatusRefunded, StatusDisputed,
	} {
		assert.False(t, s.CountsTowardReputation(), string(s))
	}
	assert.True(t, StatusReleased.CountsTowardReputation())
}

func TestEscrowActive(t *testing.T) {
	assert.True(t, StatusEscrowed.EscrowActive())
	assert.True(t, StatusShipped.EscrowActive())
	assert.False(t, StatusReleased.EscrowActive())
	assert.False(t, StatusDraft.EscrowActive())
	assert.False(t, StatusDisputed.EscrowActive())
}
