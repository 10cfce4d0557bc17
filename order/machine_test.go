package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/distribution-ledger/order"
)

// =============================================================================
// TRANSITION TABLE TESTS
// =============================================================================

func TestMachine_Distributor_ForwardChain(t *testing.T) {
	// GIVEN: The distributor transition table
	// THEN: Every adjacent pair in the chain is a valid advance

	m := order.MachineFor(order.KindDistributor)

	steps := []struct{ from, to order.Status }{
		{order.StatusPendingCentral, order.StatusPOIssued},
		{order.StatusPOIssued, order.StatusProcessing},
		{order.StatusProcessing, order.StatusShipped},
		{order.StatusShipped, order.StatusReceived},
	}
	for _, s := range steps {
		assert.NoError(t, m.ValidateAdvance("o-1", s.from, s.to), "%s -> %s should be valid", s.from, s.to)
	}
}

func TestMachine_Resale_ForwardChain(t *testing.T) {
	m := order.MachineFor(order.KindResale)

	steps := []struct{ from, to order.Status }{
		{order.StatusPending, order.StatusApproved},
		{order.StatusApproved, order.StatusProcessing},
		{order.StatusProcessing, order.StatusShipped},
		{order.StatusShipped, order.StatusReceived},
	}
	for _, s := range steps {
		assert.NoError(t, m.ValidateAdvance("o-1", s.from, s.to), "%s -> %s should be valid", s.from, s.to)
	}
}

func TestMachine_SkippingAStage_Rejected(t *testing.T) {
	// GIVEN: A distributor order in PENDING_CENTRAL
	// WHEN: Advancing straight to PROCESSING
	// THEN: Rejected; advances must be adjacent-forward

	m := order.MachineFor(order.KindDistributor)

	err := m.ValidateAdvance("o-1", order.StatusPendingCentral, order.StatusProcessing)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	var ite *order.InvalidTransitionError
	assert.ErrorAs(t, err, &ite)
	assert.Equal(t, order.StatusPendingCentral, ite.From)
	assert.Equal(t, order.StatusProcessing, ite.To)
}

func TestMachine_BackwardMove_Rejected(t *testing.T) {
	m := order.MachineFor(order.KindResale)

	err := m.ValidateAdvance("o-1", order.StatusShipped, order.StatusProcessing)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestMachine_CrossHierarchyState_Rejected(t *testing.T) {
	// GIVEN: A distributor order
	// WHEN: Advancing to a resale-only state (APPROVED)
	// THEN: Rejected; the state is not in the distributor chain

	m := order.MachineFor(order.KindDistributor)

	err := m.ValidateAdvance("o-1", order.StatusPendingCentral, order.StatusApproved)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestMachine_TerminalStates(t *testing.T) {
	for _, kind := range []order.Kind{order.KindDistributor, order.KindResale} {
		m := order.MachineFor(kind)
		assert.True(t, m.IsTerminal(order.StatusReceived), "%s: RECEIVED is terminal", kind)
		assert.True(t, m.IsTerminal(order.StatusCancelled), "%s: CANCELLED is terminal", kind)
		assert.False(t, m.IsTerminal(m.Initial()), "%s: initial state is not terminal", kind)
	}
}

func TestMachine_CancellationWindows(t *testing.T) {
	// Distributor orders can only be cancelled before the PO is issued;
	// resale orders stay cancellable one step longer, through APPROVED.

	dist := order.MachineFor(order.KindDistributor)
	assert.True(t, dist.CanCancel(order.StatusPendingCentral))
	assert.False(t, dist.CanCancel(order.StatusPOIssued))
	assert.False(t, dist.CanCancel(order.StatusProcessing))

	resale := order.MachineFor(order.KindResale)
	assert.True(t, resale.CanCancel(order.StatusPending))
	assert.True(t, resale.CanCancel(order.StatusApproved))
	assert.False(t, resale.CanCancel(order.StatusProcessing))
}

func TestMachine_IssuanceStates(t *testing.T) {
	assert.Equal(t, order.StatusPOIssued, order.MachineFor(order.KindDistributor).Issuance())
	assert.Equal(t, order.StatusApproved, order.MachineFor(order.KindResale).Issuance())
}
