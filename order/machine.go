/*
machine.go - Generic lifecycle state machine

PURPOSE:
  The distributor and resale hierarchies are near-identical: an ordered
  forward chain of states, a set of states cancellation is allowed from,
  and one state that marks issuance (invoice creation). Rather than two
  duck-typed implementations, both are instances of one Machine type
  parameterized by its transition table.

TRANSITION TABLES:
  Distributor: PENDING_CENTRAL -> PO_ISSUED -> PROCESSING -> SHIPPED -> RECEIVED
               CANCELLED from PENDING_CENTRAL only
  Resale:      PENDING -> APPROVED -> PROCESSING -> SHIPPED -> RECEIVED
               CANCELLED from PENDING or APPROVED

RULES:
  - Advance must be adjacent-forward: no skipping, no backward moves.
  - RECEIVED and CANCELLED are terminal.
  - The initial state is the only state adjustment is allowed in.
*/
package order

// Machine is a lifecycle transition table for one order hierarchy.
type Machine struct {
	Kind        Kind
	Chain       []Status
	Cancellable map[Status]bool
	IssueState  Status
}

var machines = map[Kind]Machine{
	KindDistributor: {
		Kind:        KindDistributor,
		Chain:       []Status{StatusPendingCentral, StatusPOIssued, StatusProcessing, StatusShipped, StatusReceived},
		Cancellable: map[Status]bool{StatusPendingCentral: true},
		IssueState:  StatusPOIssued,
	},
	KindResale: {
		Kind:        KindResale,
		Chain:       []Status{StatusPending, StatusApproved, StatusProcessing, StatusShipped, StatusReceived},
		Cancellable: map[Status]bool{StatusPending: true, StatusApproved: true},
		IssueState:  StatusApproved,
	},
}

// MachineFor returns the transition table for a hierarchy.
func MachineFor(kind Kind) Machine {
	return machines[kind]
}

// Initial returns the first state of the chain, the only state in which
// adjustment is permitted.
func (m Machine) Initial() Status {
	return m.Chain[0]
}

// Issuance returns the state whose entry triggers invoice creation.
func (m Machine) Issuance() Status {
	return m.IssueState
}

// IsTerminal reports whether no further transition is possible.
func (m Machine) IsTerminal(s Status) bool {
	return s == StatusCancelled || s == m.Chain[len(m.Chain)-1]
}

// CanCancel reports whether cancellation is allowed from s.
func (m Machine) CanCancel(s Status) bool {
	return m.Cancellable[s]
}

// index returns the chain position of s, or -1.
func (m Machine) index(s Status) int {
	for i, cs := range m.Chain {
		if cs == s {
			return i
		}
	}
	return -1
}

// ValidateAdvance checks that from -> to is exactly one step forward in
// the chain. Cancellation is not an advance; it has its own path.
func (m Machine) ValidateAdvance(id OrderID, from, to Status) error {
	fi, ti := m.index(from), m.index(to)
	if fi < 0 || ti < 0 || ti != fi+1 {
		return &InvalidTransitionError{OrderID: id, Kind: m.Kind, From: from, To: to}
	}
	return nil
}
