package orders

// Status is an order's position in the settlement lifecycle. The happy path
// runs DRAFT → AWAITING_ESCROW → ESCROWED → AWAITING_FIAT_PAYMENT →
// SHIPPED → AWAITING_CONFIRMATION → RELEASED; disputes and refunds branch
// off into their own terminal states.
type Status string

const (
	StatusDraft                Status = "DRAFT"
	StatusAwaitingEscrow       Status = "AWAITING_ESCROW"
	StatusEscrowed             Status = "ESCROWED"
	StatusAwaitingFiatPayment  Status = "AWAITING_FIAT_PAYMENT"
	StatusShipped              Status = "SHIPPED"
	StatusAwaitingConfirmation Status = "AWAITING_CONFIRMATION"
	StatusReleased             Status = "RELEASED"
	StatusRefunded             Status = "REFUNDED"
	StatusDisputed             Status = "DISPUTED"
)

// transitions maps each state to the states reachable from it. Transitions
// are driven by escrow lock confirmation (chain event), the buyer's fiat
// payment marker, shipment, the buyer's explicit release or the auto-release
// deadline elapsing, and arbiter dispute resolution.
var transitions = map[Status][]Status{
	StatusDraft:                {StatusAwaitingEscrow},
	StatusAwaitingEscrow:       {StatusEscrowed, StatusAwaitingFiatPayment, StatusRefunded},
	StatusEscrowed:             {StatusAwaitingFiatPayment, StatusShipped, StatusDisputed, StatusRefunded},
	StatusAwaitingFiatPayment:  {StatusShipped, StatusAwaitingConfirmation, StatusDisputed, StatusRefunded},
	StatusShipped:              {StatusAwaitingConfirmation, StatusReleased, StatusDisputed},
	StatusAwaitingConfirmation: {StatusReleased, StatusDisputed},
	StatusDisputed:             {StatusReleased, StatusRefunded},
}

// CanTransition reports whether moving from one status to another is a valid
// lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from a status.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CountsTowardReputation reports whether an order in this status is a
// confirmed sale for reputation aggregation. Only RELEASED counts; transient
// and failed states never contribute to sales or volume.
func (s Status) CountsTowardReputation() bool {
	return s == StatusReleased
}

// EscrowActive reports whether an order in this status may hold locked
// escrow funds on chain, making it a candidate for the auto-release sweep.
func (s Status) EscrowActive() bool {
	return s == StatusEscrowed || s == StatusShipped
}
