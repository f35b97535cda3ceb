package orders

import "time"

// The saga record tracks, per order, which of the two parallel outcomes
// (inventory, payment) have arrived. It lives in a local table owned by
// the order service; there is no shared orchestrator state. Transitions
// are pure so convergence is testable without I/O.

type Outcome string

const (
	OutcomePending Outcome = ""
	OutcomeOK      Outcome = "OK"
	OutcomeFailed  Outcome = "FAILED"
)

type SagaRecord struct {
	OrderID   string
	Inventory Outcome
	Payment   Outcome
	UpdatedAt time.Time
}

// Signal is one observed saga event, already decoded.
type Signal struct {
	Source    string // "inventory" | "payment"
	OK        bool
	Reason    string // failure reason when !OK
	PaymentID string // set on payment-sourced signals
}

const (
	SourceInventory = "inventory"
	SourcePayment   = "payment"
)

// Decision tells the coordinator what to enact after a signal. The
// enactment itself is guarded again at the store (confirm-if-pending,
// cancel-if-cancellable) so replays converge.
type Decision int

const (
	// DecideNothing: duplicate or out-of-date signal.
	DecideNothing Decision = iota
	// DecideConfirm: payment succeeded with no failure on record.
	DecideConfirm
	// DecideCancel: cancel the order and publish OrderCancelled so
	// inventory releases any stock it reserved.
	DecideCancel
	// DecideCancelAndRefund: inventory failed after the payment had
	// already completed; cancel and request a refund.
	DecideCancelAndRefund
	// DecideRefund: payment completed for an order whose inventory
	// already failed (order is cancelled); just undo the charge.
	DecideRefund
)

// Apply folds a signal into the record and returns the decision.
// A repeated identical outcome decides nothing, which makes duplicate
// delivery of the same signal a no-op.
func (r *SagaRecord) Apply(sig Signal) Decision {
	out := OutcomeFailed
	if sig.OK {
		out = OutcomeOK
	}

	switch sig.Source {
	case SourceInventory:
		if r.Inventory == out {
			return DecideNothing
		}
		r.Inventory = out
	case SourcePayment:
		if r.Payment == out {
			return DecideNothing
		}
		r.Payment = out
	default:
		return DecideNothing
	}
	r.UpdatedAt = time.Now().UTC()

	if sig.OK {
		if sig.Source == SourcePayment {
			if r.Inventory == OutcomeFailed {
				return DecideRefund
			}
			return DecideConfirm
		}
		// Inventory success alone changes nothing; payment drives the
		// confirmation.
		return DecideNothing
	}

	if sig.Source == SourceInventory && r.Payment == OutcomeOK {
		return DecideCancelAndRefund
	}
	return DecideCancel
}
