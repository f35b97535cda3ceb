package inventory

import "time"

// Item is the stock ledger row for one product. Available stock is
// on-hand minus reserved; the sum of active reservations never exceeds
// on-hand.
type Item struct {
	ProductID string
	Name      string
	OnHand    int
	Reserved  int
	Active    bool
	Version   int64 // catalog event version; stale updates are skipped
	UpdatedAt time.Time
}

func (i Item) Available() int { return i.OnHand - i.Reserved }

type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "RESERVED"
	StatusFulfilled ReservationStatus = "FULFILLED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusExpired   ReservationStatus = "EXPIRED"
)

type Reservation struct {
	ID          string
	OrderID     string
	ProductID   string
	Qty         int
	Status      ReservationStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	FulfilledAt *time.Time
	CancelledAt *time.Time
}

// Failure describes one line item that could not be reserved.
type Failure struct {
	ProductID string
	Requested int
	Available int
	Reason    string // events.ReasonProductNotFound / ProductInactive / InsufficientStock
}

// ReservationTTL bounds how long stock stays held for an order whose
// saga never completes.
const ReservationTTL = 30 * time.Minute
