package inventory

import (
	"context"
	"time"

	"github.com/danukusuma/go-order-saga/internal/events"
)

// Store is the inventory ledger. Implementations must make ReserveOrder
// all-or-nothing: when any line fails, no stock movement from this call
// survives.
type Store interface {
	// ReserveOrder attempts to reserve every line for the order.
	// already=true means reservations for this order exist from an
	// earlier delivery and nothing was changed. A non-empty failures
	// slice means nothing was reserved.
	ReserveOrder(ctx context.Context, orderID string, items []events.ItemQty, expiresAt time.Time) (already bool, failures []Failure, err error)

	// ReleaseOrder returns still-reserved stock for the order and
	// cancels its reservations. Idempotent: a second call finds no
	// RESERVED rows and returns an empty slice.
	ReleaseOrder(ctx context.Context, orderID string) ([]events.ItemQty, error)

	// FulfillOrder commits the order's reservations: on-hand and
	// reserved both drop. Returns the number of reservations moved to
	// FULFILLED; zero means an earlier delivery already committed.
	FulfillOrder(ctx context.Context, orderID string) (int, error)

	// ExpireDue cancels reservations past their deadline and restores
	// the stock, returning released quantities grouped by order.
	ExpireDue(ctx context.Context, now time.Time) (map[string][]events.ItemQty, error)

	// Catalog projection into the ledger.
	UpsertItem(ctx context.Context, item Item) error
	RemoveItem(ctx context.Context, productID string) error
	GetItem(ctx context.Context, productID string) (Item, error)
}
