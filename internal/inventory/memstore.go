package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
)

// MemStore is an in-memory Store used in tests and local runs.
type MemStore struct {
	mu           sync.Mutex
	items        map[string]Item
	reservations map[string][]Reservation // order id -> rows
}

func NewMemStore() *MemStore {
	return &MemStore{
		items:        map[string]Item{},
		reservations: map[string][]Reservation{},
	}
}

func (s *MemStore) ReserveOrder(_ context.Context, orderID string, items []events.ItemQty, expiresAt time.Time) (bool, []Failure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reservations[orderID] {
		if r.Status == StatusReserved {
			return true, nil, nil
		}
	}

	var failures []Failure
	for _, it := range items {
		item, ok := s.items[it.ProductID]
		if !ok {
			failures = append(failures, Failure{
				ProductID: it.ProductID, Requested: it.Qty,
				Reason: events.ReasonProductNotFound,
			})
			continue
		}
		if !item.Active {
			failures = append(failures, Failure{
				ProductID: it.ProductID, Requested: it.Qty, Available: item.Available(),
				Reason: events.ReasonProductInactive,
			})
			continue
		}
		if item.Available() < it.Qty {
			failures = append(failures, Failure{
				ProductID: it.ProductID, Requested: it.Qty, Available: item.Available(),
				Reason: events.ReasonInsufficientStock,
			})
		}
	}
	if len(failures) > 0 {
		return false, failures, nil
	}

	now := time.Now().UTC()
	var rows []Reservation
	for _, it := range items {
		item := s.items[it.ProductID]
		item.Reserved += it.Qty
		item.UpdatedAt = now
		s.items[it.ProductID] = item
		rows = append(rows, Reservation{
			OrderID: orderID, ProductID: it.ProductID, Qty: it.Qty,
			Status: StatusReserved, CreatedAt: now, ExpiresAt: expiresAt,
		})
	}
	s.reservations[orderID] = rows
	return false, nil, nil
}

func (s *MemStore) ReleaseOrder(_ context.Context, orderID string) ([]events.ItemQty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(orderID, StatusCancelled, false), nil
}

func (s *MemStore) FulfillOrder(_ context.Context, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.closeLocked(orderID, StatusFulfilled, true)), nil
}

// closeLocked moves an order's RESERVED rows to a terminal status and
// returns the freed quantities. deduct also decrements on_hand.
func (s *MemStore) closeLocked(orderID string, status ReservationStatus, deduct bool) []events.ItemQty {
	var out []events.ItemQty
	rows := s.reservations[orderID]
	for i, r := range rows {
		if r.Status != StatusReserved {
			continue
		}
		item := s.items[r.ProductID]
		item.Reserved -= r.Qty
		if deduct {
			item.OnHand -= r.Qty
		}
		item.UpdatedAt = time.Now().UTC()
		s.items[r.ProductID] = item
		rows[i].Status = status
		out = append(out, events.ItemQty{ProductID: r.ProductID, Qty: r.Qty})
	}
	s.reservations[orderID] = rows
	return out
}

func (s *MemStore) ExpireDue(_ context.Context, now time.Time) (map[string][]events.ItemQty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := map[string][]events.ItemQty{}
	for orderID, rows := range s.reservations {
		due := false
		for _, r := range rows {
			if r.Status == StatusReserved && !r.ExpiresAt.After(now) {
				due = true
				break
			}
		}
		if !due {
			continue
		}
		if freed := s.closeLocked(orderID, StatusExpired, false); len(freed) > 0 {
			expired[orderID] = freed
		}
	}
	if len(expired) == 0 {
		return nil, nil
	}
	return expired, nil
}

func (s *MemStore) UpsertItem(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[item.ProductID]; ok {
		if cur.Version >= item.Version {
			return nil
		}
		cur.Name = item.Name
		cur.Active = item.Active
		cur.Version = item.Version
		cur.UpdatedAt = time.Now().UTC()
		s.items[item.ProductID] = cur
		return nil
	}
	item.UpdatedAt = time.Now().UTC()
	s.items[item.ProductID] = item
	return nil
}

func (s *MemStore) RemoveItem(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, productID)
	return nil
}

func (s *MemStore) GetItem(_ context.Context, productID string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[productID]
	if !ok {
		return Item{}, apperr.New(apperr.NotFound, "inventory.item_not_found", "product %s not in inventory", productID)
	}
	return it, nil
}
