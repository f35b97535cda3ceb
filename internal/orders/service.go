package orders

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
	"github.com/danukusuma/go-order-saga/internal/money"
	"github.com/danukusuma/go-order-saga/internal/productcache"
)

// Catalog is the read side of the local product projection.
type Catalog interface {
	GetByID(ctx context.Context, productID string) (productcache.Entry, error)
}

// Publisher abstracts the bus producer so tests can capture events.
type Publisher interface {
	PublishEvent(env events.Envelope)
}

// Store is what the creation handler needs from persistence.
type Store interface {
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, orderID string) (Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	CancelIfCancellable(ctx context.Context, orderID, reason string) (bool, error)
}

// ItemInput is the client's request line. Name and price are advisory
// only; the cached catalog values always win.
type ItemInput struct {
	ProductID string  `json:"product_id"`
	Qty       int     `json:"qty"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unit_price,omitempty"`
}

type CreateRequest struct {
	CustomerID    string      `json:"customer_id"`
	CustomerEmail string      `json:"customer_email"`
	Items         []ItemInput `json:"items"`
}

type Service struct {
	Store    Store
	Catalog  Catalog
	Producer Publisher
	Name     string // producer name stamped on envelopes
	Log      *zap.Logger
}

// Create validates the request against the product cache, persists the
// order in PENDING and publishes OrderCreated. Validation and catalog
// misses surface synchronously; only store/bus trouble is retryable.
func (s *Service) Create(ctx context.Context, req CreateRequest, traceID string) (Order, error) {
	if req.CustomerID == "" {
		return Order{}, apperr.New(apperr.Validation, "order.customer_id", "customer id is required")
	}
	if req.CustomerEmail == "" {
		return Order{}, apperr.New(apperr.Validation, "order.customer_email", "customer email is required")
	}
	if len(req.Items) == 0 {
		return Order{}, apperr.New(apperr.Validation, "order.items", "order must contain at least one item")
	}

	items := make([]LineItem, 0, len(req.Items))
	for _, in := range req.Items {
		if in.ProductID == "" {
			return Order{}, apperr.New(apperr.Validation, "order.item_product", "product id is required")
		}
		if in.Qty <= 0 {
			return Order{}, apperr.New(apperr.Validation, "order.item_qty", "quantity must be greater than zero for product %s", in.ProductID)
		}
		entry, err := s.Catalog.GetByID(ctx, in.ProductID)
		if err != nil {
			return Order{}, err
		}
		if !entry.Active {
			return Order{}, apperr.New(apperr.BusinessRule, "order.product_inactive",
				"product %q cannot be ordered", entry.Name)
		}
		// Cached name and price replace whatever the client sent.
		currency := entry.Currency
		if currency == "" {
			currency = "USD"
		}
		items = append(items, LineItem{
			ProductID: entry.ID,
			Name:      entry.Name,
			UnitPrice: money.FromCents(entry.PriceCents, currency),
			Qty:       in.Qty,
		})
	}

	o, err := NewOrder(req.CustomerID, req.CustomerEmail, items)
	if err != nil {
		return Order{}, err
	}
	if err := s.Store.Create(ctx, o); err != nil {
		return Order{}, err
	}

	s.Producer.PublishEvent(events.New(events.EventOrderCreated, s.Name, traceID, o.ID, events.OrderCreated{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      toEventItems(o.Items),
		TotalCents: o.Total.Cents,
		Currency:   o.Total.Currency,
		CreatedAt:  o.CreatedAt,
	}))

	s.Log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("customer_id", o.CustomerID),
		zap.Int64("total_cents", o.Total.Cents))
	return o, nil
}

// Cancel is the user-initiated path. Cancelling an already-cancelled
// order is a no-op; cancelling past the cancellable window is a
// business rule violation.
func (s *Service) Cancel(ctx context.Context, orderID, reason, traceID string) (Order, error) {
	o, err := s.Store.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status == StatusCancelled {
		return o, nil
	}
	if !CanBeCancelled(o.Status) {
		return Order{}, apperr.New(apperr.BusinessRule, "order.not_cancellable",
			"order cannot be cancelled in status %s", o.Status)
	}
	if reason == "" {
		reason = "cancelled by customer"
	}

	applied, err := s.Store.CancelIfCancellable(ctx, orderID, reason)
	if err != nil {
		return Order{}, err
	}
	if applied {
		s.publishCancelled(o, reason, traceID)
	}
	return s.Store.GetByID(ctx, orderID)
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.Store.GetByID(ctx, orderID)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	if customerID == "" {
		return nil, apperr.New(apperr.Validation, "order.customer_id", "customer id is required")
	}
	return s.Store.ListByCustomer(ctx, customerID)
}

func (s *Service) publishCancelled(o Order, reason, traceID string) {
	qtys := make([]events.ItemQty, 0, len(o.Items))
	for _, li := range o.Items {
		qtys = append(qtys, events.ItemQty{ProductID: li.ProductID, Qty: li.Qty})
	}
	s.Producer.PublishEvent(events.New(events.EventOrderCancelled, s.Name, traceID, o.ID, events.OrderCancelled{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Items:       qtys,
		Reason:      reason,
		CancelledAt: time.Now().UTC(),
	}))
	s.Log.Info("order cancelled",
		zap.String("order_id", o.ID),
		zap.String("reason", reason))
}

func toEventItems(items []LineItem) []events.OrderItem {
	out := make([]events.OrderItem, 0, len(items))
	for _, li := range items {
		out = append(out, events.OrderItem{
			ProductID: li.ProductID,
			Name:      li.Name,
			Qty:       li.Qty,
			UnitCents: li.UnitPrice.Cents,
		})
	}
	return out
}
