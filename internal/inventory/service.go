package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/events"
	"github.com/danukusuma/go-order-saga/internal/redisx"
)

type Publisher interface {
	PublishEvent(env events.Envelope)
}

// Service consumes order and catalog events and keeps the stock ledger.
type Service struct {
	Store    Store
	Redis    *redis.Client
	Producer Publisher
	Name     string
	Log      *zap.Logger
}

func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventOrderCreated, s.reserveOrder)
}

func (s *Service) HandleOrderCancelled(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventOrderCancelled, s.releaseOrder)
}

func (s *Service) HandleOrderConfirmed(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventOrderConfirmed, s.fulfillOrder)
}

func (s *Service) HandleProductCreated(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventProductCreated, s.upsertProduct)
}

func (s *Service) HandleProductUpdated(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventProductUpdated, s.upsertProduct)
}

func (s *Service) HandleProductDeleted(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventProductDeleted, s.removeProduct)
}

// handle decodes the envelope, filters by type, drops duplicates and
// marks the event done only after fn succeeds, so a failed attempt is
// retried rather than skipped.
func (s *Service) handle(ctx context.Context, m kafkago.Message, eventType string, fn func(context.Context, events.Envelope) error) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != eventType {
		return nil
	}
	seen, err := redisx.AlreadySeen(ctx, s.Redis, "inventory", env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	if err := fn(ctx, env); err != nil {
		return err
	}
	redisx.MarkSeen(ctx, s.Redis, "inventory", env.EventID)
	return nil
}

// reserveOrder holds stock for every line of the order, all or nothing.
// A redelivered event whose reservation already exists just
// republishes the confirmation.
func (s *Service) reserveOrder(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderCreated](env.Payload)
	if err != nil {
		return err
	}

	items := make([]events.ItemQty, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, events.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}

	already, failures, err := s.Store.ReserveOrder(ctx, p.OrderID, items, time.Now().UTC().Add(ReservationTTL))
	if err != nil {
		return err
	}
	if already {
		s.Log.Info("reservation already held, republishing", zap.String("order_id", p.OrderID))
		s.publishReserved(p.OrderID, items, env.TraceID)
		return nil
	}
	if len(failures) > 0 {
		for _, f := range failures {
			s.Log.Warn("reservation rejected",
				zap.String("order_id", p.OrderID),
				zap.String("product_id", f.ProductID),
				zap.String("reason", f.Reason))
			s.Producer.PublishEvent(events.New(
				events.EventInventoryReservationFault, s.Name, env.TraceID, p.OrderID,
				events.InventoryReservationFailed{
					OrderID:     p.OrderID,
					ProductID:   f.ProductID,
					RequestedQt: f.Requested,
					Reason:      f.Reason,
					FailedAt:    time.Now().UTC(),
				}))
		}
		return nil
	}
	s.Log.Info("stock reserved", zap.String("order_id", p.OrderID), zap.Int("lines", len(items)))
	s.publishReserved(p.OrderID, items, env.TraceID)
	return nil
}

// releaseOrder frees whatever is still reserved for the order. Nothing
// reserved means a duplicate or a pre-reservation cancel; both are
// fine.
func (s *Service) releaseOrder(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderCancelled](env.Payload)
	if err != nil {
		return err
	}
	released, err := s.Store.ReleaseOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if len(released) == 0 {
		return nil
	}
	s.Log.Info("reservation released", zap.String("order_id", p.OrderID), zap.Int("lines", len(released)))
	s.Producer.PublishEvent(events.New(
		events.EventInventoryReleased, s.Name, env.TraceID, p.OrderID,
		events.InventoryReleased{OrderID: p.OrderID, Items: released, ReleasedAt: time.Now().UTC()}))
	return nil
}

// fulfillOrder converts the reservation into a stock deduction.
func (s *Service) fulfillOrder(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderConfirmed](env.Payload)
	if err != nil {
		return err
	}
	n, err := s.Store.FulfillOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.Log.Info("reservation fulfilled", zap.String("order_id", p.OrderID), zap.Int("lines", n))
	}
	return nil
}

func (s *Service) upsertProduct(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ProductUpdated](env.Payload)
	if err != nil {
		return err
	}
	return s.Store.UpsertItem(ctx, Item{
		ProductID: p.ProductID, Name: p.Name, OnHand: p.Stock, Active: p.Active, Version: p.Version,
	})
}

func (s *Service) removeProduct(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.ProductDeleted](env.Payload)
	if err != nil {
		return err
	}
	return s.Store.RemoveItem(ctx, p.ProductID)
}

// RunExpiry sweeps overdue reservations on a fixed interval until ctx
// is cancelled, releasing their stock and emitting release events.
func (s *Service) RunExpiry(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			expired, err := s.Store.ExpireDue(ctx, time.Now().UTC())
			if err != nil {
				s.Log.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			for orderID, items := range expired {
				s.Log.Warn("reservation expired", zap.String("order_id", orderID))
				s.Producer.PublishEvent(events.New(
					events.EventInventoryReleased, s.Name, "", orderID,
					events.InventoryReleased{OrderID: orderID, Items: items, ReleasedAt: time.Now().UTC()}))
			}
		}
	}
}

func (s *Service) publishReserved(orderID string, items []events.ItemQty, trace string) {
	s.Producer.PublishEvent(events.New(
		events.EventInventoryReserved, s.Name, trace, orderID,
		events.InventoryReserved{OrderID: orderID, Items: items, ReservedAt: time.Now().UTC()}))
}
