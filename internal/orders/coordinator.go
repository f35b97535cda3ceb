package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
	"github.com/danukusuma/go-order-saga/internal/redisx"
)

// CoordinatorStore is what the compensation coordinator needs from
// persistence: the saga record plus the two guarded order writes.
type CoordinatorStore interface {
	GetByID(ctx context.Context, orderID string) (Order, error)
	ConfirmIfPending(ctx context.Context, orderID string) (bool, error)
	CancelIfCancellable(ctx context.Context, orderID, reason string) (bool, error)
	GetSaga(ctx context.Context, orderID string) (SagaRecord, error)
	SaveSaga(ctx context.Context, rec SagaRecord) error
}

// Coordinator finalizes orders from the saga signals. It tolerates the
// payment and inventory outcomes in either order, interleaved, and
// delivered more than once.
type Coordinator struct {
	Store    CoordinatorStore
	Producer Publisher
	Redis    *redis.Client
	Name     string
	Log      *zap.Logger
}

func (c *Coordinator) HandlePaymentProcessed(ctx context.Context, m kafkago.Message) error {
	env, ok, err := c.accept(ctx, m, events.EventPaymentProcessed)
	if err != nil || !ok {
		return err
	}
	p, err := events.Unwrap[events.PaymentProcessed](env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "coordinator.bad_payload", err)
	}
	return c.handleSignal(ctx, p.OrderID,
		Signal{Source: SourcePayment, OK: true, PaymentID: p.PaymentID}, env)
}

func (c *Coordinator) HandlePaymentFailed(ctx context.Context, m kafkago.Message) error {
	env, ok, err := c.accept(ctx, m, events.EventPaymentFailed)
	if err != nil || !ok {
		return err
	}
	p, err := events.Unwrap[events.PaymentFailed](env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "coordinator.bad_payload", err)
	}
	return c.handleSignal(ctx, p.OrderID,
		Signal{Source: SourcePayment, OK: false, Reason: "payment failed", PaymentID: p.PaymentID}, env)
}

func (c *Coordinator) HandleInventoryReserved(ctx context.Context, m kafkago.Message) error {
	env, ok, err := c.accept(ctx, m, events.EventInventoryReserved)
	if err != nil || !ok {
		return err
	}
	p, err := events.Unwrap[events.InventoryReserved](env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "coordinator.bad_payload", err)
	}
	return c.handleSignal(ctx, p.OrderID, Signal{Source: SourceInventory, OK: true}, env)
}

func (c *Coordinator) HandleInventoryFailed(ctx context.Context, m kafkago.Message) error {
	env, ok, err := c.accept(ctx, m, events.EventInventoryReservationFault)
	if err != nil || !ok {
		return err
	}
	p, err := events.Unwrap[events.InventoryReservationFailed](env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "coordinator.bad_payload", err)
	}
	reason := "product unavailable"
	if p.Reason == events.ReasonInsufficientStock {
		reason = "insufficient stock"
	}
	return c.handleSignal(ctx, p.OrderID,
		Signal{Source: SourceInventory, OK: false, Reason: reason}, env)
}

// accept decodes the envelope, filters foreign event types and skips
// event ids this service already processed. The dedup mark is written
// by handleSignal after the signal lands, so a failed attempt is
// retried rather than skipped.
func (c *Coordinator) accept(ctx context.Context, m kafkago.Message, want string) (events.Envelope, bool, error) {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, false, apperr.Wrap(apperr.Validation, "coordinator.bad_envelope", err)
	}
	if env.EventType != want {
		return env, false, nil
	}
	seen, err := redisx.AlreadySeen(ctx, c.Redis, c.Name, env.EventID)
	if err != nil {
		return env, false, apperr.Wrap(apperr.Infrastructure, "coordinator.dedup", err)
	}
	if seen {
		return env, false, nil
	}
	return env, true, nil
}

func (c *Coordinator) handleSignal(ctx context.Context, orderID string, sig Signal, env events.Envelope) error {
	rec, err := c.Store.GetSaga(ctx, orderID)
	if err != nil {
		return err
	}
	decision := rec.Apply(sig)
	if err := c.Store.SaveSaga(ctx, rec); err != nil {
		return err
	}

	traceID := env.TraceID
	switch decision {
	case DecideConfirm:
		err = c.confirm(ctx, orderID, traceID)
	case DecideCancel:
		err = c.cancel(ctx, orderID, sig.Reason, traceID)
	case DecideCancelAndRefund:
		if err = c.cancel(ctx, orderID, sig.Reason, traceID); err == nil {
			c.requestRefund(orderID, sig.PaymentID, sig.Reason, traceID)
		}
	case DecideRefund:
		c.requestRefund(orderID, sig.PaymentID, "order already cancelled", traceID)
	}
	if err != nil {
		return err
	}
	redisx.MarkSeen(ctx, c.Redis, c.Name, env.EventID)
	return nil
}

func (c *Coordinator) confirm(ctx context.Context, orderID, traceID string) error {
	applied, err := c.Store.ConfirmIfPending(ctx, orderID)
	if err != nil {
		return err
	}
	if !applied {
		c.Log.Info("confirm skipped, order not pending", zap.String("order_id", orderID))
		return nil
	}
	c.cacheStatus(ctx, orderID, StatusConfirmed)
	c.Producer.PublishEvent(events.New(events.EventOrderConfirmed, c.Name, traceID, orderID, events.OrderConfirmed{
		OrderID:     orderID,
		ConfirmedAt: time.Now().UTC(),
	}))
	c.Log.Info("order confirmed", zap.String("order_id", orderID))
	return nil
}

func (c *Coordinator) cancel(ctx context.Context, orderID, reason, traceID string) error {
	applied, err := c.Store.CancelIfCancellable(ctx, orderID, reason)
	if err != nil {
		return err
	}
	if !applied {
		c.Log.Info("cancel skipped, order not cancellable",
			zap.String("order_id", orderID), zap.String("reason", reason))
		return nil
	}

	o, err := c.Store.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	qtys := make([]events.ItemQty, 0, len(o.Items))
	for _, li := range o.Items {
		qtys = append(qtys, events.ItemQty{ProductID: li.ProductID, Qty: li.Qty})
	}
	c.cacheStatus(ctx, orderID, StatusCancelled)
	c.Producer.PublishEvent(events.New(events.EventOrderCancelled, c.Name, traceID, orderID, events.OrderCancelled{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		Items:       qtys,
		Reason:      reason,
		CancelledAt: time.Now().UTC(),
	}))
	c.Log.Warn("order cancelled by saga",
		zap.String("order_id", orderID), zap.String("reason", reason))
	return nil
}

func (c *Coordinator) requestRefund(orderID, paymentID, reason, traceID string) {
	c.Producer.PublishEvent(events.New(events.EventPaymentRefundRequested, c.Name, traceID, orderID, events.PaymentRefundRequested{
		PaymentID: paymentID,
		OrderID:   orderID,
		Reason:    reason,
	}))
	c.Log.Warn("refund requested", zap.String("order_id", orderID), zap.String("reason", reason))
}

// cacheStatus refreshes the read cache best-effort; the store stays the
// source of truth.
func (c *Coordinator) cacheStatus(ctx context.Context, orderID string, s Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]string{"status": string(s)})
	_ = c.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
