package payments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
	"github.com/danukusuma/go-order-saga/internal/money"
	"github.com/danukusuma/go-order-saga/internal/redisx"
)

type Publisher interface {
	PublishEvent(env events.Envelope)
}

// Service charges new orders and refunds compensated ones.
type Service struct {
	Store    Store
	Charger  Charger
	Redis    *redis.Client
	Producer Publisher
	Name     string
	Log      *zap.Logger
}

func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventOrderCreated, s.chargeOrder)
}

func (s *Service) HandleRefundRequested(ctx context.Context, m kafkago.Message) error {
	return s.handle(ctx, m, events.EventPaymentRefundRequested, s.refundOrder)
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
	seen, err := redisx.AlreadySeen(ctx, s.Redis, "payment", env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	if err := fn(ctx, env); err != nil {
		return err
	}
	redisx.MarkSeen(ctx, s.Redis, "payment", env.EventID)
	return nil
}

// chargeOrder charges the order total. An existing payment for the
// order means a redelivery: republish its final outcome instead of
// charging twice.
func (s *Service) chargeOrder(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.OrderCreated](env.Payload)
	if err != nil {
		return err
	}

	if existing, err := s.Store.GetByOrderID(ctx, p.OrderID); err == nil {
		return s.republish(ctx, existing, env.TraceID)
	} else if apperr.KindOf(err) != apperr.NotFound {
		return err
	}

	pay, err := New(p.OrderID, p.CustomerID, money.FromCents(p.TotalCents, p.Currency))
	if err != nil {
		return err
	}
	if err := s.Store.Create(ctx, pay); err != nil {
		if apperr.KindOf(err) == apperr.Conflict {
			return nil // lost a race with a concurrent delivery
		}
		return err
	}

	if err := pay.MarkProcessing(); err != nil {
		return err
	}
	ref, chargeErr := s.Charger.Charge(ctx, pay.OrderID, pay.Amount)
	if chargeErr != nil {
		if apperr.Retryable(chargeErr) {
			// Provider outage. Leave the payment PROCESSING and let the
			// bus redeliver; republish resolves it then.
			_ = s.Store.Update(ctx, pay)
			return chargeErr
		}
		if err := pay.MarkFailed(apperr.CodeOf(chargeErr)); err != nil {
			return err
		}
		if err := s.Store.Update(ctx, pay); err != nil {
			return err
		}
		s.Log.Warn("payment declined", zap.String("order_id", pay.OrderID), zap.Error(chargeErr))
		s.publishFailed(pay, env.TraceID)
		return nil
	}

	if err := pay.MarkCompleted(ref); err != nil {
		return err
	}
	if err := s.Store.Update(ctx, pay); err != nil {
		return err
	}
	s.Log.Info("payment completed",
		zap.String("order_id", pay.OrderID),
		zap.String("charge_ref", ref),
		zap.Int64("amount_cents", pay.Amount.Cents))
	s.publishProcessed(pay, env.TraceID)
	return nil
}

// refundOrder refunds a completed payment. Anything else is a no-op: a
// pending or failed payment has nothing to give back, and a refunded
// one already did.
func (s *Service) refundOrder(ctx context.Context, env events.Envelope) error {
	p, err := events.Unwrap[events.PaymentRefundRequested](env.Payload)
	if err != nil {
		return err
	}

	pay, err := s.Store.GetByOrderID(ctx, p.OrderID)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil
		}
		return err
	}
	if pay.Status != StatusCompleted {
		return nil
	}
	// a refund request may name the payment explicitly; ignore it if it
	// points at some other payment than the order's
	if p.PaymentID != "" && p.PaymentID != pay.ID {
		s.Log.Warn("refund request names a different payment, skipping",
			zap.String("order_id", p.OrderID),
			zap.String("requested_payment_id", p.PaymentID),
			zap.String("payment_id", pay.ID))
		return nil
	}

	if err := s.Charger.Refund(ctx, pay.ChargeRef, pay.Amount); err != nil {
		return err
	}
	if err := pay.MarkRefunded(); err != nil {
		return err
	}
	if err := s.Store.Update(ctx, pay); err != nil {
		return err
	}
	s.Log.Info("payment refunded",
		zap.String("order_id", pay.OrderID),
		zap.Int64("amount_cents", pay.Amount.Cents),
		zap.String("reason", p.Reason))
	s.Producer.PublishEvent(events.New(
		events.EventPaymentRefunded, s.Name, env.TraceID, pay.OrderID,
		events.PaymentRefunded{
			PaymentID:   pay.ID,
			OrderID:     pay.OrderID,
			AmountCents: pay.Amount.Cents,
			Currency:    pay.Amount.Currency,
			Reason:      p.Reason,
			RefundedAt:  time.Now().UTC(),
		}))
	return nil
}

// republish re-emits the outcome of a payment that already ran, or
// resolves one interrupted mid-charge.
func (s *Service) republish(ctx context.Context, pay *Payment, trace string) error {
	switch pay.Status {
	case StatusCompleted, StatusRefunded:
		s.publishProcessed(pay, trace)
	case StatusFailed:
		s.publishFailed(pay, trace)
	default:
		// PENDING/PROCESSING: a crash between charge and update. The
		// charge outcome is unknown; fail closed so the saga cancels.
		s.Log.Warn("payment stuck mid-charge, failing", zap.String("order_id", pay.OrderID))
		if err := pay.MarkFailed("payment.interrupted"); err != nil {
			return err
		}
		if err := s.Store.Update(ctx, pay); err != nil {
			return err
		}
		s.publishFailed(pay, trace)
	}
	return nil
}

func (s *Service) publishProcessed(pay *Payment, trace string) {
	at := time.Now().UTC()
	if pay.ProcessedAt != nil {
		at = *pay.ProcessedAt
	}
	s.Producer.PublishEvent(events.New(
		events.EventPaymentProcessed, s.Name, trace, pay.OrderID,
		events.PaymentProcessed{
			PaymentID:   pay.ID,
			OrderID:     pay.OrderID,
			AmountCents: pay.Amount.Cents,
			Currency:    pay.Amount.Currency,
			ProcessedAt: at,
		}))
}

func (s *Service) publishFailed(pay *Payment, trace string) {
	s.Producer.PublishEvent(events.New(
		events.EventPaymentFailed, s.Name, trace, pay.OrderID,
		events.PaymentFailed{
			PaymentID: pay.ID,
			OrderID:   pay.OrderID,
			Reason:    pay.FailReason,
			FailedAt:  time.Now().UTC(),
		}))
}
