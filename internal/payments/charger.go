package payments

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/google/uuid"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/money"
)

// Charger talks to the payment provider. Charge returns the provider's
// charge reference; Refund reverses a prior charge by that reference.
type Charger interface {
	Charge(ctx context.Context, orderID string, amount money.Money) (string, error)
	Refund(ctx context.Context, chargeRef string, amount money.Money) error
}

// SimCharger simulates a provider: deterministic per order id, roughly
// one in ten charges is declined. FailAll forces declines in tests.
type SimCharger struct {
	Latency time.Duration
	FailAll bool
}

func (c *SimCharger) Charge(ctx context.Context, orderID string, amount money.Money) (string, error) {
	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.Infrastructure, "payment.provider", ctx.Err())
		case <-time.After(c.Latency):
		}
	}
	if c.FailAll || declined(orderID) {
		return "", apperr.New(apperr.BusinessRule, "payment.declined", "card declined for order %s", orderID)
	}
	return "ch_" + uuid.NewString(), nil
}

func (c *SimCharger) Refund(ctx context.Context, chargeRef string, amount money.Money) error {
	if chargeRef == "" {
		return apperr.New(apperr.Validation, "payment.charge_ref", "charge reference is required")
	}
	return nil
}

func declined(orderID string) bool {
	h := fnv.New32a()
	h.Write([]byte(orderID))
	return h.Sum32()%10 == 0
}
