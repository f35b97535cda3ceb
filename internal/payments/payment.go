package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/money"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusRefunded   Status = "REFUNDED"
	StatusCancelled  Status = "CANCELLED"
)

// Payment records one charge attempt for an order. Transitions are
// strict: Pending -> Processing -> Completed -> Refunded, with Failed
// reachable from any non-terminal state and Cancelled only before the
// charge completes.
type Payment struct {
	ID          string
	OrderID     string
	CustomerID  string
	Amount      money.Money
	Status      Status
	ChargeRef   string
	FailReason  string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	RefundedAt  *time.Time
}

func New(orderID, customerID string, amount money.Money) (*Payment, error) {
	if orderID == "" {
		return nil, apperr.New(apperr.Validation, "payment.order_id", "order id is required")
	}
	if amount.Cents <= 0 {
		return nil, apperr.New(apperr.Validation, "payment.amount", "amount must be positive")
	}
	return &Payment{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     amount,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (p *Payment) MarkProcessing() error {
	if p.Status != StatusPending {
		return apperr.New(apperr.Validation, "payment.transition",
			"cannot start processing payment in status %s", p.Status)
	}
	p.Status = StatusProcessing
	return nil
}

func (p *Payment) MarkCompleted(chargeRef string) error {
	if p.Status != StatusProcessing {
		return apperr.New(apperr.Validation, "payment.transition",
			"cannot complete payment in status %s", p.Status)
	}
	if chargeRef == "" {
		return apperr.New(apperr.Validation, "payment.charge_ref", "charge reference is required")
	}
	p.Status = StatusCompleted
	p.ChargeRef = chargeRef
	now := time.Now().UTC()
	p.ProcessedAt = &now
	return nil
}

func (p *Payment) MarkFailed(reason string) error {
	if p.Status == StatusCompleted || p.Status == StatusRefunded {
		return apperr.New(apperr.Validation, "payment.transition",
			"cannot fail payment in status %s", p.Status)
	}
	p.Status = StatusFailed
	p.FailReason = reason
	return nil
}

func (p *Payment) MarkRefunded() error {
	if p.Status != StatusCompleted {
		return apperr.New(apperr.Validation, "payment.transition",
			"can only refund a completed payment, status is %s", p.Status)
	}
	p.Status = StatusRefunded
	now := time.Now().UTC()
	p.RefundedAt = &now
	return nil
}

func (p *Payment) MarkCancelled() error {
	if p.Status != StatusPending && p.Status != StatusProcessing {
		return apperr.New(apperr.Validation, "payment.transition",
			"cannot cancel payment in status %s", p.Status)
	}
	p.Status = StatusCancelled
	return nil
}
