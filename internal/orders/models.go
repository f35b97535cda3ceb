package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/money"
)

// LineItem snapshots name and unit price at order-creation time.
// Later catalog price changes never touch an existing order.
type LineItem struct {
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	UnitPrice money.Money `json:"unit_price"`
	Qty       int         `json:"qty"`
}

func (li LineItem) Total() money.Money { return li.UnitPrice.Mul(li.Qty) }

type Order struct {
	ID            string      `json:"id"`
	CustomerID    string      `json:"customer_id"`
	CustomerEmail string      `json:"customer_email"`
	Items         []LineItem  `json:"items"`
	Total         money.Money `json:"total"`
	Status        Status      `json:"status"`
	CancelReason  string      `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewOrder builds a Pending order from already-resolved line items and
// computes the total as the sum of line totals. Items must share one
// currency; the caller resolved them against a single catalog so a
// mismatch is a programming error surfaced as validation.
func NewOrder(customerID, customerEmail string, items []LineItem) (Order, error) {
	if customerID == "" {
		return Order{}, apperr.New(apperr.Validation, "order.customer_id", "customer id is required")
	}
	if customerEmail == "" {
		return Order{}, apperr.New(apperr.Validation, "order.customer_email", "customer email is required")
	}
	if len(items) == 0 {
		return Order{}, apperr.New(apperr.Validation, "order.items", "order must contain at least one item")
	}

	total := money.FromCents(0, items[0].UnitPrice.Currency)
	for _, li := range items {
		if li.Qty <= 0 {
			return Order{}, apperr.New(apperr.Validation, "order.item_qty", "quantity must be greater than zero for product %s", li.ProductID)
		}
		var err error
		total, err = total.Add(li.Total())
		if err != nil {
			return Order{}, err
		}
	}

	now := time.Now().UTC()
	return Order{
		ID:            uuid.NewString(),
		CustomerID:    customerID,
		CustomerEmail: customerEmail,
		Items:         items,
		Total:         total,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
