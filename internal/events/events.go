// Package events is the shared contract between the order, inventory,
// payment and catalog services. Events are immutable facts; consumers
// derive every side effect from them idempotently.
package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated              = "OrderCreated"
	EventOrderConfirmed            = "OrderConfirmed"
	EventOrderCancelled            = "OrderCancelled"
	EventInventoryReserved         = "InventoryReserved"
	EventInventoryReservationFault = "InventoryReservationFailed"
	EventInventoryReleased         = "InventoryReleased"
	EventPaymentProcessed          = "PaymentProcessed"
	EventPaymentFailed             = "PaymentFailed"
	EventPaymentRefundRequested    = "PaymentRefundRequested"
	EventPaymentRefunded           = "PaymentRefunded"
	EventProductCreated            = "ProductCreated"
	EventProductUpdated            = "ProductUpdated"
	EventProductDeleted            = "ProductDeleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "order-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads per event type ----

type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Qty       int    `json:"qty"`
	UnitCents int64  `json:"unit_cents"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreated struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderItem `json:"items"`
	TotalCents int64       `json:"total_cents"`
	Currency   string      `json:"currency"`
	CreatedAt  time.Time   `json:"created_at"`
}

type OrderConfirmed struct {
	OrderID     string    `json:"order_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	CustomerID  string    `json:"customer_id"`
	Items       []ItemQty `json:"items"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type InventoryReserved struct {
	OrderID    string    `json:"order_id"`
	Items      []ItemQty `json:"items"`
	ReservedAt time.Time `json:"reserved_at"`
}

// FailReason values for InventoryReservationFailed.
const (
	ReasonProductNotFound   = "ProductNotFound"
	ReasonProductInactive   = "ProductInactive"
	ReasonInsufficientStock = "InsufficientStock"
)

type InventoryReservationFailed struct {
	OrderID     string    `json:"order_id"`
	ProductID   string    `json:"product_id"`
	RequestedQt int       `json:"requested_qty"`
	Reason      string    `json:"reason"`
	FailedAt    time.Time `json:"failed_at"`
}

type InventoryReleased struct {
	OrderID    string    `json:"order_id"`
	Items      []ItemQty `json:"items"`
	ReleasedAt time.Time `json:"released_at"`
}

type PaymentProcessed struct {
	PaymentID   string    `json:"payment_id"`
	OrderID     string    `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	ProcessedAt time.Time `json:"processed_at"`
}

type PaymentFailed struct {
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

type PaymentRefundRequested struct {
	PaymentID string `json:"payment_id,omitempty"` // empty when the trigger was not a payment event
	OrderID   string `json:"order_id"`
	Reason    string `json:"reason"`
}

type PaymentRefunded struct {
	PaymentID   string    `json:"payment_id"`
	OrderID     string    `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason"`
	RefundedAt  time.Time `json:"refunded_at"`
}

// Product events carry a monotonic version so replicas can drop stale
// updates arriving out of order across the bus.
type ProductCreated struct {
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Stock      int       `json:"stock"`
	Active     bool      `json:"active"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProductUpdated struct {
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Stock      int       `json:"stock"`
	Active     bool      `json:"active"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ProductDeleted struct {
	ProductID  string    `json:"product_id"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}
