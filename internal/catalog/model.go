package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/money"
)

// Product is the catalog's source-of-truth record. Version increments
// on every write and rides along on the product events, so downstream
// caches can drop stale updates.
type Product struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     money.Money `json:"price"`
	Stock     int         `json:"stock"`
	Active    bool        `json:"active"`
	Version   int64       `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func NewProduct(name string, price money.Money, stock int) (*Product, error) {
	if name == "" {
		return nil, apperr.New(apperr.Validation, "product.name", "name is required")
	}
	if price.Cents <= 0 {
		return nil, apperr.New(apperr.Validation, "product.price", "price must be positive")
	}
	if stock < 0 {
		return nil, apperr.New(apperr.Validation, "product.stock", "stock cannot be negative")
	}
	now := time.Now().UTC()
	return &Product{
		ID:        uuid.NewString(),
		Name:      name,
		Price:     price,
		Stock:     stock,
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
