package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
	"github.com/danukusuma/go-order-saga/internal/money"
)

type Publisher interface {
	PublishEvent(env events.Envelope)
}

// Service owns product writes and announces every change on the bus.
type Service struct {
	Store    Store
	Producer Publisher
	Name     string
	Log      *zap.Logger
}

type CreateRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Stock    int     `json:"stock"`
}

type UpdateRequest struct {
	Name     *string  `json:"name,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Currency *string  `json:"currency,omitempty"`
	Stock    *int     `json:"stock,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

func (s *Service) Create(ctx context.Context, req CreateRequest, traceID string) (*Product, error) {
	price, err := money.New(req.Price, req.Currency)
	if err != nil {
		return nil, err
	}
	p, err := NewProduct(req.Name, price, req.Stock)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Create(ctx, p); err != nil {
		return nil, err
	}
	s.Log.Info("product created", zap.String("product_id", p.ID), zap.String("name", p.Name))
	s.Producer.PublishEvent(events.New(events.EventProductCreated, s.Name, traceID, p.ID, events.ProductCreated(snapshot(p))))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.Store.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Store.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, traceID string) (*Product, error) {
	p, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperr.New(apperr.Validation, "product.name", "name is required")
		}
		p.Name = *req.Name
	}
	if req.Price != nil {
		cur := p.Price.Currency
		if req.Currency != nil {
			cur = *req.Currency
		}
		price, err := money.New(*req.Price, cur)
		if err != nil {
			return nil, err
		}
		if price.Cents <= 0 {
			return nil, apperr.New(apperr.Validation, "product.price", "price must be positive")
		}
		p.Price = price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, apperr.New(apperr.Validation, "product.stock", "stock cannot be negative")
		}
		p.Stock = *req.Stock
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	if err := s.Store.Update(ctx, p); err != nil {
		return nil, err
	}
	s.Log.Info("product updated", zap.String("product_id", p.ID), zap.Int64("version", p.Version))
	s.Producer.PublishEvent(events.New(events.EventProductUpdated, s.Name, traceID, p.ID, snapshot(p)))
	return p, nil
}

// Delete retires the product: the row stays for audit, downstream
// replicas drop their copies.
func (s *Service) Delete(ctx context.Context, id, traceID string) error {
	version, err := s.Store.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.Log.Info("product deleted", zap.String("product_id", id))
	s.Producer.PublishEvent(events.New(events.EventProductDeleted, s.Name, traceID, id, events.ProductDeleted{
		ProductID:  id,
		Version:    version,
		OccurredAt: time.Now().UTC(),
	}))
	return nil
}

func snapshot(p *Product) events.ProductUpdated {
	return events.ProductUpdated{
		ProductID:  p.ID,
		Name:       p.Name,
		PriceCents: p.Price.Cents,
		Currency:   p.Price.Currency,
		Stock:      p.Stock,
		Active:     p.Active,
		Version:    p.Version,
		OccurredAt: p.UpdatedAt,
	}
}
