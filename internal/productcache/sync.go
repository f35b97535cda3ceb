package productcache

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
)

// Synchronizer applies catalog events to the local projection.
// Everything is last-write-wins by event version: a stale update is
// skipped instead of applied, which covers updates arriving out of
// order across partitions. Upserts are idempotent so duplicate
// deliveries need no dedup record.
type Synchronizer struct {
	Store Store
	Log   *zap.Logger
}

func (s *Synchronizer) HandleProductCreated(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return apperr.Wrap(apperr.Validation, "productcache.bad_envelope", err)
	}
	if env.EventType != events.EventProductCreated {
		return nil
	}
	p, err := events.Unwrap[events.ProductCreated](env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "productcache.bad_payload", err)
	}
	return s.apply(ctx, Entry{
		ID:         p.ProductID,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Currency:   p.Currency,
		Active:     p.Active,
		Version:    p.Version,
	})
}

func (s *Synchronizer) HandleProductUpdated(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return apperr.Wrap(apperr.Validation, "productcache.bad_envelope", err)
	}
	if env.EventType != events.EventProductUpdated {
		return nil
	}
	p, err := events.Unwrap[events.ProductUpdated](env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "productcache.bad_payload", err)
	}
	return s.apply(ctx, Entry{
		ID:         p.ProductID,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Currency:   p.Currency,
		Active:     p.Active,
		Version:    p.Version,
	})
}

func (s *Synchronizer) HandleProductDeleted(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return apperr.Wrap(apperr.Validation, "productcache.bad_envelope", err)
	}
	if env.EventType != events.EventProductDeleted {
		return nil
	}
	p, err := events.Unwrap[events.ProductDeleted](env.Payload)
	if err != nil {
		return apperr.Wrap(apperr.Validation, "productcache.bad_payload", err)
	}
	if err := s.Store.Delete(ctx, p.ProductID); err != nil {
		return err
	}
	s.Log.Info("product removed from cache", zap.String("product_id", p.ProductID))
	return nil
}

func (s *Synchronizer) apply(ctx context.Context, e Entry) error {
	cur, err := s.Store.GetByID(ctx, e.ID)
	switch {
	case err == nil:
		if cur.Version >= e.Version {
			s.Log.Debug("stale catalog event skipped",
				zap.String("product_id", e.ID),
				zap.Int64("have", cur.Version),
				zap.Int64("got", e.Version))
			return nil
		}
	case apperr.KindOf(err) == apperr.NotFound:
		// first sight of this product
	default:
		return err
	}

	e.SyncedAt = time.Now().UTC()
	if err := s.Store.Upsert(ctx, e); err != nil {
		return err
	}
	s.Log.Info("product cache updated",
		zap.String("product_id", e.ID),
		zap.Int64("version", e.Version),
		zap.Bool("active", e.Active))
	return nil
}
