// Package productcache keeps a read-only projection of the catalog
// inside consuming services. Entries change only through catalog
// events; nothing here is authoritative.
package productcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/redisx"
)

type Entry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Active     bool      `json:"active"`
	Version    int64     `json:"version"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Store is the projection storage. GetByID returns apperr.NotFound for
// unknown or deleted products.
type Store interface {
	GetByID(ctx context.Context, productID string) (Entry, error)
	Upsert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, productID string) error
}

// RedisStore keys entries per owning service so two services on one
// Redis never share a projection.
type RedisStore struct {
	rdb     *redis.Client
	service string
}

func NewRedisStore(rdb *redis.Client, service string) *RedisStore {
	return &RedisStore{rdb: rdb, service: service}
}

func (s *RedisStore) key(productID string) string {
	return fmt.Sprintf(redisx.KeyProductCache, s.service, productID)
}

func (s *RedisStore) GetByID(ctx context.Context, productID string) (Entry, error) {
	raw, err := s.rdb.Get(ctx, s.key(productID)).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, apperr.New(apperr.NotFound, "product.not_found", "product %s not in cache", productID)
	}
	if err != nil {
		return Entry{}, apperr.Wrap(apperr.Infrastructure, "productcache.get", err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, apperr.Wrap(apperr.Infrastructure, "productcache.decode", err)
	}
	return e, nil
}

func (s *RedisStore) Upsert(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "productcache.encode", err)
	}
	if err := s.rdb.Set(ctx, s.key(e.ID), b, 0).Err(); err != nil {
		return apperr.Wrap(apperr.Infrastructure, "productcache.set", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, productID string) error {
	if err := s.rdb.Del(ctx, s.key(productID)).Err(); err != nil {
		return apperr.Wrap(apperr.Infrastructure, "productcache.del", err)
	}
	return nil
}
