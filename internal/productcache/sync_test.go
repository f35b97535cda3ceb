package productcache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
	kafkax "github.com/danukusuma/go-order-saga/internal/kafka"
)

func newTestSync(t *testing.T) (*Synchronizer, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, "order-api")
	return &Synchronizer{Store: store, Log: zap.NewNop()}, store
}

func productMsg(eventType string, v events.ProductUpdated) kafkago.Message {
	env := events.New(eventType, "catalog", "", v.ProductID, v)
	return kafkago.Message{Key: events.PartitionKey(v.ProductID), Value: kafkax.MustMarshal(env)}
}

func TestSync_CreateThenUpdate(t *testing.T) {
	s, store := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, s.HandleProductCreated(ctx, productMsg(events.EventProductCreated, events.ProductUpdated{
		ProductID: "p1", Name: "Keyboard", PriceCents: 4999, Currency: "USD", Active: true, Version: 1,
	})))

	e, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(4999), e.PriceCents)
	assert.Equal(t, int64(1), e.Version)
	assert.False(t, e.SyncedAt.IsZero())

	require.NoError(t, s.HandleProductUpdated(ctx, productMsg(events.EventProductUpdated, events.ProductUpdated{
		ProductID: "p1", Name: "Keyboard", PriceCents: 5499, Currency: "USD", Active: true, Version: 2,
	})))

	e, err = store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5499), e.PriceCents)
	assert.Equal(t, int64(2), e.Version)
}

func TestSync_StaleVersionSkipped(t *testing.T) {
	s, store := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, s.HandleProductUpdated(ctx, productMsg(events.EventProductUpdated, events.ProductUpdated{
		ProductID: "p1", Name: "Keyboard", PriceCents: 5499, Currency: "USD", Active: true, Version: 3,
	})))

	// an older update arriving late must not roll the price back
	require.NoError(t, s.HandleProductUpdated(ctx, productMsg(events.EventProductUpdated, events.ProductUpdated{
		ProductID: "p1", Name: "Keyboard", PriceCents: 4999, Currency: "USD", Active: true, Version: 2,
	})))

	e, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(5499), e.PriceCents)
	assert.Equal(t, int64(3), e.Version)
}

func TestSync_DuplicateEventIsNoOp(t *testing.T) {
	s, store := newTestSync(t)
	ctx := context.Background()

	m := productMsg(events.EventProductUpdated, events.ProductUpdated{
		ProductID: "p1", Name: "Keyboard", PriceCents: 4999, Currency: "USD", Active: true, Version: 1,
	})
	require.NoError(t, s.HandleProductUpdated(ctx, m))
	require.NoError(t, s.HandleProductUpdated(ctx, m))

	e, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Version)
}

func TestSync_Delete(t *testing.T) {
	s, store := newTestSync(t)
	ctx := context.Background()

	require.NoError(t, s.HandleProductCreated(ctx, productMsg(events.EventProductCreated, events.ProductUpdated{
		ProductID: "p1", Name: "Keyboard", PriceCents: 4999, Currency: "USD", Active: true, Version: 1,
	})))

	env := events.New(events.EventProductDeleted, "catalog", "", "p1", events.ProductDeleted{ProductID: "p1", Version: 2})
	require.NoError(t, s.HandleProductDeleted(ctx, kafkago.Message{Value: kafkax.MustMarshal(env)}))

	_, err := store.GetByID(ctx, "p1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestSync_ForeignEventTypeIgnored(t *testing.T) {
	s, store := newTestSync(t)

	// a deleted envelope routed to the created handler is skipped
	env := events.New(events.EventProductDeleted, "catalog", "", "p1", events.ProductDeleted{ProductID: "p1", Version: 1})
	require.NoError(t, s.HandleProductCreated(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)}))

	_, err := store.GetByID(context.Background(), "p1")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
