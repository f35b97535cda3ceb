package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
	"github.com/danukusuma/go-order-saga/internal/productcache"
)

type fakeStore struct {
	mu     sync.Mutex
	orders map[string]Order
}

func newFakeStore() *fakeStore { return &fakeStore{orders: map[string]Order{}} }

func (s *fakeStore) Create(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return apperr.New(apperr.Conflict, "orders.duplicate", "order %s already exists", o.ID)
	}
	s.orders[o.ID] = o
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, apperr.New(apperr.NotFound, "orders.not_found", "order %s not found", id)
	}
	return o, nil
}

func (s *fakeStore) ListByCustomer(_ context.Context, customerID string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) CancelIfCancellable(_ context.Context, id, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !CanBeCancelled(o.Status) {
		return false, nil
	}
	o.Status = StatusCancelled
	o.CancelReason = reason
	s.orders[id] = o
	return true, nil
}

type fakeCatalog struct{ entries map[string]productcache.Entry }

func (c *fakeCatalog) GetByID(_ context.Context, id string) (productcache.Entry, error) {
	e, ok := c.entries[id]
	if !ok {
		return productcache.Entry{}, apperr.New(apperr.NotFound, "product.not_found", "product %s not in cache", id)
	}
	return e, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *capturePublisher) PublishEvent(env events.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
}

func (p *capturePublisher) byType(eventType string) []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Envelope
	for _, e := range p.envs {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestService() (*Service, *fakeStore, *capturePublisher) {
	store := newFakeStore()
	pub := &capturePublisher{}
	cat := &fakeCatalog{entries: map[string]productcache.Entry{
		"p1": {ID: "p1", Name: "Keyboard", PriceCents: 4999, Currency: "USD", Active: true, Version: 1},
		"p2": {ID: "p2", Name: "Mouse", PriceCents: 1999, Currency: "USD", Active: true, Version: 3},
		"p3": {ID: "p3", Name: "Legacy Hub", PriceCents: 999, Currency: "USD", Active: false, Version: 7},
	}}
	svc := &Service{Store: store, Catalog: cat, Producer: pub, Name: "order-api", Log: zap.NewNop()}
	return svc, store, pub
}

func TestCreate_UsesCatalogPriceNotClientPrice(t *testing.T) {
	svc, store, pub := newTestService()

	o, err := svc.Create(context.Background(), CreateRequest{
		CustomerID:    "c1",
		CustomerEmail: "c1@example.com",
		Items: []ItemInput{
			// client claims the keyboard costs one cent
			{ProductID: "p1", Qty: 2, Name: "cheap keyboard", UnitPrice: 0.01},
			{ProductID: "p2", Qty: 1},
		},
	}, "trace-1")
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(2*4999+1999), o.Total.Cents)
	assert.Equal(t, "Keyboard", o.Items[0].Name)
	assert.Equal(t, int64(4999), o.Items[0].UnitPrice.Cents)

	stored, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, stored.Total)

	created := pub.byType(events.EventOrderCreated)
	require.Len(t, created, 1)
	p, err := events.Unwrap[events.OrderCreated](created[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, o.ID, p.OrderID)
	assert.Equal(t, o.Total.Cents, p.TotalCents)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, o.ID, created[0].CorrelationID)
	assert.Equal(t, "trace-1", created[0].TraceID)
}

func TestCreate_InactiveProduct(t *testing.T) {
	svc, _, pub := newTestService()

	_, err := svc.Create(context.Background(), CreateRequest{
		CustomerID:    "c1",
		CustomerEmail: "c1@example.com",
		Items:         []ItemInput{{ProductID: "p3", Qty: 1}},
	}, "")
	assert.Equal(t, apperr.BusinessRule, apperr.KindOf(err))
	assert.Empty(t, pub.envs)
}

func TestCreate_UnknownProduct(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateRequest{
		CustomerID:    "c1",
		CustomerEmail: "c1@example.com",
		Items:         []ItemInput{{ProductID: "ghost", Qty: 1}},
	}, "")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []CreateRequest{
		{CustomerEmail: "a@b.c", Items: []ItemInput{{ProductID: "p1", Qty: 1}}},
		{CustomerID: "c1", Items: []ItemInput{{ProductID: "p1", Qty: 1}}},
		{CustomerID: "c1", CustomerEmail: "a@b.c"},
		{CustomerID: "c1", CustomerEmail: "a@b.c", Items: []ItemInput{{ProductID: "p1", Qty: 0}}},
		{CustomerID: "c1", CustomerEmail: "a@b.c", Items: []ItemInput{{ProductID: "", Qty: 1}}},
	}
	for i, req := range cases {
		_, err := svc.Create(ctx, req, "")
		assert.Equal(t, apperr.Validation, apperr.KindOf(err), "case %d", i)
	}
}

func TestCancel(t *testing.T) {
	svc, store, pub := newTestService()
	ctx := context.Background()

	o, err := svc.Create(ctx, CreateRequest{
		CustomerID:    "c1",
		CustomerEmail: "c1@example.com",
		Items:         []ItemInput{{ProductID: "p1", Qty: 1}},
	}, "")
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, o.ID, "changed my mind", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancelReason)

	cancelled := pub.byType(events.EventOrderCancelled)
	require.Len(t, cancelled, 1)
	p, err := events.Unwrap[events.OrderCancelled](cancelled[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, []events.ItemQty{{ProductID: "p1", Qty: 1}}, p.Items)

	// second cancel is a no-op, no second event
	got, err = svc.Cancel(ctx, o.ID, "again", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Len(t, pub.byType(events.EventOrderCancelled), 1)

	// past the cancellable window
	shipped := store.orders[o.ID]
	shipped.Status = StatusShipped
	store.orders[o.ID] = shipped
	_, err = svc.Cancel(ctx, o.ID, "too late", "")
	assert.Equal(t, apperr.BusinessRule, apperr.KindOf(err))
}

func TestListByCustomer(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.ListByCustomer(ctx, "")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = svc.Create(ctx, CreateRequest{
		CustomerID:    "c1",
		CustomerEmail: "c1@example.com",
		Items:         []ItemInput{{ProductID: "p1", Qty: 1}},
	}, "")
	require.NoError(t, err)

	out, err := svc.ListByCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
