package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/events"
)

func newTestProducer(w messageWriter) *Producer {
	return &Producer{
		w:      w,
		inbox:  make(chan kafka.Message, 16),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		log:    zap.NewNop(),
	}
}

func shortPublishBackoff(t *testing.T) {
	t.Helper()
	old := publishBackoff
	publishBackoff = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { publishBackoff = old })
}

func testEnvelope(orderID string) events.Envelope {
	return events.New(events.EventOrderCreated, "order-api", "", orderID, events.OrderCreated{OrderID: orderID})
}

func TestPublishEventRoutesByEventType(t *testing.T) {
	w := &captureWriter{}
	p := newTestProducer(w)
	p.Start()

	p.PublishEvent(testEnvelope("o1"))
	p.Close()
	p.WaitClosed()

	msgs := w.written()
	require.Len(t, msgs, 1)
	assert.Equal(t, events.TopicOrderCreated, msgs[0].Topic)
	assert.Equal(t, []byte("o1"), msgs[0].Key)
}

func TestCloseFlushesBuffered(t *testing.T) {
	w := &captureWriter{}
	p := newTestProducer(w)
	p.Start()

	for i := 0; i < 5; i++ {
		p.PublishEvent(testEnvelope("o1"))
	}
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.written(), 5)
}

func TestPublishAfterCloseDropsWithoutPanic(t *testing.T) {
	w := &captureWriter{}
	p := newTestProducer(w)
	p.Start()

	p.PublishEvent(testEnvelope("o1"))
	p.Close()
	p.WaitClosed()

	// a handler still draining during shutdown may publish; the message
	// is dropped but the process survives
	p.PublishEvent(testEnvelope("o2"))
	p.Publish([]byte("k"), []byte("v"))

	assert.Len(t, w.written(), 1)
}

func TestWriteRetriesUntilDelivered(t *testing.T) {
	shortPublishBackoff(t)
	w := &captureWriter{failures: 2}
	p := newTestProducer(w)
	p.Start()

	p.PublishEvent(testEnvelope("o1"))
	p.Close()
	p.WaitClosed()

	assert.Len(t, w.written(), 1)
}
