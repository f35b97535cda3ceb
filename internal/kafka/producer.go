package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/events"
)

// messageWriter is the slice of kafka.Writer the producer loop needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// publishBackoff paces write retries; a message is given up on only
// after the whole ladder fails.
var publishBackoff = []time.Duration{
	100 * time.Millisecond,
	500 * time.Millisecond,
	2 * time.Second,
	5 * time.Second,
}

// Producer is a fire-and-forget publisher. Messages are buffered in an
// inbox channel and written by a single goroutine; RequireAll acks plus
// the retry ladder give at-least-once delivery unless a broker outage
// outlives the ladder. Close is the only thing that stops the loop:
// cancelling the surrounding context never closes the inbox, so
// handlers still draining during shutdown can publish safely.
type Producer struct {
	w        messageWriter
	topic    string // empty for the event-routed producer
	inbox    chan kafka.Message
	closed   chan struct{}
	done     chan struct{}
	closeOne sync.Once
	log      *zap.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		topic:  topic,
		inbox:  make(chan kafka.Message, buf),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		log:    log.With(zap.String("topic", topic)),
	}
}

// NewEventProducer leaves the writer unbound; PublishEvent routes each
// envelope to the topic of its event type. Used by services that emit
// more than one event type.
func NewEventProducer(brokers []string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:  make(chan kafka.Message, buf),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		log:    log,
	}
}

func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		defer func() { _ = p.w.Close() }()
		for {
			select {
			case <-p.closed:
				// flush whatever is still buffered, then exit
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	var err error
	for attempt := 0; ; attempt++ {
		if err = p.w.WriteMessages(context.Background(), m); err == nil {
			return
		}
		if attempt >= len(publishBackoff) {
			break
		}
		p.log.Warn("publish failed, retrying",
			zap.ByteString("key", m.Key),
			zap.Duration("backoff", publishBackoff[attempt]),
			zap.Error(err))
		time.Sleep(publishBackoff[attempt])
	}
	p.log.Error("publish dropped after retries", zap.ByteString("key", m.Key), zap.Error(err))
}

func (p *Producer) enqueue(m kafka.Message) {
	select {
	case <-p.closed:
		p.log.Warn("publish after close dropped", zap.ByteString("key", m.Key))
		return
	default:
	}
	select {
	case p.inbox <- m:
	case <-p.closed:
		p.log.Warn("publish after close dropped", zap.ByteString("key", m.Key))
	}
}

func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.enqueue(kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	})
}

// PublishEvent keys the message by correlation id (the order id) so
// all events of one order stay on one partition.
func (p *Producer) PublishEvent(env events.Envelope) {
	m := kafka.Message{
		Key:   events.PartitionKey(env.CorrelationID),
		Value: MustMarshal(env),
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	}
	if p.topic == "" {
		m.Topic = events.TopicFor(env.EventType)
	}
	p.enqueue(m)
}

// Close stops accepting messages; the loop flushes the rest and exits.
func (p *Producer) Close() { p.closeOne.Do(func() { close(p.closed) }) }

// WaitClosed blocks until the flush is done.
func (p *Producer) WaitClosed() { <-p.done }
