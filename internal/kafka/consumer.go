package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danukusuma/go-order-saga/internal/apperr"
)

// Handler must return nil only when the message is fully processed and
// its offset may be committed. A retryable error re-runs the handler on
// the backoff ladder; a terminal error sends the message straight to
// the dead-letter topic.
type Handler func(ctx context.Context, m kafka.Message) error

// backoffLadder mirrors the broker-side redelivery intervals the rest
// of the platform uses.
var backoffLadder = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// committer is the slice of kafka.Reader the worker side needs.
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type dlqWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r        *kafka.Reader
	commits  committer
	dlq      dlqWriter
	workers  int
	prefetch int
	log      *zap.Logger
}

// NewConsumer subscribes a consumer group to one topic. workers bounds
// concurrent handler invocations, prefetch bounds undelivered messages
// buffered ahead of the workers.
func NewConsumer(brokers []string, group, topic string, workers, prefetch int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if prefetch <= 0 {
		prefetch = workers
	}
	return &Consumer{
		r:       r,
		commits: r,
		dlq: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic + ".dlq",
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		workers:  workers,
		prefetch: prefetch,
		log:      log.With(zap.String("topic", topic), zap.String("group", group)),
	}
}

// Start blocks until ctx is cancelled or the reader fails. Each message
// is handled at-least-once: FetchMessage leaves the offset where it
// was, and it advances only after the handler succeeds or the message
// is parked on the dead-letter topic.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()
	defer c.dlq.Close()

	jobs := make(chan kafka.Message, c.prefetch)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		g.Go(func() error {
			for m := range jobs {
				if err := c.process(gctx, h, m); err != nil {
					return err
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for {
			m, err := c.r.FetchMessage(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case jobs <- m:
			case <-gctx.Done():
				return nil
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// process runs the handler through the backoff ladder and either
// commits or parks the message. A message is never silently dropped:
// when even the dead-letter write fails we leave the offset
// uncommitted so the group redelivers.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = h(ctx, m)
		if err == nil {
			return c.commit(ctx, m)
		}
		if !apperr.Retryable(err) || attempt >= len(backoffLadder) {
			break
		}
		c.log.Warn("handler failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoffLadder[attempt]),
			zap.Error(err))
		select {
		case <-time.After(backoffLadder[attempt]):
		case <-ctx.Done():
			return nil // not committed, bus redelivers
		}
	}

	c.log.Error("handler exhausted, dead-lettering",
		zap.String("kind", apperr.KindOf(err).String()),
		zap.Error(err))
	dead := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "x-dead-letter-reason", Value: []byte(err.Error())},
		),
	}
	if werr := c.dlq.WriteMessages(ctx, dead); werr != nil {
		c.log.Error("dead-letter publish failed", zap.Error(werr))
		return nil // redeliver instead of dropping
	}
	return c.commit(ctx, m)
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.commits.CommitMessages(ctx, m); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
