package kafka

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danukusuma/go-order-saga/internal/apperr"
)

type captureWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	failures int // fail this many writes before succeeding
	failAll  bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAll {
		return apperr.New(apperr.Infrastructure, "broker.down", "broker unavailable")
	}
	if w.failures > 0 {
		w.failures--
		return apperr.New(apperr.Infrastructure, "broker.down", "broker unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func (w *captureWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type captureCommitter struct {
	mu sync.Mutex
	n  int
}

func (c *captureCommitter) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *captureCommitter) commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestConsumer(dlq dlqWriter, commits committer) *Consumer {
	return &Consumer{commits: commits, dlq: dlq, workers: 1, prefetch: 1, log: zap.NewNop()}
}

func shortLadder(t *testing.T) {
	t.Helper()
	old := backoffLadder
	backoffLadder = []time.Duration{time.Millisecond, time.Millisecond}
	t.Cleanup(func() { backoffLadder = old })
}

func TestProcessCommitsOnSuccess(t *testing.T) {
	dlq := &captureWriter{}
	commits := &captureCommitter{}
	c := newTestConsumer(dlq, commits)

	calls := 0
	h := func(ctx context.Context, m kafka.Message) error { calls++; return nil }

	require.NoError(t, c.process(context.Background(), h, kafka.Message{Value: []byte("{}")}))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, commits.commits())
	assert.Empty(t, dlq.written())
}

func TestProcessRetriesInfrastructureThenDeadLetters(t *testing.T) {
	shortLadder(t)
	dlq := &captureWriter{}
	commits := &captureCommitter{}
	c := newTestConsumer(dlq, commits)

	calls := 0
	h := func(ctx context.Context, m kafka.Message) error {
		calls++
		return apperr.New(apperr.Infrastructure, "db.down", "connection refused")
	}

	require.NoError(t, c.process(context.Background(), h, kafka.Message{Key: []byte("o1"), Value: []byte("{}")}))
	assert.Equal(t, len(backoffLadder)+1, calls)
	assert.Equal(t, 1, commits.commits())

	dead := dlq.written()
	require.Len(t, dead, 1)
	assert.Equal(t, []byte("o1"), dead[0].Key)
	require.NotEmpty(t, dead[0].Headers)
	assert.Equal(t, "x-dead-letter-reason", dead[0].Headers[len(dead[0].Headers)-1].Key)
}

func TestProcessRecoversWithinLadder(t *testing.T) {
	shortLadder(t)
	dlq := &captureWriter{}
	commits := &captureCommitter{}
	c := newTestConsumer(dlq, commits)

	calls := 0
	h := func(ctx context.Context, m kafka.Message) error {
		calls++
		if calls < 3 {
			return apperr.New(apperr.Infrastructure, "db.down", "connection refused")
		}
		return nil
	}

	require.NoError(t, c.process(context.Background(), h, kafka.Message{Value: []byte("{}")}))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, commits.commits())
	assert.Empty(t, dlq.written())
}

func TestProcessTerminalErrorDeadLettersImmediately(t *testing.T) {
	shortLadder(t)
	dlq := &captureWriter{}
	commits := &captureCommitter{}
	c := newTestConsumer(dlq, commits)

	calls := 0
	h := func(ctx context.Context, m kafka.Message) error {
		calls++
		return apperr.New(apperr.BusinessRule, "stock.short", "insufficient stock")
	}

	require.NoError(t, c.process(context.Background(), h, kafka.Message{Value: []byte("{}")}))
	assert.Equal(t, 1, calls)
	assert.Len(t, dlq.written(), 1)
	assert.Equal(t, 1, commits.commits())
}

func TestProcessFailedDeadLetterLeavesOffsetUncommitted(t *testing.T) {
	shortLadder(t)
	dlq := &captureWriter{failAll: true}
	commits := &captureCommitter{}
	c := newTestConsumer(dlq, commits)

	h := func(ctx context.Context, m kafka.Message) error {
		return apperr.New(apperr.BusinessRule, "stock.short", "insufficient stock")
	}

	// nil keeps the worker alive; the uncommitted offset redelivers
	require.NoError(t, c.process(context.Background(), h, kafka.Message{Value: []byte("{}")}))
	assert.Zero(t, commits.commits())
}
