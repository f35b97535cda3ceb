package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/money"
)

func pending(t *testing.T) *Payment {
	t.Helper()
	p, err := New("o1", "c1", money.FromCents(9998, "USD"))
	require.NoError(t, err)
	return p
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "c1", money.FromCents(100, "USD"))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = New("o1", "c1", money.FromCents(0, "USD"))
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestLifecycle_Completed(t *testing.T) {
	p := pending(t)

	require.NoError(t, p.MarkProcessing())
	require.NoError(t, p.MarkCompleted("ch_1"))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "ch_1", p.ChargeRef)
	require.NotNil(t, p.ProcessedAt)

	require.NoError(t, p.MarkRefunded())
	assert.Equal(t, StatusRefunded, p.Status)
	require.NotNil(t, p.RefundedAt)
}

func TestMarkCompleted_Guards(t *testing.T) {
	p := pending(t)

	// cannot complete straight from pending
	assert.Error(t, p.MarkCompleted("ch_1"))

	require.NoError(t, p.MarkProcessing())
	// a completion without a charge reference is rejected
	assert.Error(t, p.MarkCompleted(""))
	assert.Equal(t, StatusProcessing, p.Status)
}

func TestMarkFailed(t *testing.T) {
	p := pending(t)
	require.NoError(t, p.MarkFailed("declined"))
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "declined", p.FailReason)

	// completed and refunded payments cannot fail
	p = pending(t)
	require.NoError(t, p.MarkProcessing())
	require.NoError(t, p.MarkCompleted("ch_1"))
	assert.Error(t, p.MarkFailed("too late"))

	require.NoError(t, p.MarkRefunded())
	assert.Error(t, p.MarkFailed("way too late"))
}

func TestMarkRefunded_OnlyFromCompleted(t *testing.T) {
	p := pending(t)
	assert.Error(t, p.MarkRefunded())

	require.NoError(t, p.MarkProcessing())
	assert.Error(t, p.MarkRefunded())

	require.NoError(t, p.MarkCompleted("ch_1"))
	require.NoError(t, p.MarkRefunded())
	// no double refund
	assert.Error(t, p.MarkRefunded())
}

func TestMarkCancelled(t *testing.T) {
	p := pending(t)
	require.NoError(t, p.MarkCancelled())
	assert.Equal(t, StatusCancelled, p.Status)

	p = pending(t)
	require.NoError(t, p.MarkProcessing())
	require.NoError(t, p.MarkCompleted("ch_1"))
	assert.Error(t, p.MarkCancelled())
}
