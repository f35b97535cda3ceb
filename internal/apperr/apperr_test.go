package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(New(Infrastructure, "db.down", "connection refused")))
	assert.False(t, Retryable(New(Validation, "order.items", "empty")))
	assert.False(t, Retryable(New(BusinessRule, "stock.short", "insufficient")))
	assert.False(t, Retryable(New(Conflict, "order.duplicate", "exists")))

	// unclassified errors are assumed transient
	assert.True(t, Retryable(errors.New("boom")))
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := New(NotFound, "product.not_found", "product p1 not found")
	outer := fmt.Errorf("resolve line: %w", inner)

	assert.Equal(t, NotFound, KindOf(outer))
	assert.Equal(t, "product.not_found", CodeOf(outer))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(Infrastructure, "inventory.begin", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, Infrastructure, KindOf(err))
	assert.Contains(t, err.Error(), "inventory.begin")
}

func TestCodeOfUnclassified(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("boom")))
}
