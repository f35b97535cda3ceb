package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_HappyPath(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	assert.Equal(t, DecideNothing, r.Apply(Signal{Source: SourceInventory, OK: true}))
	assert.Equal(t, DecideConfirm, r.Apply(Signal{Source: SourcePayment, OK: true}))
	assert.Equal(t, OutcomeOK, r.Inventory)
	assert.Equal(t, OutcomeOK, r.Payment)
}

func TestApply_PaymentBeforeInventory(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	// payment alone already confirms; inventory success later changes nothing
	assert.Equal(t, DecideConfirm, r.Apply(Signal{Source: SourcePayment, OK: true}))
	assert.Equal(t, DecideNothing, r.Apply(Signal{Source: SourceInventory, OK: true}))
}

func TestApply_InventoryFailure(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	assert.Equal(t, DecideCancel, r.Apply(Signal{Source: SourceInventory, OK: false, Reason: "insufficient stock"}))
	assert.Equal(t, OutcomeFailed, r.Inventory)
}

func TestApply_PaymentFailure(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	assert.Equal(t, DecideCancel, r.Apply(Signal{Source: SourcePayment, OK: false, Reason: "payment failed"}))
}

func TestApply_InventoryFailsAfterPaymentSucceeded(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	assert.Equal(t, DecideConfirm, r.Apply(Signal{Source: SourcePayment, OK: true}))
	assert.Equal(t, DecideCancelAndRefund, r.Apply(Signal{Source: SourceInventory, OK: false}))
}

func TestApply_PaymentSucceedsAfterInventoryFailed(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	assert.Equal(t, DecideCancel, r.Apply(Signal{Source: SourceInventory, OK: false}))
	// the order is already cancelled; the late charge only needs undoing
	assert.Equal(t, DecideRefund, r.Apply(Signal{Source: SourcePayment, OK: true}))
}

func TestApply_DuplicateSignalsDecideNothing(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	assert.Equal(t, DecideConfirm, r.Apply(Signal{Source: SourcePayment, OK: true}))
	assert.Equal(t, DecideNothing, r.Apply(Signal{Source: SourcePayment, OK: true}))

	assert.Equal(t, DecideNothing, r.Apply(Signal{Source: SourceInventory, OK: true}))
	assert.Equal(t, DecideNothing, r.Apply(Signal{Source: SourceInventory, OK: true}))
}

func TestApply_BothFail(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}

	assert.Equal(t, DecideCancel, r.Apply(Signal{Source: SourcePayment, OK: false}))
	// cancel decision repeats; the store guard makes the second a no-op
	assert.Equal(t, DecideCancel, r.Apply(Signal{Source: SourceInventory, OK: false}))
}

func TestApply_UnknownSource(t *testing.T) {
	r := SagaRecord{OrderID: "o1"}
	assert.Equal(t, DecideNothing, r.Apply(Signal{Source: "shipping", OK: true}))
	assert.Equal(t, OutcomePending, r.Inventory)
	assert.Equal(t, OutcomePending, r.Payment)
}
