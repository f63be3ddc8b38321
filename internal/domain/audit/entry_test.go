package audit

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/stretchr/testify/assert"
)

func TestNewAppliedEntry(t *testing.T) {
	invoiceID := uuid.New()
	request := &reconciliation.Request{NotificationCode: "766B9C-AD4B044B04DA", CorrelationID: "corr-1"}
	result := &reconciliation.Result{
		Outcome:         reconciliation.OutcomeApplied,
		OrderID:         42,
		Reference:       "100000042",
		PreviousStatus:  order.StatusPending,
		Status:          order.StatusPaid,
		RemoteStatus:    3,
		TransactionCode: "9E884542-81B3-4419-9A75-BCC6FB495EF1",
		InvoiceID:       &invoiceID,
	}

	entry := NewAppliedEntry(request, result)

	assert.NotEqual(t, uuid.Nil, entry.EventID)
	assert.Equal(t, OutcomeApplied, entry.Outcome)
	assert.Equal(t, int64(42), entry.OrderID)
	assert.Equal(t, "100000042", entry.Reference)
	assert.Equal(t, "766B9C-AD4B044B04DA", entry.NotificationCode)
	assert.Equal(t, order.StatusPending, entry.PreviousStatus)
	assert.Equal(t, order.StatusPaid, entry.NewStatus)
	assert.Equal(t, invoiceID.String(), entry.InvoiceID)
	assert.Equal(t, "corr-1", entry.CorrelationID)
}

func TestNewFailedEntry(t *testing.T) {
	request := &reconciliation.Request{Reference: "no-such-order"}
	failure := &reconciliation.LookupError{Reference: "no-such-order", Err: errors.New("order not found")}

	entry := NewFailedEntry(request, failure)

	assert.Equal(t, OutcomeFailed, entry.Outcome)
	assert.Equal(t, reconciliation.FailureLookup, entry.FailureKind)
	assert.Equal(t, "no-such-order", entry.Reference)
	assert.Contains(t, entry.FailureReason, "no-such-order")
}

func TestErrEntryNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := ErrEntryNotFound{EventID: id}
	assert.True(t, errors.Is(err, ErrEntryNotFound{}))
	assert.True(t, errors.Is(err, ErrEntryNotFound{EventID: id}))
	assert.False(t, errors.Is(err, ErrEntryNotFound{EventID: uuid.New()}))
}
