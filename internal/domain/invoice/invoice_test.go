package invoice

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capturableOrder() *order.Order {
	return &order.Order{
		ID:         7,
		Reference:  "100000007",
		Status:     order.StatusPending,
		Capturable: true,
		GrandTotal: decimal.RequireFromString("89.50"),
		Currency:   "BRL",
		Version:    1,
	}
}

func TestPrepare(t *testing.T) {
	t.Run("CapturableOrder", func(t *testing.T) {
		o := capturableOrder()

		inv, err := Prepare(o)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, inv.ID)
		assert.Equal(t, o.ID, inv.OrderID)
		assert.True(t, o.GrandTotal.Equal(inv.Amount))
		assert.Equal(t, "BRL", inv.Currency)
		assert.Equal(t, CaptureNone, inv.CaptureCase)
		assert.Equal(t, StateOpen, inv.State)
	})

	t.Run("AlreadyInvoiced", func(t *testing.T) {
		o := capturableOrder()
		require.NoError(t, o.AttachInvoice(uuid.New()))

		inv, err := Prepare(o)
		assert.Nil(t, inv)
		assert.ErrorIs(t, err, ErrOrderNotInvoiceable)
	})

	t.Run("NotCapturable", func(t *testing.T) {
		o := capturableOrder()
		o.Capturable = false

		_, err := Prepare(o)
		assert.ErrorIs(t, err, ErrOrderNotInvoiceable)
	})
}

func TestInvoice_Register(t *testing.T) {
	t.Run("OnlineCapture", func(t *testing.T) {
		inv, err := Prepare(capturableOrder())
		require.NoError(t, err)

		inv.CaptureOnline()
		require.NoError(t, inv.Register("9E884542-81B3-4419-9A75-BCC6FB495EF1"))

		assert.Equal(t, CaptureOnline, inv.CaptureCase)
		assert.Equal(t, StatePaid, inv.State)
		assert.Equal(t, "9E884542-81B3-4419-9A75-BCC6FB495EF1", inv.TransactionCode)
	})

	t.Run("CaptureNotRequested", func(t *testing.T) {
		inv, err := Prepare(capturableOrder())
		require.NoError(t, err)

		assert.ErrorIs(t, inv.Register("code"), ErrCaptureNotRequested)
		assert.Equal(t, StateOpen, inv.State)
	})

	t.Run("RegisterTwice", func(t *testing.T) {
		inv, err := Prepare(capturableOrder())
		require.NoError(t, err)
		inv.CaptureOnline()
		require.NoError(t, inv.Register("code"))

		assert.ErrorIs(t, inv.Register("code"), ErrAlreadyRegistered)
	})
}

func TestErrDuplicateInvoice_Is(t *testing.T) {
	err := ErrDuplicateInvoice{OrderID: 7}
	assert.True(t, errors.Is(err, ErrDuplicateInvoice{}))
	assert.True(t, errors.Is(err, ErrDuplicateInvoice{OrderID: 7}))
	assert.False(t, errors.Is(err, ErrDuplicateInvoice{OrderID: 8}))
}
