package statusmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Map(t *testing.T) {
	table := Default()

	testCases := []struct {
		code     payment.StatusCode
		expected order.Status
	}{
		{payment.StatusAwaitingPayment, order.StatusPending},
		{payment.StatusInAnalysis, order.StatusInReview},
		{payment.StatusPaid, order.StatusPaid},
		{payment.StatusAvailable, order.StatusAvailable},
		{payment.StatusInDispute, order.StatusInDispute},
		{payment.StatusReturned, order.StatusRefunded},
		{payment.StatusCancelled, order.StatusCancelled},
		{payment.StatusChargebackDebited, order.StatusChargebackDebited},
		{payment.StatusTemporaryRetained, order.StatusContested},
		{payment.StatusCode(0), order.StatusUnrecognized},
		{payment.StatusCode(42), order.StatusUnrecognized},
		{payment.StatusCode(-1), order.StatusUnrecognized},
	}

	for _, tc := range testCases {
		t.Run(tc.code.String(), func(t *testing.T) {
			assert.Equal(t, tc.expected, table.Map(tc.code))
		})
	}

	assert.Len(t, table.Codes(), 9)
	assert.Equal(t, payment.StatusAwaitingPayment, table.Codes()[0])
}

func TestParse(t *testing.T) {
	t.Run("ValidDocument", func(t *testing.T) {
		table, err := Parse([]byte("statuses:\n  1: pending_payment\n  3: processing\n"))
		require.NoError(t, err)

		assert.Equal(t, order.Status("pending_payment"), table.Map(1))
		assert.Equal(t, order.Status("processing"), table.Map(3))
		assert.Equal(t, order.StatusUnrecognized, table.Map(2))
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		_, err := Parse([]byte("statuses: {}\n"))
		assert.Error(t, err)
	})

	t.Run("SentinelNotAllowed", func(t *testing.T) {
		_, err := Parse([]byte("statuses:\n  1: unrecognized\n"))
		assert.Error(t, err)
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		_, err := Parse([]byte("statuses: [1, 2"))
		assert.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("EmptyPathUsesDefault", func(t *testing.T) {
		table, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, table.Map(payment.StatusPaid))
	})

	t.Run("FromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "status_map.yaml")
		require.NoError(t, os.WriteFile(path, []byte("statuses:\n  3: paid\n  7: cancelled\n"), 0644))

		table, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCancelled, table.Map(payment.StatusCancelled))
		assert.Equal(t, order.StatusUnrecognized, table.Map(payment.StatusAwaitingPayment))
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
