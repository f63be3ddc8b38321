// Package projection covers the denormalized order lookups that carry the
// PagSeguro transaction code: the order grid and the module's own order table.
package projection

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Table names of the denormalized projections
const (
	TableOrderGrid       = "sales_order_grid"
	TablePagSeguroOrders = "pagseguro_orders"
)

// TransactionCodes is what both projections currently hold for an order
type TransactionCodes struct {
	OrderID   int64  `json:"order_id"`
	Grid      string `json:"grid"`
	PagSeguro string `json:"pagseguro"`
}

// Repository performs keyed updates on the projections
type Repository interface {
	UpdateGridTransactionCode(ctx context.Context, orderID int64, transactionCode string) error
	UpdateModuleOrderTransactionCode(ctx context.Context, orderID int64, transactionCode string) error
	GetTransactionCodes(ctx context.Context, orderID int64) (*TransactionCodes, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrProjectionRowMissing indicates the keyed update matched no row
type ErrProjectionRowMissing struct {
	Table   string
	OrderID int64
}

func (e ErrProjectionRowMissing) Error() string {
	return e.Table + " has no row for order " + strconv.FormatInt(e.OrderID, 10)
}
