package invoice

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Repository persists invoices. The store enforces one invoice per order.
type Repository interface {
	Create(ctx context.Context, invoice *Invoice) error
	GetByOrderID(ctx context.Context, orderID int64) (*Invoice, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrInvoiceNotFound indicates the order has no invoice
type ErrInvoiceNotFound struct {
	OrderID int64
}

func (e ErrInvoiceNotFound) Error() string {
	return "invoice not found for order: " + strconv.FormatInt(e.OrderID, 10)
}

// Is implements the errors.Is interface for ErrInvoiceNotFound
func (e ErrInvoiceNotFound) Is(target error) bool {
	t, ok := target.(ErrInvoiceNotFound)
	if !ok {
		return false
	}
	return t.OrderID == 0 || t.OrderID == e.OrderID
}

// ErrDuplicateInvoice indicates a second invoice for the same order
type ErrDuplicateInvoice struct {
	OrderID int64
}

func (e ErrDuplicateInvoice) Error() string {
	return "order already invoiced: " + strconv.FormatInt(e.OrderID, 10)
}

// Is implements the errors.Is interface for ErrDuplicateInvoice
func (e ErrDuplicateInvoice) Is(target error) bool {
	t, ok := target.(ErrDuplicateInvoice)
	if !ok {
		return false
	}
	return t.OrderID == 0 || t.OrderID == e.OrderID
}
