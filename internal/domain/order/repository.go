package order

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
)

// Repository defines order persistence operations
type Repository interface {
	GetByReference(ctx context.Context, reference string) (*Order, error)

	// LockByReference acquires a row lock on the order for the rest of the transaction
	LockByReference(ctx context.Context, reference string) (*Order, error)

	// Update uses optimistic locking on Version
	Update(ctx context.Context, order *Order) error

	AppendHistory(ctx context.Context, entry *StatusHistoryEntry) error
	ListHistory(ctx context.Context, orderID int64) ([]*StatusHistoryEntry, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrConcurrentModification indicates optimistic lock failure
type ErrConcurrentModification struct {
	OrderID int64
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for order: " + strconv.FormatInt(e.OrderID, 10)
}

// ErrOrderNotFound indicates that no order carries the reference
type ErrOrderNotFound struct {
	Reference string
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.Reference
}

// Is implements the errors.Is interface for ErrOrderNotFound
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	// An empty target reference matches any ErrOrderNotFound
	return t.Reference == "" || t.Reference == e.Reference
}
