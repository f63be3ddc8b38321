package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/invoice"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
	"github.com/pagseguro-reconciler/internal/domain/projection"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
)

// NotificationService accepts PagSeguro notifications
type NotificationService interface {
	// Submit reconciles the notification inline in sync mode and returns the result.
	// In async mode the notification is queued and the result is nil.
	Submit(ctx context.Context, request *reconciliation.Request) (*reconciliation.Result, error)
}

// OrderDetails is what operators see for one order
type OrderDetails struct {
	Order            *order.Order
	History          []*order.StatusHistoryEntry
	Invoice          *invoice.Invoice
	TransactionCodes *projection.TransactionCodes
}

// ReconciliationDetails is one reconciliation event. Delivery is the outbox
// message of an applied transition and is nil for failures and no-ops.
// Published is false while the entry exists only in the outbox.
type ReconciliationDetails struct {
	Entry     *audit.Entry
	Delivery  *outbox.Message
	Published bool
}

// OrderService backs the admin API
type OrderService interface {
	// GetOrder returns order.ErrOrderNotFound if no order carries the reference
	GetOrder(ctx context.Context, reference string) (*OrderDetails, error)

	// GetReconciliations returns a page of the audit log and the total count
	GetReconciliations(ctx context.Context, reference string, page, perPage int) ([]*audit.Entry, int64, error)

	// GetReconciliation returns one event from the audit log or, when it has not
	// been published yet, from the outbox. Unknown events return audit.ErrEntryNotFound.
	GetReconciliation(ctx context.Context, eventID uuid.UUID) (*ReconciliationDetails, error)

	// Reconcile looks the order's latest transaction up by reference and applies it
	Reconcile(ctx context.Context, reference, correlationID string) (*reconciliation.Result, error)
}
