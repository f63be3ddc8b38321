package service

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pagseguro-reconciler/internal/domain/invoice"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
)

// ReconciliationService brings one local order in line with its PagSeguro transaction.
type ReconciliationService interface {
	Reconcile(ctx context.Context, request *reconciliation.Request) (*reconciliation.Result, error)
}

// TxExecutor runs fn inside a database transaction, committing only when fn returns nil
type TxExecutor interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// NotificationValidator validates requests before anything is fetched
type NotificationValidator interface {
	Validate(ctx context.Context, request *reconciliation.Request) error
}

// StatusMapper translates provider codes into local statuses. Unknown codes map to order.StatusUnrecognized.
type StatusMapper interface {
	Map(code payment.StatusCode) order.Status
}

// OrderManager locks and transitions orders
type OrderManager interface {
	FindOrder(ctx context.Context, reference string) (*order.Order, error)
	LockOrder(ctx context.Context, tx pgx.Tx, reference string) (*order.Order, error)
	ApplyTransition(ctx context.Context, tx pgx.Tx, locked *order.Order, status order.Status, record *payment.TransactionRecord) error
}

// InvoiceManager registers the order's invoice when the capture policy allows it.
// It returns nil, nil when no invoice is due.
type InvoiceManager interface {
	RegisterInvoice(ctx context.Context, tx pgx.Tx, locked *order.Order, status order.Status, record *payment.TransactionRecord) (*invoice.Invoice, error)
}

// ProjectionUpdater writes the transaction code into the denormalized order records
type ProjectionUpdater interface {
	UpdateTransactionCode(ctx context.Context, tx pgx.Tx, locked *order.Order, transactionCode string) error
}

// OutboxManager handles the creation of outbox entries for applied transitions
type OutboxManager interface {
	CreateOutboxEntry(ctx context.Context, tx pgx.Tx, request *reconciliation.Request, result *reconciliation.Result) error
}

// FailureRecorder handles recording failed reconciliations
type FailureRecorder interface {
	RecordFailure(ctx context.Context, request *reconciliation.Request, failure error) error
}
