package components

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pagseguro-reconciler/internal/domain/invoice"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

// InvoiceComment prefixes the history comment that records a captured invoice
const InvoiceComment = "PagSeguro Notification: Capture Online Invoice: "

type InvoiceManagerImpl struct {
	invoiceRepo     invoice.Repository
	orderRepo       order.Repository
	captureStatuses map[order.Status]struct{}
	logger          *slog.Logger
}

// NewInvoiceManager creates an invoice manager that captures when an order
// moves into one of captureStatuses. An empty list captures on any transition.
func NewInvoiceManager(invoiceRepo invoice.Repository, orderRepo order.Repository, captureStatuses []string, logger *slog.Logger) service.InvoiceManager {
	statuses := make(map[order.Status]struct{}, len(captureStatuses))
	for _, s := range captureStatuses {
		statuses[order.Status(s)] = struct{}{}
	}

	return &InvoiceManagerImpl{
		invoiceRepo:     invoiceRepo,
		orderRepo:       orderRepo,
		captureStatuses: statuses,
		logger:          logger,
	}
}

// RegisterInvoice creates, captures and persists the order's invoice, links it
// to the order and comments the order history without notifying the customer
func (m *InvoiceManagerImpl) RegisterInvoice(ctx context.Context, tx pgx.Tx, locked *order.Order, status order.Status, record *payment.TransactionRecord) (*invoice.Invoice, error) {
	if !m.eligible(locked, status) {
		return nil, nil
	}

	inv, err := invoice.Prepare(locked)
	if err != nil {
		return nil, &reconciliation.PersistError{Op: "prepare invoice", Reference: locked.Reference, Err: err}
	}
	inv.CaptureOnline()
	if err := inv.Register(record.Code); err != nil {
		return nil, &reconciliation.PersistError{Op: "register invoice", Reference: locked.Reference, Err: err}
	}

	if err := m.invoiceRepo.WithTx(tx).Create(ctx, inv); err != nil {
		m.logger.Error("Failed to persist invoice", "order_id", locked.ID, "error", err)
		return nil, &reconciliation.PersistError{Op: "create invoice", Reference: locked.Reference, Err: err}
	}

	if err := locked.AttachInvoice(inv.ID); err != nil {
		return nil, &reconciliation.PersistError{Op: "attach invoice", Reference: locked.Reference, Err: err}
	}

	comment := locked.NewHistoryEntry(locked.Status, InvoiceComment+inv.ID.String(), false)
	if err := m.orderRepo.WithTx(tx).AppendHistory(ctx, comment); err != nil {
		m.logger.Error("Failed to append invoice comment", "order_id", locked.ID, "error", err)
		return nil, &reconciliation.PersistError{Op: "append invoice comment", Reference: locked.Reference, Err: err}
	}

	m.logger.Info("Invoice captured online",
		"order_id", locked.ID,
		"invoice_id", inv.ID.String(),
		"amount", inv.Amount.String(),
		"currency", inv.Currency)
	return inv, nil
}

func (m *InvoiceManagerImpl) eligible(locked *order.Order, status order.Status) bool {
	if !locked.CanInvoice() {
		return false
	}
	if len(m.captureStatuses) == 0 {
		return true
	}
	_, ok := m.captureStatuses[status]
	return ok
}
