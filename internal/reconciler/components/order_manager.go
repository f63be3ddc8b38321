package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

// TransactionCodeComment prefixes the history entry written with every applied status
const TransactionCodeComment = "PagSeguro Notification: Transaction Code = "

// OrderManagerImpl implements the OrderManager interface
type OrderManagerImpl struct {
	orderRepo order.Repository
	logger    *slog.Logger
}

// NewOrderManager creates a new OrderManagerImpl
func NewOrderManager(orderRepo order.Repository, logger *slog.Logger) service.OrderManager {
	return &OrderManagerImpl{
		orderRepo: orderRepo,
		logger:    logger,
	}
}

// FindOrder reads the order without locking it.
// A missing order is reported as a LookupError.
func (m *OrderManagerImpl) FindOrder(ctx context.Context, reference string) (*order.Order, error) {
	found, err := m.orderRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			m.logger.Warn("No order for reference", "reference", reference)
			return nil, &reconciliation.LookupError{Reference: reference, Err: err}
		}
		m.logger.Error("Failed to load order", "reference", reference, "error", err)
		return nil, &reconciliation.PersistError{Op: "load order", Reference: reference, Err: err}
	}
	return found, nil
}

// LockOrder locks the order row for the rest of tx.
// A missing order is reported as a LookupError.
func (m *OrderManagerImpl) LockOrder(ctx context.Context, tx pgx.Tx, reference string) (*order.Order, error) {
	locked, err := m.orderRepo.WithTx(tx).LockByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			m.logger.Warn("No order for reference", "reference", reference)
			return nil, &reconciliation.LookupError{Reference: reference, Err: err}
		}
		m.logger.Error("Failed to lock order", "reference", reference, "error", err)
		return nil, &reconciliation.PersistError{Op: "lock order", Reference: reference, Err: err}
	}

	m.logger.Debug("Order locked", "order_id", locked.ID, "status", locked.Status, "ver", locked.Version)
	return locked, nil
}

// ApplyTransition appends the transaction code comment, moves the order to
// status and persists it
func (m *OrderManagerImpl) ApplyTransition(ctx context.Context, tx pgx.Tx, locked *order.Order, status order.Status, record *payment.TransactionRecord) error {
	orderRepoTx := m.orderRepo.WithTx(tx)

	entry := locked.NewHistoryEntry(status, TransactionCodeComment+record.Code, false)
	if err := orderRepoTx.AppendHistory(ctx, entry); err != nil {
		m.logger.Error("Failed to append status history", "order_id", locked.ID, "error", err)
		return &reconciliation.PersistError{Op: "append status history", Reference: locked.Reference, Err: err}
	}

	if err := locked.Transition(status); err != nil {
		return &reconciliation.PersistError{Op: "transition order", Reference: locked.Reference, Err: err}
	}

	if err := orderRepoTx.Update(ctx, locked); err != nil {
		if errors.Is(err, order.ErrConcurrentModification{OrderID: locked.ID}) {
			m.logger.Warn("Concurrent modification on order update", "order_id", locked.ID)
		} else {
			m.logger.Error("Failed to update order", "order_id", locked.ID, "error", err)
		}
		return &reconciliation.PersistError{Op: "update order", Reference: locked.Reference, Err: err}
	}

	m.logger.Info("Order updated", "order_id", locked.ID, "status", locked.Status, "new_ver", locked.Version)
	return nil
}
