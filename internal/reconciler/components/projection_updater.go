package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/projection"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

type ProjectionUpdaterImpl struct {
	projectionRepo projection.Repository
	logger         *slog.Logger
}

func NewProjectionUpdater(projectionRepo projection.Repository, logger *slog.Logger) service.ProjectionUpdater {
	return &ProjectionUpdaterImpl{
		projectionRepo: projectionRepo,
		logger:         logger,
	}
}

// UpdateTransactionCode writes the code into the order grid and the module order table.
// A projection without a row for the order is skipped with a warning.
func (u *ProjectionUpdaterImpl) UpdateTransactionCode(ctx context.Context, tx pgx.Tx, locked *order.Order, transactionCode string) error {
	repoTx := u.projectionRepo.WithTx(tx)

	if err := u.skipMissingRow(locked, repoTx.UpdateGridTransactionCode(ctx, locked.ID, transactionCode)); err != nil {
		u.logger.Error("Failed to update order grid", "order_id", locked.ID, "error", err)
		return &reconciliation.PersistError{Op: "update order grid", Reference: locked.Reference, Err: err}
	}
	if err := u.skipMissingRow(locked, repoTx.UpdateModuleOrderTransactionCode(ctx, locked.ID, transactionCode)); err != nil {
		u.logger.Error("Failed to update module order", "order_id", locked.ID, "error", err)
		return &reconciliation.PersistError{Op: "update module order", Reference: locked.Reference, Err: err}
	}

	u.logger.Debug("Transaction code projected", "order_id", locked.ID, "transaction_code", transactionCode)
	return nil
}

func (u *ProjectionUpdaterImpl) skipMissingRow(locked *order.Order, err error) error {
	var missing projection.ErrProjectionRowMissing
	if errors.As(err, &missing) {
		u.logger.Warn("Projection row missing, transaction code not written",
			"table", missing.Table, "order_id", locked.ID, "reference", locked.Reference)
		return nil
	}
	return err
}
