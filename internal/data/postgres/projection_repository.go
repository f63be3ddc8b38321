package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pagseguro-reconciler/internal/domain/projection"
	"github.com/pagseguro-reconciler/internal/platform/persistence"
)

// ProjectionRepository implements projection.Repository over sales_order_grid and pagseguro_orders
type ProjectionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewProjectionRepository creates a new PostgreSQL projection repository
func NewProjectionRepository(logger *slog.Logger, db *persistence.PostgresDB) projection.Repository {
	return &ProjectionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the transaction
func (r *ProjectionRepository) WithTx(tx pgx.Tx) projection.Repository {
	return &ProjectionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// UpdateGridTransactionCode sets the transaction code on the order grid row
func (r *ProjectionRepository) UpdateGridTransactionCode(ctx context.Context, orderID int64, transactionCode string) error {
	query := `
		UPDATE sales_order_grid
		SET transaction_code = $1, updated_at = NOW()
		WHERE entity_id = $2
	`
	return r.keyedUpdate(ctx, projection.TableOrderGrid, query, orderID, transactionCode)
}

// UpdateModuleOrderTransactionCode sets the transaction code on the module's order row
func (r *ProjectionRepository) UpdateModuleOrderTransactionCode(ctx context.Context, orderID int64, transactionCode string) error {
	query := `
		UPDATE pagseguro_orders
		SET transaction_code = $1, updated_at = NOW()
		WHERE order_id = $2
	`
	return r.keyedUpdate(ctx, projection.TablePagSeguroOrders, query, orderID, transactionCode)
}

func (r *ProjectionRepository) keyedUpdate(ctx context.Context, table, query string, orderID int64, transactionCode string) error {
	result, err := r.querier.Exec(ctx, query, transactionCode, orderID)
	if err != nil {
		r.logger.Error("Failed to update transaction code", "table", table, "order_id", orderID, "error", err)
		return fmt.Errorf("failed to update %s transaction code: %w", table, err)
	}

	if result.RowsAffected() == 0 {
		return projection.ErrProjectionRowMissing{Table: table, OrderID: orderID}
	}

	return nil
}

// GetTransactionCodes reads the codes held by both projections. Missing rows read as empty codes.
func (r *ProjectionRepository) GetTransactionCodes(ctx context.Context, orderID int64) (*projection.TransactionCodes, error) {
	query := `
		SELECT COALESCE(g.transaction_code, ''), COALESCE(p.transaction_code, '')
		FROM orders o
		LEFT JOIN sales_order_grid g ON g.entity_id = o.id
		LEFT JOIN pagseguro_orders p ON p.order_id = o.id
		WHERE o.id = $1
	`

	codes := &projection.TransactionCodes{OrderID: orderID}
	err := r.querier.QueryRow(ctx, query, orderID).Scan(&codes.Grid, &codes.PagSeguro)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return codes, nil
		}
		r.logger.Error("Failed to get transaction codes", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to get transaction codes: %w", err)
	}

	return codes, nil
}
