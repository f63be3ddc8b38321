// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a pgx.Tx so that a reconciliation writes
// its order, history, invoice, projection and outbox rows in one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, reference, status, capturable, invoice_id, grand_total::text, currency, version, created_at, updated_at`

// OrderRepository implements the order.Repository interface for PostgreSQL
type OrderRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Repository {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the transaction
func (r *OrderRepository) WithTx(tx pgx.Tx) order.Repository {
	return &OrderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByReference retrieves an order by the reference sent to PagSeguro
func (r *OrderRepository) GetByReference(ctx context.Context, reference string) (*order.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE reference = $1
	`

	o, err := scanOrder(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get order", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return o, nil
}

// LockByReference obtains a row lock on the order and returns its current state.
// Concurrent reconciliations of the same order queue on this lock until the holder commits.
func (r *OrderRepository) LockByReference(ctx context.Context, reference string) (*order.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE reference = $1
		FOR UPDATE
	`

	o, err := scanOrder(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{Reference: reference}
		}
		r.logger.Error("Failed to lock order for update", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to lock order for update: %w", err)
	}

	return o, nil
}

// Update persists status, invoice link and version of an order
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE orders
		SET status = $1, invoice_id = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`

	result, err := r.querier.Exec(ctx, query,
		string(o.Status),
		o.InvoiceID,
		o.Version,
		o.UpdatedAt,
		o.ID,
		o.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update order", "order_id", o.ID, "error", err)
		return fmt.Errorf("failed to update order: %w", err)
	}

	if result.RowsAffected() == 0 {
		return order.ErrConcurrentModification{OrderID: o.ID}
	}

	return nil
}

// AppendHistory inserts a status history comment
func (r *OrderRepository) AppendHistory(ctx context.Context, entry *order.StatusHistoryEntry) error {
	query := `
		INSERT INTO order_status_history (order_id, status, comment, is_customer_notified, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		entry.OrderID,
		string(entry.Status),
		entry.Comment,
		entry.IsCustomerNotified,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		r.logger.Error("Failed to append order history", "order_id", entry.OrderID, "error", err)
		return fmt.Errorf("failed to append order history: %w", err)
	}

	return nil
}

// ListHistory returns the order's history oldest first
func (r *OrderRepository) ListHistory(ctx context.Context, orderID int64) ([]*order.StatusHistoryEntry, error) {
	query := `
		SELECT id, order_id, status, comment, is_customer_notified, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id ASC
	`

	rows, err := r.querier.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list order history", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to list order history: %w", err)
	}
	defer rows.Close()

	var entries []*order.StatusHistoryEntry
	for rows.Next() {
		var entry order.StatusHistoryEntry
		var status string
		if err := rows.Scan(&entry.ID, &entry.OrderID, &status, &entry.Comment, &entry.IsCustomerNotified, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order history: %w", err)
		}
		entry.Status = order.Status(status)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order history: %w", err)
	}

	return entries, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var status, grandTotal string
	err := row.Scan(
		&o.ID,
		&o.Reference,
		&status,
		&o.Capturable,
		&o.InvoiceID,
		&grandTotal,
		&o.Currency,
		&o.Version,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = order.Status(status)
	if o.GrandTotal, err = decimal.NewFromString(grandTotal); err != nil {
		return nil, fmt.Errorf("invalid grand total %q: %w", grandTotal, err)
	}
	return &o, nil
}
