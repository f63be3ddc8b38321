package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pagseguro-reconciler/internal/domain/invoice"
	"github.com/pagseguro-reconciler/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

// InvoiceRepository implements the invoice.Repository interface for PostgreSQL
type InvoiceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository
func NewInvoiceRepository(logger *slog.Logger, db *persistence.PostgresDB) invoice.Repository {
	return &InvoiceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to the transaction
func (r *InvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return &InvoiceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a registered invoice. The unique key on order_id rejects a second invoice.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (id, order_id, amount, currency, capture_case, state, transaction_code, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		inv.ID,
		inv.OrderID,
		inv.Amount.String(),
		inv.Currency,
		string(inv.CaptureCase),
		string(inv.State),
		inv.TransactionCode,
		inv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return invoice.ErrDuplicateInvoice{OrderID: inv.OrderID}
		}
		r.logger.Error("Failed to create invoice", "order_id", inv.OrderID, "error", err)
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByOrderID retrieves the invoice of an order
func (r *InvoiceRepository) GetByOrderID(ctx context.Context, orderID int64) (*invoice.Invoice, error) {
	query := `
		SELECT id, order_id, amount::text, currency, capture_case, state, transaction_code, created_at
		FROM invoices
		WHERE order_id = $1
	`

	var inv invoice.Invoice
	var amount, captureCase, state string
	err := r.querier.QueryRow(ctx, query, orderID).Scan(
		&inv.ID,
		&inv.OrderID,
		&amount,
		&inv.Currency,
		&captureCase,
		&state,
		&inv.TransactionCode,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrInvoiceNotFound{OrderID: orderID}
		}
		r.logger.Error("Failed to get invoice", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid invoice amount %q: %w", amount, err)
	}
	inv.CaptureCase = invoice.CaptureCase(captureCase)
	inv.State = invoice.State(state)

	return &inv, nil
}
