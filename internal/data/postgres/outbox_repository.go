package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
	"github.com/pagseguro-reconciler/internal/platform/persistence"
)

const outboxColumns = `id, event_id, order_id, payload, status, attempts, COALESCE(last_error, ''), created_at, last_attempt_at`

// OutboxRepository keeps applied transitions in reconciliation_outbox until
// the poller delivers them.
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to the reconciliation transaction so the
// message commits or rolls back with the order update.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	err := r.querier.QueryRow(ctx, `
		INSERT INTO reconciliation_outbox (event_id, order_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		message.EventID,
		message.OrderID,
		message.Payload,
		message.Status,
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return outbox.ErrDuplicateMessage{EventID: message.EventID}
		}
		r.logger.Error("Failed to create outbox message", "event_id", message.EventID, "order_id", message.OrderID, "error", err)
		return fmt.Errorf("failed to create outbox message for event %s: %w", message.EventID, err)
	}
	return nil
}

// GetPending returns up to limit undelivered messages, oldest first, so
// status events of one order leave in the order they were applied.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM reconciliation_outbox
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2`, outbox.StatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to query pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		message, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending outbox messages: %w", err)
	}
	return messages, nil
}

func (r *OutboxRepository) SaveDelivery(ctx context.Context, message *outbox.Message) error {
	var lastError *string
	if message.LastError != "" {
		lastError = &message.LastError
	}

	result, err := r.querier.Exec(ctx, `
		UPDATE reconciliation_outbox
		SET status = $1, attempts = $2, last_error = $3, last_attempt_at = $4
		WHERE id = $5`,
		message.Status, message.Attempts, lastError, message.LastAttemptAt, message.ID,
	)
	if err != nil {
		r.logger.Error("Failed to save outbox delivery state",
			"outbox_id", message.ID,
			"status", message.Status,
			"error", err,
		)
		return fmt.Errorf("failed to save delivery state of outbox message %d: %w", message.ID, err)
	}
	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: message.ID}
	}
	return nil
}

// GetByEventID reports the delivery state of one applied transition
func (r *OutboxRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	row := r.querier.QueryRow(ctx, `
		SELECT `+outboxColumns+`
		FROM reconciliation_outbox
		WHERE event_id = $1`, eventID)

	message, err := scanOutboxMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, outbox.ErrMessageNotFound{EventID: eventID}
		}
		r.logger.Error("Failed to get outbox message", "event_id", eventID, "error", err)
		return nil, fmt.Errorf("failed to get outbox message for event %s: %w", eventID, err)
	}
	return message, nil
}

func scanOutboxMessage(row pgx.Row) (*outbox.Message, error) {
	var message outbox.Message
	err := row.Scan(
		&message.ID,
		&message.EventID,
		&message.OrderID,
		&message.Payload,
		&message.Status,
		&message.Attempts,
		&message.LastError,
		&message.CreatedAt,
		&message.LastAttemptAt,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}
