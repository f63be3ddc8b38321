package components

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

type OutboxManagerImpl struct {
	outboxRepo outbox.Repository
	logger     *slog.Logger
}

func NewOutboxManager(outboxRepo outbox.Repository, logger *slog.Logger) service.OutboxManager {
	return &OutboxManagerImpl{
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// CreateOutboxEntry stores the applied transition in the outbox within tx
func (m *OutboxManagerImpl) CreateOutboxEntry(ctx context.Context, tx pgx.Tx, request *reconciliation.Request, result *reconciliation.Result) error {
	logger := m.logger
	if request.CorrelationID != "" {
		logger = m.logger.With("correlation_id", request.CorrelationID)
	}

	outboxMessage, err := outbox.NewMessage(audit.NewAppliedEntry(request, result))
	if err != nil {
		logger.Error("Failed to create new outbox message (marshal payload)", "order_id", result.OrderID, "error", err)
		return &reconciliation.PersistError{Op: "build outbox message", Reference: result.Reference, Err: err}
	}

	if err = m.outboxRepo.WithTx(tx).Create(ctx, outboxMessage); err != nil {
		logger.Error("Failed to create outbox message", "order_id", result.OrderID, "error", err)
		return &reconciliation.PersistError{Op: "create outbox message", Reference: result.Reference, Err: err}
	}

	logger.Info("Outbox message created successfully",
		"order_id", result.OrderID,
		"event_id", outboxMessage.EventID.String(),
		"outbox_id", outboxMessage.ID,
	)
	return nil
}
