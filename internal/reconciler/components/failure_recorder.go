package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

type FailureRecorderImpl struct {
	auditRepo audit.Repository
	logger    *slog.Logger
}

func NewFailureRecorder(auditRepo audit.Repository, logger *slog.Logger) service.FailureRecorder {
	return &FailureRecorderImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// RecordFailure writes a FAILED entry to the audit log so the order can be reconciled manually
func (r *FailureRecorderImpl) RecordFailure(ctx context.Context, request *reconciliation.Request, failure error) error {
	logger := r.logger
	if request.CorrelationID != "" {
		logger = r.logger.With("correlation_id", request.CorrelationID)
	}

	entry := audit.NewFailedEntry(request, failure)
	if entry.Reference == "" {
		var lookupErr *reconciliation.LookupError
		if errors.As(failure, &lookupErr) {
			entry.Reference = lookupErr.Reference
		}
	}

	if err := r.auditRepo.Create(ctx, entry); err != nil {
		logger.Error("Failed to create FAILED audit entry",
			"notification_code", request.NotificationCode,
			"reference", entry.Reference,
			"error", err)
		return err
	}

	logger.Info("Recorded failed reconciliation",
		"event_id", entry.EventID.String(),
		"failure_kind", entry.FailureKind,
		"reference", entry.Reference)
	return nil
}
