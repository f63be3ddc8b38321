package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/invoice"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
	"github.com/pagseguro-reconciler/internal/domain/projection"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	reconciler "github.com/pagseguro-reconciler/internal/reconciler/service"
)

// OrderServiceImpl implements OrderService
type OrderServiceImpl struct {
	orderRepo      order.Repository
	invoiceRepo    invoice.Repository
	projectionRepo projection.Repository
	outboxRepo     outbox.Repository
	auditRepo      audit.Repository
	reconciler     reconciler.ReconciliationService
	logger         *slog.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	logger *slog.Logger,
	orderRepo order.Repository,
	invoiceRepo invoice.Repository,
	projectionRepo projection.Repository,
	outboxRepo outbox.Repository,
	auditRepo audit.Repository,
	reconcilerService reconciler.ReconciliationService,
) OrderService {
	return &OrderServiceImpl{
		orderRepo:      orderRepo,
		invoiceRepo:    invoiceRepo,
		projectionRepo: projectionRepo,
		outboxRepo:     outboxRepo,
		auditRepo:      auditRepo,
		reconciler:     reconcilerService,
		logger:         logger,
	}
}

// GetOrder loads the order with its history, invoice and projection codes.
// An unknown reference returns order.ErrOrderNotFound.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, reference string) (*OrderDetails, error) {
	o, err := s.orderRepo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			s.logger.Info("Order not found", "reference", reference)
			return nil, err
		}
		s.logger.Error("Failed to get order", "reference", reference, "error", err)
		return nil, err
	}

	history, err := s.orderRepo.ListHistory(ctx, o.ID)
	if err != nil {
		s.logger.Error("Failed to list order history", "reference", reference, "error", err)
		return nil, err
	}

	details := &OrderDetails{Order: o, History: history}

	inv, err := s.invoiceRepo.GetByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		details.Invoice = inv
	case errors.Is(err, invoice.ErrInvoiceNotFound{}):
	default:
		s.logger.Error("Failed to get invoice", "reference", reference, "error", err)
		return nil, err
	}

	codes, err := s.projectionRepo.GetTransactionCodes(ctx, o.ID)
	if err != nil {
		s.logger.Error("Failed to get transaction codes", "reference", reference, "error", err)
		return nil, err
	}
	details.TransactionCodes = codes

	return details, nil
}

// GetReconciliations returns a page of audit entries, newest first
func (s *OrderServiceImpl) GetReconciliations(ctx context.Context, reference string, page, perPage int) ([]*audit.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.auditRepo.GetByReference(ctx, reference, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.auditRepo.CountByReference(ctx, reference)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GetReconciliation looks the event up in the audit log first. An applied
// transition still waiting in the outbox is read from its payload.
func (s *OrderServiceImpl) GetReconciliation(ctx context.Context, eventID uuid.UUID) (*ReconciliationDetails, error) {
	details := &ReconciliationDetails{}

	entry, err := s.auditRepo.GetByEventID(ctx, eventID)
	switch {
	case err == nil:
		details.Entry = entry
		details.Published = true
	case errors.Is(err, audit.ErrEntryNotFound{}):
	default:
		s.logger.Error("Failed to get audit entry", "event_id", eventID, "error", err)
		return nil, err
	}

	if details.Entry != nil && details.Entry.Outcome != audit.OutcomeApplied {
		return details, nil
	}

	msg, err := s.outboxRepo.GetByEventID(ctx, eventID)
	switch {
	case err == nil:
		details.Delivery = msg
	case errors.Is(err, outbox.ErrMessageNotFound{}):
		if details.Entry == nil {
			return nil, audit.ErrEntryNotFound{EventID: eventID}
		}
		return details, nil
	default:
		s.logger.Error("Failed to get outbox message", "event_id", eventID, "error", err)
		return nil, err
	}

	if details.Entry == nil {
		pending, err := msg.AuditEntry()
		if err != nil {
			s.logger.Error("Outbox payload is not an audit entry", "event_id", eventID, "outbox_id", msg.ID, "error", err)
			return nil, fmt.Errorf("decode outbox payload for event %s: %w", eventID, err)
		}
		details.Entry = pending
	}
	return details, nil
}

// Reconcile runs a manual reconciliation by order reference
func (s *OrderServiceImpl) Reconcile(ctx context.Context, reference, correlationID string) (*reconciliation.Result, error) {
	s.logger.Info("Manual reconciliation requested", "reference", reference, "correlation_id", correlationID)
	return s.reconciler.Reconcile(ctx, &reconciliation.Request{
		Reference:     reference,
		CorrelationID: correlationID,
		ReceivedAt:    time.Now().UTC(),
	})
}
