package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
	"github.com/pagseguro-reconciler/internal/platform/messaging/producers"
)

// EventPublisher delivers a committed transition out of the outbox
type EventPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// StatusEvent is the payload published on the status event topic
type StatusEvent struct {
	EventID         string `json:"event_id"`
	Reference       string `json:"reference"`
	OrderID         int64  `json:"order_id"`
	TransactionCode string `json:"transaction_code,omitempty"`
	PreviousStatus  string `json:"previous_status"`
	NewStatus       string `json:"new_status"`
	InvoiceID       string `json:"invoice_id,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// EventPublisherImpl writes the audit log entry and, when a status topic is
// configured, emits a StatusEvent keyed by order reference.
type EventPublisherImpl struct {
	outboxRepo   outbox.Repository
	auditRepo    audit.Repository
	statusEvents producers.MessagePublisher
	logger       *slog.Logger
}

// NewEventPublisher creates a new publisher. statusEvents may be nil.
func NewEventPublisher(
	outboxRepo outbox.Repository,
	auditRepo audit.Repository,
	statusEvents producers.MessagePublisher,
	logger *slog.Logger,
) EventPublisher {
	return &EventPublisherImpl{
		outboxRepo:   outboxRepo,
		auditRepo:    auditRepo,
		statusEvents: statusEvents,
		logger:       logger,
	}
}

// Publish records the entry in the audit log and marks the message DELIVERED.
// A message whose audit entry already exists counts as delivered. A payload
// that does not decode is abandoned without retries.
func (p *EventPublisherImpl) Publish(ctx context.Context, message *outbox.Message) error {
	entry, err := message.AuditEntry()
	if err != nil {
		p.logger.Error("Outbox payload is not an audit entry",
			"outbox_id", message.ID, "event_id", message.EventID, "error", err,
		)
		message.Abandon(fmt.Sprintf("unreadable audit entry: %v", err), time.Now().UTC())
		if saveErr := p.outboxRepo.SaveDelivery(ctx, message); saveErr != nil {
			p.logger.Error("Failed to abandon unreadable outbox message", "outbox_id", message.ID, "error", saveErr)
		}
		return fmt.Errorf("decoding outbox %d payload: %w", message.ID, err)
	}

	logger := p.logger
	if entry.CorrelationID != "" {
		logger = p.logger.With("correlation_id", entry.CorrelationID)
	}

	now := time.Now().UTC()
	entry.PublishedAt = &now

	if err := p.auditRepo.Create(ctx, entry); err != nil {
		if !errors.Is(err, audit.ErrDuplicateEntry{}) {
			logger.Error("Failed to create audit entry in MongoDB", "event_id", entry.EventID, "error", err)
			return fmt.Errorf("failed to create audit entry %s: %w", entry.EventID, err)
		}
		logger.Info("Audit entry already recorded", "event_id", entry.EventID)
	}

	if p.statusEvents != nil {
		if err := p.statusEvents.Publish(ctx, entry.Reference, newStatusEvent(entry)); err != nil {
			logger.Error("Failed to publish status event", "event_id", entry.EventID, "reference", entry.Reference, "error", err)
			return fmt.Errorf("failed to publish status event %s: %w", entry.EventID, err)
		}
	}

	message.MarkDelivered(now)
	if err := p.outboxRepo.SaveDelivery(ctx, message); err != nil {
		logger.Error("Delivered outbox message but failed to mark it",
			"outbox_id", message.ID, "event_id", message.EventID, "error", err,
		)
		// Left PENDING so the next poll redelivers; the audit write is idempotent
		message.Status = outbox.StatusPending
		return fmt.Errorf("delivered %s but failed to mark outbox %d: %w", message.EventID, message.ID, err)
	}

	logger.Info("Delivered outbox message",
		"outbox_id", message.ID, "event_id", message.EventID, "reference", entry.Reference,
	)
	return nil
}

func newStatusEvent(entry *audit.Entry) StatusEvent {
	return StatusEvent{
		EventID:         entry.EventID.String(),
		Reference:       entry.Reference,
		OrderID:         entry.OrderID,
		TransactionCode: entry.TransactionCode,
		PreviousStatus:  string(entry.PreviousStatus),
		NewStatus:       string(entry.NewStatus),
		InvoiceID:       entry.InvoiceID,
		OccurredAt:      entry.CreatedAt.Format(time.RFC3339),
	}
}
