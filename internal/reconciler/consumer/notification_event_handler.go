package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/platform/messaging/producers"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

// NotificationEventHandler reconciles notifications queued by the gateway
type NotificationEventHandler struct {
	reconciliationService service.ReconciliationService
	producer              producers.DeadLetterPublisher
	logger                *slog.Logger
}

// NewNotificationEventHandler creates a new handler
func NewNotificationEventHandler(
	logger *slog.Logger,
	reconciliationService service.ReconciliationService,
	producer producers.DeadLetterPublisher,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		reconciliationService: reconciliationService,
		producer:              producer,
		logger:                logger,
	}
}

// HandleMessage processes Kafka messages. A nil return commits the offset.
// Messages that cannot succeed on redelivery are parked in the DLQ. Persist
// failures are returned and the consumer retries the message in place.
func (h *NotificationEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request reconciliation.Request
	if err := json.Unmarshal(value, &request); err != nil {
		h.logger.Error("Failed to unmarshal notification from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		return h.park(ctx, h.logger, producers.ParkedNotification{
			Key:         string(key),
			Payload:     value,
			FailureKind: reconciliation.FailureUnparseable,
			Reason:      err.Error(),
		}, err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received notification for reconciliation",
		"notification_code", request.NotificationCode,
		"reference", request.Reference,
	)

	result, err := h.reconciliationService.Reconcile(ctx, &request)
	if err != nil {
		kind := reconciliation.KindOf(err)
		switch kind {
		case reconciliation.FailureValidation, reconciliation.FailureLookup, reconciliation.FailureRemote:
			logger.Warn("Notification needs manual reconciliation",
				"notification_code", request.NotificationCode,
				"failure_kind", kind,
				"error", err,
			)
			return h.park(ctx, logger, producers.ParkedNotification{
				Key:              string(key),
				Payload:          value,
				NotificationCode: request.NotificationCode,
				Reference:        request.Reference,
				CorrelationID:    request.CorrelationID,
				FailureKind:      kind,
				Reason:           err.Error(),
			}, err)
		default:
			logger.Error("Failed to reconcile notification",
				"notification_code", request.NotificationCode,
				"failure_kind", kind,
				"error", err,
			)
			return fmt.Errorf("reconciling notification %s failed: %w", request.Key(), err)
		}
	}

	logger.Info("Successfully reconciled notification",
		"notification_code", request.NotificationCode,
		"reference", result.Reference,
		"outcome", result.Outcome,
		"status", result.Status,
	)
	return nil
}

func (h *NotificationEventHandler) park(ctx context.Context, logger *slog.Logger, parked producers.ParkedNotification, cause error) error {
	if h.producer != nil {
		dlqErr := h.producer.Park(ctx, parked)
		if dlqErr == nil {
			return nil
		}
		logger.Error("Failed to park notification in DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", parked.Key,
			"failure_kind", parked.FailureKind,
		)
	}
	return fmt.Errorf("notification %s not handled: %w", parked.Key, cause)
}
