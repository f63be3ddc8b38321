package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

type NotificationValidatorImpl struct {
	logger *slog.Logger
}

func NewNotificationValidator(logger *slog.Logger) service.NotificationValidator {
	return &NotificationValidatorImpl{
		logger: logger,
	}
}

// Validate requires something to look the transaction up by and rejects
// notification types other than transaction notifications
func (v *NotificationValidatorImpl) Validate(_ context.Context, request *reconciliation.Request) error {
	logger := v.logger
	if request.CorrelationID != "" {
		logger = v.logger.With("correlation_id", request.CorrelationID)
	}

	if request.NotificationCode == "" && request.Reference == "" {
		logger.Error("Notification without code or reference")
		return reconciliation.ErrEmptyReference
	}

	if request.NotificationType != "" && request.NotificationType != reconciliation.NotificationTypeTransaction {
		logger.Error("Unsupported notification type",
			"notification_code", request.NotificationCode,
			"notification_type", request.NotificationType)
		return fmt.Errorf("%w: %s", reconciliation.ErrUnsupportedNotificationType, request.NotificationType)
	}

	return nil
}
