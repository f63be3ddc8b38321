package service

import (
	"context"
	"log/slog"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/platform/messaging/producers"
	"github.com/pagseguro-reconciler/internal/platform/metrics"
	reconciler "github.com/pagseguro-reconciler/internal/reconciler/service"
)

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	mode       string
	validator  reconciler.NotificationValidator
	reconciler reconciler.ReconciliationService
	producer   producers.MessagePublisher
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

// NewNotificationService creates a notification service. reconcilerService is
// used in sync mode, producer in async mode.
func NewNotificationService(
	logger *slog.Logger,
	mode string,
	validator reconciler.NotificationValidator,
	reconcilerService reconciler.ReconciliationService,
	producer producers.MessagePublisher,
	recorder *metrics.Recorder,
) NotificationService {
	if mode == "" {
		mode = config.DeliveryModeSync
	}
	return &NotificationServiceImpl{
		mode:       mode,
		validator:  validator,
		reconciler: reconcilerService,
		producer:   producer,
		metrics:    recorder,
		logger:     logger,
	}
}

// Submit validates the notification before queueing so a malformed call is
// answered with 400 instead of landing in the DLQ.
func (s *NotificationServiceImpl) Submit(ctx context.Context, request *reconciliation.Request) (*reconciliation.Result, error) {
	s.metrics.NotificationReceived(s.mode)

	if s.mode == config.DeliveryModeSync {
		return s.reconciler.Reconcile(ctx, request)
	}

	if err := s.validator.Validate(ctx, request); err != nil {
		return nil, err
	}

	if err := s.producer.Publish(ctx, request.Key(), request); err != nil {
		s.logger.Error("Failed to queue notification",
			"notification_code", request.NotificationCode,
			"correlation_id", request.CorrelationID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Notification queued",
		"notification_code", request.NotificationCode,
		"correlation_id", request.CorrelationID,
	)
	return nil, nil
}
