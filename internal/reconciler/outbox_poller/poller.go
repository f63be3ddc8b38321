package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
)

// Poller drains pending outbox messages through an EventPublisher
type Poller struct {
	outboxRepo       outbox.Repository
	publisher        EventPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher EventPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		outboxRepo:       outboxRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending outbox messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return nil
	}

	p.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("outbox_id", msg.ID, "event_id", msg.EventID, "order_id", msg.OrderID)
		if entry, err := msg.AuditEntry(); err == nil && entry.CorrelationID != "" {
			logger = logger.With("correlation_id", entry.CorrelationID)
		}

		err := p.publisher.Publish(ctx, msg)
		if err == nil || msg.Status != outbox.StatusPending {
			continue
		}

		abandoned := msg.RecordFailure(err, p.maxRetryAttempts, time.Now().UTC())
		if abandoned {
			logger.Warn("Giving up on outbox message, its audit entry and status event need a manual replay",
				"attempts", msg.Attempts, "error", err,
			)
		} else {
			logger.Error("Failed to deliver outbox message", "attempts", msg.Attempts, "error", err)
		}

		if errSave := p.outboxRepo.SaveDelivery(ctx, msg); errSave != nil {
			logger.Error("Failed to record outbox delivery failure", "error", errSave)
		}
	}
	return nil
}
