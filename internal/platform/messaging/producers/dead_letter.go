package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/segmentio/kafka-go"
)

// Headers set on every parked notification so consumers of the DLQ topic can
// route on them without decoding the body.
const (
	HeaderFailureKind      = "x-failure-kind"
	HeaderNotificationCode = "x-notification-code"
	HeaderReference        = "x-order-reference"
	HeaderCorrelationID    = "x-correlation-id"
)

// ErrDLQDisabled is returned when no DLQ topic is configured
var ErrDLQDisabled = errors.New("DLQ producer not initialized")

var _ DeadLetterPublisher = (*DLQProducer)(nil)

// ParkedNotification is a queued notification the worker could not reconcile
type ParkedNotification struct {
	Key              string
	Payload          []byte
	NotificationCode string
	Reference        string
	CorrelationID    string
	FailureKind      reconciliation.FailureKind
	Reason           string
}

// parkedRecord is the DLQ message body. Payload carries the original queue
// message as JSON when it parses and as a string otherwise.
type parkedRecord struct {
	NotificationCode string                     `json:"notification_code,omitempty"`
	Reference        string                     `json:"reference,omitempty"`
	CorrelationID    string                     `json:"correlation_id,omitempty"`
	FailureKind      reconciliation.FailureKind `json:"failure_kind"`
	Reason           string                     `json:"reason"`
	Payload          json.RawMessage            `json:"payload"`
	ParkedAt         time.Time                  `json:"parked_at"`
}

// DLQProducer parks notifications that need manual reconciliation
type DLQProducer struct {
	logger   *slog.Logger
	writer   KafkaWriter
	dlqTopic string
	now      func() time.Time
}

// NewDLQProducer returns a nil producer when cfg.DLQTopic is empty
func NewDLQProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured, undeliverable notifications stay uncommitted")
		return nil, nil
	}

	if err := provisionTopic(ctx, logger, cfg, cfg.DLQTopic); err != nil {
		return nil, fmt.Errorf("dlq: %w", err)
	}

	return &DLQProducer{
		logger:   logger,
		writer:   newSyncWriter(cfg, cfg.DLQTopic),
		dlqTopic: cfg.DLQTopic,
		now:      time.Now,
	}, nil
}

// Park writes parked to the DLQ topic, keyed like the original queue message
// so replays of one order stay ordered.
func (p *DLQProducer) Park(ctx context.Context, parked ParkedNotification) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}

	payload := json.RawMessage(parked.Payload)
	if !json.Valid(parked.Payload) {
		quoted, err := json.Marshal(string(parked.Payload))
		if err != nil {
			return fmt.Errorf("failed to encode parked payload: %w", err)
		}
		payload = quoted
	}

	body, err := json.Marshal(parkedRecord{
		NotificationCode: parked.NotificationCode,
		Reference:        parked.Reference,
		CorrelationID:    parked.CorrelationID,
		FailureKind:      parked.FailureKind,
		Reason:           parked.Reason,
		Payload:          payload,
		ParkedAt:         now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal parked notification: %w", err)
	}

	headers := []kafka.Header{{Key: HeaderFailureKind, Value: []byte(parked.FailureKind)}}
	if parked.NotificationCode != "" {
		headers = append(headers, kafka.Header{Key: HeaderNotificationCode, Value: []byte(parked.NotificationCode)})
	}
	if parked.Reference != "" {
		headers = append(headers, kafka.Header{Key: HeaderReference, Value: []byte(parked.Reference)})
	}
	if parked.CorrelationID != "" {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(parked.CorrelationID)})
	}

	msg := kafka.Message{
		Key:     []byte(parked.Key),
		Value:   body,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to park notification",
			"topic", p.dlqTopic,
			"key", parked.Key,
			"failure_kind", parked.FailureKind,
			"error", err,
		)
		return fmt.Errorf("failed to park notification %s on %s: %w", parked.Key, p.dlqTopic, err)
	}

	p.logger.Info("Parked notification for manual reconciliation",
		"topic", p.dlqTopic,
		"key", parked.Key,
		"notification_code", parked.NotificationCode,
		"failure_kind", parked.FailureKind,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq writer for %s: %w", p.dlqTopic, err)
	}
	return nil
}
