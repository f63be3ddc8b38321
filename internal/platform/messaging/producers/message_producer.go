package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/segmentio/kafka-go"
)

var _ MessagePublisher = (*MessageProducer)(nil)

// MessageProducer publishes JSON messages to a single topic.
// Writes are synchronous so callers know the broker accepted the message.
type MessageProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewMessageProducer creates a producer for topic and ensures the topic exists
func NewMessageProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) (*MessageProducer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}

	if err := provisionTopic(ctx, logger, cfg, topic); err != nil {
		return nil, err
	}

	return &MessageProducer{
		logger: logger,
		writer: newSyncWriter(cfg, topic),
		topic:  topic,
	}, nil
}

func (p *MessageProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *MessageProducer) Topic() string {
	return p.topic
}

func (p *MessageProducer) Close() error {
	p.logger.Info("Closing Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
