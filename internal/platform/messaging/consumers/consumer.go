package consumers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/segmentio/kafka-go"
)

const (
	// after this many failures the partition is reported as stalled
	maxHandlerAttempts = 3
	fetchRetryDelay    = time.Second
	maxRetryDelay      = 30 * time.Second
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// messageReader is the subset of kafka.Reader used by the consumer loop
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements Consumer using a Kafka consumer group
type KafkaConsumer struct {
	reader        messageReader
	topic         string
	groupID       string
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	logger        *slog.Logger
}

// NewKafkaConsumer creates a consumer of topic in the configured consumer group
func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) *KafkaConsumer {
	return &KafkaConsumer{
		logger:        logger,
		topic:         topic,
		groupID:       cfg.ConsumerGroup,
		retryDelay:    fetchRetryDelay,
		maxRetryDelay: maxRetryDelay,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       topic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.FirstOffset,
		}),
	}
}

// Subscribe starts consuming in the background until ctx is canceled.
// A message is committed only after the handler accepts it. Offsets are
// committed per partition, so a failing message is retried in place and
// the messages behind it wait.
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Subscribed to Kafka topic",
		"topic", c.topic,
		"group_id", c.groupID,
	)

	go c.consume(ctx, handler)
	return nil
}

func (c *KafkaConsumer) consume(ctx context.Context, handler MessageHandler) {
	for {
		if ctx.Err() != nil {
			c.logger.Info("Context canceled, stopping consumer",
				"topic", c.topic,
				"group_id", c.groupID,
			)
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("Failed to fetch message from Kafka",
				"topic", c.topic,
				"group_id", c.groupID,
				"error", err,
			)
			c.sleep(ctx, c.retryDelay)
			continue
		}

		c.logger.Debug("Received message from Kafka",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)

		if err := c.handleUntilAccepted(ctx, handler, msg); err != nil {
			// Only reached on shutdown; the uncommitted offset is fetched again on restart
			c.logger.Warn("Stopped before message was processed, offset not committed",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit message after successful processing",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
				"error", err,
			)
		} else {
			c.logger.Debug("Message committed successfully",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"key", string(msg.Key),
			)
		}
	}
}

// handleUntilAccepted retries msg with exponential backoff until the handler
// accepts it. It returns an error only when ctx ends first.
func (c *KafkaConsumer) handleUntilAccepted(ctx context.Context, handler MessageHandler, msg kafka.Message) error {
	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return nil
		}

		logArgs := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		}
		if attempt < maxHandlerAttempts {
			c.logger.Warn("Message handler failed, retrying", logArgs...)
		} else {
			c.logger.Error("Message handler keeps failing, partition stalled", logArgs...)
		}

		if !c.sleep(ctx, delay) {
			return fmt.Errorf("retrying offset %d: %w (last error: %v)", msg.Offset, ctx.Err(), err)
		}
		delay *= 2
		if c.maxRetryDelay > 0 && delay > c.maxRetryDelay {
			delay = c.maxRetryDelay
		}
	}
}

// sleep waits for d and reports false when ctx ended first
func (c *KafkaConsumer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
