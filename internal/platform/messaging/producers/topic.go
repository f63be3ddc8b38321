package producers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/segmentio/kafka-go"
)

const topicReadAttempts = 5

var topicReadBackoff = 2 * time.Second

// provisionTopic dials the first reachable broker and makes sure topic exists
// before a writer is pointed at it.
func provisionTopic(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka at %s: %w", cfg.Brokers, err)
	}
	defer conn.Close()

	return ensureTopic(ctx, conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
}

// ensureTopic creates topic when the broker reports no partitions for it.
// Partition reads are retried because a freshly started broker often answers
// with a transient metadata error.
func ensureTopic(ctx context.Context, admin topicAdmin, topic string, partitions, replicas int, logger *slog.Logger) error {
	logger = logger.With("topic", topic)

	var found []kafka.Partition
	var readErr error
	for attempt := 1; attempt <= topicReadAttempts; attempt++ {
		found, readErr = admin.ReadPartitions(topic)
		if readErr == nil {
			break
		}
		logger.Warn("Failed to read topic partitions", "attempt", attempt, "error", readErr)
		if attempt == topicReadAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("provisioning topic %s: %w", topic, ctx.Err())
		case <-time.After(topicReadBackoff):
		}
	}

	if len(found) > 0 {
		logger.Debug("Kafka topic already exists", "partitions", len(found))
		return nil
	}

	if partitions <= 0 {
		partitions = 1
	}
	if replicas <= 0 {
		replicas = 1
	}

	logger.Info("Creating Kafka topic",
		"partitions", partitions,
		"replication_factor", replicas,
		"last_read_error", readErr,
	)
	err := admin.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicas,
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}

func newSyncWriter(cfg *config.KafkaConfig, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:  kafka.TCP(cfg.Brokers),
		Topic: topic,
		// Hash keeps every message of one key on one partition
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}
}
