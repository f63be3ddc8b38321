// Package config provides configuration structures and validation for the reconciler.
// It handles environment-based configuration for the webhook gateway, the
// reconciliation worker, their stores and message queues, and the PagSeguro client.
package config

import (
	"errors"
	"strings"
	"time"
)

// Delivery modes for inbound notifications.
const (
	DeliveryModeSync  = "sync"
	DeliveryModeAsync = "async"
)

// PagSeguro environments.
const (
	PagSeguroProduction = "production"
	PagSeguroSandbox    = "sandbox"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	Outbox         OutboxConfig
	WorkerPool     WorkerPoolConfig
	PagSeguro      PagSeguroConfig
	Reconciliation ReconciliationConfig
	Auth           AuthConfig

	// Source is the .env file the values were read from; empty when only
	// defaults and the environment applied.
	Source string
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	NotificationTopic string // Inbound PagSeguro notifications queued by the gateway
	StatusEventTopic  string // Applied transitions published by the outbox poller; empty disables
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Notifications that need manual reconciliation
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int // Maximum number of retry attempts for outbox messages
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of concurrent reconciliations
}

// PagSeguroConfig contains the credentials and endpoint of the PagSeguro web services
type PagSeguroConfig struct {
	Environment string // production or sandbox
	Email       string
	Token       string
	BaseURL     string // Overrides the environment's default host when set
	Timeout     time.Duration
	Charset     string
}

// ReconciliationConfig contains reconciliation policy settings
type ReconciliationConfig struct {
	StatusMapPath   string   // YAML status table; empty uses the built-in table
	CaptureStatuses []string // Local statuses that trigger invoice capture; empty means any transition
	DeliveryMode    string   // sync reconciles inside the webhook call, async queues to Kafka
}

// AuthConfig contains admin API authentication settings
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

type problems []string

func (p *problems) positive(key string, ok bool) {
	if !ok {
		*p = append(*p, key+" must be greater than 0")
	}
}

func (p *problems) required(key, value string) {
	if value == "" {
		*p = append(*p, key+" is required")
	}
}

// validate reports every invalid setting in a single error.
func (c *Config) validate() error {
	var p problems

	srv := c.Server
	p.positive("SERVER_PORT", srv.Port > 0)
	p.positive("SERVER_SHUTDOWN_TIMEOUT", srv.ShutdownTimeout > 0)
	p.positive("SERVER_READ_TIMEOUT", srv.ReadTimeout > 0)
	p.positive("SERVER_WRITE_TIMEOUT", srv.WriteTimeout > 0)
	p.positive("SERVER_IDLE_TIMEOUT", srv.IdleTimeout > 0)

	k := c.Kafka
	p.required("KAFKA_BROKERS", k.Brokers)
	p.required("KAFKA_NOTIFICATION_TOPIC", k.NotificationTopic)
	p.required("KAFKA_CONSUMER_GROUP", k.ConsumerGroup)
	p.required("KAFKA_DLQ_TOPIC", k.DLQTopic)
	p.positive("KAFKA_CONSUMER_MIN_BYTES", k.MinBytes > 0)
	p.positive("KAFKA_CONSUMER_MAX_BYTES", k.MaxBytes > 0)
	p.positive("KAFKA_CONSUMER_MAX_WAIT", k.MaxWait > 0)

	pg := c.Postgres
	p.required("POSTGRES_URL", pg.URL)
	p.positive("POSTGRES_MAX_CONNS", pg.MaxConns > 0)
	p.positive("POSTGRES_MIN_CONNS", pg.MinConns > 0)
	p.positive("POSTGRES_MAX_CONN_LIFETIME", pg.ConnMaxLifetime > 0)
	p.positive("POSTGRES_MAX_CONN_IDLE_TIME", pg.ConnMaxIdleTime > 0)

	m := c.MongoDB
	p.required("MONGO_URI", m.URI)
	p.required("MONGO_DATABASE", m.Database)
	p.positive("MONGO_TIMEOUT", m.Timeout > 0)
	p.positive("MONGO_MAX_POOL_SIZE", m.MaxPoolSize > 0)
	p.positive("MONGO_MIN_POOL_SIZE", m.MinPoolSize > 0)
	p.positive("MONGO_MAX_CONN_IDLE_TIME", m.MaxConnIdleTime > 0)

	p.positive("OUTBOX_POLLING_INTERVAL", c.Outbox.PollingInterval > 0)
	p.positive("OUTBOX_BATCH_SIZE", c.Outbox.BatchSize > 0)
	p.positive("OUTBOX_MAX_RETRY_ATTEMPTS", c.Outbox.MaxRetryAttempts > 0)
	p.positive("WORKER_POOL_SIZE", c.WorkerPool.Size > 0)

	// Sandbox accepts anonymous calls; production needs merchant credentials.
	switch c.PagSeguro.Environment {
	case PagSeguroProduction:
		if c.PagSeguro.Email == "" {
			p = append(p, "PAGSEGURO_EMAIL is required in production")
		}
		if c.PagSeguro.Token == "" {
			p = append(p, "PAGSEGURO_TOKEN is required in production")
		}
	case PagSeguroSandbox:
	default:
		p = append(p, "PAGSEGURO_ENVIRONMENT must be production or sandbox")
	}
	p.positive("PAGSEGURO_TIMEOUT", c.PagSeguro.Timeout > 0)

	if mode := c.Reconciliation.DeliveryMode; mode != DeliveryModeSync && mode != DeliveryModeAsync {
		p = append(p, "RECONCILIATION_DELIVERY_MODE must be sync or async")
	}

	if len(p) > 0 {
		return errors.New(strings.Join(p, ", "))
	}
	return nil
}
