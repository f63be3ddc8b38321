package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/data/mongo"
	"github.com/pagseguro-reconciler/internal/data/postgres"
	"github.com/pagseguro-reconciler/internal/domain/statusmap"
	"github.com/pagseguro-reconciler/internal/logger"
	"github.com/pagseguro-reconciler/internal/platform/messaging/consumers"
	"github.com/pagseguro-reconciler/internal/platform/messaging/producers"
	"github.com/pagseguro-reconciler/internal/platform/metrics"
	"github.com/pagseguro-reconciler/internal/platform/pagseguro"
	"github.com/pagseguro-reconciler/internal/platform/persistence"
	"github.com/pagseguro-reconciler/internal/reconciler/components"
	"github.com/pagseguro-reconciler/internal/reconciler/consumer"
	"github.com/pagseguro-reconciler/internal/reconciler/outbox_poller"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciliation_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciliation Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"config_source", cfg.Source,
		"pagseguro_environment", cfg.PagSeguro.Environment,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, cfg.Application.Name, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	statusTable := statusmap.Default()
	if cfg.Reconciliation.StatusMapPath != "" {
		statusTable, err = statusmap.Load(cfg.Reconciliation.StatusMapPath)
		if err != nil {
			log.Error("Failed to load status map", "path", cfg.Reconciliation.StatusMapPath, "error", err)
			os.Exit(1)
		}
	}

	// Initialize repositories
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())
	if err := auditRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure audit log indexes", "error", err)
		os.Exit(1)
	}
	repos := components.Repositories{
		Orders:      postgres.NewOrderRepository(log, postgresDB),
		Invoices:    postgres.NewInvoiceRepository(log, postgresDB),
		Projections: postgres.NewProjectionRepository(log, postgresDB),
		Outbox:      outboxRepo,
		Audit:       auditRepo,
	}

	recorder := metrics.New(nil)

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka, cfg.Kafka.NotificationTopic)

	// dlqProducer is nil when KAFKA_DLQ_TOPIC is empty; the handler then leaves
	// undeliverable notifications uncommitted
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	var statusEvents producers.MessagePublisher
	var statusProducer *producers.MessageProducer
	if cfg.Kafka.StatusEventTopic != "" {
		statusProducer, err = producers.NewMessageProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.StatusEventTopic)
		if err != nil {
			log.Error("Failed to initialize status event Kafka producer", "error", err)
			os.Exit(1)
		}
		statusEvents = statusProducer
	}

	reconciliationService := components.CreateReconciliationService(
		postgresDB,
		pagseguro.NewClient(log, cfg.PagSeguro),
		statusTable,
		repos,
		recorder,
		log,
		cfg,
	)

	notificationEventHandler := consumer.NewNotificationEventHandler(
		log,
		reconciliationService,
		dlqProducer,
	)

	// Initialize outbox poller
	eventPublisher := outbox_poller.NewEventPublisher(
		outboxRepo,
		auditRepo,
		statusEvents,
		log,
	)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		eventPublisher,
		log,
	)

	metricsServer := newMetricsServer(cfg, recorder)

	// Create error channel for service errors
	errChan := make(chan error, 3)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.NotificationTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, notificationEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	go func() {
		log.Info("Starting metrics server", "port", cfg.Server.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool if it's a WorkerPoolReconciliationService
	if wpService, ok := reconciliationService.(*service.WorkerPoolReconciliationService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if err = metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping metrics server", "error", err)
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	if statusProducer != nil {
		if err = statusProducer.Close(); err != nil {
			log.Error("Error closing status event Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Reconciliation Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Reconciliation Worker shutdown completed with errors")
	} else {
		log.Info("Reconciliation Worker shutdown completed successfully")
	}
}

// newMetricsServer exposes /metrics and /health for the worker
func newMetricsServer(cfg *config.Config, recorder *metrics.Recorder) *http.Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.GET("/metrics", gin.WrapH(recorder.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	return &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}
}
