package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/data/mongo"
	"github.com/pagseguro-reconciler/internal/data/postgres"
	"github.com/pagseguro-reconciler/internal/domain/statusmap"
	api_gateway "github.com/pagseguro-reconciler/internal/gateway"
	"github.com/pagseguro-reconciler/internal/gateway/service"
	"github.com/pagseguro-reconciler/internal/logger"
	"github.com/pagseguro-reconciler/internal/platform/messaging/producers"
	"github.com/pagseguro-reconciler/internal/platform/metrics"
	"github.com/pagseguro-reconciler/internal/platform/pagseguro"
	"github.com/pagseguro-reconciler/internal/platform/persistence"
	"github.com/pagseguro-reconciler/internal/reconciler/components"
	reconciler "github.com/pagseguro-reconciler/internal/reconciler/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("notification_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Notification Gateway",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"config_source", cfg.Source,
		"delivery_mode", cfg.Reconciliation.DeliveryMode,
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

	statusTable, err := loadStatusTable(cfg)
	if err != nil {
		log.Error("Failed to load status map", "path", cfg.Reconciliation.StatusMapPath, "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	repos := components.Repositories{
		Orders:      postgres.NewOrderRepository(log, postgresDB),
		Invoices:    postgres.NewInvoiceRepository(log, postgresDB),
		Projections: postgres.NewProjectionRepository(log, postgresDB),
		Outbox:      postgres.NewOutboxRepository(log, postgresDB),
	}
	auditRepo := mongo.NewAuditRepository(log, mongoDB.Database())
	if err := auditRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure audit log indexes", "error", err)
		os.Exit(1)
	}
	repos.Audit = auditRepo

	recorder := metrics.New(nil)

	// Manual reconciliation from the admin API always runs inline, so the
	// gateway carries the full reconciler even in async mode
	reconciliationService := components.CreateReconciliationService(
		postgresDB,
		pagseguro.NewClient(log, cfg.PagSeguro),
		statusTable,
		repos,
		recorder,
		log,
		cfg,
	)

	var notificationProducer *producers.MessageProducer
	if cfg.Reconciliation.DeliveryMode == config.DeliveryModeAsync {
		notificationProducer, err = producers.NewMessageProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.NotificationTopic)
		if err != nil {
			log.Error("Failed to initialize notification Kafka producer", "error", err)
			os.Exit(1)
		}
	}

	// Initialize services
	notificationService := service.NewNotificationService(
		log,
		cfg.Reconciliation.DeliveryMode,
		components.NewNotificationValidator(log),
		reconciliationService,
		notificationProducer,
		recorder,
	)
	orderService := service.NewOrderService(
		log,
		repos.Orders,
		repos.Invoices,
		repos.Projections,
		repos.Outbox,
		repos.Audit,
		reconciliationService,
	)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, notificationService, orderService, recorder)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting notifications before the stores go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if wpService, ok := reconciliationService.(*reconciler.WorkerPoolReconciliationService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	if notificationProducer != nil {
		if err = notificationProducer.Close(); err != nil {
			log.Error("Error closing Kafka producer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}

func loadStatusTable(cfg *config.Config) (*statusmap.Table, error) {
	if cfg.Reconciliation.StatusMapPath == "" {
		return statusmap.Default(), nil
	}
	return statusmap.Load(cfg.Reconciliation.StatusMapPath)
}
