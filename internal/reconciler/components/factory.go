package components

import (
	"log/slog"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/invoice"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"github.com/pagseguro-reconciler/internal/domain/projection"
	"github.com/pagseguro-reconciler/internal/platform/metrics"
	"github.com/pagseguro-reconciler/internal/reconciler/service"
)

// Repositories bundles the stores a reconciliation touches
type Repositories struct {
	Orders      order.Repository
	Invoices    invoice.Repository
	Projections projection.Repository
	Outbox      outbox.Repository
	Audit       audit.Repository
}

// CreateReconciliationService creates a new ReconciliationService with all its dependencies.
// The result runs on the worker pool unless the pool cannot be created.
func CreateReconciliationService(
	txExecutor service.TxExecutor,
	lookup payment.TransactionLookup,
	statusMapper service.StatusMapper,
	repos Repositories,
	recorder *metrics.Recorder,
	logger *slog.Logger,
	cfg *config.Config,
) service.ReconciliationService {
	baseService := service.NewReconciliationService(service.Dependencies{
		TxExecutor:        txExecutor,
		Lookup:            lookup,
		Validator:         NewNotificationValidator(logger),
		StatusMapper:      statusMapper,
		OrderManager:      NewOrderManager(repos.Orders, logger),
		InvoiceManager:    NewInvoiceManager(repos.Invoices, repos.Orders, cfg.Reconciliation.CaptureStatuses, logger),
		ProjectionUpdater: NewProjectionUpdater(repos.Projections, logger),
		OutboxManager:     NewOutboxManager(repos.Outbox, logger),
		FailureRecorder:   NewFailureRecorder(repos.Audit, logger),
		Metrics:           recorder,
	}, logger.With("component", "reconciler"))

	workerPoolService, err := service.NewWorkerPoolReconciliationService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService
	}

	logger.Info("Created worker pool reconciliation service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService
}
