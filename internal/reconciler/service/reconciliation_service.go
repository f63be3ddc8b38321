package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/platform/metrics"
)

type ReconciliationServiceImpl struct {
	txExecutor        TxExecutor
	lookup            payment.TransactionLookup
	validator         NotificationValidator
	statusMapper      StatusMapper
	orderManager      OrderManager
	invoiceManager    InvoiceManager
	projectionUpdater ProjectionUpdater
	outboxManager     OutboxManager
	failureRecorder   FailureRecorder
	metrics           *metrics.Recorder
	logger            *slog.Logger
}

// Dependencies groups the collaborators of the reconciliation service
type Dependencies struct {
	TxExecutor        TxExecutor
	Lookup            payment.TransactionLookup
	Validator         NotificationValidator
	StatusMapper      StatusMapper
	OrderManager      OrderManager
	InvoiceManager    InvoiceManager
	ProjectionUpdater ProjectionUpdater
	OutboxManager     OutboxManager
	FailureRecorder   FailureRecorder
	Metrics           *metrics.Recorder
}

func NewReconciliationService(deps Dependencies, logger *slog.Logger) ReconciliationService {
	return &ReconciliationServiceImpl{
		txExecutor:        deps.TxExecutor,
		lookup:            deps.Lookup,
		validator:         deps.Validator,
		statusMapper:      deps.StatusMapper,
		orderManager:      deps.OrderManager,
		invoiceManager:    deps.InvoiceManager,
		projectionUpdater: deps.ProjectionUpdater,
		outboxManager:     deps.OutboxManager,
		failureRecorder:   deps.FailureRecorder,
		metrics:           deps.Metrics,
		logger:            logger,
	}
}

// Reconcile fetches the provider transaction, maps its status and, when it
// differs from the order's, applies the transition in a single database transaction.
// The order row stays locked from the comparison until commit.
func (s *ReconciliationServiceImpl) Reconcile(ctx context.Context, request *reconciliation.Request) (*reconciliation.Result, error) {
	started := time.Now()
	logger := s.logger.With(
		"notification_code", request.NotificationCode,
		"reference", request.Reference,
	)
	if request.CorrelationID != "" {
		logger = logger.With("correlation_id", request.CorrelationID)
	}

	result, err := s.reconcile(ctx, logger, request)
	if err != nil {
		kind := reconciliation.KindOf(err)
		logger.Error("Reconciliation failed", "failure_kind", kind, "error", err)
		s.metrics.ObserveFailure(string(kind), started)

		if recordErr := s.failureRecorder.RecordFailure(ctx, request, err); recordErr != nil {
			logger.Error("Failed to record reconciliation failure", "error", recordErr)
		}
		return nil, err
	}

	s.metrics.ObserveReconciliation(string(result.Outcome), result.Unrecognized, started)
	if result.InvoiceID != nil {
		s.metrics.InvoiceCreated()
	}
	return result, nil
}

func (s *ReconciliationServiceImpl) reconcile(ctx context.Context, logger *slog.Logger, request *reconciliation.Request) (*reconciliation.Result, error) {
	// 1. Validate the request
	if err := s.validator.Validate(ctx, request); err != nil {
		return nil, err
	}

	// A manual request names the order itself, so it must exist before the provider is asked
	if request.NotificationCode == "" {
		if _, err := s.orderManager.FindOrder(ctx, request.Reference); err != nil {
			return nil, err
		}
	}

	// 2. Fetch the authoritative record; nothing is locked while the provider is called
	record, err := s.lookup.Fetch(ctx, request.Query())
	if err != nil {
		return nil, &reconciliation.RemoteError{Query: request.Query().String(), Err: err}
	}

	reference := record.Reference
	if reference == "" {
		reference = request.Reference
	}
	if reference == "" {
		return nil, &reconciliation.LookupError{Err: errors.New("transaction carries no order reference")}
	}
	logger = logger.With("reference", reference, "transaction_code", record.Code)

	// 3. Map the remote status
	status := s.statusMapper.Map(record.Status)
	if status == order.StatusUnrecognized {
		logger.Warn("Unrecognized PagSeguro status, leaving order untouched", "remote_status", int(record.Status))
	}

	var result *reconciliation.Result
	err = s.txExecutor.ExecuteTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.orderManager.LockOrder(ctx, tx, reference)
		if err != nil {
			return err
		}

		result = &reconciliation.Result{
			Outcome:         reconciliation.OutcomeNoOp,
			OrderID:         locked.ID,
			Reference:       locked.Reference,
			PreviousStatus:  locked.Status,
			Status:          locked.Status,
			RemoteStatus:    int(record.Status),
			TransactionCode: record.Code,
			Unrecognized:    status == order.StatusUnrecognized,
		}

		// 4. Compare under the row lock
		if result.Unrecognized || locked.Status == status {
			return nil
		}

		// 5. Apply
		inv, err := s.invoiceManager.RegisterInvoice(ctx, tx, locked, status, record)
		if err != nil {
			return err
		}
		if inv != nil {
			result.InvoiceID = &inv.ID
		}

		if err := s.orderManager.ApplyTransition(ctx, tx, locked, status, record); err != nil {
			return err
		}

		if err := s.projectionUpdater.UpdateTransactionCode(ctx, tx, locked, record.Code); err != nil {
			return err
		}

		result.Outcome = reconciliation.OutcomeApplied
		result.Status = status

		return s.outboxManager.CreateOutboxEntry(ctx, tx, request, result)
	})
	if err != nil {
		return nil, classifyTxError(reference, err)
	}

	if result.Applied() {
		logger.Info("Order status reconciled",
			"order_id", result.OrderID,
			"previous_status", result.PreviousStatus,
			"status", result.Status,
			"invoiced", result.InvoiceID != nil,
		)
	} else {
		logger.Info("Order already in sync", "order_id", result.OrderID, "status", result.Status)
	}
	return result, nil
}

// classifyTxError keeps lookup and persist errors raised inside the transaction
// and wraps everything else (begin, commit) as a persist failure
func classifyTxError(reference string, err error) error {
	var lookupErr *reconciliation.LookupError
	var persistErr *reconciliation.PersistError
	switch {
	case errors.As(err, &lookupErr), errors.As(err, &persistErr):
		return err
	default:
		return &reconciliation.PersistError{Op: "commit reconciliation", Reference: reference, Err: err}
	}
}
