package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
)

// WorkerPoolReconciliationService bounds concurrent reconciliations and runs
// requests that share a key one at a time
type WorkerPoolReconciliationService struct {
	baseService ReconciliationService
	pool        *ants.Pool
	logger      *slog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

type reconcileOutcome struct {
	result *reconciliation.Result
	err    error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolReconciliationService(
	baseService ReconciliationService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolReconciliationService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolReconciliationService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		locks:       make(map[string]*keyLock),
	}, nil
}

// Reconcile submits the request to the pool and waits for its result
func (s *WorkerPoolReconciliationService) Reconcile(ctx context.Context, request *reconciliation.Request) (*reconciliation.Result, error) {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	key := request.Key()
	logger.Debug("Submitting reconciliation to worker pool", "key", key)

	done := make(chan reconcileOutcome, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		unlock := s.lock(key)
		defer unlock()

		result, err := s.baseService.Reconcile(ctx, &requestCopy)
		done <- reconcileOutcome{result: result, err: err}
	})
	if err != nil {
		logger.Error("Failed to submit reconciliation to worker pool", "key", key, "error", err)
		return nil, err
	}

	outcome := <-done
	return outcome.result, outcome.err
}

// lock serializes work on key and returns the matching unlock
func (s *WorkerPoolReconciliationService) lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolReconciliationService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolReconciliationService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolReconciliationService) Capacity() int {
	return s.pool.Cap()
}

func (s *WorkerPoolReconciliationService) pendingKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
