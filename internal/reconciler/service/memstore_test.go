package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/invoice"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/outbox"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"github.com/pagseguro-reconciler/internal/domain/projection"
)

var errInjected = errors.New("injected write failure")

// memState is everything a reconciliation may write
type memState struct {
	orders   map[string]order.Order
	history  []order.StatusHistoryEntry
	invoices map[int64]invoice.Invoice
	grid     map[int64]string
	module   map[int64]string
	outbox   []outbox.Message
}

func (s memState) clone() memState {
	c := memState{
		orders:   make(map[string]order.Order, len(s.orders)),
		history:  append([]order.StatusHistoryEntry(nil), s.history...),
		invoices: make(map[int64]invoice.Invoice, len(s.invoices)),
		grid:     make(map[int64]string, len(s.grid)),
		module:   make(map[int64]string, len(s.module)),
		outbox:   append([]outbox.Message(nil), s.outbox...),
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.grid {
		c.grid[k] = v
	}
	for k, v := range s.module {
		c.module[k] = v
	}
	return c
}

// memStore is an in-memory order store whose transactions hold a single
// store-wide lock and roll back on error
type memStore struct {
	txMu   sync.Mutex
	state  memState
	failOn map[string]bool

	auditMu sync.Mutex
	audits  []*audit.Entry
}

func newMemStore(orders ...order.Order) *memStore {
	s := &memStore{
		state: memState{
			orders:   map[string]order.Order{},
			invoices: map[int64]invoice.Invoice{},
			grid:     map[int64]string{},
			module:   map[int64]string{},
		},
		failOn: map[string]bool{},
	}
	for _, o := range orders {
		s.state.orders[o.Reference] = o
		s.state.grid[o.ID] = ""
		s.state.module[o.ID] = ""
	}
	return s
}

func (s *memStore) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.state.clone()
	if err := fn(nil); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *memStore) snapshot() memState {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.state.clone()
}

func (s *memStore) historyOf(orderID int64) []order.StatusHistoryEntry {
	var entries []order.StatusHistoryEntry
	for _, e := range s.snapshot().history {
		if e.OrderID == orderID {
			entries = append(entries, e)
		}
	}
	return entries
}

func (s *memStore) failedAudits() []*audit.Entry {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	return append([]*audit.Entry(nil), s.audits...)
}

type memOrderRepo struct{ s *memStore }

func (r memOrderRepo) GetByReference(_ context.Context, reference string) (*order.Order, error) {
	o, ok := r.s.state.orders[reference]
	if !ok {
		return nil, order.ErrOrderNotFound{Reference: reference}
	}
	return &o, nil
}

func (r memOrderRepo) LockByReference(ctx context.Context, reference string) (*order.Order, error) {
	return r.GetByReference(ctx, reference)
}

func (r memOrderRepo) Update(_ context.Context, o *order.Order) error {
	if r.s.failOn["update"] {
		return errInjected
	}
	stored := r.s.state.orders[o.Reference]
	if stored.Version != o.Version-1 {
		return order.ErrConcurrentModification{OrderID: o.ID}
	}
	r.s.state.orders[o.Reference] = *o
	return nil
}

func (r memOrderRepo) AppendHistory(_ context.Context, entry *order.StatusHistoryEntry) error {
	if r.s.failOn["history"] {
		return errInjected
	}
	entry.ID = int64(len(r.s.state.history) + 1)
	r.s.state.history = append(r.s.state.history, *entry)
	return nil
}

func (r memOrderRepo) ListHistory(_ context.Context, orderID int64) ([]*order.StatusHistoryEntry, error) {
	var entries []*order.StatusHistoryEntry
	for i := range r.s.state.history {
		if r.s.state.history[i].OrderID == orderID {
			entries = append(entries, &r.s.state.history[i])
		}
	}
	return entries, nil
}

func (r memOrderRepo) WithTx(pgx.Tx) order.Repository { return r }

type memInvoiceRepo struct{ s *memStore }

func (r memInvoiceRepo) Create(_ context.Context, inv *invoice.Invoice) error {
	if r.s.failOn["invoice"] {
		return errInjected
	}
	if _, ok := r.s.state.invoices[inv.OrderID]; ok {
		return invoice.ErrDuplicateInvoice{OrderID: inv.OrderID}
	}
	r.s.state.invoices[inv.OrderID] = *inv
	return nil
}

func (r memInvoiceRepo) GetByOrderID(_ context.Context, orderID int64) (*invoice.Invoice, error) {
	inv, ok := r.s.state.invoices[orderID]
	if !ok {
		return nil, invoice.ErrInvoiceNotFound{OrderID: orderID}
	}
	return &inv, nil
}

func (r memInvoiceRepo) WithTx(pgx.Tx) invoice.Repository { return r }

type memProjectionRepo struct{ s *memStore }

func (r memProjectionRepo) UpdateGridTransactionCode(_ context.Context, orderID int64, code string) error {
	if r.s.failOn["grid"] {
		return errInjected
	}
	if _, ok := r.s.state.grid[orderID]; !ok {
		return projection.ErrProjectionRowMissing{Table: projection.TableOrderGrid, OrderID: orderID}
	}
	r.s.state.grid[orderID] = code
	return nil
}

func (r memProjectionRepo) UpdateModuleOrderTransactionCode(_ context.Context, orderID int64, code string) error {
	if r.s.failOn["module"] {
		return errInjected
	}
	if _, ok := r.s.state.module[orderID]; !ok {
		return projection.ErrProjectionRowMissing{Table: projection.TablePagSeguroOrders, OrderID: orderID}
	}
	r.s.state.module[orderID] = code
	return nil
}

func (r memProjectionRepo) GetTransactionCodes(_ context.Context, orderID int64) (*projection.TransactionCodes, error) {
	return &projection.TransactionCodes{OrderID: orderID, Grid: r.s.state.grid[orderID], PagSeguro: r.s.state.module[orderID]}, nil
}

func (r memProjectionRepo) WithTx(pgx.Tx) projection.Repository { return r }

type memOutboxRepo struct{ s *memStore }

func (r memOutboxRepo) Create(_ context.Context, m *outbox.Message) error {
	if r.s.failOn["outbox"] {
		return errInjected
	}
	m.ID = int64(len(r.s.state.outbox) + 1)
	r.s.state.outbox = append(r.s.state.outbox, *m)
	return nil
}

func (r memOutboxRepo) GetPending(context.Context, int) ([]*outbox.Message, error) { return nil, nil }
func (r memOutboxRepo) SaveDelivery(context.Context, *outbox.Message) error { return nil }
func (r memOutboxRepo) GetByEventID(_ context.Context, id uuid.UUID) (*outbox.Message, error) {
	return nil, outbox.ErrMessageNotFound{}
}
func (r memOutboxRepo) WithTx(pgx.Tx) outbox.Repository { return r }

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Create(_ context.Context, e *audit.Entry) error {
	r.s.auditMu.Lock()
	defer r.s.auditMu.Unlock()
	r.s.audits = append(r.s.audits, e)
	return nil
}

func (r memAuditRepo) GetByEventID(context.Context, uuid.UUID) (*audit.Entry, error) {
	return nil, audit.ErrEntryNotFound{}
}

func (r memAuditRepo) GetByReference(_ context.Context, reference string, _, _ int) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	for _, e := range r.s.failedAudits() {
		if e.Reference == reference {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

func (r memAuditRepo) CountByReference(ctx context.Context, reference string) (int64, error) {
	entries, _ := r.GetByReference(ctx, reference, 0, 0)
	return int64(len(entries)), nil
}

// fakeLookup serves canned provider records by notification code or reference
type fakeLookup struct {
	mu      sync.Mutex
	records map[string]*payment.TransactionRecord
	err     error
	calls   int
}

func (f *fakeLookup) Fetch(_ context.Context, q payment.Query) (*payment.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	key := q.NotificationCode
	if key == "" {
		key = q.Reference
	}
	record, ok := f.records[key]
	if !ok {
		return nil, payment.ErrTransactionNotFound{Query: q}
	}
	copied := *record
	return &copied, nil
}

func (f *fakeLookup) set(key string, record *payment.TransactionRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = record
}
