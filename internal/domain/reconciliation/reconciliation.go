// Package reconciliation defines the request, result and error types of a
// PagSeguro notification reconciliation.
package reconciliation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/payment"
)

// NotificationTypeTransaction is the only notification type that is reconciled
const NotificationTypeTransaction = "transaction"

var (
	ErrEmptyReference              = errors.New("notification code or order reference is required")
	ErrUnsupportedNotificationType = errors.New("unsupported notification type")
)

// Outcome of a successful reconciliation
type Outcome string

const (
	OutcomeApplied Outcome = "APPLIED"
	OutcomeNoOp    Outcome = "NOOP"
)

// Request asks for one order to be reconciled. Webhooks carry a notification
// code; manual reconciliation carries the order reference.
type Request struct {
	NotificationCode string    `json:"notification_code,omitempty"`
	NotificationType string    `json:"notification_type,omitempty"`
	Reference        string    `json:"reference,omitempty"`
	CorrelationID    string    `json:"correlation_id,omitempty"`
	ReceivedAt       time.Time `json:"received_at"`
}

// Query converts the request into a provider lookup
func (r *Request) Query() payment.Query {
	return payment.Query{NotificationCode: r.NotificationCode, Reference: r.Reference}
}

// Key identifies the request for in-process serialization and message keys
func (r *Request) Key() string {
	if r.NotificationCode != "" {
		return r.NotificationCode
	}
	return r.Reference
}

// Result describes what a reconciliation did
type Result struct {
	Outcome         Outcome      `json:"outcome"`
	OrderID         int64        `json:"order_id"`
	Reference       string       `json:"reference"`
	PreviousStatus  order.Status `json:"previous_status"`
	Status          order.Status `json:"status"`
	RemoteStatus    int          `json:"remote_status"`
	TransactionCode string       `json:"transaction_code"`
	InvoiceID       *uuid.UUID   `json:"invoice_id,omitempty"`
	Unrecognized    bool         `json:"unrecognized,omitempty"`
}

// Applied reports whether the order changed
func (r *Result) Applied() bool {
	return r.Outcome == OutcomeApplied
}
