// Package audit records every reconciliation attempt, applied or failed, for
// operators doing manual reconciliation.
package audit

import (
	"time"

	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
)

// Outcome of an audited attempt
type Outcome string

const (
	OutcomeApplied Outcome = "APPLIED"
	OutcomeFailed  Outcome = "FAILED"
)

// Entry is one reconciliation attempt in the audit log
type Entry struct {
	EventID          uuid.UUID                  `json:"event_id" bson:"event_id"`
	Reference        string                     `json:"reference,omitempty" bson:"reference,omitempty"`
	OrderID          int64                      `json:"order_id,omitempty" bson:"order_id,omitempty"`
	NotificationCode string                     `json:"notification_code,omitempty" bson:"notification_code,omitempty"`
	TransactionCode  string                     `json:"transaction_code,omitempty" bson:"transaction_code,omitempty"`
	RemoteStatus     int                        `json:"remote_status,omitempty" bson:"remote_status,omitempty"`
	PreviousStatus   order.Status               `json:"previous_status,omitempty" bson:"previous_status,omitempty"`
	NewStatus        order.Status               `json:"new_status,omitempty" bson:"new_status,omitempty"`
	InvoiceID        string                     `json:"invoice_id,omitempty" bson:"invoice_id,omitempty"`
	Outcome          Outcome                    `json:"outcome" bson:"outcome"`
	FailureKind      reconciliation.FailureKind `json:"failure_kind,omitempty" bson:"failure_kind,omitempty"`
	FailureReason    string                     `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CorrelationID    string                     `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt        time.Time                  `json:"created_at" bson:"created_at"`
	PublishedAt      *time.Time                 `json:"published_at,omitempty" bson:"published_at,omitempty"`
}

// NewAppliedEntry describes a committed transition
func NewAppliedEntry(request *reconciliation.Request, result *reconciliation.Result) *Entry {
	entry := &Entry{
		EventID:          uuid.New(),
		Reference:        result.Reference,
		OrderID:          result.OrderID,
		NotificationCode: request.NotificationCode,
		TransactionCode:  result.TransactionCode,
		RemoteStatus:     result.RemoteStatus,
		PreviousStatus:   result.PreviousStatus,
		NewStatus:        result.Status,
		Outcome:          OutcomeApplied,
		CorrelationID:    request.CorrelationID,
		CreatedAt:        time.Now().UTC(),
	}
	if result.InvoiceID != nil {
		entry.InvoiceID = result.InvoiceID.String()
	}
	return entry
}

// NewFailedEntry describes an attempt that aborted
func NewFailedEntry(request *reconciliation.Request, failure error) *Entry {
	return &Entry{
		EventID:          uuid.New(),
		Reference:        request.Reference,
		NotificationCode: request.NotificationCode,
		Outcome:          OutcomeFailed,
		FailureKind:      reconciliation.KindOf(failure),
		FailureReason:    failure.Error(),
		CorrelationID:    request.CorrelationID,
		CreatedAt:        time.Now().UTC(),
	}
}
