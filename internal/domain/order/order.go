package order

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is a local order status from the host's closed vocabulary
type Status string

const (
	StatusPending           Status = "pending"
	StatusInReview          Status = "in_review"
	StatusPaid              Status = "paid"
	StatusAvailable         Status = "available"
	StatusInDispute         Status = "in_dispute"
	StatusRefunded          Status = "refunded"
	StatusCancelled         Status = "cancelled"
	StatusChargebackDebited Status = "chargeback_debited"
	StatusContested         Status = "contested"

	// StatusUnrecognized is what unknown provider codes map to. It is never stored on an order.
	StatusUnrecognized Status = "unrecognized"
)

// Common errors
var (
	ErrUnrecognizedStatus = errors.New("unrecognized status cannot be applied to an order")
	ErrAlreadyInvoiced    = errors.New("order already has an invoice")
	ErrEmptyReference     = errors.New("order reference cannot be empty")
)

// Order is the local view of a host order that PagSeguro notifications reconcile against
type Order struct {
	ID         int64           `json:"id"`
	Reference  string          `json:"reference"` // Increment ID sent to PagSeguro as the transaction reference
	Status     Status          `json:"status"`
	Capturable bool            `json:"capturable"`
	InvoiceID  *uuid.UUID      `json:"invoice_id,omitempty"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Currency   string          `json:"currency"`
	Version    int             `json:"version"` // For optimistic locking
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// StatusHistoryEntry is an append-only comment on the order timeline
type StatusHistoryEntry struct {
	ID                 int64     `json:"id"`
	OrderID            int64     `json:"order_id"`
	Status             Status    `json:"status"`
	Comment            string    `json:"comment"`
	IsCustomerNotified bool      `json:"is_customer_notified"`
	CreatedAt          time.Time `json:"created_at"`
}

// HasInvoice reports whether an invoice is already linked to the order
func (o *Order) HasInvoice() bool {
	return o.InvoiceID != nil
}

// CanInvoice is the capture eligibility predicate: the order accepts online capture and has no invoice yet
func (o *Order) CanInvoice() bool {
	return o.Capturable && !o.HasInvoice()
}

// AttachInvoice links an invoice to the order. An order carries at most one invoice.
func (o *Order) AttachInvoice(invoiceID uuid.UUID) error {
	if o.HasInvoice() {
		return ErrAlreadyInvoiced
	}
	o.InvoiceID = &invoiceID
	o.UpdatedAt = time.Now()
	return nil
}

// Transition moves the order to a new status and bumps its version
func (o *Order) Transition(status Status) error {
	if status == StatusUnrecognized || status == "" {
		return ErrUnrecognizedStatus
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	o.Version++
	return nil
}

// NewHistoryEntry builds a history comment for the order in the given status
func (o *Order) NewHistoryEntry(status Status, comment string, notifyCustomer bool) *StatusHistoryEntry {
	return &StatusHistoryEntry{
		OrderID:            o.ID,
		Status:             status,
		Comment:            comment,
		IsCustomerNotified: notifyCustomer,
		CreatedAt:          time.Now(),
	}
}
