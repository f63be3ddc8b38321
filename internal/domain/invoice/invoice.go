package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/shopspring/decimal"
)

// CaptureCase tells how the payment behind an invoice is captured
type CaptureCase string

const (
	CaptureNone    CaptureCase = "not_capture"
	CaptureOnline  CaptureCase = "online"
	CaptureOffline CaptureCase = "offline"
)

// State of an invoice
type State string

const (
	StateOpen     State = "open"
	StatePaid     State = "paid"
	StateCanceled State = "canceled"
)

var (
	ErrOrderNotInvoiceable = errors.New("order cannot be invoiced")
	ErrCaptureNotRequested = errors.New("capture case must be set before registering the invoice")
	ErrAlreadyRegistered   = errors.New("invoice already registered")
)

// Invoice bills the full amount of one order
type Invoice struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         int64           `json:"order_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	CaptureCase     CaptureCase     `json:"capture_case"`
	State           State           `json:"state"`
	TransactionCode string          `json:"transaction_code,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Prepare builds an open invoice for the order's grand total
func Prepare(o *order.Order) (*Invoice, error) {
	if !o.CanInvoice() {
		return nil, ErrOrderNotInvoiceable
	}

	return &Invoice{
		ID:          uuid.New(),
		OrderID:     o.ID,
		Amount:      o.GrandTotal,
		Currency:    o.Currency,
		CaptureCase: CaptureNone,
		State:       StateOpen,
		CreatedAt:   time.Now(),
	}, nil
}

// CaptureOnline requests that the payment is captured through the gateway
func (i *Invoice) CaptureOnline() {
	i.CaptureCase = CaptureOnline
}

// Register captures the invoice against the provider transaction and marks it paid
func (i *Invoice) Register(transactionCode string) error {
	if i.State != StateOpen {
		return ErrAlreadyRegistered
	}
	if i.CaptureCase == CaptureNone {
		return ErrCaptureNotRequested
	}

	i.TransactionCode = transactionCode
	i.State = StatePaid
	return nil
}
