// Package payment holds the provider-side view of a payment: the transaction
// record returned by PagSeguro and the lookup contract used to fetch it.
package payment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// StatusCode is the numeric transaction status reported by PagSeguro
type StatusCode int

const (
	StatusAwaitingPayment   StatusCode = 1
	StatusInAnalysis        StatusCode = 2
	StatusPaid              StatusCode = 3
	StatusAvailable         StatusCode = 4
	StatusInDispute         StatusCode = 5
	StatusReturned          StatusCode = 6
	StatusCancelled         StatusCode = 7
	StatusChargebackDebited StatusCode = 8
	StatusTemporaryRetained StatusCode = 9
)

func (c StatusCode) String() string {
	return strconv.Itoa(int(c))
}

var ErrEmptyQuery = errors.New("either notification code or reference is required")

// TransactionRecord is an immutable snapshot of a provider transaction
type TransactionRecord struct {
	Code          string          `json:"code"`
	Reference     string          `json:"reference"`
	Status        StatusCode      `json:"status"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	LastEventDate time.Time       `json:"last_event_date"`
}

// Query selects the transaction to fetch: a notification code from a webhook,
// or an order reference for manual reconciliation
type Query struct {
	NotificationCode string
	Reference        string
}

// Validate checks that the query identifies a transaction
func (q Query) Validate() error {
	if q.NotificationCode == "" && q.Reference == "" {
		return ErrEmptyQuery
	}
	return nil
}

func (q Query) String() string {
	if q.NotificationCode != "" {
		return "notification:" + q.NotificationCode
	}
	return "reference:" + q.Reference
}

// TransactionLookup fetches the authoritative transaction record from the provider
type TransactionLookup interface {
	Fetch(ctx context.Context, query Query) (*TransactionRecord, error)
}

// ProviderError is an error document returned by the provider
type ProviderError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return "pagseguro responded with status " + strconv.Itoa(e.HTTPStatus)
	}
	return "pagseguro error " + e.Code + ": " + e.Message
}

// ErrTransactionNotFound indicates the provider has no transaction for the query
type ErrTransactionNotFound struct {
	Query Query
}

func (e ErrTransactionNotFound) Error() string {
	return "pagseguro transaction not found for " + e.Query.String()
}
