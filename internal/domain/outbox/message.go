package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/audit"
)

// Status tracks an applied transition on its way to the audit log and the
// status event topic.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	// StatusAbandoned messages are never retried. The order row already
	// carries the transition; only its audit entry and status event are missing.
	StatusAbandoned Status = "ABANDONED"
)

// Message carries one applied transition, written in the same transaction as
// the order update.
type Message struct {
	ID            int64           `json:"id"`
	EventID       uuid.UUID       `json:"event_id"`
	OrderID       int64           `json:"order_id"`
	Payload       json.RawMessage `json:"payload"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps an applied reconciliation's audit entry
func NewMessage(entry *audit.Entry) (*Message, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:   entry.EventID,
		OrderID:   entry.OrderID,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}, nil
}

// RecordFailure counts a failed delivery. Once maxAttempts is reached the
// message is abandoned and RecordFailure reports true. A maxAttempts of zero
// retries forever.
func (m *Message) RecordFailure(cause error, maxAttempts int, at time.Time) bool {
	m.Attempts++
	m.LastAttemptAt = &at
	if cause != nil {
		m.LastError = cause.Error()
	}
	if maxAttempts > 0 && m.Attempts >= maxAttempts {
		m.Status = StatusAbandoned
		return true
	}
	return false
}

// Abandon stops delivery of a message that can never succeed
func (m *Message) Abandon(reason string, at time.Time) {
	m.Status = StatusAbandoned
	m.LastError = reason
	m.LastAttemptAt = &at
}

func (m *Message) MarkDelivered(at time.Time) {
	m.Status = StatusDelivered
	m.LastError = ""
	m.LastAttemptAt = &at
}

// AuditEntry decodes the audit entry the message carries
func (m *Message) AuditEntry() (*audit.Entry, error) {
	var entry audit.Entry
	if err := json.Unmarshal(m.Payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
