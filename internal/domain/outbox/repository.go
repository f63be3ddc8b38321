package outbox

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository stores outbox messages next to the orders they describe
type Repository interface {
	Create(ctx context.Context, message *Message) error
	// GetPending returns the oldest PENDING messages first
	GetPending(ctx context.Context, limit int) ([]*Message, error)
	// SaveDelivery persists the status, attempt count and last error of message
	SaveDelivery(ctx context.Context, message *Message) error
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*Message, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message, looked up by ID or by event ID
type ErrMessageNotFound struct {
	ID      int64
	EventID uuid.UUID
}

func (e ErrMessageNotFound) Error() string {
	if e.EventID != uuid.Nil {
		return "outbox message not found for event " + e.EventID.String()
	}
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

// Is matches any ErrMessageNotFound when the target carries no key
func (e ErrMessageNotFound) Is(target error) bool {
	t, ok := target.(ErrMessageNotFound)
	if !ok {
		return false
	}
	if t.ID == 0 && t.EventID == uuid.Nil {
		return true
	}
	return e.ID == t.ID && e.EventID == t.EventID
}

// ErrDuplicateMessage indicates event uniqueness violation
type ErrDuplicateMessage struct {
	EventID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.EventID.String()
}
