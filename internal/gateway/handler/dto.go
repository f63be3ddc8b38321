package handler

// NotificationRequest is the PagSeguro notification POST. PagSeguro sends it
// form-encoded; JSON is accepted for replays.
type NotificationRequest struct {
	NotificationCode string `form:"notificationCode" json:"notificationCode"`
	NotificationType string `form:"notificationType" json:"notificationType"`
}

// ReconciliationResponse describes what a reconciliation did
type ReconciliationResponse struct {
	Outcome         string `json:"outcome"`
	OrderID         int64  `json:"order_id"`
	Reference       string `json:"reference"`
	PreviousStatus  string `json:"previous_status"`
	Status          string `json:"status"`
	RemoteStatus    int    `json:"remote_status"`
	TransactionCode string `json:"transaction_code"`
	InvoiceID       string `json:"invoice_id,omitempty"`
	Unrecognized    bool   `json:"unrecognized,omitempty"`
}

// QueuedResponse acknowledges an async notification
type QueuedResponse struct {
	NotificationCode string `json:"notification_code"`
	Status           string `json:"status"`
}

// OrderResponse represents an order in admin API responses
type OrderResponse struct {
	ID               int64                  `json:"id"`
	Reference        string                 `json:"reference"`
	Status           string                 `json:"status"`
	GrandTotal       string                 `json:"grand_total"`
	Currency         string                 `json:"currency"`
	Version          int                    `json:"version"`
	CreatedAt        string                 `json:"created_at"`
	UpdatedAt        string                 `json:"updated_at"`
	History          []HistoryEntryResponse `json:"history"`
	Invoice          *InvoiceResponse       `json:"invoice,omitempty"`
	TransactionCodes TransactionCodes       `json:"transaction_codes"`
}

// HistoryEntryResponse is one status history comment
type HistoryEntryResponse struct {
	Status             string `json:"status"`
	Comment            string `json:"comment"`
	IsCustomerNotified bool   `json:"is_customer_notified"`
	CreatedAt          string `json:"created_at"`
}

// InvoiceResponse represents an invoice in admin API responses
type InvoiceResponse struct {
	ID              string `json:"id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	CaptureCase     string `json:"capture_case"`
	State           string `json:"state"`
	TransactionCode string `json:"transaction_code,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// TransactionCodes held by the two order projections
type TransactionCodes struct {
	Grid      string `json:"grid"`
	PagSeguro string `json:"pagseguro"`
}

// AuditEntryResponse is one reconciliation attempt
type AuditEntryResponse struct {
	EventID          string `json:"event_id"`
	NotificationCode string `json:"notification_code,omitempty"`
	TransactionCode  string `json:"transaction_code,omitempty"`
	RemoteStatus     int    `json:"remote_status,omitempty"`
	PreviousStatus   string `json:"previous_status,omitempty"`
	NewStatus        string `json:"new_status,omitempty"`
	InvoiceID        string `json:"invoice_id,omitempty"`
	Outcome          string `json:"outcome"`
	FailureKind      string `json:"failure_kind,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	CorrelationID    string `json:"correlation_id,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// DeliveryResponse is the outbox state of an applied transition
type DeliveryResponse struct {
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	LastError     string `json:"last_error,omitempty"`
	LastAttemptAt string `json:"last_attempt_at,omitempty"`
}

// ReconciliationDetailResponse is one reconciliation event with its delivery state
type ReconciliationDetailResponse struct {
	AuditEntryResponse
	Reference string            `json:"reference"`
	Published bool              `json:"published"`
	Delivery  *DeliveryResponse `json:"delivery,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
