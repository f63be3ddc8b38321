package handler

import (
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/gateway/middleware"
	"github.com/pagseguro-reconciler/internal/gateway/service"
)

var markupPattern = regexp.MustCompile(`<[^>]*>?`)

// NotificationHandler receives PagSeguro notification POSTs
type NotificationHandler struct {
	notificationService service.NotificationService
	logger              *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(logger *slog.Logger, notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// Receive accepts a notification. Sync mode answers 200 with the result,
// async mode 202 once the notification is queued.
func (h *NotificationHandler) Receive(c *gin.Context) {
	var req NotificationRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Error("Invalid notification body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request := &reconciliation.Request{
		NotificationCode: sanitize(req.NotificationCode),
		NotificationType: sanitize(req.NotificationType),
		CorrelationID:    middleware.GetCorrelationID(c),
		ReceivedAt:       time.Now().UTC(),
	}
	if request.NotificationCode == "" {
		RespondBadRequest(c, reconciliation.ErrEmptyReference.Error())
		return
	}

	result, err := h.notificationService.Submit(c.Request.Context(), request)
	if err != nil {
		h.logger.Error("Failed to handle notification",
			"notification_code", request.NotificationCode,
			"correlation_id", request.CorrelationID,
			"failure_kind", reconciliation.KindOf(err),
			"error", err,
		)
		_ = c.Error(err)
		RespondReconciliationError(c, err)
		return
	}

	if result == nil {
		RespondAccepted(c, QueuedResponse{
			NotificationCode: request.NotificationCode,
			Status:           "QUEUED",
		})
		return
	}

	RespondOK(c, mapResultToResponse(result))
}

// sanitize trims the value and strips markup and control characters
func sanitize(value string) string {
	value = markupPattern.ReplaceAllString(value, "")
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	return strings.TrimSpace(value)
}

func mapResultToResponse(result *reconciliation.Result) ReconciliationResponse {
	response := ReconciliationResponse{
		Outcome:         string(result.Outcome),
		OrderID:         result.OrderID,
		Reference:       result.Reference,
		PreviousStatus:  string(result.PreviousStatus),
		Status:          string(result.Status),
		RemoteStatus:    result.RemoteStatus,
		TransactionCode: result.TransactionCode,
		Unrecognized:    result.Unrecognized,
	}
	if result.InvoiceID != nil {
		response.InvoiceID = result.InvoiceID.String()
	}
	return response
}
