package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/gateway/middleware"
	"github.com/pagseguro-reconciler/internal/gateway/service"
)

// OrderHandler serves the operator API
type OrderHandler struct {
	orderService service.OrderService
	logger       *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(logger *slog.Logger, orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// GetByReference returns the order, its history, invoice and projected transaction codes
func (h *OrderHandler) GetByReference(c *gin.Context) {
	reference := sanitize(c.Param("reference"))
	if reference == "" {
		RespondBadRequest(c, "Invalid order reference")
		return
	}

	details, err := h.orderService.GetOrder(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			RespondNotFound(c, "Order not found")
			return
		}
		h.logger.Error("Failed to get order", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapOrderDetailsToResponse(details))
}

// GetReconciliations returns the order's audit log, newest first
func (h *OrderHandler) GetReconciliations(c *gin.Context) {
	reference := sanitize(c.Param("reference"))
	if reference == "" {
		RespondBadRequest(c, "Invalid order reference")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	entries, total, err := h.orderService.GetReconciliations(c.Request.Context(), reference, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to get reconciliations", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}

	response := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, mapAuditEntryToResponse(entry))
	}

	RespondPage(c, response, pagination, total)
}

// GetReconciliation returns one reconciliation event and where its delivery stands
func (h *OrderHandler) GetReconciliation(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("event_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid event ID")
		return
	}

	details, err := h.orderService.GetReconciliation(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, audit.ErrEntryNotFound{}) {
			RespondNotFound(c, "Reconciliation not found")
			return
		}
		h.logger.Error("Failed to get reconciliation", "event_id", eventID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapReconciliationDetailsToResponse(details))
}

// Reconcile looks up the order's latest PagSeguro transaction and applies it
func (h *OrderHandler) Reconcile(c *gin.Context) {
	reference := sanitize(c.Param("reference"))
	if reference == "" {
		RespondBadRequest(c, "Invalid order reference")
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	logger := h.logger.With("correlation_id", correlationID)
	if claims := middleware.GetClaims(c); claims != nil {
		logger = logger.With("operator", claims.Subject)
	}

	result, err := h.orderService.Reconcile(c.Request.Context(), reference, correlationID)
	if err != nil {
		logger.Error("Manual reconciliation failed", "reference", reference, "error", err)
		_ = c.Error(err)
		RespondReconciliationError(c, err)
		return
	}

	logger.Info("Manual reconciliation finished", "reference", reference, "outcome", result.Outcome)
	RespondOK(c, mapResultToResponse(result))
}

func mapOrderDetailsToResponse(details *service.OrderDetails) OrderResponse {
	o := details.Order
	response := OrderResponse{
		ID:         o.ID,
		Reference:  o.Reference,
		Status:     string(o.Status),
		GrandTotal: o.GrandTotal.StringFixed(2),
		Currency:   o.Currency,
		Version:    o.Version,
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  o.UpdatedAt.Format(time.RFC3339),
		History:    make([]HistoryEntryResponse, 0, len(details.History)),
	}

	for _, entry := range details.History {
		response.History = append(response.History, HistoryEntryResponse{
			Status:             string(entry.Status),
			Comment:            entry.Comment,
			IsCustomerNotified: entry.IsCustomerNotified,
			CreatedAt:          entry.CreatedAt.Format(time.RFC3339),
		})
	}

	if inv := details.Invoice; inv != nil {
		response.Invoice = &InvoiceResponse{
			ID:              inv.ID.String(),
			Amount:          inv.Amount.StringFixed(2),
			Currency:        inv.Currency,
			CaptureCase:     string(inv.CaptureCase),
			State:           string(inv.State),
			TransactionCode: inv.TransactionCode,
			CreatedAt:       inv.CreatedAt.Format(time.RFC3339),
		}
	}

	if codes := details.TransactionCodes; codes != nil {
		response.TransactionCodes = TransactionCodes{Grid: codes.Grid, PagSeguro: codes.PagSeguro}
	}

	return response
}

func mapReconciliationDetailsToResponse(details *service.ReconciliationDetails) ReconciliationDetailResponse {
	response := ReconciliationDetailResponse{
		AuditEntryResponse: mapAuditEntryToResponse(details.Entry),
		Reference:          details.Entry.Reference,
		Published:          details.Published,
	}
	if msg := details.Delivery; msg != nil {
		response.Delivery = &DeliveryResponse{
			Status:    string(msg.Status),
			Attempts:  msg.Attempts,
			LastError: msg.LastError,
		}
		if msg.LastAttemptAt != nil {
			response.Delivery.LastAttemptAt = msg.LastAttemptAt.Format(time.RFC3339)
		}
	}
	return response
}

func mapAuditEntryToResponse(entry *audit.Entry) AuditEntryResponse {
	return AuditEntryResponse{
		EventID:          entry.EventID.String(),
		NotificationCode: entry.NotificationCode,
		TransactionCode:  entry.TransactionCode,
		RemoteStatus:     entry.RemoteStatus,
		PreviousStatus:   string(entry.PreviousStatus),
		NewStatus:        string(entry.NewStatus),
		InvoiceID:        entry.InvoiceID,
		Outcome:          string(entry.Outcome),
		FailureKind:      string(entry.FailureKind),
		FailureReason:    entry.FailureReason,
		CorrelationID:    entry.CorrelationID,
		CreatedAt:        entry.CreatedAt.Format(time.RFC3339),
	}
}
