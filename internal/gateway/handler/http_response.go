package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/gateway/middleware"
)

// Error codes returned in ErrorInfo.Code
const (
	CodeBadRequest           = "BAD_REQUEST"
	CodeNotFound             = "NOT_FOUND"
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodePagSeguroUnavailable = "PAGSEGURO_UNAVAILABLE"
	CodeInternal             = "INTERNAL_SERVER_ERROR"
)

// Response is the envelope of every JSON reply of the gateway
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo pages through an order's reconciliation history
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

type errorReply struct {
	status int
	code   string
}

// Any non-2xx reply to a webhook makes PagSeguro redeliver the notification
var reconciliationReplies = map[reconciliation.FailureKind]errorReply{
	reconciliation.FailureValidation: {http.StatusBadRequest, CodeBadRequest},
	reconciliation.FailureLookup:     {http.StatusNotFound, CodeOrderNotFound},
	reconciliation.FailureRemote:     {http.StatusBadGateway, CodePagSeguroUnavailable},
}

func send(c *gin.Context, status int, response *Response) {
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, response)
}

func sendError(c *gin.Context, status int, code, message string) {
	send(c, status, &Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func RespondOK(c *gin.Context, data interface{}) {
	send(c, http.StatusOK, &Response{Data: data})
}

// RespondAccepted acknowledges a notification queued for the worker
func RespondAccepted(c *gin.Context, data interface{}) {
	send(c, http.StatusAccepted, &Response{Data: data})
}

// RespondPage sends one page of items out of total
func RespondPage(c *gin.Context, data interface{}, page PaginationParams, total int64) {
	pages := int(total) / page.PerPage
	if int(total)%page.PerPage > 0 {
		pages++
	}
	send(c, http.StatusOK, &Response{
		Data: data,
		Meta: &MetaInfo{
			Page:       page.Page,
			PerPage:    page.PerPage,
			TotalPages: pages,
			TotalItems: int(total),
		},
	})
}

func RespondBadRequest(c *gin.Context, message string) {
	sendError(c, http.StatusBadRequest, CodeBadRequest, message)
}

func RespondNotFound(c *gin.Context, message string) {
	sendError(c, http.StatusNotFound, CodeNotFound, message)
}

// RespondInternalError hides the cause; it is in the request log
func RespondInternalError(c *gin.Context) {
	sendError(c, http.StatusInternalServerError, CodeInternal, "An internal server error occurred")
}

// RespondReconciliationError maps a reconciliation failure to its reply.
// Persist and unknown failures are reported as internal errors.
func RespondReconciliationError(c *gin.Context, err error) {
	reply, ok := reconciliationReplies[reconciliation.KindOf(err)]
	if !ok {
		RespondInternalError(c)
		return
	}
	sendError(c, reply.status, reply.code, err.Error())
}
