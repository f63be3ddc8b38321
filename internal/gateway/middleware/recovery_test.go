package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recoveredResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func newRecoveryRouter(logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationID())
	router.Use(Recovery(logger))

	router.POST("/notifications", func(c *gin.Context) {
		if c.PostForm("notificationType") == "preApproval" {
			panic(errors.New("nil pre-approval decoder"))
		}
		c.Status(http.StatusOK)
	})
	router.POST("/api/v1/orders/:reference/reconcile", func(c *gin.Context) {
		panic("reconcile lock table is nil")
	})
	return router
}

func TestRecovery(t *testing.T) {
	t.Run("WebhookPanicAsksPagSeguroToRetry", func(t *testing.T) {
		var logs bytes.Buffer
		router := newRecoveryRouter(slog.New(slog.NewJSONHandler(&logs, nil)))

		form := url.Values{"notificationCode": {"766B9C-AD4B044B04DA"}, "notificationType": {"preApproval"}}
		req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusInternalServerError, rr.Code)

		var body recoveredResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
		assert.NotContains(t, body.Error.Message, "pre-approval", "panic details must not leak to the caller")

		generated := rr.Header().Get(CorrelationIDHeader)
		require.NotEmpty(t, generated)
		assert.Equal(t, generated, body.CorrelationID)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
		assert.Equal(t, "ERROR", entry["level"])
		assert.Equal(t, "Panic recovered", entry["msg"])
		assert.Equal(t, "/notifications", entry["path"])
		assert.Equal(t, http.MethodPost, entry["method"])
		assert.Equal(t, generated, entry["correlation_id"])
		assert.Contains(t, entry["stack"], "runtime/debug.Stack")
	})

	t.Run("AdminPanicKeepsCallerCorrelationID", func(t *testing.T) {
		var logs bytes.Buffer
		router := newRecoveryRouter(slog.New(slog.NewJSONHandler(&logs, nil)))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/100000042/reconcile", nil)
		req.Header.Set(CorrelationIDHeader, "ops-replay-0042")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		var body recoveredResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "ops-replay-0042", body.CorrelationID)
		assert.Contains(t, logs.String(), `"error":"reconcile lock table is nil"`)
		assert.Contains(t, logs.String(), `"path":"/api/v1/orders/100000042/reconcile"`)
	})

	t.Run("AcceptedNotificationLogsNothing", func(t *testing.T) {
		var logs bytes.Buffer
		router := newRecoveryRouter(slog.New(slog.NewJSONHandler(&logs, nil)))

		form := url.Values{"notificationCode": {"766B9C-AD4B044B04DA"}, "notificationType": {"transaction"}}
		req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, logs.String())
	})
}
