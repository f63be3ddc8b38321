package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// correlationSeen records every place a handler can read the correlation ID from
type correlationSeen struct {
	ginKey     string
	requestCtx string
}

func correlationRouter(seen *correlationSeen) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationID())
	record := func(c *gin.Context) {
		seen.ginKey = GetCorrelationID(c)
		seen.requestCtx = CorrelationIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	}
	router.POST("/notifications", record)
	router.POST("/api/v1/orders/:reference/reconcile", record)
	return router
}

func TestCorrelationID(t *testing.T) {
	t.Run("PagSeguroWebhookGetsFreshID", func(t *testing.T) {
		var seen correlationSeen
		form := url.Values{"notificationCode": {"766B9C-AD4B044B04DA"}, "notificationType": {"transaction"}}
		req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		correlationRouter(&seen).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		issued := rr.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(issued)
		require.NoError(t, err, "issued correlation ID should be a UUID")
		assert.Equal(t, issued, seen.ginKey)
		assert.Equal(t, issued, seen.requestCtx)
	})

	t.Run("EachWebhookCallIsDistinct", func(t *testing.T) {
		var seen correlationSeen
		router := correlationRouter(&seen)

		ids := map[string]bool{}
		for i := 0; i < 3; i++ {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/notifications", nil))
			ids[rr.Header().Get(CorrelationIDHeader)] = true
		}
		assert.Len(t, ids, 3)
	})

	t.Run("OperatorReplayKeepsSuppliedID", func(t *testing.T) {
		var seen correlationSeen
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/100000042/reconcile", nil)
		req.Header.Set(CorrelationIDHeader, "ops-replay-0042")
		rr := httptest.NewRecorder()
		correlationRouter(&seen).ServeHTTP(rr, req)

		assert.Equal(t, "ops-replay-0042", rr.Header().Get(CorrelationIDHeader))
		assert.Equal(t, "ops-replay-0042", seen.ginKey)
		assert.Equal(t, "ops-replay-0042", seen.requestCtx)
	})
}

func TestGetCorrelationID_OutsideMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCorrelationID(c))

	c.Set(CorrelationIDKey, 42)
	assert.Empty(t, GetCorrelationID(c), "non-string values are ignored")

	assert.Empty(t, CorrelationIDFromContext(context.Background()))
	assert.Equal(t, "worker-7", CorrelationIDFromContext(WithCorrelationID(context.Background(), "worker-7")))
}
