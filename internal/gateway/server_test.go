package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/domain/audit"
	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/gateway/middleware"
	"github.com/pagseguro-reconciler/internal/gateway/service"
	"github.com/pagseguro-reconciler/internal/platform/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubNotificationService struct{}

func (stubNotificationService) Submit(context.Context, *reconciliation.Request) (*reconciliation.Result, error) {
	return nil, nil
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetOrder(ctx context.Context, reference string) (*service.OrderDetails, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.OrderDetails), args.Error(1)
}

func (m *MockOrderService) GetReconciliations(ctx context.Context, reference string, page, perPage int) ([]*audit.Entry, int64, error) {
	args := m.Called(ctx, reference, page, perPage)
	return args.Get(0).([]*audit.Entry), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderService) GetReconciliation(ctx context.Context, eventID uuid.UUID) (*service.ReconciliationDetails, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReconciliationDetails), args.Error(1)
}

func (m *MockOrderService) Reconcile(ctx context.Context, reference, correlationID string) (*reconciliation.Result, error) {
	args := m.Called(ctx, reference, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		Application: config.ApplicationConfig{Env: "test"},
		Server: config.ServerConfig{
			Port:            0,
			ShutdownTimeout: time.Second,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
		},
		Auth: config.AuthConfig{JWTSecret: "s3cret", JWTIssuer: "reconciler"},
	}
}

func token(t *testing.T, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "reconciler",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	return signed
}

func TestServerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	orders := &MockOrderService{}
	orders.On("GetOrder", mock.Anything, "100000042").Return(nil, order.ErrOrderNotFound{Reference: "100000042"}).Maybe()
	orders.On("GetReconciliation", mock.Anything, mock.Anything).Return(nil, audit.ErrEntryNotFound{}).Maybe()
	orders.On("Reconcile", mock.Anything, "100000042", mock.Anything).
		Return(&reconciliation.Result{Outcome: reconciliation.OutcomeNoOp}, nil).Maybe()

	recorder := metrics.New(nil)
	srv := NewServer(logger, testConfig(), stubNotificationService{}, orders, recorder)
	handler := srv.Handler()

	do := func(method, target, bearer string, body *strings.Reader) *httptest.ResponseRecorder {
		var req *http.Request
		if body != nil {
			req = httptest.NewRequest(method, target, body)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		} else {
			req = httptest.NewRequest(method, target, nil)
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	form := url.Values{"notificationCode": {"ABC"}, "notificationType": {"transaction"}}.Encode()

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusAccepted, do(http.MethodPost, "/notifications", "", strings.NewReader(form)).Code)
	assert.Equal(t, http.StatusAccepted, do(http.MethodPost, "/api/v1/notifications", "", strings.NewReader(form)).Code)

	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/orders/100000042", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/api/v1/orders/100000042", token(t, "viewer"), nil).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/orders/100000042/reconcile", token(t, "viewer"), nil).Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/v1/orders/100000042/reconcile", token(t, "operator"), nil).Code)

	eventPath := "/api/v1/reconciliations/" + uuid.NewString()
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, eventPath, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, eventPath, token(t, "viewer"), nil).Code)
}

func TestServerStop(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := NewServer(logger, testConfig(), stubNotificationService{}, &MockOrderService{}, nil)

	assert.NoError(t, srv.Stop(context.Background()))
}
