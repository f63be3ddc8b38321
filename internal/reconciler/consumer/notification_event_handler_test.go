package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/reconciliation"
	"github.com/pagseguro-reconciler/internal/platform/messaging/producers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Reconcile(ctx context.Context, request *reconciliation.Request) (*reconciliation.Result, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.Result), args.Error(1)
}

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) Park(ctx context.Context, parked producers.ParkedNotification) error {
	args := m.Called(ctx, parked)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func parkedAs(kind reconciliation.FailureKind, payload []byte) interface{} {
	return mock.MatchedBy(func(p producers.ParkedNotification) bool {
		return p.Key == "test-key" && p.FailureKind == kind && string(p.Payload) == string(payload) && p.Reason != ""
	})
}

func TestHandleMessage(t *testing.T) {
	logger := slog.Default()

	validRequest := &reconciliation.Request{
		NotificationCode: "766B9C-AD4B044B04DA",
		NotificationType: "transaction",
		CorrelationID:    "corr1",
		ReceivedAt:       time.Now(),
	}
	validJSON, err := json.Marshal(validRequest)
	assert.NoError(t, err)

	matchesRequest := mock.MatchedBy(func(req *reconciliation.Request) bool {
		return req.NotificationCode == validRequest.NotificationCode
	})
	applied := &reconciliation.Result{
		Outcome:   reconciliation.OutcomeApplied,
		Reference: "100000042",
		Status:    order.StatusPaid,
	}

	tests := []struct {
		name          string
		value         []byte
		setupMocks    func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher)
		expectedError string
	}{
		{
			name:  "successful reconciliation",
			value: validJSON,
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				svc.On("Reconcile", mock.Anything, matchesRequest).Return(applied, nil).Once()
			},
		},
		{
			name:  "lookup failure goes to DLQ",
			value: validJSON,
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				svc.On("Reconcile", mock.Anything, matchesRequest).
					Return(nil, &reconciliation.LookupError{Reference: "no-such-order"}).Once()
				dlq.On("Park", mock.Anything, parkedAs(reconciliation.FailureLookup, validJSON)).Return(nil).Once()
			},
		},
		{
			name:  "remote failure goes to DLQ",
			value: validJSON,
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				svc.On("Reconcile", mock.Anything, matchesRequest).
					Return(nil, &reconciliation.RemoteError{Query: "notification:766B9C-AD4B044B04DA", Err: errors.New("timeout")}).Once()
				dlq.On("Park", mock.Anything, parkedAs(reconciliation.FailureRemote, validJSON)).Return(nil).Once()
			},
		},
		{
			name:  "validation failure goes to DLQ",
			value: validJSON,
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				svc.On("Reconcile", mock.Anything, matchesRequest).Return(nil, reconciliation.ErrEmptyReference).Once()
				dlq.On("Park", mock.Anything, parkedAs(reconciliation.FailureValidation, validJSON)).Return(nil).Once()
			},
		},
		{
			name:  "persist failure is returned for redelivery",
			value: validJSON,
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				svc.On("Reconcile", mock.Anything, matchesRequest).
					Return(nil, &reconciliation.PersistError{Op: "update order", Reference: "100000042"}).Once()
			},
			expectedError: "reconciling notification 766B9C-AD4B044B04DA failed",
		},
		{
			name:  "DLQ failure returns the original error",
			value: validJSON,
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				svc.On("Reconcile", mock.Anything, matchesRequest).
					Return(nil, &reconciliation.LookupError{Reference: "no-such-order"}).Once()
				dlq.On("Park", mock.Anything, mock.Anything).Return(errors.New("dlq error")).Once()
			},
			expectedError: "order lookup failed",
		},
		{
			name:  "unmarshal error with successful DLQ publish",
			value: []byte("invalid json"),
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				dlq.On("Park", mock.Anything, parkedAs(reconciliation.FailureUnparseable, []byte("invalid json"))).Return(nil).Once()
			},
		},
		{
			name:  "unmarshal error with DLQ publish failure",
			value: []byte("invalid json"),
			setupMocks: func(svc *MockReconciliationService, dlq *MockDeadLetterPublisher) {
				dlq.On("Park", mock.Anything, mock.Anything).Return(errors.New("dlq error")).Once()
			},
			expectedError: "not handled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockReconciliationService{}
			dlq := &MockDeadLetterPublisher{}
			tt.setupMocks(svc, dlq)

			handler := NewNotificationEventHandler(logger, svc, dlq)
			err := handler.HandleMessage(context.Background(), []byte("test-key"), tt.value)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}

			svc.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}
}

func TestHandleMessage_NoDLQConfigured(t *testing.T) {
	svc := &MockReconciliationService{}
	svc.On("Reconcile", mock.Anything, mock.Anything).Return(nil, &reconciliation.LookupError{Reference: "x"}).Once()

	handler := NewNotificationEventHandler(slog.Default(), svc, nil)
	err := handler.HandleMessage(context.Background(), []byte("k"), []byte(`{"reference":"x"}`))

	assert.Error(t, err)
	assert.ErrorIs(t, err, &reconciliation.LookupError{})
}

func TestHandleMessage_ParkedNotificationCarriesRequestIdentity(t *testing.T) {
	svc := &MockReconciliationService{}
	svc.On("Reconcile", mock.Anything, mock.Anything).
		Return(nil, &reconciliation.RemoteError{Query: "notification:766B9C-AD4B044B04DA", Err: errors.New("503")}).Once()

	var parked producers.ParkedNotification
	dlq := &MockDeadLetterPublisher{}
	dlq.On("Park", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { parked = args.Get(1).(producers.ParkedNotification) }).
		Return(nil).Once()

	value := []byte(`{"notification_code":"766B9C-AD4B044B04DA","notification_type":"transaction","reference":"100000042","correlation_id":"c0ffee"}`)
	handler := NewNotificationEventHandler(slog.Default(), svc, dlq)
	assert.NoError(t, handler.HandleMessage(context.Background(), []byte("766B9C-AD4B044B04DA"), value))

	assert.Equal(t, "766B9C-AD4B044B04DA", parked.Key)
	assert.Equal(t, "766B9C-AD4B044B04DA", parked.NotificationCode)
	assert.Equal(t, "100000042", parked.Reference)
	assert.Equal(t, "c0ffee", parked.CorrelationID)
	assert.Equal(t, reconciliation.FailureRemote, parked.FailureKind)
	assert.Equal(t, value, parked.Payload)
	dlq.AssertExpectations(t)
}
