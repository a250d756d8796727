package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messaging.BatchResponse), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testOpts = DeliveryOptions{Priority: "high", TTL: 30 * time.Second}

func TestFCMSend_Success(t *testing.T) {
	ctx := context.Background()
	client := new(MockClient)
	sender := NewSender(client, newTestLogger())
	data := map[string]string{"session": "s-1"}

	client.On("SendEach", ctx, mock.MatchedBy(func(msgs []*messaging.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		m := msgs[0]
		return m.Token == "token-A" &&
			m.Data["session"] == "s-1" &&
			m.Android.Priority == "high" &&
			*m.Android.TTL == 30*time.Second &&
			m.APNS.Headers["apns-priority"] == "10"
	})).Return(&messaging.BatchResponse{
		SuccessCount: 1,
		Responses:    []*messaging.SendResponse{{Success: true, MessageID: "msg-1"}},
	}, nil)

	result, err := sender.Send(ctx, "token-A", data, testOpts)

	require.NoError(t, err)
	assert.Equal(t, 0, result.FailureCount)
	assert.Equal(t, "msg-1", result.Results[0].MessageID)
	client.AssertExpectations(t)
}

func TestFCMSend_TransportFailure(t *testing.T) {
	ctx := context.Background()
	client := new(MockClient)
	sender := NewSender(client, newTestLogger())

	client.On("SendEach", ctx, mock.Anything).Return(nil, errors.New("network down"))

	_, err := sender.Send(ctx, "token-A", nil, testOpts)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport failed")
}

func TestFCMSend_DeliveryFailureCarriesCode(t *testing.T) {
	ctx := context.Background()
	client := new(MockClient)
	sender := NewSender(client, newTestLogger())
	// SDK error values cannot be constructed outside the firebase module.
	sender.codeOf = func(error) string { return ErrCodeTokenNotRegistered }

	client.On("SendEach", ctx, mock.Anything).Return(&messaging.BatchResponse{
		FailureCount: 1,
		Responses:    []*messaging.SendResponse{{Success: false, Error: errors.New("requested entity was not found")}},
	}, nil)

	result, err := sender.Send(ctx, "token-A", nil, testOpts)

	require.NoError(t, err)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, ErrCodeTokenNotRegistered, result.FirstErrorCode())
	assert.Equal(t, "requested entity was not found", result.Results[0].Error.Message)
}

func TestErrorCode_UnrecognisedIsUnknown(t *testing.T) {
	assert.Equal(t, ErrCodeUnknown, errorCode(nil))
	assert.Equal(t, ErrCodeUnknown, errorCode(errors.New("boom")))
}

func TestResult_FirstErrorCode(t *testing.T) {
	var nilResult *Result
	assert.Equal(t, ErrCodeUnknown, nilResult.FirstErrorCode())
	assert.Equal(t, ErrCodeUnknown, (&Result{FailureCount: 1}).FirstErrorCode())
	assert.Equal(t, ErrCodeUnknown, (&Result{FailureCount: 1, Results: []Outcome{{Error: &Error{}}}}).FirstErrorCode())
	assert.Equal(t, ErrCodeInternal, (&Result{FailureCount: 1, Results: []Outcome{{Error: &Error{Code: ErrCodeInternal}}}}).FirstErrorCode())
}

func TestBuildMessage_NormalPriority(t *testing.T) {
	msg := buildMessage("token-A", nil, DeliveryOptions{Priority: "normal"})
	assert.Equal(t, "normal", msg.Android.Priority)
	assert.Equal(t, "5", msg.APNS.Headers["apns-priority"])
	assert.NotContains(t, msg.APNS.Headers, "apns-expiration")
}

func TestNewFCMSender_NoCredentials(t *testing.T) {
	sender, err := NewFCMSender(context.Background(), config.FirebaseConfig{ProjectID: "test-project"}, newTestLogger())
	assert.NoError(t, err)
	assert.Nil(t, sender)
}
