package service

import (
	"context"
	"errors"
	"testing"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCallService_Originate(t *testing.T) {
	dialer := new(MockDialer)
	dialer.On("CreateOutgoingCall", mock.Anything, "example.cloudonix.net", "1000", "2000").Return("session-token", nil)
	svc := NewCallService(dialer, "example.cloudonix.net", newTestLogger())

	resp, err := svc.Originate(context.Background(), model.DialRequest{Msisdn: "1000", Destination: "2000"})

	require.NoError(t, err)
	assert.Equal(t, "session-token", resp.Session)
	dialer.AssertExpectations(t)
}

func TestCallService_Validation(t *testing.T) {
	dialer := new(MockDialer)
	svc := NewCallService(dialer, "example.cloudonix.net", newTestLogger())

	for _, req := range []model.DialRequest{{Destination: "2000"}, {Msisdn: "1000"}} {
		_, err := svc.Originate(context.Background(), req)
		var validation *apperror.ValidationError
		assert.ErrorAs(t, err, &validation)
	}
	dialer.AssertNotCalled(t, "CreateOutgoingCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCallService_UpstreamFailure(t *testing.T) {
	cause := errors.New("telephony api error: 403")
	dialer := new(MockDialer)
	dialer.On("CreateOutgoingCall", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", cause)
	svc := NewCallService(dialer, "example.cloudonix.net", newTestLogger())

	_, err := svc.Originate(context.Background(), model.DialRequest{Msisdn: "1000", Destination: "2000"})

	var upstream *apperror.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.ErrorIs(t, err, cause)
}

func TestCallService_NoDomain(t *testing.T) {
	svc := NewCallService(new(MockDialer), "", newTestLogger())

	_, err := svc.Originate(context.Background(), model.DialRequest{Msisdn: "1000", Destination: "2000"})

	var upstream *apperror.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}
