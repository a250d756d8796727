package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/push"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/repository"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDeviceService() (*DeviceService, *repository.MemoryDeviceRepository) {
	store := repository.NewMemoryDeviceRepository(newTestLogger())
	return NewDeviceService(store, newTestLogger()), store
}

var testDeliveryOpts = push.DeliveryOptions{Priority: "high", TTL: 30 * time.Second}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, identifier string, data map[string]string, opts push.DeliveryOptions) (*push.Result, error) {
	args := m.Called(ctx, identifier, data, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*push.Result), args.Error(1)
}

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) CreateOutgoingCall(ctx context.Context, domain, msisdn, destination string) (string, error) {
	args := m.Called(ctx, domain, msisdn, destination)
	return args.String(0), args.Error(1)
}

func incomingCall(dnid string) model.IncomingCallRequest {
	return model.IncomingCallRequest{
		Session:    "session-1",
		Dnid:       dnid,
		CallerID:   "+15550001",
		Endpoint:   "https://api.cloudonix.io",
		Domain:     "example.cloudonix.net",
		Subscriber: model.Subscriber{Msisdn: dnid},
	}
}
