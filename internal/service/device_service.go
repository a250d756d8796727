package service

import (
	"context"
	"log/slog"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/repository"
)

// DeviceService handles device registration business logic
type DeviceService struct {
	store  repository.DeviceStore
	logger *slog.Logger
}

func NewDeviceService(store repository.DeviceStore, logger *slog.Logger) *DeviceService {
	return &DeviceService{
		store:  store,
		logger: logger.With("component", "DeviceService"),
	}
}

// List returns every registered device. It exposes all push identifiers
// and is meant for testing deployments only.
func (s *DeviceService) List(ctx context.Context) ([]model.Device, error) {
	return s.store.List(ctx)
}

// Register binds a push identifier to an msisdn, replacing whichever
// binding either of them had before.
func (s *DeviceService) Register(ctx context.Context, req model.RegisterDeviceRequest) (*model.Device, error) {
	if req.Identifier == "" {
		return nil, apperror.Validation("Missing device 'identifier'")
	}
	if req.Msisdn == "" {
		return nil, apperror.Validation("Missing device 'msisdn'")
	}
	osType := req.Type
	if osType == "" {
		osType = model.DefaultOSType
	}
	return s.store.Register(ctx, req.Msisdn, req.Identifier, osType)
}

// Lookup finds the device subscribed under msisdn
func (s *DeviceService) Lookup(ctx context.Context, msisdn string) (*model.Device, error) {
	device, err := s.store.GetByMsisdn(ctx, msisdn)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, apperror.NotFound("Subscriber %s could not be found", msisdn)
	}
	return device, nil
}

// Deregister removes the device with the given identifier, if any.
func (s *DeviceService) Deregister(ctx context.Context, identifier string) error {
	if identifier == "" {
		return apperror.Validation("Missing device 'identifier'")
	}
	return s.store.DeleteByIdentifier(ctx, identifier)
}
