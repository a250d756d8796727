package repository

import (
	"context"
	"log/slog"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
)

// maxRegisterAttempts bounds the delete-and-retry loop taken on an msisdn
// conflict. Inside a serialised register one retry always suffices.
const maxRegisterAttempts = 3

// DeviceStore keeps device records unique by identifier and by msisdn.
// Lookups of absent records return (nil, nil); deletes are idempotent.
type DeviceStore interface {
	List(ctx context.Context) ([]model.Device, error)
	GetByIdentifier(ctx context.Context, identifier string) (*model.Device, error)
	GetByMsisdn(ctx context.Context, msisdn string) (*model.Device, error)
	DeleteByIdentifier(ctx context.Context, identifier string) error
	DeleteByMsisdn(ctx context.Context, msisdn string) error
	Register(ctx context.Context, msisdn, identifier, osType string) (*model.Device, error)
}

// deviceWriter is the set of write primitives register runs against. Every
// backend supplies one bound to its own atomic scope (lock, transaction).
type deviceWriter interface {
	// insert stores a new device, reporting which uniqueness constraint
	// rejected it instead of failing.
	insert(ctx context.Context, d *model.Device) (model.WriteResult, error)
	// updateMsisdn rebinds the device holding identifier to msisdn.
	updateMsisdn(ctx context.Context, identifier, msisdn string) (model.WriteResult, error)
	deleteByMsisdn(ctx context.Context, msisdn string) error
}

// register inserts a device, resolving uniqueness conflicts in favour of
// the newest registration:
//
//   - identifier taken: the existing device is rebound to msisdn.
//   - msisdn taken: the device holding it is deleted and the insert retried.
//
// A rebind onto an msisdn held by a third device is rejected with a
// ConflictError and leaves both devices untouched.
func register(ctx context.Context, w deviceWriter, logger *slog.Logger, msisdn, identifier, osType string) (*model.Device, error) {
	if identifier == "" || msisdn == "" {
		return nil, apperror.Validation("device identifier and msisdn are required")
	}
	if osType == "" {
		osType = model.DefaultOSType
	}

	for attempt := 0; attempt < maxRegisterAttempts; attempt++ {
		res, err := w.insert(ctx, &model.Device{OSType: osType, Identifier: identifier, Msisdn: msisdn})
		if err != nil {
			return nil, err
		}

		switch res.Conflict {
		case model.ConflictNone:
			logger.Info("new device registered",
				"os_type", osType, "identifier", identifier, "msisdn", msisdn, "id", res.Device.ID)
			return res.Device, nil

		case model.ConflictIdentifier:
			upd, err := w.updateMsisdn(ctx, identifier, msisdn)
			if err != nil {
				return nil, err
			}
			if upd.Conflict != model.ConflictNone {
				logger.Warn("device rebind rejected",
					"identifier", identifier, "msisdn", msisdn, "constraint", upd.Conflict.String())
				return nil, &apperror.ConflictError{Field: upd.Conflict.String(), Value: msisdn}
			}
			logger.Info("device rebound to new msisdn", "identifier", identifier, "msisdn", msisdn)
			return upd.Device, nil

		case model.ConflictMsisdn:
			logger.Info("msisdn moved to new device, removing previous holder", "msisdn", msisdn)
			if err := w.deleteByMsisdn(ctx, msisdn); err != nil {
				return nil, err
			}
		}
	}

	return nil, &apperror.ConflictError{Field: model.ConflictMsisdn.String(), Value: msisdn}
}
