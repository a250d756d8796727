package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/apperror"
	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation = "23505"

	identifierIndex = "idx_devices_identifier"
	msisdnIndex     = "idx_devices_msisdn"
)

// GormDeviceRepository keeps devices in the PostgreSQL `devices` table.
type GormDeviceRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewGormDeviceRepository(db *gorm.DB, logger *slog.Logger) *GormDeviceRepository {
	return &GormDeviceRepository{
		db:     db,
		logger: logger.With("component", "GormDeviceRepository"),
	}
}

// Migrate creates the devices table and its unique indexes
func (r *GormDeviceRepository) Migrate() error {
	return r.db.AutoMigrate(&model.Device{})
}

// List returns all devices ordered by id
func (r *GormDeviceRepository) List(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := r.db.WithContext(ctx).Order("id").Find(&devices).Error; err != nil {
		return nil, apperror.Store("list", err)
	}
	return devices, nil
}

// GetByIdentifier finds a device by push identifier
func (r *GormDeviceRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.Device, error) {
	return r.findOne(ctx, "identifier = ?", identifier)
}

// GetByMsisdn finds a device by phone number
func (r *GormDeviceRepository) GetByMsisdn(ctx context.Context, msisdn string) (*model.Device, error) {
	return r.findOne(ctx, "msisdn = ?", msisdn)
}

func (r *GormDeviceRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	r.logger.Info("removing device", "identifier", identifier)
	err := r.db.WithContext(ctx).Where("identifier = ?", identifier).Delete(&model.Device{}).Error
	return apperror.Store("delete", err)
}

func (r *GormDeviceRepository) DeleteByMsisdn(ctx context.Context, msisdn string) error {
	r.logger.Info("removing devices with msisdn", "msisdn", msisdn)
	err := r.db.WithContext(ctx).Where("msisdn = ?", msisdn).Delete(&model.Device{}).Error
	return apperror.Store("delete", err)
}

// Register runs conflict resolution in one transaction. The table lock
// keeps other writers out until it commits; reads are not blocked.
func (r *GormDeviceRepository) Register(ctx context.Context, msisdn, identifier, osType string) (*model.Device, error) {
	var device *model.Device
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("LOCK TABLE devices IN SHARE ROW EXCLUSIVE MODE").Error; err != nil {
			return err
		}
		d, err := register(ctx, gormWriter{tx: tx}, r.logger, msisdn, identifier, osType)
		if err != nil {
			return err
		}
		device = d
		return nil
	})
	if err != nil {
		var validation *apperror.ValidationError
		if errors.As(err, &validation) {
			return nil, err
		}
		return nil, apperror.Store("register", err)
	}
	return device, nil
}

func (r *GormDeviceRepository) findOne(ctx context.Context, query string, arg string) (*model.Device, error) {
	var device model.Device
	err := r.db.WithContext(ctx).Where(query, arg).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Store("get", err)
	}
	return &device, nil
}

// gormWriter runs inside the Register transaction. A failed statement
// aborts a PostgreSQL transaction, so each write is wrapped in a savepoint
// that is rolled back when a unique index rejects it.
type gormWriter struct {
	tx *gorm.DB
}

// insert reports an identifier conflict before trying the row, since
// PostgreSQL does not promise which unique index fails first when both do.
// The table lock keeps the check valid until commit.
func (w gormWriter) insert(ctx context.Context, d *model.Device) (model.WriteResult, error) {
	var taken int64
	if err := w.tx.Model(&model.Device{}).Where("identifier = ?", d.Identifier).Count(&taken).Error; err != nil {
		return model.WriteResult{}, err
	}
	if taken > 0 {
		return model.Conflicted(model.ConflictIdentifier), nil
	}

	if err := w.tx.SavePoint("device_insert").Error; err != nil {
		return model.WriteResult{}, err
	}
	if err := w.tx.Create(d).Error; err != nil {
		return w.recover("device_insert", err)
	}
	return model.Written(d), nil
}

func (w gormWriter) updateMsisdn(ctx context.Context, identifier, msisdn string) (model.WriteResult, error) {
	if err := w.tx.SavePoint("device_update").Error; err != nil {
		return model.WriteResult{}, err
	}
	res := w.tx.Model(&model.Device{}).Where("identifier = ?", identifier).Update("msisdn", msisdn)
	if res.Error != nil {
		return w.recover("device_update", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.WriteResult{}, fmt.Errorf("device %q not found for msisdn update", identifier)
	}

	var device model.Device
	if err := w.tx.Where("identifier = ?", identifier).First(&device).Error; err != nil {
		return model.WriteResult{}, err
	}
	return model.Written(&device), nil
}

func (w gormWriter) deleteByMsisdn(ctx context.Context, msisdn string) error {
	return w.tx.Where("msisdn = ?", msisdn).Delete(&model.Device{}).Error
}

func (w gormWriter) recover(savepoint string, err error) (model.WriteResult, error) {
	conflict := classifyConflict(err)
	if conflict == model.ConflictNone {
		return model.WriteResult{}, err
	}
	if rbErr := w.tx.RollbackTo(savepoint).Error; rbErr != nil {
		return model.WriteResult{}, rbErr
	}
	return model.Conflicted(conflict), nil
}

// classifyConflict maps a unique violation onto the constraint that fired,
// using the SQLSTATE and constraint name reported by the server.
func classifyConflict(err error) model.Conflict {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return model.ConflictNone
	}
	switch pgErr.ConstraintName {
	case identifierIndex:
		return model.ConflictIdentifier
	case msisdnIndex:
		return model.ConflictMsisdn
	}
	return model.ConflictNone
}
