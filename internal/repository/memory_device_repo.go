package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/CloudonixMobileSDK-SampleApps/cloudonix-sample-reg-free-server/internal/model"
)

// MemoryDeviceRepository is a volatile DeviceStore. It starts empty and
// loses every record when the process stops.
type MemoryDeviceRepository struct {
	mu           sync.RWMutex
	lastID       int64
	byID         map[int64]*model.Device
	byIdentifier map[string]int64
	byMsisdn     map[string]int64
	logger       *slog.Logger
}

func NewMemoryDeviceRepository(logger *slog.Logger) *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		byID:         make(map[int64]*model.Device),
		byIdentifier: make(map[string]int64),
		byMsisdn:     make(map[string]int64),
		logger:       logger.With("component", "MemoryDeviceRepository"),
	}
}

// List returns all devices ordered by id
func (r *MemoryDeviceRepository) List(ctx context.Context) ([]model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]model.Device, 0, len(r.byID))
	for _, d := range r.byID {
		devices = append(devices, *d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// GetByIdentifier finds a device by push identifier
func (r *MemoryDeviceRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byIdentifier, identifier), nil
}

// GetByMsisdn finds a device by phone number
func (r *MemoryDeviceRepository) GetByMsisdn(ctx context.Context, msisdn string) (*model.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byMsisdn, msisdn), nil
}

func (r *MemoryDeviceRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("removing device", "identifier", identifier)
	r.remove(r.byIdentifier[identifier])
	return nil
}

func (r *MemoryDeviceRepository) DeleteByMsisdn(ctx context.Context, msisdn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("removing devices with msisdn", "msisdn", msisdn)
	r.remove(r.byMsisdn[msisdn])
	return nil
}

// Register holds the write lock for the whole conflict resolution.
func (r *MemoryDeviceRepository) Register(ctx context.Context, msisdn, identifier, osType string) (*model.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(ctx, memoryWriter{r}, r.logger, msisdn, identifier, osType)
}

// lookup returns a copy so callers never alias stored records.
func (r *MemoryDeviceRepository) lookup(index map[string]int64, key string) *model.Device {
	id, ok := index[key]
	if !ok {
		return nil
	}
	d := *r.byID[id]
	return &d
}

func (r *MemoryDeviceRepository) remove(id int64) {
	d, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byIdentifier, d.Identifier)
	delete(r.byMsisdn, d.Msisdn)
	delete(r.byID, id)
}

// memoryWriter runs with r.mu held for writing.
type memoryWriter struct {
	r *MemoryDeviceRepository
}

func (w memoryWriter) insert(ctx context.Context, d *model.Device) (model.WriteResult, error) {
	r := w.r
	if _, ok := r.byIdentifier[d.Identifier]; ok {
		return model.Conflicted(model.ConflictIdentifier), nil
	}
	if _, ok := r.byMsisdn[d.Msisdn]; ok {
		return model.Conflicted(model.ConflictMsisdn), nil
	}

	r.lastID++
	stored := *d
	stored.ID = r.lastID
	r.byID[stored.ID] = &stored
	r.byIdentifier[stored.Identifier] = stored.ID
	r.byMsisdn[stored.Msisdn] = stored.ID

	out := stored
	return model.Written(&out), nil
}

func (w memoryWriter) updateMsisdn(ctx context.Context, identifier, msisdn string) (model.WriteResult, error) {
	r := w.r
	id, ok := r.byIdentifier[identifier]
	if !ok {
		return model.WriteResult{}, fmt.Errorf("device %q not found for msisdn update", identifier)
	}
	if holder, taken := r.byMsisdn[msisdn]; taken && holder != id {
		return model.Conflicted(model.ConflictMsisdn), nil
	}

	d := r.byID[id]
	delete(r.byMsisdn, d.Msisdn)
	d.Msisdn = msisdn
	r.byMsisdn[msisdn] = id

	out := *d
	return model.Written(&out), nil
}

func (w memoryWriter) deleteByMsisdn(ctx context.Context, msisdn string) error {
	w.r.remove(w.r.byMsisdn[msisdn])
	return nil
}
