package model

// DefaultOSType is used when a registration does not name a platform.
const DefaultOSType = "android"

// Device binds a push-provider identifier to a subscriber MSISDN.
// Both Identifier and Msisdn are unique across all devices.
type Device struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	OSType     string `json:"os_type" gorm:"column:os_type"`
	Identifier string `json:"identifier" gorm:"not null;uniqueIndex:idx_devices_identifier"`
	Msisdn     string `json:"msisdn" gorm:"not null;uniqueIndex:idx_devices_msisdn"`
}

// TableName pins the table name used by the SQL store
func (Device) TableName() string {
	return "devices"
}

// Conflict names the uniqueness constraint a write ran into.
type Conflict int

const (
	ConflictNone Conflict = iota
	ConflictIdentifier
	ConflictMsisdn
)

func (c Conflict) String() string {
	switch c {
	case ConflictIdentifier:
		return "identifier"
	case ConflictMsisdn:
		return "msisdn"
	}
	return "none"
}

// WriteResult is the outcome of a store write primitive. Device is set
// only when Conflict is ConflictNone.
type WriteResult struct {
	Device   *Device
	Conflict Conflict
}

// Written wraps a successfully stored device.
func Written(d *Device) WriteResult {
	return WriteResult{Device: d}
}

// Conflicted reports a write rejected by the given constraint.
func Conflicted(c Conflict) WriteResult {
	return WriteResult{Conflict: c}
}
