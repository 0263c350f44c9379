package definitions

import (
	"errors"
	"fmt"
	"time"
)

var ErrIncompleteSnapshot = errors.New("snapshot is missing a required section")

// Snapshot is one merged, point-in-time read of every probe. It is built once
// per refresh cycle and replaced wholesale by the next one.
type Snapshot struct {
	ID          string           `json:"id"`
	Cycle       uint64           `json:"cycle"`
	Device      *DeviceIdentity  `json:"device"`
	Battery     *BatteryStatus   `json:"battery"`
	Network     *NetworkStatus   `json:"network"`
	System      *SystemResources `json:"system"`
	Storage     *StorageStatus   `json:"storage"`
	Location    *GeoPosition     `json:"location"`
	Permissions *PermissionSet   `json:"permissions"`
	CapturedAt  time.Time        `json:"captured_at"`
}

// Validate reports an error when a required section is absent. Location is
// the only section allowed to be nil.
func (s *Snapshot) Validate() error {
	missing := ""
	switch {
	case s.Device == nil:
		missing = "device"
	case s.Battery == nil:
		missing = "battery"
	case s.Network == nil:
		missing = "network"
	case s.System == nil:
		missing = "system"
	case s.Storage == nil:
		missing = "storage"
	case s.Permissions == nil:
		missing = "permissions"
	}
	if missing != "" {
		return fmt.Errorf("%w: %s", ErrIncompleteSnapshot, missing)
	}
	return nil
}

func (s *Snapshot) HasLocation() bool {
	return s.Location != nil
}

func (s *Snapshot) ToMap() map[string]any {
	out := map[string]any{
		"id":          s.ID,
		"cycle":       s.Cycle,
		"captured_at": s.CapturedAt,
		"device":      nil,
		"battery":     nil,
		"network":     nil,
		"system":      nil,
		"storage":     nil,
		"location":    nil,
		"permissions": nil,
	}
	if s.Device != nil {
		out["device"] = s.Device.ToMap()
	}
	if s.Battery != nil {
		out["battery"] = s.Battery.ToMap()
	}
	if s.Network != nil {
		out["network"] = s.Network.ToMap()
	}
	if s.System != nil {
		out["system"] = s.System.ToMap()
	}
	if s.Storage != nil {
		out["storage"] = s.Storage.ToMap()
	}
	if s.Location != nil {
		out["location"] = s.Location.ToMap()
	}
	if s.Permissions != nil {
		out["permissions"] = s.Permissions.ToMap()
	}
	return out
}
