package definitions

import "strings"

type BatteryState string

const (
	BatteryCharging    BatteryState = "charging"
	BatteryDischarging BatteryState = "discharging"
	BatteryFull        BatteryState = "full"
	BatteryUnknown     BatteryState = "unknown"
)

// ParseBatteryState maps the spellings used by dumpsys, sysfs power_supply and
// lockdownd onto a BatteryState.
func ParseBatteryState(s string) BatteryState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "charging", "2":
		return BatteryCharging
	case "discharging", "not charging", "3", "4":
		return BatteryDischarging
	case "full", "5":
		return BatteryFull
	default:
		return BatteryUnknown
	}
}

// BatteryStatus is the battery reading of one snapshot. Temperature, voltage
// and health are nil when the platform has no API for them.
type BatteryStatus struct {
	Level        int          `json:"level"`
	State        BatteryState `json:"state"`
	SaverMode    bool         `json:"saver_mode"`
	TemperatureC *float64     `json:"temperature_c"`
	VoltageMV    *int         `json:"voltage_mv"`
	Health       *string      `json:"health"`
}

func (b BatteryStatus) ToMap() map[string]any {
	return map[string]any{
		"level":         b.Level,
		"state":         string(b.State),
		"saver_mode":    b.SaverMode,
		"temperature_c": optional(b.TemperatureC),
		"voltage_mv":    optional(b.VoltageMV),
		"health":        optional(b.Health),
	}
}
