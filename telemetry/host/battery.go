package host

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spance/devpulse/telemetry/definitions"
)

// batterySupply returns the first power_supply of type Battery.
func (r *HostDevice) batterySupply() (string, error) {
	supplies, _ := filepath.Glob(filepath.Join(r.sysfs, "class", "power_supply", "*"))
	for _, supply := range supplies {
		if readString(filepath.Join(supply, "type")) == "Battery" {
			return supply, nil
		}
	}
	return "", fmt.Errorf("no battery in %s", filepath.Join(r.sysfs, "class", "power_supply"))
}

func (r *HostDevice) batteryAttr(name string) (string, error) {
	supply, err := r.batterySupply()
	if err != nil {
		return "", err
	}
	value := readString(filepath.Join(supply, name))
	if value == "" {
		return "", fmt.Errorf("battery %s not reported", name)
	}
	return value, nil
}

func (r *HostDevice) batteryInt(name string) (int, error) {
	raw, err := r.batteryAttr(name)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (r *HostDevice) BatteryLevel(ctx context.Context) (int, error) {
	level, err := r.batteryInt("capacity")
	if err != nil {
		return 0, err
	}
	return min(max(level, 0), 100), nil
}

func (r *HostDevice) BatteryState(ctx context.Context) (definitions.BatteryState, error) {
	raw, err := r.batteryAttr("status")
	if err != nil {
		return definitions.BatteryUnknown, err
	}
	return definitions.ParseBatteryState(raw), nil
}

// BatterySaver has no sysfs attribute.
func (r *HostDevice) BatterySaver(ctx context.Context) (bool, error) {
	return false, definitions.ErrUnsupported
}

// BatteryTemperature is reported by power_supply in tenths of a degree.
func (r *HostDevice) BatteryTemperature(ctx context.Context) (float64, error) {
	tenths, err := r.batteryInt("temp")
	if err != nil {
		return 0, err
	}
	return float64(tenths) / 10, nil
}

// BatteryVoltage converts voltage_now from microvolts.
func (r *HostDevice) BatteryVoltage(ctx context.Context) (int, error) {
	microvolts, err := r.batteryInt("voltage_now")
	if err != nil {
		return 0, err
	}
	return microvolts / 1000, nil
}

func (r *HostDevice) BatteryHealth(ctx context.Context) (string, error) {
	raw, err := r.batteryAttr("health")
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.ToLower(raw), " ", "_"), nil
}
