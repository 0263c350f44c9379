package android

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spance/devpulse/telemetry/definitions"
)

// BatteryManager.BATTERY_HEALTH_* codes.
var batteryHealth = map[string]string{
	"1": "unknown",
	"2": "good",
	"3": "overheat",
	"4": "dead",
	"5": "over_voltage",
	"6": "unspecified_failure",
	"7": "cold",
}

func (r *ADBDevice) battery(ctx context.Context) (map[string]string, error) {
	output, err := r.cachedShell(ctx, "Battery", "dumpsys", "battery")
	if err != nil {
		return nil, err
	}
	return parseKeyValues(output), nil
}

// parseKeyValues reads `key: value` lines, as printed by dumpsys battery and
// /proc/meminfo. Keys are lower-cased.
func parseKeyValues(output string) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		values[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return values
}

func batteryField(values map[string]string, key string) (string, error) {
	v, ok := values[key]
	if !ok || v == "" {
		return "", fmt.Errorf("battery %s not reported", key)
	}
	return v, nil
}

func (r *ADBDevice) BatteryLevel(ctx context.Context) (int, error) {
	values, err := r.battery(ctx)
	if err != nil {
		return 0, err
	}
	return parseBatteryLevel(values)
}

func parseBatteryLevel(values map[string]string) (int, error) {
	raw, err := batteryField(values, "level")
	if err != nil {
		return 0, err
	}
	level, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse battery level %q: %w", raw, err)
	}
	if scale, err := strconv.Atoi(values["scale"]); err == nil && scale > 0 && scale != 100 {
		level = level * 100 / scale
	}
	return min(max(level, 0), 100), nil
}

func (r *ADBDevice) BatteryState(ctx context.Context) (definitions.BatteryState, error) {
	values, err := r.battery(ctx)
	if err != nil {
		return definitions.BatteryUnknown, err
	}
	raw, err := batteryField(values, "status")
	if err != nil {
		return definitions.BatteryUnknown, err
	}
	return definitions.ParseBatteryState(raw), nil
}

func (r *ADBDevice) BatterySaver(ctx context.Context) (bool, error) {
	output, err := r.cachedShell(ctx, "BatterySaver", "settings", "get", "global", "low_power")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) == "1", nil
}

// BatteryTemperature is reported by dumpsys in tenths of a degree.
func (r *ADBDevice) BatteryTemperature(ctx context.Context) (float64, error) {
	values, err := r.battery(ctx)
	if err != nil {
		return 0, err
	}
	raw, err := batteryField(values, "temperature")
	if err != nil {
		return 0, err
	}
	tenths, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return float64(tenths) / 10, nil
}

func (r *ADBDevice) BatteryVoltage(ctx context.Context) (int, error) {
	values, err := r.battery(ctx)
	if err != nil {
		return 0, err
	}
	raw, err := batteryField(values, "voltage")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (r *ADBDevice) BatteryHealth(ctx context.Context) (string, error) {
	values, err := r.battery(ctx)
	if err != nil {
		return "", err
	}
	raw, err := batteryField(values, "health")
	if err != nil {
		return "", err
	}
	if health, ok := batteryHealth[raw]; ok {
		return health, nil
	}
	return "", fmt.Errorf("unknown battery health code %q", raw)
}
