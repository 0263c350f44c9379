package android

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spance/devpulse/telemetry/definitions"
)

func (r *ADBDevice) CPUCount(ctx context.Context) (int, error) {
	output, err := r.cachedShell(ctx, "CPUCount", "nproc")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unexpected nproc output: %q", strings.TrimSpace(output))
	}
	return n, nil
}

func (r *ADBDevice) Memory(ctx context.Context) (definitions.MemoryInfo, error) {
	output, err := r.cachedShell(ctx, "Memory", "cat", "/proc/meminfo")
	if err != nil {
		return definitions.MemoryInfo{}, err
	}
	return parseMeminfo(output)
}

// parseMeminfo reads /proc/meminfo. Free is MemAvailable when the kernel
// reports it, MemFree otherwise.
func parseMeminfo(output string) (definitions.MemoryInfo, error) {
	values := parseKeyValues(output)
	kb := func(key string) (uint64, bool) {
		raw, ok := values[strings.ToLower(key)]
		if !ok {
			return 0, false
		}
		v, err := strconv.ParseUint(strings.TrimSpace(strings.TrimSuffix(raw, "kB")), 10, 64)
		return v, err == nil
	}

	total, ok := kb("MemTotal")
	if !ok || total == 0 {
		return definitions.MemoryInfo{}, fmt.Errorf("MemTotal missing from /proc/meminfo")
	}
	free, ok := kb("MemAvailable")
	if !ok {
		if free, ok = kb("MemFree"); !ok {
			return definitions.MemoryInfo{}, fmt.Errorf("MemAvailable missing from /proc/meminfo")
		}
	}
	return definitions.MemoryInfo{
		TotalMB: total / 1024,
		FreeMB:  free / 1024,
		UsedMB:  (total - free) / 1024,
	}, nil
}

// CPUUsage samples /proc/stat twice, a quarter second apart, in one shell.
func (r *ADBDevice) CPUUsage(ctx context.Context) (float64, error) {
	output, err := r.shell(ctx, "CPUUsage", "head -n1 /proc/stat; sleep 0.25; head -n1 /proc/stat")
	if err != nil {
		return 0, err
	}
	return parseCPUUsage(output)
}

func parseCPUUsage(output string) (float64, error) {
	var samples [][2]uint64
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var total, idle uint64
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse /proc/stat field %q: %w", f, err)
			}
			total += v
			if i == 3 || i == 4 {
				idle += v
			}
		}
		samples = append(samples, [2]uint64{total, idle})
	}
	if len(samples) < 2 {
		return 0, fmt.Errorf("need two /proc/stat samples, got %d", len(samples))
	}

	dTotal := samples[1][0] - samples[0][0]
	dIdle := samples[1][1] - samples[0][1]
	if dTotal == 0 {
		return 0, nil
	}
	return float64(dTotal-dIdle) / float64(dTotal) * 100, nil
}

func (r *ADBDevice) CPUTemperature(ctx context.Context) (float64, error) {
	output, err := r.shell(ctx, "CPUTemperature",
		`for z in /sys/class/thermal/thermal_zone*; do echo "$(cat $z/type) $(cat $z/temp)"; done`)
	if err != nil {
		return 0, err
	}
	return parseThermalZones(output)
}

var cpuZoneMarkers = []string{"cpu", "tsens", "soc", "mtktscpu"}

// parseThermalZones picks the first CPU-like zone. Temperatures above 1000
// are in millidegrees.
func parseThermalZones(output string) (float64, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		zone := strings.ToLower(fields[0])
		isCPU := false
		for _, marker := range cpuZoneMarkers {
			if strings.Contains(zone, marker) {
				isCPU = true
				break
			}
		}
		if !isCPU {
			continue
		}
		temp, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		if temp > 1000 {
			temp /= 1000
		}
		return temp, nil
	}
	return 0, definitions.ErrUnsupported
}

// CPUFrequency reports the fastest current core clock in MHz.
func (r *ADBDevice) CPUFrequency(ctx context.Context) (float64, error) {
	output, err := r.shell(ctx, "CPUFrequency", "cat /sys/devices/system/cpu/cpu*/cpufreq/scaling_cur_freq")
	if err != nil {
		return 0, err
	}
	var maxKHz float64
	for _, line := range strings.Fields(output) {
		if v, err := strconv.ParseFloat(line, 64); err == nil && v > maxKHz {
			maxKHz = v
		}
	}
	if maxKHz == 0 {
		return 0, definitions.ErrUnsupported
	}
	return maxKHz / 1000, nil
}

func (r *ADBDevice) Uptime(ctx context.Context) (time.Duration, error) {
	output, err := r.shell(ctx, "Uptime", "cat", "/proc/uptime")
	if err != nil {
		return 0, err
	}
	return parseUptime(output)
}

func parseUptime(output string) (time.Duration, error) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty /proc/uptime")
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse uptime %q: %w", fields[0], err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (r *ADBDevice) ProcessCount(ctx context.Context) (int, error) {
	output, err := r.shell(ctx, "ProcessCount", "ps", "-A", "-o", "PID")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(output, "\n") {
		if _, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
			count++
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("no processes listed")
	}
	return count, nil
}

func (r *ADBDevice) Architecture(ctx context.Context) (string, error) {
	props, err := r.properties(ctx)
	if err != nil {
		return "", err
	}
	if abi := props["ro.product.cpu.abi"]; abi != "" {
		return abi, nil
	}
	return "", fmt.Errorf("ro.product.cpu.abi not set")
}

func (r *ADBDevice) OSInfo(ctx context.Context) (string, string, error) {
	props, err := r.properties(ctx)
	if err != nil {
		return "", "", err
	}
	return "Android", props["ro.build.version.release"], nil
}
