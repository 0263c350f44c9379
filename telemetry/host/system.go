package host

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/spance/devpulse/telemetry/definitions"
)

func (r *HostDevice) CPUCount(ctx context.Context) (int, error) {
	n, err := countsWithContext(ctx, true)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("no logical cpus reported")
	}
	return n, nil
}

func (r *HostDevice) Memory(ctx context.Context) (definitions.MemoryInfo, error) {
	vm, err := virtualMemoryWithContext(ctx)
	if err != nil {
		return definitions.MemoryInfo{}, err
	}
	if vm.Total == 0 {
		return definitions.MemoryInfo{}, fmt.Errorf("total memory not reported")
	}
	return definitions.MemoryInfo{
		TotalMB: vm.Total / 1024 / 1024,
		FreeMB:  vm.Available / 1024 / 1024,
		UsedMB:  (vm.Total - vm.Available) / 1024 / 1024,
	}, nil
}

func (r *HostDevice) CPUUsage(ctx context.Context) (float64, error) {
	percents, err := percentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no cpu usage sample")
	}
	return percents[0], nil
}

var cpuSensorMarkers = []string{"cpu", "tsens", "soc", "mtktscpu", "coretemp", "k10temp", "x86_pkg_temp"}

// CPUTemperature returns the first CPU-like sensor. gopsutil returns partial
// results together with a warning error, so readings win over the error.
func (r *HostDevice) CPUTemperature(ctx context.Context) (float64, error) {
	temps, err := temperaturesWithContext(ctx)
	for _, t := range temps {
		key := strings.ToLower(t.SensorKey)
		if t.Temperature > 0 && lo.SomeBy(cpuSensorMarkers, func(m string) bool { return strings.Contains(key, m) }) {
			return t.Temperature, nil
		}
	}
	if err != nil {
		return 0, err
	}
	return 0, definitions.ErrUnsupported
}

// CPUFrequency reports the fastest core in MHz.
func (r *HostDevice) CPUFrequency(ctx context.Context) (float64, error) {
	infos, err := infoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	mhz := lo.Max(lo.Map(infos, func(info cpu.InfoStat, _ int) float64 { return info.Mhz }))
	if mhz <= 0 {
		return 0, definitions.ErrUnsupported
	}
	return mhz, nil
}

func (r *HostDevice) Uptime(ctx context.Context) (time.Duration, error) {
	seconds, err := uptimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func (r *HostDevice) ProcessCount(ctx context.Context) (int, error) {
	pids, err := pidsWithContext(ctx)
	if err != nil {
		return 0, err
	}
	if len(pids) == 0 {
		return 0, fmt.Errorf("no processes listed")
	}
	return len(pids), nil
}

func (r *HostDevice) Architecture(ctx context.Context) (string, error) {
	if r.goos == string(definitions.PlatformAndroid) {
		if build, err := r.AndroidBuild(ctx); err == nil && build.ABI != "" {
			return build.ABI, nil
		}
	}
	info, err := hostInfoWithContext(ctx)
	if err == nil && info.KernelArch != "" {
		return info.KernelArch, nil
	}
	return runtime.GOARCH, nil
}

func (r *HostDevice) OSInfo(ctx context.Context) (string, string, error) {
	if r.goos == string(definitions.PlatformAndroid) {
		build, err := r.AndroidBuild(ctx)
		if err != nil {
			return "", "", err
		}
		return "Android", build.Release, nil
	}
	info, err := hostInfoWithContext(ctx)
	if err != nil {
		return "", "", err
	}
	return info.Platform, info.PlatformVersion, nil
}
