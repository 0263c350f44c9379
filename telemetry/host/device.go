package host

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	gohost "github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/spance/devpulse/constants"
	"github.com/spance/devpulse/telemetry/android"
	"github.com/spance/devpulse/telemetry/definitions"
)

// Collectors are package variables so tests can stub them.
var (
	countsWithContext        = cpu.CountsWithContext
	percentWithContext       = cpu.PercentWithContext
	infoWithContext          = cpu.InfoWithContext
	virtualMemoryWithContext = mem.VirtualMemoryWithContext
	hostInfoWithContext      = gohost.InfoWithContext
	uptimeWithContext        = gohost.UptimeWithContext
	temperaturesWithContext  = gohost.SensorsTemperaturesWithContext
	usageWithContext         = disk.UsageWithContext
	pidsWithContext          = process.PidsWithContext
	interfacesWithContext    = net.InterfacesWithContext
	getpropRunner            = func(ctx context.Context) ([]byte, error) {
		return exec.CommandContext(ctx, "getprop").Output()
	}
)

const cpuSampleWindow = 200 * time.Millisecond

// HostDevice reads telemetry of the machine the process runs on, which is
// meant to be an Android device running the binary natively (for example
// from a terminal app). Other operating systems report their GOOS as the
// platform family and fail the identity probe.
type HostDevice struct {
	goos           string
	sysfs          string
	procfs         string
	storagePath    string
	commandTimeout time.Duration
	streamInterval time.Duration
	sensorInterval time.Duration
}

func NewHostDevice(cfg definitions.SessionConfig) *HostDevice {
	cfg = cfg.WithDefaults()
	storagePath := "/"
	if runtime.GOOS == "android" {
		storagePath = "/data"
	}
	return &HostDevice{
		goos:           runtime.GOOS,
		sysfs:          "/sys",
		procfs:         "/proc",
		storagePath:    storagePath,
		commandTimeout: cfg.CommandTimeout,
		streamInterval: cfg.StreamInterval,
		sensorInterval: cfg.SensorInterval,
	}
}

func (r *HostDevice) Family() string {
	return r.goos
}

func (r *HostDevice) AndroidBuild(ctx context.Context) (*definitions.AndroidBuild, error) {
	if r.goos != string(definitions.PlatformAndroid) {
		return nil, definitions.ErrUnsupported
	}
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	output, err := getpropRunner(ctx)
	if err != nil {
		return nil, fmt.Errorf("getprop: %w", err)
	}
	props := android.ParseGetprop(string(output))
	if len(props) == 0 {
		return nil, fmt.Errorf("getprop returned no properties")
	}
	return android.BuildFromProperties(props), nil
}

func (r *HostDevice) IOSDevice(ctx context.Context) (*definitions.IOSDevice, error) {
	return nil, definitions.ErrUnsupported
}

// DisplayMetrics reads the preferred mode of the first connected DRM output.
func (r *HostDevice) DisplayMetrics(ctx context.Context) (definitions.DisplayMetrics, error) {
	connectors, _ := filepath.Glob(filepath.Join(r.sysfs, "class", "drm", "card*-*"))
	for _, connector := range connectors {
		if readString(filepath.Join(connector, "status")) != "connected" {
			continue
		}
		modes := strings.Fields(readString(filepath.Join(connector, "modes")))
		if len(modes) == 0 {
			continue
		}
		width, height, ok := strings.Cut(modes[0], "x")
		if !ok {
			continue
		}
		w, errW := strconv.Atoi(width)
		h, errH := strconv.Atoi(strings.TrimRight(height, "ip"))
		if errW != nil || errH != nil {
			continue
		}
		return definitions.DisplayMetrics{PixelRatio: 1, WidthPx: w, HeightPx: h}, nil
	}
	return definitions.DisplayMetrics{}, definitions.ErrUnsupported
}

// AppIdentity reports this binary.
func (r *HostDevice) AppIdentity(ctx context.Context) (definitions.AppIdentity, error) {
	return definitions.AppIdentity{
		Name:    constants.AppName,
		Package: constants.AppPackage,
		Version: constants.Version,
		Build:   constants.Build,
	}, nil
}

func (r *HostDevice) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	info, err := hostInfoWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return []definitions.DeviceInfo{{
		DeviceID:  info.Hostname,
		Status:    "device",
		Link:      definitions.Local,
		Model:     info.Platform,
		OSVersion: info.PlatformVersion,
	}}, nil
}

func (r *HostDevice) Connect(ctx context.Context, address string) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *HostDevice) Disconnect(ctx context.Context, address string) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *HostDevice) LocationServiceEnabled(ctx context.Context) (bool, error) {
	return false, definitions.ErrUnsupported
}

func (r *HostDevice) LocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	return definitions.LocationPermissionNotDetermined, definitions.ErrUnsupported
}

func (r *HostDevice) RequestLocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	return definitions.LocationPermissionNotDetermined, definitions.ErrUnsupported
}

func (r *HostDevice) CurrentPosition(ctx context.Context) (definitions.GeoPosition, error) {
	return definitions.GeoPosition{}, definitions.ErrUnsupported
}

func (r *HostDevice) PermissionStatus(ctx context.Context, kind definitions.PermissionKind) (definitions.PermissionStatus, error) {
	return definitions.PermissionUnknown, definitions.ErrUnsupported
}

// readString returns the trimmed content of a sysfs/procfs file, or "" when
// it cannot be read.
func readString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
