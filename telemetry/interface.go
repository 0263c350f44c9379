package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/spance/devpulse/constants"
	"github.com/spance/devpulse/telemetry/android"
	"github.com/spance/devpulse/telemetry/definitions"
	"github.com/spance/devpulse/telemetry/host"
	"github.com/spance/devpulse/telemetry/ios"
)

// IdentityProvider reads hardware, OS and app identity. Family reports the
// raw platform family; only the accessor matching it is expected to work.
type IdentityProvider interface {
	Family() string
	AndroidBuild(ctx context.Context) (*definitions.AndroidBuild, error)
	IOSDevice(ctx context.Context) (*definitions.IOSDevice, error)
	DisplayMetrics(ctx context.Context) (definitions.DisplayMetrics, error)
	AppIdentity(ctx context.Context) (definitions.AppIdentity, error)
}

type BatteryProvider interface {
	BatteryLevel(ctx context.Context) (int, error)
	BatteryState(ctx context.Context) (definitions.BatteryState, error)
	BatterySaver(ctx context.Context) (bool, error)
	BatteryTemperature(ctx context.Context) (float64, error)
	BatteryVoltage(ctx context.Context) (int, error)
	BatteryHealth(ctx context.Context) (string, error)
}

// StorageProvider reports sizes in bytes. StorageAvailable fails when the
// storage service itself cannot be reached.
type StorageProvider interface {
	StorageAvailable(ctx context.Context) error
	TotalSpace(ctx context.Context) (uint64, error)
	FreeSpace(ctx context.Context) (uint64, error)
	UsedSpace(ctx context.Context) (uint64, error)
	AvailableSpace(ctx context.Context) (uint64, error)
}

type ConnectivityProvider interface {
	ConnectionType(ctx context.Context) (definitions.ConnectionType, bool, error)
	WifiName(ctx context.Context) (string, error)
	WifiIP(ctx context.Context) (string, error)
	WifiBSSID(ctx context.Context) (string, error)
	WifiGateway(ctx context.Context) (string, error)
	WifiSubnet(ctx context.Context) (string, error)
	WifiSignal(ctx context.Context) (int, error)
}

// SpeedMeter is implemented by connectivity providers that can measure
// link throughput.
type SpeedMeter interface {
	MeasureSpeed(ctx context.Context) (float64, error)
}

type SystemProvider interface {
	CPUCount(ctx context.Context) (int, error)
	Memory(ctx context.Context) (definitions.MemoryInfo, error)
	CPUUsage(ctx context.Context) (float64, error)
	CPUTemperature(ctx context.Context) (float64, error)
	CPUFrequency(ctx context.Context) (float64, error)
	Uptime(ctx context.Context) (time.Duration, error)
	ProcessCount(ctx context.Context) (int, error)
	Architecture(ctx context.Context) (string, error)
	OSInfo(ctx context.Context) (name string, version string, err error)
}

type LocationProvider interface {
	LocationServiceEnabled(ctx context.Context) (bool, error)
	LocationPermission(ctx context.Context) (definitions.LocationPermission, error)
	RequestLocationPermission(ctx context.Context) (definitions.LocationPermission, error)
	CurrentPosition(ctx context.Context) (definitions.GeoPosition, error)
}

type PermissionProvider interface {
	PermissionStatus(ctx context.Context, kind definitions.PermissionKind) (definitions.PermissionStatus, error)
}

type StreamProvider interface {
	OpenStream(ctx context.Context, kind definitions.StreamKind) (definitions.PlatformStream, error)
}

// DeviceManager manages device connections for the backends that have them.
type DeviceManager interface {
	ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error)
	Connect(ctx context.Context, address string) (string, error)
	Disconnect(ctx context.Context, address string) (string, error)
}

// Platform is everything the probes and the hub need from a device backend.
type Platform interface {
	IdentityProvider
	BatteryProvider
	StorageProvider
	ConnectivityProvider
	SystemProvider
	LocationProvider
	PermissionProvider
	StreamProvider
	DeviceManager
}

func CreatePlatform(cfg definitions.SessionConfig) (Platform, error) {
	cfg = cfg.WithDefaults()

	switch cfg.DeviceType {
	case constants.ADB:
		return android.NewADBDevice(cfg), nil
	case constants.IOS:
		return ios.NewIOSDevice(cfg), nil
	case constants.HOST:
		return host.NewHostDevice(cfg), nil
	default:
		return nil, fmt.Errorf("unknown device type: %v", cfg.DeviceType)
	}
}
