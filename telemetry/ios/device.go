package ios

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spance/devpulse/telemetry/definitions"
	"github.com/spance/devpulse/telemetry/helper"
)

const (
	ideviceInfo = "ideviceinfo"
	ideviceID   = "idevice_id"

	batteryDomain = "com.apple.mobile.battery"
	diskDomain    = "com.apple.disk_usage"
)

type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// IOSDevice reads telemetry from an iOS device through the libimobiledevice
// tools. Lockdown exposes identity, battery and disk usage only; everything
// else reports definitions.ErrUnsupported.
type IOSDevice struct {
	udid           string
	commandTimeout time.Duration
	streamInterval time.Duration
	run            CommandRunner
}

func NewIOSDevice(cfg definitions.SessionConfig) *IOSDevice {
	cfg = cfg.WithDefaults()
	return &IOSDevice{
		udid:           cfg.DeviceID,
		commandTimeout: cfg.CommandTimeout,
		streamInterval: cfg.StreamInterval,
		run:            execRunner,
	}
}

// WithRunner replaces the command runner. Used by tests.
func (r *IOSDevice) WithRunner(run CommandRunner) *IOSDevice {
	r.run = run
	return r
}

func (r *IOSDevice) Family() string {
	return string(definitions.PlatformIOS)
}

// info runs ideviceinfo, optionally for one lockdown domain, and returns its
// key/value pairs.
func (r *IOSDevice) info(ctx context.Context, domain string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var cmdArgs []string
	if r.udid != "" {
		cmdArgs = append(cmdArgs, "-u", r.udid)
	}
	if domain != "" {
		cmdArgs = append(cmdArgs, "-q", domain)
	}
	log.Debug().Str("cmd", fmt.Sprintf("[Info] run cmd: %s %s", ideviceInfo, strings.Join(cmdArgs, " "))).Msg("")

	output, err := r.run(ctx, ideviceInfo, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", ideviceInfo, domain, err, strings.TrimSpace(string(output)))
	}
	values := parseInfo(string(output))
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", ideviceInfo)
	}
	return values, nil
}

// parseInfo reads the `Key: Value` lines of ideviceinfo.
func parseInfo(output string) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ": ")
		if !ok || strings.HasPrefix(key, " ") {
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	return values
}

func (r *IOSDevice) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	log.Debug().Str("cmd", fmt.Sprintf("[ListDevices] run cmd: %s -l", ideviceID)).Msg("")
	output, err := r.run(ctx, ideviceID, "-l")
	if err != nil {
		log.Error().Err(err).Msg("[ListDevices] run cmd failed")
		return nil, err
	}

	var devices []definitions.DeviceInfo
	for _, line := range strings.Split(string(output), "\n") {
		udid := strings.TrimSpace(line)
		if udid == "" {
			continue
		}
		devices = append(devices, definitions.DeviceInfo{
			DeviceID: udid,
			Status:   "device",
			Link:     definitions.USB,
		})
	}
	return devices, nil
}

func (r *IOSDevice) Connect(ctx context.Context, address string) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) Disconnect(ctx context.Context, address string) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) AndroidBuild(ctx context.Context) (*definitions.AndroidBuild, error) {
	return nil, definitions.ErrUnsupported
}

func (r *IOSDevice) IOSDevice(ctx context.Context) (*definitions.IOSDevice, error) {
	values, err := r.info(ctx, "")
	if err != nil {
		return nil, err
	}
	return &definitions.IOSDevice{
		Name:          values["DeviceName"],
		Model:         values["ProductType"],
		SystemName:    values["ProductName"],
		SystemVersion: values["ProductVersion"],
		BuildVersion:  values["BuildVersion"],
	}, nil
}

func (r *IOSDevice) DisplayMetrics(ctx context.Context) (definitions.DisplayMetrics, error) {
	return definitions.DisplayMetrics{}, definitions.ErrUnsupported
}

func (r *IOSDevice) AppIdentity(ctx context.Context) (definitions.AppIdentity, error) {
	return definitions.AppIdentity{}, definitions.ErrUnsupported
}

func (r *IOSDevice) BatteryLevel(ctx context.Context) (int, error) {
	values, err := r.info(ctx, batteryDomain)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(values["BatteryCurrentCapacity"])
}

func (r *IOSDevice) BatteryState(ctx context.Context) (definitions.BatteryState, error) {
	values, err := r.info(ctx, batteryDomain)
	if err != nil {
		return definitions.BatteryUnknown, err
	}
	return batteryState(values), nil
}

func batteryState(values map[string]string) definitions.BatteryState {
	switch {
	case values["FullyCharged"] == "true":
		return definitions.BatteryFull
	case values["BatteryIsCharging"] == "true":
		return definitions.BatteryCharging
	case values["BatteryIsCharging"] == "false":
		return definitions.BatteryDischarging
	default:
		return definitions.BatteryUnknown
	}
}

func (r *IOSDevice) BatterySaver(ctx context.Context) (bool, error) {
	return false, definitions.ErrUnsupported
}

func (r *IOSDevice) BatteryTemperature(ctx context.Context) (float64, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) BatteryVoltage(ctx context.Context) (int, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) BatteryHealth(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) disk(ctx context.Context, key string) (uint64, error) {
	values, err := r.info(ctx, diskDomain)
	if err != nil {
		return 0, err
	}
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("%s not reported", key)
	}
	return strconv.ParseUint(raw, 10, 64)
}

func (r *IOSDevice) StorageAvailable(ctx context.Context) error {
	if _, err := r.info(ctx, diskDomain); err != nil {
		return fmt.Errorf("%w: %v", definitions.ErrProviderUnavailable, err)
	}
	return nil
}

func (r *IOSDevice) TotalSpace(ctx context.Context) (uint64, error) {
	return r.disk(ctx, "TotalDiskCapacity")
}

func (r *IOSDevice) FreeSpace(ctx context.Context) (uint64, error) {
	return r.disk(ctx, "TotalDataAvailable")
}

func (r *IOSDevice) UsedSpace(ctx context.Context) (uint64, error) {
	capacity, err := r.disk(ctx, "TotalDataCapacity")
	if err != nil {
		return 0, err
	}
	available, err := r.disk(ctx, "TotalDataAvailable")
	if err != nil {
		return 0, err
	}
	if available > capacity {
		return 0, fmt.Errorf("available %d exceeds capacity %d", available, capacity)
	}
	return capacity - available, nil
}

func (r *IOSDevice) AvailableSpace(ctx context.Context) (uint64, error) {
	return r.disk(ctx, "AmountDataAvailable")
}

// ConnectionType reports a reachable device as connected over an
// unidentified link; lockdown has no connectivity domain.
func (r *IOSDevice) ConnectionType(ctx context.Context) (definitions.ConnectionType, bool, error) {
	if _, err := r.info(ctx, ""); err != nil {
		return definitions.ConnectionNone, false, err
	}
	return definitions.ConnectionOther, true, nil
}

func (r *IOSDevice) WifiName(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) WifiIP(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) WifiBSSID(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) WifiGateway(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) WifiSubnet(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) WifiSignal(ctx context.Context) (int, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) CPUCount(ctx context.Context) (int, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) Memory(ctx context.Context) (definitions.MemoryInfo, error) {
	return definitions.MemoryInfo{}, definitions.ErrUnsupported
}

func (r *IOSDevice) CPUUsage(ctx context.Context) (float64, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) CPUTemperature(ctx context.Context) (float64, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) CPUFrequency(ctx context.Context) (float64, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) Uptime(ctx context.Context) (time.Duration, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) ProcessCount(ctx context.Context) (int, error) {
	return 0, definitions.ErrUnsupported
}

func (r *IOSDevice) Architecture(ctx context.Context) (string, error) {
	values, err := r.info(ctx, "")
	if err != nil {
		return "", err
	}
	if arch := values["CPUArchitecture"]; arch != "" {
		return arch, nil
	}
	return "", definitions.ErrUnsupported
}

func (r *IOSDevice) OSInfo(ctx context.Context) (string, string, error) {
	values, err := r.info(ctx, "")
	if err != nil {
		return "", "", err
	}
	return values["ProductName"], values["ProductVersion"], nil
}

func (r *IOSDevice) LocationServiceEnabled(ctx context.Context) (bool, error) {
	return false, definitions.ErrUnsupported
}

func (r *IOSDevice) LocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	return definitions.LocationPermissionNotDetermined, definitions.ErrUnsupported
}

func (r *IOSDevice) RequestLocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	return definitions.LocationPermissionNotDetermined, definitions.ErrUnsupported
}

func (r *IOSDevice) CurrentPosition(ctx context.Context) (definitions.GeoPosition, error) {
	return definitions.GeoPosition{}, definitions.ErrUnsupported
}

func (r *IOSDevice) PermissionStatus(ctx context.Context, kind definitions.PermissionKind) (definitions.PermissionStatus, error) {
	return definitions.PermissionUnknown, definitions.ErrUnsupported
}

// OpenStream supports the battery stream only.
func (r *IOSDevice) OpenStream(ctx context.Context, kind definitions.StreamKind) (definitions.PlatformStream, error) {
	if kind != definitions.StreamBattery {
		return nil, fmt.Errorf("%s stream: %w", kind, definitions.ErrUnsupported)
	}
	poll := func(ctx context.Context) (definitions.StreamEvent, error) {
		state, err := r.BatteryState(ctx)
		if err != nil {
			return definitions.StreamEvent{}, err
		}
		return definitions.NewBatteryStateEvent(time.Now(), state), nil
	}
	return helper.NewPollStream(ctx, kind, r.streamInterval, poll, helper.BatteryStateChanged), nil
}
