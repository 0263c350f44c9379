package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spance/devpulse/constants"
	"github.com/spance/devpulse/telemetry/definitions"
)

// Probes holds one probe per snapshot section. Location is run on its own
// by the aggregator; the other six form the fail-fast set.
type Probes struct {
	Identity    Probe[*definitions.DeviceIdentity]
	Battery     Probe[*definitions.BatteryStatus]
	Network     Probe[*definitions.NetworkStatus]
	System      Probe[*definitions.SystemResources]
	Storage     Probe[*definitions.StorageStatus]
	Location    Probe[*definitions.GeoPosition]
	Permissions Probe[*definitions.PermissionSet]
}

// NewProbes builds the concrete probes on top of a platform backend.
func NewProbes(platform Platform, cfg definitions.SessionConfig) Probes {
	cfg = cfg.WithDefaults()
	return Probes{
		Identity:    NewIdentityProbe(platform),
		Battery:     NewBatteryProbe(platform),
		Network:     NewNetworkProbe(platform, cfg.MeasureSpeed),
		System:      NewSystemProbe(platform),
		Storage:     NewStorageProbe(platform),
		Location:    NewLocationProbe(platform, cfg.LocationTimeout),
		Permissions: NewPermissionsProbe(platform, constants.PermissionKinds()),
	}
}

func NewIdentityProbe(p IdentityProvider) Probe[*definitions.DeviceIdentity] {
	return NewProbe(ProbeIdentity, func(ctx context.Context) (*definitions.DeviceIdentity, error) {
		var identity definitions.DeviceIdentity

		switch family := definitions.PlatformFamily(p.Family()); family {
		case definitions.PlatformAndroid:
			build, err := p.AndroidBuild(ctx)
			if err != nil {
				return nil, newProbeError(ProbeIdentity, err, "read android build: %v", err)
			}
			identity = definitions.DeviceIdentity{
				Platform:         family,
				Model:            build.Model,
				Brand:            build.Brand,
				Manufacturer:     build.Manufacturer,
				OSVersion:        build.Release,
				SDKVersion:       strconv.Itoa(build.SDKInt),
				BuildID:          build.BuildID,
				IsPhysicalDevice: !build.IsEmulator(),
			}
		case definitions.PlatformIOS:
			device, err := p.IOSDevice(ctx)
			if err != nil {
				return nil, newProbeError(ProbeIdentity, err, "read ios device: %v", err)
			}
			identity = definitions.DeviceIdentity{
				Platform:         family,
				Model:            device.Model,
				Brand:            "Apple",
				Manufacturer:     "Apple",
				OSVersion:        device.SystemVersion,
				SDKVersion:       device.SystemName + " " + device.SystemVersion,
				BuildID:          device.BuildVersion,
				IsPhysicalDevice: !device.IsSimulator,
			}
		default:
			return nil, newProbeError(ProbeIdentity, ErrUnsupportedPlatform, "unsupported platform %q", family)
		}

		if display, err := p.DisplayMetrics(ctx); err == nil {
			identity.Display = display
		} else {
			log.Debug().Err(err).Msg("display metrics unavailable")
		}
		if app, err := p.AppIdentity(ctx); err == nil {
			identity.App = app
		} else {
			log.Debug().Err(err).Msg("app identity unavailable")
		}
		return &identity, nil
	})
}

func NewBatteryProbe(p BatteryProvider) Probe[*definitions.BatteryStatus] {
	return NewProbe(ProbeBattery, func(ctx context.Context) (*definitions.BatteryStatus, error) {
		level, err := p.BatteryLevel(ctx)
		if err != nil {
			return nil, newProbeError(ProbeBattery, err, "read battery level: %v", err)
		}
		state, err := p.BatteryState(ctx)
		if err != nil {
			return nil, newProbeError(ProbeBattery, err, "read battery state: %v", err)
		}

		status := &definitions.BatteryStatus{Level: level, State: state}
		if saver, err := p.BatterySaver(ctx); err == nil {
			status.SaverMode = saver
		} else {
			logDegraded(ProbeBattery, "saver mode", err)
		}
		status.TemperatureC = bestEffort(ctx, ProbeBattery, "temperature", p.BatteryTemperature)
		status.VoltageMV = bestEffort(ctx, ProbeBattery, "voltage", p.BatteryVoltage)
		status.Health = bestEffort(ctx, ProbeBattery, "health", p.BatteryHealth)
		return status, nil
	})
}

func NewStorageProbe(p StorageProvider) Probe[*definitions.StorageStatus] {
	return NewProbe(ProbeStorage, func(ctx context.Context) (*definitions.StorageStatus, error) {
		if err := p.StorageAvailable(ctx); err != nil {
			return nil, newProbeError(ProbeStorage, err, "storage provider unavailable: %v", err)
		}
		return &definitions.StorageStatus{
			TotalBytes:     bestEffort(ctx, ProbeStorage, "total", p.TotalSpace),
			FreeBytes:      bestEffort(ctx, ProbeStorage, "free", p.FreeSpace),
			UsedBytes:      bestEffort(ctx, ProbeStorage, "used", p.UsedSpace),
			AvailableBytes: bestEffort(ctx, ProbeStorage, "available", p.AvailableSpace),
		}, nil
	})
}

func NewNetworkProbe(p ConnectivityProvider, measureSpeed bool) Probe[*definitions.NetworkStatus] {
	return NewProbe(ProbeNetwork, func(ctx context.Context) (*definitions.NetworkStatus, error) {
		kind, connected, err := p.ConnectionType(ctx)
		if err != nil {
			return nil, newProbeError(ProbeNetwork, err, "read connection type: %v", err)
		}

		var wifi *definitions.WifiDetails
		if kind == definitions.ConnectionWiFi {
			wifi = &definitions.WifiDetails{
				Name:      bestEffort(ctx, ProbeNetwork, "wifi name", p.WifiName),
				IP:        bestEffort(ctx, ProbeNetwork, "wifi ip", p.WifiIP),
				BSSID:     bestEffort(ctx, ProbeNetwork, "wifi bssid", p.WifiBSSID),
				Gateway:   bestEffort(ctx, ProbeNetwork, "wifi gateway", p.WifiGateway),
				Subnet:    bestEffort(ctx, ProbeNetwork, "wifi subnet", p.WifiSubnet),
				SignalDBm: bestEffort(ctx, ProbeNetwork, "wifi signal", p.WifiSignal),
			}
		}

		var speed *float64
		if meter, ok := p.(SpeedMeter); ok && measureSpeed && connected {
			speed = bestEffort(ctx, ProbeNetwork, "speed", meter.MeasureSpeed)
		}

		status := definitions.NewNetworkStatus(kind, connected, wifi, speed)
		return &status, nil
	})
}

// NewSystemProbe never fails on a sub-call: each one degrades its own field.
func NewSystemProbe(p SystemProvider) Probe[*definitions.SystemResources] {
	return NewProbe(ProbeSystem, func(ctx context.Context) (*definitions.SystemResources, error) {
		resources := &definitions.SystemResources{}
		if cores, err := p.CPUCount(ctx); err == nil {
			resources.CPUCores = &cores
		} else {
			logDegraded(ProbeSystem, "cpu count", err)
		}
		if mem, err := p.Memory(ctx); err == nil {
			resources.TotalRAMMB = &mem.TotalMB
			resources.FreeRAMMB = &mem.FreeMB
			resources.UsedRAMMB = &mem.UsedMB
		} else {
			logDegraded(ProbeSystem, "memory", err)
		}
		if arch, err := p.Architecture(ctx); err == nil {
			resources.Architecture = &arch
		} else {
			logDegraded(ProbeSystem, "architecture", err)
		}
		if name, version, err := p.OSInfo(ctx); err == nil {
			resources.OSName, resources.OSVersion = &name, &version
		} else {
			logDegraded(ProbeSystem, "os info", err)
		}
		resources.CPUUsagePercent = bestEffort(ctx, ProbeSystem, "cpu usage", p.CPUUsage)
		resources.CPUTemperatureC = bestEffort(ctx, ProbeSystem, "cpu temperature", p.CPUTemperature)
		resources.CPUFrequencyMHz = bestEffort(ctx, ProbeSystem, "cpu frequency", p.CPUFrequency)
		resources.Uptime = bestEffort(ctx, ProbeSystem, "uptime", p.Uptime)
		resources.ProcessCount = bestEffort(ctx, ProbeSystem, "process count", p.ProcessCount)
		return resources, nil
	})
}

// NewLocationProbe checks services, then permission (requesting it once),
// then acquires a fix bounded by timeout. Every failure carries a
// *LocationUnavailable.
func NewLocationProbe(p LocationProvider, timeout time.Duration) Probe[*definitions.GeoPosition] {
	return NewProbe(ProbeLocation, func(ctx context.Context) (*definitions.GeoPosition, error) {
		enabled, err := p.LocationServiceEnabled(ctx)
		if err != nil {
			return nil, locationError(LocationOther, err)
		}
		if !enabled {
			return nil, locationError(LocationServiceDisabled, nil)
		}

		permission, err := p.LocationPermission(ctx)
		if err != nil {
			return nil, locationError(LocationOther, err)
		}
		if permission == definitions.LocationPermissionDenied || permission == definitions.LocationPermissionNotDetermined {
			permission, err = p.RequestLocationPermission(ctx)
			if err != nil {
				return nil, locationError(LocationOther, err)
			}
		}
		switch permission {
		case definitions.LocationPermissionGranted:
		case definitions.LocationPermissionDeniedForever:
			return nil, locationError(LocationPermissionDeniedForever, nil)
		default:
			return nil, locationError(LocationPermissionDenied, nil)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		position, err := p.CurrentPosition(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, locationError(LocationTimeout, err)
			}
			return nil, locationError(LocationOther, err)
		}
		return &position, nil
	})
}

func locationError(reason LocationReason, err error) *ProbeError {
	unavailable := &LocationUnavailable{Reason: reason, Err: err}
	return &ProbeError{Source: ProbeLocation, Message: unavailable.Error(), Err: unavailable}
}

// NewPermissionsProbe queries every kind in kinds. Kinds whose query fails
// or that the platform does not support are left out of the set.
func NewPermissionsProbe(p PermissionProvider, kinds []string) Probe[*definitions.PermissionSet] {
	return NewProbe(ProbePermissions, func(ctx context.Context) (*definitions.PermissionSet, error) {
		statuses := make(map[definitions.PermissionKind]definitions.PermissionStatus, len(kinds))
		for _, name := range kinds {
			kind := definitions.PermissionKind(name)
			status, err := p.PermissionStatus(ctx, kind)
			if err != nil {
				if !errors.Is(err, definitions.ErrUnsupported) {
					log.Debug().Err(err).Str("permission", name).Msg("permission query failed, omitted")
				}
				continue
			}
			statuses[kind] = status
		}
		set := definitions.NewPermissionSet(statuses)
		return &set, nil
	})
}

// bestEffort runs one optional sub-call and returns nil when it fails.
func bestEffort[T any](ctx context.Context, probe ProbeName, field string, read func(context.Context) (T, error)) *T {
	v, err := read(ctx)
	if err != nil {
		logDegraded(probe, field, err)
		return nil
	}
	return &v
}

func logDegraded(probe ProbeName, field string, err error) {
	if errors.Is(err, definitions.ErrUnsupported) {
		return
	}
	log.Debug().Err(err).Str("probe", string(probe)).Str("field", field).Msg("field degraded to null")
}
