package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spance/devpulse/telemetry/definitions"
)

func TestIdentityProbeAndroid(t *testing.T) {
	identity, err := NewIdentityProbe(newFakePlatform()).Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, definitions.PlatformAndroid, identity.Platform)
	assert.Equal(t, "Pixel 7", identity.Model)
	assert.Equal(t, "34", identity.SDKVersion)
	assert.True(t, identity.IsPhysicalDevice)
	assert.Equal(t, 1080, identity.Display.WidthPx)
	assert.Empty(t, identity.App.Name)
}

func TestIdentityProbeEmulator(t *testing.T) {
	p := newFakePlatform()
	p.build.Fingerprint = "google/sdk_gphone64_arm64/emu64a:14/UE1A.230829.036/10720693:userdebug/dev-keys"

	identity, err := NewIdentityProbe(p).Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, identity.IsPhysicalDevice)
}

func TestIdentityProbeIOS(t *testing.T) {
	p := newFakePlatform()
	p.family = "ios"

	identity, err := NewIdentityProbe(p).Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, definitions.PlatformIOS, identity.Platform)
	assert.Equal(t, "Apple", identity.Brand)
	assert.Equal(t, "iPhone15,2", identity.Model)
	assert.Equal(t, "17.2", identity.OSVersion)
	assert.Equal(t, "21C62", identity.BuildID)
}

func TestIdentityProbeUnsupportedPlatform(t *testing.T) {
	p := newFakePlatform()
	p.family = "windows"

	_, err := NewIdentityProbe(p).Probe(context.Background())

	var probeErr *ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.Equal(t, ProbeIdentity, probeErr.Source)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestBatteryProbeOptionalFields(t *testing.T) {
	status, err := NewBatteryProbe(newFakePlatform()).Probe(context.Background())
	require.NoError(t, err)

	require.NotNil(t, status.TemperatureC)
	assert.InDelta(t, 29.5, *status.TemperatureC, 1e-9)
	assert.Nil(t, status.VoltageMV)
	require.NotNil(t, status.Health)
	assert.Equal(t, "good", *status.Health)
}

func TestStorageProbeDegradesFields(t *testing.T) {
	status, err := NewStorageProbe(newFakePlatform()).Probe(context.Background())
	require.NoError(t, err)

	require.NotNil(t, status.TotalBytes)
	assert.Equal(t, uint64(128<<30), *status.TotalBytes)
	assert.Nil(t, status.AvailableBytes)
	assert.InDelta(t, 25.0, status.UsagePercentage(), 1e-9)
}

func TestStorageProbeUnavailable(t *testing.T) {
	p := newFakePlatform()
	p.storageErr = definitions.ErrProviderUnavailable

	_, err := NewStorageProbe(p).Probe(context.Background())
	assert.ErrorIs(t, err, definitions.ErrProviderUnavailable)
}

func TestNetworkProbeWifiDetails(t *testing.T) {
	status, err := NewNetworkProbe(newFakePlatform(), true).Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, definitions.ConnectionWiFi, status.ConnectionType)
	require.NotNil(t, status.WifiName)
	assert.Equal(t, "HomeNet", *status.WifiName)
	assert.Nil(t, status.WifiBSSID)
	require.NotNil(t, status.WifiSignalDBm)
	assert.Equal(t, -56, *status.WifiSignalDBm)
	assert.Nil(t, status.SpeedMbps)
}

func TestNetworkProbeNonWifiHasNoWifiFields(t *testing.T) {
	kinds := []definitions.ConnectionType{
		definitions.ConnectionCellular,
		definitions.ConnectionEthernet,
		definitions.ConnectionNone,
		definitions.ConnectionOther,
	}
	for _, kind := range kinds {
		t.Run(string(kind), func(t *testing.T) {
			p := newFakePlatform()
			p.connection = kind
			p.connected = kind != definitions.ConnectionNone

			status, err := NewNetworkProbe(p, false).Probe(context.Background())
			require.NoError(t, err)

			assert.Equal(t, kind, status.ConnectionType)
			assert.Nil(t, status.WifiName)
			assert.Nil(t, status.WifiIP)
			assert.Nil(t, status.WifiBSSID)
			assert.Nil(t, status.WifiGateway)
			assert.Nil(t, status.WifiSubnet)
			assert.Nil(t, status.WifiSignalDBm)
			assert.Zero(t, p.wifiCalls)
		})
	}
}

// meteredPlatform adds link speed measurement to the fake.
type meteredPlatform struct {
	*fakePlatform
	calls int
}

func (m *meteredPlatform) MeasureSpeed(ctx context.Context) (float64, error) {
	m.calls++
	return 433, nil
}

func TestNetworkProbeSpeed(t *testing.T) {
	p := &meteredPlatform{fakePlatform: newFakePlatform()}

	status, err := NewNetworkProbe(p, true).Probe(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status.SpeedMbps)
	assert.InDelta(t, 433, *status.SpeedMbps, 1e-9)

	status, err = NewNetworkProbe(p, false).Probe(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.SpeedMbps)
	assert.Equal(t, 1, p.calls)
}

func TestSystemProbeDegradesMemory(t *testing.T) {
	p := newFakePlatform()
	p.memoryErr = errors.New("meminfo unreadable")

	resources, err := NewSystemProbe(p).Probe(context.Background())
	require.NoError(t, err)

	require.NotNil(t, resources.CPUCores)
	assert.Equal(t, 8, *resources.CPUCores)
	assert.Nil(t, resources.TotalRAMMB)
	assert.Nil(t, resources.CPUTemperatureC)
	assert.Zero(t, resources.RAMUsagePercentage())
	require.NotNil(t, resources.Uptime)
	assert.Equal(t, 5*time.Hour, *resources.Uptime)
}

func TestSystemResourcesLeaveUnreadableFieldsUnknown(t *testing.T) {
	p := newFakePlatform()
	p.systemErr = errors.New("getprop unavailable")

	resources, err := NewSystemProbe(p).Probe(context.Background())
	require.NoError(t, err)

	assert.Nil(t, resources.CPUCores)
	assert.Nil(t, resources.Architecture)
	assert.Nil(t, resources.OSName)
	assert.Nil(t, resources.OSVersion)
	require.NotNil(t, resources.TotalRAMMB)

	out := resources.ToMap()
	assert.Nil(t, out["cpu_cores"])
	assert.Nil(t, out["architecture"])
	assert.Nil(t, out["os_name"])
}

func TestPermissionsProbeOmitsFailedKinds(t *testing.T) {
	p := newFakePlatform()
	p.permissions["sms"] = definitions.PermissionGranted
	p.permissionErrs = map[definitions.PermissionKind]error{
		"sms": errors.New("dumpsys package timed out"),
	}
	kinds := []string{"location", "contacts", "sms", "bluetooth"}

	set, err := NewPermissionsProbe(p, kinds).Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []definitions.PermissionKind{"contacts", "location"}, set.Kinds())
	_, ok := set.Status("sms")
	assert.False(t, ok)
	assert.Equal(t, 1, set.GrantedCount())
	assert.InDelta(t, 50.0, set.GrantedPercentage(), 1e-9)
}

func TestPermissionsProbeEmpty(t *testing.T) {
	set, err := NewPermissionsProbe(newFakePlatform(), nil).Probe(context.Background())
	require.NoError(t, err)
	assert.Zero(t, set.TotalCount())
	assert.Zero(t, set.GrantedPercentage())
}

func TestLocationProbeReasons(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(p *fakePlatform)
		reason LocationReason
	}{
		{
			name:   "service disabled",
			setup:  func(p *fakePlatform) { p.locationEnabled = false },
			reason: LocationServiceDisabled,
		},
		{
			name: "denied after request",
			setup: func(p *fakePlatform) {
				p.permission = definitions.LocationPermissionDenied
				p.requestedPermission = definitions.LocationPermissionDenied
			},
			reason: LocationPermissionDenied,
		},
		{
			name: "denied forever after request",
			setup: func(p *fakePlatform) {
				p.permission = definitions.LocationPermissionNotDetermined
				p.requestedPermission = definitions.LocationPermissionDeniedForever
			},
			reason: LocationPermissionDeniedForever,
		},
		{
			name:   "denied forever without request",
			setup:  func(p *fakePlatform) { p.permission = definitions.LocationPermissionDeniedForever },
			reason: LocationPermissionDeniedForever,
		},
		{
			name:   "timeout",
			setup:  func(p *fakePlatform) { p.positionBlocks = true },
			reason: LocationTimeout,
		},
		{
			name:   "provider error",
			setup:  func(p *fakePlatform) { p.positionErr = errors.New("gnss hal crashed") },
			reason: LocationOther,
		},
		{
			name:   "service query error",
			setup:  func(p *fakePlatform) { p.locationErr = errors.New("settings unavailable") },
			reason: LocationOther,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newFakePlatform()
			tc.setup(p)

			position, err := NewLocationProbe(p, 20*time.Millisecond).Probe(context.Background())
			assert.Nil(t, position)

			var probeErr *ProbeError
			require.ErrorAs(t, err, &probeErr)
			assert.Equal(t, ProbeLocation, probeErr.Source)

			var unavailable *LocationUnavailable
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, tc.reason, unavailable.Reason)
		})
	}
}

func TestLocationProbeRequestsPermissionOnce(t *testing.T) {
	p := newFakePlatform()
	p.permission = definitions.LocationPermissionNotDetermined
	p.requestedPermission = definitions.LocationPermissionGranted

	position, err := NewLocationProbe(p, time.Second).Probe(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.3522, position.Longitude, 1e-9)
	assert.Equal(t, 1, p.requests)
}

func TestLocationProbeGrantedSkipsRequest(t *testing.T) {
	p := newFakePlatform()

	_, err := NewLocationProbe(p, time.Second).Probe(context.Background())
	require.NoError(t, err)
	assert.Zero(t, p.requests)
}
