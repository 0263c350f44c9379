package ios

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spance/devpulse/telemetry/definitions"
)

const deviceInfo = `ActivationState: Activated
BuildVersion: 21D61
CPUArchitecture: arm64e
DeviceClass: iPhone
DeviceName: Test iPhone
ProductName: iPhone OS
ProductType: iPhone15,2
ProductVersion: 17.3.1
SupportedDeviceFamilies:
 0: 1
`

const batteryInfo = `BatteryCurrentCapacity: 85
BatteryIsCharging: false
ExternalChargeCapable: false
ExternalConnected: false
FullyCharged: false
`

const diskInfo = `AmountDataAvailable: 60000000000
TotalDataAvailable: 62000000000
TotalDataCapacity: 110000000000
TotalDiskCapacity: 128000000000
`

func newTestDevice() *IOSDevice {
	outputs := map[string]string{
		"-u 00008120":                             deviceInfo,
		"-u 00008120 -q com.apple.mobile.battery": batteryInfo,
		"-u 00008120 -q com.apple.disk_usage":     diskInfo,
	}
	return NewIOSDevice(definitions.SessionConfig{DeviceType: "ios", DeviceID: "00008120"}).
		WithRunner(func(_ context.Context, _ string, args ...string) ([]byte, error) {
			out, ok := outputs[strings.Join(args, " ")]
			if !ok {
				return []byte("ERROR: Could not connect to lockdownd"), errors.New("exit status 1")
			}
			return []byte(out), nil
		})
}

func TestIOSIdentity(t *testing.T) {
	device := newTestDevice()

	identity, err := device.IOSDevice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "iPhone15,2", identity.Model)
	assert.Equal(t, "iPhone OS", identity.SystemName)
	assert.Equal(t, "17.3.1", identity.SystemVersion)
	assert.Equal(t, "21D61", identity.BuildVersion)

	arch, err := device.Architecture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arm64e", arch)
}

func TestIOSBattery(t *testing.T) {
	device := newTestDevice()
	ctx := context.Background()

	level, err := device.BatteryLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 85, level)

	state, err := device.BatteryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, definitions.BatteryDischarging, state)

	assert.Equal(t, definitions.BatteryFull, batteryState(map[string]string{"FullyCharged": "true", "BatteryIsCharging": "true"}))
	assert.Equal(t, definitions.BatteryCharging, batteryState(map[string]string{"BatteryIsCharging": "true"}))
	assert.Equal(t, definitions.BatteryUnknown, batteryState(map[string]string{}))

	_, err = device.BatteryTemperature(ctx)
	assert.ErrorIs(t, err, definitions.ErrUnsupported)
}

func TestIOSStorage(t *testing.T) {
	device := newTestDevice()
	ctx := context.Background()

	require.NoError(t, device.StorageAvailable(ctx))
	used, err := device.UsedSpace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(48000000000), used)

	total, err := device.TotalSpace(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(128000000000), total)
}

func TestIOSUnreachable(t *testing.T) {
	device := NewIOSDevice(definitions.SessionConfig{DeviceID: "gone"}).
		WithRunner(func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("exit status 1")
		})

	assert.ErrorIs(t, device.StorageAvailable(context.Background()), definitions.ErrProviderUnavailable)
	_, _, err := device.ConnectionType(context.Background())
	assert.Error(t, err)
}

func TestIOSStreams(t *testing.T) {
	device := newTestDevice()

	_, err := device.OpenStream(context.Background(), definitions.StreamAccelerometer)
	assert.ErrorIs(t, err, definitions.ErrUnsupported)

	stream, err := device.OpenStream(context.Background(), definitions.StreamBattery)
	require.NoError(t, err)
	event := <-stream.Events()
	require.NotNil(t, event.BatteryState)
	assert.Equal(t, definitions.BatteryDischarging, *event.BatteryState)
	require.NoError(t, stream.Close())
}
