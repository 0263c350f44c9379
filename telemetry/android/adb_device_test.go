package android

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spance/devpulse/telemetry/definitions"
	"github.com/spance/devpulse/telemetry/helper"
)

// scriptedRunner answers adb invocations from a table keyed by the command
// after the device prefix.
type scriptedRunner struct {
	mu      sync.Mutex
	outputs map[string]string
	calls   map[string]int
}

func newScriptedRunner(outputs map[string]string) *scriptedRunner {
	return &scriptedRunner{outputs: outputs, calls: make(map[string]int)}
}

func (s *scriptedRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	if len(args) >= 2 && args[0] == "-s" {
		args = args[2:]
	}
	key := strings.Join(args, " ")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	out, ok := s.outputs[key]
	if !ok {
		return []byte("/system/bin/sh: not found"), errors.New("exit status 127")
	}
	return []byte(out), nil
}

func (s *scriptedRunner) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func newTestDevice(outputs map[string]string) (*ADBDevice, *scriptedRunner) {
	runner := newScriptedRunner(outputs)
	device := NewADBDevice(definitions.SessionConfig{
		DeviceType:     "adb",
		DeviceID:       "emulator-5554",
		AppPackage:     "com.example.app",
		StreamInterval: 10 * time.Millisecond,
	}).WithRunner(runner.run)
	return device, runner
}

func TestBatteryReadsShareOneDumpsys(t *testing.T) {
	device, runner := newTestDevice(map[string]string{
		"shell dumpsys battery": dumpsysBattery,
	})
	ctx := context.Background()

	level, err := device.BatteryLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, 85, level)

	state, err := device.BatteryState(ctx)
	require.NoError(t, err)
	assert.Equal(t, definitions.BatteryDischarging, state)

	temp, err := device.BatteryTemperature(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 29.5, temp, 0.001)

	health, err := device.BatteryHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "good", health)

	assert.Equal(t, 1, runner.count("shell dumpsys battery"))
}

func TestStorageUnavailable(t *testing.T) {
	device, _ := newTestDevice(map[string]string{})

	err := device.StorageAvailable(context.Background())
	assert.ErrorIs(t, err, definitions.ErrProviderUnavailable)
}

func TestStorageSizes(t *testing.T) {
	device, _ := newTestDevice(map[string]string{
		"shell stat -f -c %b %f %a %S /data": "1000 400 350 4096\n",
	})
	ctx := context.Background()

	require.NoError(t, device.StorageAvailable(ctx))
	total, err := device.TotalSpace(ctx)
	require.NoError(t, err)
	used, err := device.UsedSpace(ctx)
	require.NoError(t, err)
	available, err := device.AvailableSpace(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000*4096), total)
	assert.Equal(t, uint64(600*4096), used)
	assert.Equal(t, uint64(350*4096), available)
}

func TestPermissionStatusFromDevice(t *testing.T) {
	device, _ := newTestDevice(map[string]string{
		"shell getprop":                         getpropOutput,
		"shell dumpsys package com.example.app": packagePermissions,
	})
	ctx := context.Background()

	status, err := device.PermissionStatus(ctx, "contacts")
	require.NoError(t, err)
	assert.Equal(t, definitions.PermissionLimited, status)

	_, err = device.PermissionStatus(ctx, "not_a_kind")
	assert.ErrorIs(t, err, definitions.ErrUnsupported)

	app, err := device.AppIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", app.Package)
	assert.Equal(t, "app", app.Name)
}

func TestLocationServiceFallback(t *testing.T) {
	device, _ := newTestDevice(map[string]string{
		"shell settings get secure location_mode": "null\n",
		"shell cmd location is-location-enabled":  "true\n",
	})

	enabled, err := device.LocationServiceEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestCurrentPositionTimesOut(t *testing.T) {
	device, _ := newTestDevice(map[string]string{
		"shell dumpsys location": "Last Known Locations:\n",
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := device.CurrentPosition(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBatteryStreamEmitsCurrentState(t *testing.T) {
	device, _ := newTestDevice(map[string]string{
		"shell dumpsys battery": dumpsysBattery,
	})

	stream, err := device.OpenStream(context.Background(), definitions.StreamBattery)
	require.NoError(t, err)
	defer stream.Close()

	select {
	case event := <-stream.Events():
		require.NotNil(t, event.BatteryState)
		assert.Equal(t, definitions.BatteryDischarging, *event.BatteryState)
	case <-time.After(time.Second):
		t.Fatal("no battery event")
	}

	require.NoError(t, stream.Close())
	_, open := <-stream.Events()
	assert.False(t, open)
}

func TestSensorStreamsShareOneDump(t *testing.T) {
	runner := newScriptedRunner(map[string]string{
		"shell dumpsys sensorservice": sensorserviceOutput,
	})
	device := NewADBDevice(definitions.SessionConfig{
		DeviceID:       "emulator-5554",
		SensorInterval: 10 * time.Second,
	}).WithRunner(runner.run)

	ctx := context.Background()
	for _, kind := range []definitions.StreamKind{
		definitions.StreamAccelerometer,
		definitions.StreamGyroscope,
		definitions.StreamMagnetometer,
	} {
		event, err := device.sensorPoller(kind)(ctx)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, event.Kind)
		require.NotNil(t, event.Sensor, kind)
	}
	assert.Equal(t, 1, runner.count("shell dumpsys sensorservice"))
}

func TestSensorPollerSkipsSeenEvents(t *testing.T) {
	runner := newScriptedRunner(map[string]string{
		"shell dumpsys sensorservice": sensorserviceOutput,
	})
	device := NewADBDevice(definitions.SessionConfig{
		DeviceID:       "emulator-5554",
		SensorInterval: 2 * time.Millisecond,
	}).WithRunner(runner.run)

	poll := device.sensorPoller(definitions.StreamGyroscope)
	_, err := poll(context.Background())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = poll(context.Background())
	assert.ErrorIs(t, err, helper.ErrNoSample)
	assert.Equal(t, 2, runner.count("shell dumpsys sensorservice"))
}
