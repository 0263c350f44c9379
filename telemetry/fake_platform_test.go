package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spance/devpulse/telemetry/definitions"
)

// fakePlatform is a scripted Platform. The zero values of its error fields
// mean success.
type fakePlatform struct {
	family string
	build  definitions.AndroidBuild

	batteryLevel int
	batteryState definitions.BatteryState
	batteryErr   error

	memory    definitions.MemoryInfo
	memoryErr error
	systemErr error

	totalBytes uint64
	usedBytes  uint64
	storageErr error

	connection definitions.ConnectionType
	connected  bool
	networkErr error
	wifiCalls  int

	locationEnabled     bool
	locationErr         error
	permission          definitions.LocationPermission
	requestedPermission definitions.LocationPermission
	requests            int
	position            definitions.GeoPosition
	positionErr         error
	positionBlocks      bool

	permissions    map[definitions.PermissionKind]definitions.PermissionStatus
	permissionErrs map[definitions.PermissionKind]error

	mu        sync.Mutex
	calls     []string
	streams   map[definitions.StreamKind]*fakeStream
	openErrs  map[definitions.StreamKind]error
	openCalls int
}

// newFakePlatform returns a healthy android device with location granted.
func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		family: "android",
		build: definitions.AndroidBuild{
			Model:        "Pixel 7",
			Brand:        "google",
			Manufacturer: "Google",
			Release:      "14",
			SDKInt:       34,
			BuildID:      "UQ1A.240105.004",
			Fingerprint:  "google/panther/panther:14/UQ1A.240105.004/11206848:user/release-keys",
		},
		batteryLevel:    85,
		batteryState:    definitions.BatteryDischarging,
		memory:          definitions.MemoryInfo{TotalMB: 4096, FreeMB: 2048, UsedMB: 2048},
		totalBytes:      128 << 30,
		usedBytes:       32 << 30,
		connection:      definitions.ConnectionWiFi,
		connected:       true,
		locationEnabled: true,
		permission:      definitions.LocationPermissionGranted,
		position:        definitions.GeoPosition{Latitude: 48.8566, Longitude: 2.3522, Accuracy: 12},
		permissions: map[definitions.PermissionKind]definitions.PermissionStatus{
			"location": definitions.PermissionGranted,
			"contacts": definitions.PermissionDenied,
		},
		streams: make(map[definitions.StreamKind]*fakeStream),
	}
}

func (f *fakePlatform) Family() string { return f.family }

// record notes the first provider call of each probe, in call order.
func (f *fakePlatform) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakePlatform) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlatform) AndroidBuild(ctx context.Context) (*definitions.AndroidBuild, error) {
	f.record("identity")
	build := f.build
	return &build, nil
}

func (f *fakePlatform) IOSDevice(ctx context.Context) (*definitions.IOSDevice, error) {
	return &definitions.IOSDevice{Name: "iPhone", Model: "iPhone15,2", SystemName: "iOS", SystemVersion: "17.2", BuildVersion: "21C62"}, nil
}

func (f *fakePlatform) DisplayMetrics(ctx context.Context) (definitions.DisplayMetrics, error) {
	return definitions.DisplayMetrics{PixelRatio: 2.625, WidthPx: 1080, HeightPx: 2400}, nil
}

func (f *fakePlatform) AppIdentity(ctx context.Context) (definitions.AppIdentity, error) {
	return definitions.AppIdentity{}, definitions.ErrUnsupported
}

func (f *fakePlatform) BatteryLevel(ctx context.Context) (int, error) {
	f.record("battery")
	return f.batteryLevel, f.batteryErr
}

func (f *fakePlatform) BatteryState(ctx context.Context) (definitions.BatteryState, error) {
	return f.batteryState, f.batteryErr
}

func (f *fakePlatform) BatterySaver(ctx context.Context) (bool, error) {
	return false, nil
}

func (f *fakePlatform) BatteryTemperature(ctx context.Context) (float64, error) {
	return 29.5, nil
}

func (f *fakePlatform) BatteryVoltage(ctx context.Context) (int, error) {
	return 0, definitions.ErrUnsupported
}

func (f *fakePlatform) BatteryHealth(ctx context.Context) (string, error) {
	return "good", nil
}

func (f *fakePlatform) StorageAvailable(ctx context.Context) error {
	f.record("storage")
	if f.storageErr != nil {
		return f.storageErr
	}
	return nil
}

func (f *fakePlatform) TotalSpace(ctx context.Context) (uint64, error) {
	return f.totalBytes, nil
}

func (f *fakePlatform) FreeSpace(ctx context.Context) (uint64, error) {
	return f.totalBytes - f.usedBytes, nil
}

func (f *fakePlatform) UsedSpace(ctx context.Context) (uint64, error) {
	return f.usedBytes, nil
}

func (f *fakePlatform) AvailableSpace(ctx context.Context) (uint64, error) {
	return 0, errors.New("statfs failed")
}

func (f *fakePlatform) ConnectionType(ctx context.Context) (definitions.ConnectionType, bool, error) {
	f.record("network")
	if f.networkErr != nil {
		return definitions.ConnectionNone, false, f.networkErr
	}
	return f.connection, f.connected, nil
}

func (f *fakePlatform) wifi() {
	f.mu.Lock()
	f.wifiCalls++
	f.mu.Unlock()
}

func (f *fakePlatform) WifiName(ctx context.Context) (string, error) {
	f.wifi()
	return "HomeNet", nil
}

func (f *fakePlatform) WifiIP(ctx context.Context) (string, error) {
	f.wifi()
	return "192.168.1.23", nil
}

func (f *fakePlatform) WifiBSSID(ctx context.Context) (string, error) {
	f.wifi()
	return "", errors.New("redacted")
}

func (f *fakePlatform) WifiGateway(ctx context.Context) (string, error) {
	f.wifi()
	return "192.168.1.1", nil
}

func (f *fakePlatform) WifiSubnet(ctx context.Context) (string, error) {
	f.wifi()
	return "192.168.1.0/24", nil
}

func (f *fakePlatform) WifiSignal(ctx context.Context) (int, error) {
	f.wifi()
	return -56, nil
}

func (f *fakePlatform) CPUCount(ctx context.Context) (int, error) {
	f.record("system")
	if f.systemErr != nil {
		return 0, f.systemErr
	}
	return 8, nil
}

func (f *fakePlatform) Memory(ctx context.Context) (definitions.MemoryInfo, error) {
	return f.memory, f.memoryErr
}

func (f *fakePlatform) CPUUsage(ctx context.Context) (float64, error) {
	return 12.5, nil
}

func (f *fakePlatform) CPUTemperature(ctx context.Context) (float64, error) {
	return 0, definitions.ErrUnsupported
}

func (f *fakePlatform) CPUFrequency(ctx context.Context) (float64, error) {
	return 2400, nil
}

func (f *fakePlatform) Uptime(ctx context.Context) (time.Duration, error) {
	return 5 * time.Hour, nil
}

func (f *fakePlatform) ProcessCount(ctx context.Context) (int, error) {
	return 412, nil
}

func (f *fakePlatform) Architecture(ctx context.Context) (string, error) {
	if f.systemErr != nil {
		return "", f.systemErr
	}
	return "arm64-v8a", nil
}

func (f *fakePlatform) OSInfo(ctx context.Context) (string, string, error) {
	if f.systemErr != nil {
		return "", "", f.systemErr
	}
	return "Android", f.build.Release, nil
}

func (f *fakePlatform) LocationServiceEnabled(ctx context.Context) (bool, error) {
	return f.locationEnabled, f.locationErr
}

func (f *fakePlatform) LocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	return f.permission, nil
}

func (f *fakePlatform) RequestLocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	f.requests++
	return f.requestedPermission, nil
}

func (f *fakePlatform) CurrentPosition(ctx context.Context) (definitions.GeoPosition, error) {
	f.record("position")
	if f.positionBlocks {
		<-ctx.Done()
		return definitions.GeoPosition{}, ctx.Err()
	}
	return f.position, f.positionErr
}

func (f *fakePlatform) PermissionStatus(ctx context.Context, kind definitions.PermissionKind) (definitions.PermissionStatus, error) {
	f.record("permissions")
	if err := f.permissionErrs[kind]; err != nil {
		return definitions.PermissionUnknown, err
	}
	status, ok := f.permissions[kind]
	if !ok {
		return definitions.PermissionUnknown, definitions.ErrUnsupported
	}
	return status, nil
}

func (f *fakePlatform) OpenStream(ctx context.Context, kind definitions.StreamKind) (definitions.PlatformStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if err := f.openErrs[kind]; err != nil {
		return nil, err
	}
	stream := newFakeStream()
	f.streams[kind] = stream
	return stream, nil
}

// stream returns the stream opened for kind.
func (f *fakePlatform) stream(kind definitions.StreamKind) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[kind]
}

// activeStreams counts opened streams that have not been closed.
func (f *fakePlatform) activeStreams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := 0
	for _, s := range f.streams {
		if !s.isClosed() {
			active++
		}
	}
	return active
}

func (f *fakePlatform) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	return []definitions.DeviceInfo{{DeviceID: "emulator-5554", Status: "device", Link: definitions.USB}}, nil
}

func (f *fakePlatform) Connect(ctx context.Context, address string) (string, error) {
	return "", definitions.ErrUnsupported
}

func (f *fakePlatform) Disconnect(ctx context.Context, address string) (string, error) {
	return "", definitions.ErrUnsupported
}

// fakeStream is an unbuffered event source driven by the test.
type fakeStream struct {
	events chan definitions.StreamEvent

	mu     sync.Mutex
	closed bool
	closes int
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan definitions.StreamEvent)}
}

func (s *fakeStream) Events() <-chan definitions.StreamEvent {
	return s.events
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fixedClock always returns the same instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// sensorEvent builds an accelerometer event whose X carries n.
func sensorEvent(n int) definitions.StreamEvent {
	return definitions.NewSensorEvent(definitions.StreamAccelerometer, time.Unix(int64(n), 0), definitions.SensorReading{X: float64(n)})
}
