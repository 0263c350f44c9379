package definitions

import (
	"fmt"
	"time"
)

type StreamKind string

const (
	StreamAccelerometer StreamKind = "accelerometer"
	StreamGyroscope     StreamKind = "gyroscope"
	StreamMagnetometer  StreamKind = "magnetometer"
	StreamBattery       StreamKind = "battery"
	StreamConnectivity  StreamKind = "connectivity"
)

// AllStreamKinds lists every live stream in a stable order.
func AllStreamKinds() []StreamKind {
	return []StreamKind{
		StreamAccelerometer,
		StreamGyroscope,
		StreamMagnetometer,
		StreamBattery,
		StreamConnectivity,
	}
}

func ParseStreamKind(s string) (StreamKind, error) {
	for _, kind := range AllStreamKinds() {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown stream kind: %q", s)
}

func (k StreamKind) IsSensor() bool {
	return k == StreamAccelerometer || k == StreamGyroscope || k == StreamMagnetometer
}

// SensorReading is one three-axis sample. Units follow the platform:
// m/s² for the accelerometer, rad/s for the gyroscope, µT for the magnetometer.
type SensorReading struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// StreamEvent is one incremental update on a live stream. Exactly one of
// Sensor, BatteryState and Connectivity is set, matching Kind.
type StreamEvent struct {
	Kind         StreamKind      `json:"kind"`
	Timestamp    time.Time       `json:"timestamp"`
	Sensor       *SensorReading  `json:"sensor,omitempty"`
	BatteryState *BatteryState   `json:"battery_state,omitempty"`
	Connectivity *ConnectionType `json:"connectivity,omitempty"`
}

func NewSensorEvent(kind StreamKind, at time.Time, reading SensorReading) StreamEvent {
	return StreamEvent{Kind: kind, Timestamp: at, Sensor: &reading}
}

func NewBatteryStateEvent(at time.Time, state BatteryState) StreamEvent {
	return StreamEvent{Kind: StreamBattery, Timestamp: at, BatteryState: &state}
}

func NewConnectivityEvent(at time.Time, kind ConnectionType) StreamEvent {
	return StreamEvent{Kind: StreamConnectivity, Timestamp: at, Connectivity: &kind}
}

func (e StreamEvent) ToMap() map[string]any {
	out := map[string]any{
		"kind":      string(e.Kind),
		"timestamp": e.Timestamp,
	}
	if e.Sensor != nil {
		out["sensor"] = map[string]any{"x": e.Sensor.X, "y": e.Sensor.Y, "z": e.Sensor.Z}
	}
	if e.BatteryState != nil {
		out["battery_state"] = string(*e.BatteryState)
	}
	if e.Connectivity != nil {
		out["connectivity"] = string(*e.Connectivity)
	}
	return out
}

// PlatformStream is one open subscription to a platform event source. Events
// is closed after Close returns.
type PlatformStream interface {
	Events() <-chan StreamEvent
	Close() error
}
