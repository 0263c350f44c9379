package definitions

import "time"

const (
	DefaultLocationTimeout = 15 * time.Second
	DefaultCommandTimeout  = 10 * time.Second
	DefaultStreamInterval  = 2 * time.Second
	DefaultSensorInterval  = 200 * time.Millisecond

	// DefaultAppPackage is the Android package whose permissions are reported
	// when none is configured.
	DefaultAppPackage = "com.android.shell"
)

// SessionConfig configures one dashboard session: which device to read and
// how long the platform calls may take.
type SessionConfig struct {
	DeviceType      string
	DeviceID        string
	ADBPath         string
	AppPackage      string
	LocationTimeout time.Duration
	CommandTimeout  time.Duration
	StreamInterval  time.Duration
	SensorInterval  time.Duration
	MeasureSpeed    bool
}

// WithDefaults fills zero durations with the package defaults.
func (c SessionConfig) WithDefaults() SessionConfig {
	if c.LocationTimeout <= 0 {
		c.LocationTimeout = DefaultLocationTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.StreamInterval <= 0 {
		c.StreamInterval = DefaultStreamInterval
	}
	if c.SensorInterval <= 0 {
		c.SensorInterval = DefaultSensorInterval
	}
	if c.ADBPath == "" {
		c.ADBPath = "adb"
	}
	if c.AppPackage == "" {
		c.AppPackage = DefaultAppPackage
	}
	return c
}
