package android

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spance/devpulse/telemetry/definitions"
	"github.com/spance/devpulse/telemetry/helper"
)

// OpenStream polls dumpsys for the requested kind. Sensor streams read the
// sensor service's recent-event ring, which only fills while some client on
// the device has the sensor enabled.
func (r *ADBDevice) OpenStream(ctx context.Context, kind definitions.StreamKind) (definitions.PlatformStream, error) {
	switch kind {
	case definitions.StreamBattery:
		return helper.NewPollStream(ctx, kind, r.streamInterval, r.pollBattery, helper.BatteryStateChanged), nil
	case definitions.StreamConnectivity:
		return helper.NewPollStream(ctx, kind, r.streamInterval, r.pollConnectivity, helper.ConnectivityChanged), nil
	case definitions.StreamAccelerometer, definitions.StreamGyroscope, definitions.StreamMagnetometer:
		return helper.NewPollStream(ctx, kind, r.sensorInterval, r.sensorPoller(kind), nil), nil
	default:
		return nil, fmt.Errorf("unknown stream kind: %s", kind)
	}
}

func (r *ADBDevice) pollBattery(ctx context.Context) (definitions.StreamEvent, error) {
	state, err := r.BatteryState(ctx)
	if err != nil {
		return definitions.StreamEvent{}, err
	}
	return definitions.NewBatteryStateEvent(time.Now(), state), nil
}

func (r *ADBDevice) pollConnectivity(ctx context.Context) (definitions.StreamEvent, error) {
	kind, _, err := r.ConnectionType(ctx)
	if err != nil {
		return definitions.StreamEvent{}, err
	}
	return definitions.NewConnectivityEvent(time.Now(), kind), nil
}

// sensorPoller returns a PollFunc that reports each sensor event once. One
// dump serves every sensor kind polled within half a sensor interval.
func (r *ADBDevice) sensorPoller(kind definitions.StreamKind) helper.PollFunc {
	var lastTS float64
	return func(ctx context.Context) (definitions.StreamEvent, error) {
		output, err := r.cachedShellFor(ctx, r.sensorInterval/2, "Sensors", "dumpsys", "sensorservice")
		if err != nil {
			return definitions.StreamEvent{}, err
		}
		sample, ok := parseSensorEvents(output)[kind]
		if !ok || sample.TS == lastTS {
			return definitions.StreamEvent{}, helper.ErrNoSample
		}
		lastTS = sample.TS
		return definitions.NewSensorEvent(kind, time.Now(), sample.Reading), nil
	}
}

type sensorSample struct {
	TS      float64
	Reading definitions.SensorReading
}

var (
	sensorHeader = regexp.MustCompile(`^(\S.*?):\s*last \d+ events`)
	sensorEvent  = regexp.MustCompile(`\(ts=([\d.]+)[^)]*\)\s*(-?[\d.]+),\s*(-?[\d.]+),\s*(-?[\d.]+)`)
)

// sensorMarkers maps sensor names in dumpsys to stream kinds. Uncalibrated
// and derived sensors are skipped.
var sensorMarkers = map[definitions.StreamKind][]string{
	definitions.StreamAccelerometer: {"accelerometer"},
	definitions.StreamGyroscope:     {"gyroscope"},
	definitions.StreamMagnetometer:  {"magnetometer", "magnetic field"},
}

func sensorKind(name string) (definitions.StreamKind, bool) {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "uncalibrated") || strings.Contains(lower, "linear") {
		return "", false
	}
	for kind, markers := range sensorMarkers {
		for _, marker := range markers {
			if strings.Contains(lower, marker) {
				return kind, true
			}
		}
	}
	return "", false
}

// parseSensorEvents returns the latest event per kind from the "Recent
// Sensor events" section of `dumpsys sensorservice`.
func parseSensorEvents(output string) map[definitions.StreamKind]sensorSample {
	latest := make(map[definitions.StreamKind]sensorSample)

	var (
		current definitions.StreamKind
		inKind  bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := sensorHeader.FindStringSubmatch(line); m != nil {
			current, inKind = sensorKind(m[1])
			continue
		}
		if !inKind {
			continue
		}
		m := sensorEvent.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ts, _ := strconv.ParseFloat(m[1], 64)
		x, _ := strconv.ParseFloat(m[2], 64)
		y, _ := strconv.ParseFloat(m[3], 64)
		z, _ := strconv.ParseFloat(m[4], 64)
		if prev, ok := latest[current]; ok && prev.TS >= ts {
			continue
		}
		latest[current] = sensorSample{TS: ts, Reading: definitions.SensorReading{X: x, Y: y, Z: z}}
	}
	return latest
}
