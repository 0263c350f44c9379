package host

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spance/devpulse/telemetry/definitions"
	"github.com/spance/devpulse/telemetry/helper"
)

// iioChannels maps sensor kinds to their IIO channel prefix.
var iioChannels = map[definitions.StreamKind]string{
	definitions.StreamAccelerometer: "in_accel",
	definitions.StreamGyroscope:     "in_anglvel",
	definitions.StreamMagnetometer:  "in_magn",
}

func (r *HostDevice) OpenStream(ctx context.Context, kind definitions.StreamKind) (definitions.PlatformStream, error) {
	switch kind {
	case definitions.StreamBattery:
		return helper.NewPollStream(ctx, kind, r.streamInterval, r.pollBattery, helper.BatteryStateChanged), nil
	case definitions.StreamConnectivity:
		return helper.NewPollStream(ctx, kind, r.streamInterval, r.pollConnectivity, helper.ConnectivityChanged), nil
	case definitions.StreamAccelerometer, definitions.StreamGyroscope, definitions.StreamMagnetometer:
		device, err := r.iioDevice(iioChannels[kind])
		if err != nil {
			return nil, err
		}
		return helper.NewPollStream(ctx, kind, r.sensorInterval, r.sensorPoller(kind, device), nil), nil
	default:
		return nil, fmt.Errorf("unknown stream kind: %s", kind)
	}
}

func (r *HostDevice) pollBattery(ctx context.Context) (definitions.StreamEvent, error) {
	state, err := r.BatteryState(ctx)
	if err != nil {
		return definitions.StreamEvent{}, err
	}
	return definitions.NewBatteryStateEvent(time.Now(), state), nil
}

func (r *HostDevice) pollConnectivity(ctx context.Context) (definitions.StreamEvent, error) {
	kind, _, err := r.ConnectionType(ctx)
	if err != nil {
		return definitions.StreamEvent{}, err
	}
	return definitions.NewConnectivityEvent(time.Now(), kind), nil
}

// iioDevice finds the IIO device exposing the x axis of channel.
func (r *HostDevice) iioDevice(channel string) (string, error) {
	devices, _ := filepath.Glob(filepath.Join(r.sysfs, "bus", "iio", "devices", "iio:device*"))
	for _, device := range devices {
		if readString(filepath.Join(device, channel+"_x_raw")) != "" {
			return device, nil
		}
	}
	return "", fmt.Errorf("%w: no iio device with %s channels", definitions.ErrUnsupported, channel)
}

func (r *HostDevice) sensorPoller(kind definitions.StreamKind, device string) helper.PollFunc {
	channel := iioChannels[kind]
	return func(ctx context.Context) (definitions.StreamEvent, error) {
		reading, err := readIIO(device, channel)
		if err != nil {
			return definitions.StreamEvent{}, err
		}
		return definitions.NewSensorEvent(kind, time.Now(), reading), nil
	}
}

// readIIO scales the raw axis values. The scale is per channel or per axis
// depending on the driver; a missing scale means 1.
func readIIO(device, channel string) (definitions.SensorReading, error) {
	shared := 1.0
	if v, err := strconv.ParseFloat(readString(filepath.Join(device, channel+"_scale")), 64); err == nil {
		shared = v
	}
	var axes [3]float64
	for i, axis := range []string{"x", "y", "z"} {
		raw, err := strconv.ParseFloat(readString(filepath.Join(device, channel+"_"+axis+"_raw")), 64)
		if err != nil {
			return definitions.SensorReading{}, fmt.Errorf("read %s_%s_raw: %w", channel, axis, err)
		}
		scale := shared
		if v, err := strconv.ParseFloat(readString(filepath.Join(device, channel+"_"+axis+"_scale")), 64); err == nil {
			scale = v
		}
		axes[i] = raw * scale
	}
	return definitions.SensorReading{X: axes[0], Y: axes[1], Z: axes[2]}, nil
}
