package android

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/spance/devpulse/telemetry/definitions"
)

// outputTTL bounds how long a cached shell output is reused. Probes read the
// same dumpsys section for several fields within one refresh.
const outputTTL = time.Second

// CommandRunner executes one host command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ADBDevice reads telemetry from an Android device over adb.
type ADBDevice struct {
	adbPath        string
	deviceID       string
	appPackage     string
	commandTimeout time.Duration
	streamInterval time.Duration
	sensorInterval time.Duration

	run   CommandRunner
	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cachedOutput
}

type cachedOutput struct {
	output string
	at     time.Time
}

func NewADBDevice(cfg definitions.SessionConfig) *ADBDevice {
	cfg = cfg.WithDefaults()
	return &ADBDevice{
		adbPath:        cfg.ADBPath,
		deviceID:       cfg.DeviceID,
		appPackage:     cfg.AppPackage,
		commandTimeout: cfg.CommandTimeout,
		streamInterval: cfg.StreamInterval,
		sensorInterval: cfg.SensorInterval,
		run:            execRunner,
		cache:          make(map[string]cachedOutput),
	}
}

// WithRunner replaces the command runner. Used by tests.
func (r *ADBDevice) WithRunner(run CommandRunner) *ADBDevice {
	r.run = run
	return r
}

func (r *ADBDevice) Family() string {
	return string(definitions.PlatformAndroid)
}

func (r *ADBDevice) prefix() []string {
	if r.deviceID != "" {
		return []string{"-s", r.deviceID}
	}
	return nil
}

// adb runs an adb command against the configured device.
func (r *ADBDevice) adb(ctx context.Context, tag string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	cmdArgs := append(r.prefix(), args...)
	log.Debug().Str("cmd", fmt.Sprintf("[%s] run cmd: %s %s", tag, r.adbPath, strings.Join(cmdArgs, " "))).Msg("")

	rawOutput, err := r.run(ctx, r.adbPath, cmdArgs...)
	if err != nil {
		log.Debug().Err(err).Str("output", string(rawOutput)).Msgf("[%s] run cmd failed", tag)
		return "", fmt.Errorf("%s: %w", strings.Join(args, " "), err)
	}
	return string(rawOutput), nil
}

// shell runs a command through `adb shell`.
func (r *ADBDevice) shell(ctx context.Context, tag string, args ...string) (string, error) {
	return r.adb(ctx, tag, append([]string{"shell"}, args...)...)
}

// cachedShell is shell with concurrent callers collapsed and the output
// reused for outputTTL.
func (r *ADBDevice) cachedShell(ctx context.Context, tag string, args ...string) (string, error) {
	return r.cachedShellFor(ctx, outputTTL, tag, args...)
}

func (r *ADBDevice) cachedShellFor(ctx context.Context, ttl time.Duration, tag string, args ...string) (string, error) {
	key := strings.Join(args, " ")

	r.mu.Lock()
	if c, ok := r.cache[key]; ok && time.Since(c.at) < ttl {
		r.mu.Unlock()
		return c.output, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		output, err := r.shell(ctx, tag, args...)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.cache[key] = cachedOutput{output: output, at: time.Now()}
		r.mu.Unlock()
		return output, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// forget drops a cached output so the next read goes to the device.
func (r *ADBDevice) forget(args ...string) {
	r.mu.Lock()
	delete(r.cache, strings.Join(args, " "))
	r.mu.Unlock()
}
