package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/spance/devpulse/constants"
	"github.com/spance/devpulse/telemetry/definitions"
)

const envPrefix = "DEVPULSE"

// hostOS is the OS the host backend would describe.
var hostOS = runtime.GOOS

// Config holds every setting after flags, environment and config file have
// been merged. Flags win over the environment, which wins over the file.
type Config struct {
	DeviceType      string        `mapstructure:"device-type"`
	DeviceID        string        `mapstructure:"device-id"`
	ADBPath         string        `mapstructure:"adb-path"`
	AppPackage      string        `mapstructure:"app-package"`
	LocationTimeout time.Duration `mapstructure:"location-timeout"`
	CommandTimeout  time.Duration `mapstructure:"command-timeout"`
	StreamInterval  time.Duration `mapstructure:"stream-interval"`
	SensorInterval  time.Duration `mapstructure:"sensor-interval"`
	MeasureSpeed    bool          `mapstructure:"measure-speed"`
	Listen          string        `mapstructure:"listen"`
	StreamRate      float64       `mapstructure:"stream-rate"`
	Format          string        `mapstructure:"format"`
	Debug           bool          `mapstructure:"debug"`
}

var outputFormats = []string{"text", "json", "yaml"}

// registerFlags declares the persistent flags shared by every command.
func registerFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Config file (default: $HOME/.devpulse.yaml)")
	flags.StringP("device-type", "t", constants.ADB, "Device type: adb, ios or host (host: devpulse running natively on Android)")
	flags.StringP("device-id", "d", "", "ADB serial or iOS UDID (default: the only connected device)")
	flags.String("adb-path", "adb", "Path to the adb binary")
	flags.String("app-package", definitions.DefaultAppPackage, "Android package whose permissions are reported")
	flags.Duration("location-timeout", definitions.DefaultLocationTimeout, "Bound on acquiring a location fix")
	flags.Duration("command-timeout", definitions.DefaultCommandTimeout, "Bound on each device command")
	flags.Duration("stream-interval", definitions.DefaultStreamInterval, "Battery and connectivity poll interval")
	flags.Duration("sensor-interval", definitions.DefaultSensorInterval, "Sensor poll interval")
	flags.Bool("measure-speed", false, "Measure link speed in the network section")
	flags.Bool("debug", false, "Enable debug logging")
}

// newViper binds flags and DEVPULSE_* environment variables.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("listen", "127.0.0.1:8080")
	v.SetDefault("stream-rate", 20.0)
	v.SetDefault("format", "text")
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	return v, nil
}

// loadConfig reads the optional YAML config file and unmarshals the merged
// settings. An explicitly named file must exist.
func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".devpulse")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !lo.Contains(constants.DeviceTypes, c.DeviceType) {
		return fmt.Errorf("invalid device type: %s. Must be one of %s", c.DeviceType, strings.Join(constants.DeviceTypes, ", "))
	}
	if c.DeviceType == constants.HOST && hostOS != string(definitions.PlatformAndroid) {
		return fmt.Errorf("invalid device type: host only works when devpulse runs natively on Android, not on %s. Use adb or ios to read a connected device", hostOS)
	}
	durations := map[string]time.Duration{
		"location-timeout": c.LocationTimeout,
		"command-timeout":  c.CommandTimeout,
		"stream-interval":  c.StreamInterval,
		"sensor-interval":  c.SensorInterval,
	}
	for _, name := range []string{"location-timeout", "command-timeout", "stream-interval", "sensor-interval"} {
		if durations[name] <= 0 {
			return fmt.Errorf("invalid %s: %s. Must be positive", name, durations[name])
		}
	}
	if c.StreamRate <= 0 {
		return fmt.Errorf("invalid stream-rate: %g. Must be positive", c.StreamRate)
	}
	if !lo.Contains(outputFormats, c.Format) {
		return fmt.Errorf("invalid format: %s. Must be one of %s", c.Format, strings.Join(outputFormats, ", "))
	}
	return nil
}

// SessionConfig is the part of the config the telemetry session needs.
func (c *Config) SessionConfig() definitions.SessionConfig {
	return definitions.SessionConfig{
		DeviceType:      c.DeviceType,
		DeviceID:        c.DeviceID,
		ADBPath:         c.ADBPath,
		AppPackage:      c.AppPackage,
		LocationTimeout: c.LocationTimeout,
		CommandTimeout:  c.CommandTimeout,
		StreamInterval:  c.StreamInterval,
		SensorInterval:  c.SensorInterval,
		MeasureSpeed:    c.MeasureSpeed,
	}
}

// setupLogging configures the global zerolog logger for the CLI.
func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}
