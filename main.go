package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/spance/devpulse/constants"
	"github.com/spance/devpulse/telemetry"
	"github.com/spance/devpulse/telemetry/definitions"
	"github.com/spance/devpulse/telemetry/helper"
	"github.com/spance/devpulse/utils"
)

var config = &Config{}

var rootCmd = &cobra.Command{
	Use:   constants.AppName,
	Short: "Device telemetry aggregator",
	Long: `devpulse collects a point-in-time snapshot of a device (identity, battery,
network, system resources, storage, location and permissions) and streams
live sensor, battery and connectivity updates.
It supports Android devices via ADB, iOS devices via libimobiledevice and,
when run natively on Android (e.g. in Termux), the device it runs on.`,
	Example: `  # Snapshot of the only connected Android device
  devpulse snapshot

  # Snapshot as JSON, run natively on an Android device
  devpulse snapshot --device-type host --format json

  # Print accelerometer and battery events for 30 seconds
  devpulse watch --streams accelerometer,battery --duration 30s

  # Serve snapshots and websocket streams
  devpulse serve --listen :8080 --stream-rate 10

  # List connected iOS devices
  devpulse devices --device-type ios

  # Connect to a remote ADB device
  devpulse devices --connect 192.168.1.100:5555`,
	Version:           fmt.Sprintf("%s (build %s)", constants.Version, constants.Build),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadCommandConfig,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Collect one telemetry snapshot and print it",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live stream events as JSON lines",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots over HTTP and live streams over websockets",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List, connect or disconnect devices",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "List the permission kinds a snapshot reports",
	Args:  cobra.NoArgs,
	RunE:  runPermissions,
}

func init() {
	registerFlags(rootCmd.PersistentFlags())

	snapshotCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")

	watchCmd.Flags().StringSlice("streams", lo.Map(definitions.AllStreamKinds(), func(k definitions.StreamKind, _ int) string {
		return string(k)
	}), "Streams to watch")
	watchCmd.Flags().Duration("duration", 0, "Stop after this long (default: until interrupted)")

	serveCmd.Flags().String("listen", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().Float64("stream-rate", 20, "Max events per second written to each websocket")

	devicesCmd.Flags().StringP("connect", "c", "", "Connect to remote device (e.g., 192.168.1.100:5555)")
	devicesCmd.Flags().String("disconnect", "", "Disconnect from remote device (or 'all' to disconnect all)")

	rootCmd.AddCommand(snapshotCmd, watchCmd, serveCmd, devicesCmd, permissionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !alreadyReported(err) {
			log.Error().Err(err).Msg("devpulse failed")
		}
		os.Exit(1)
	}
}

// reportedError has already been printed to the user.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

func alreadyReported(err error) bool {
	var reported reportedError
	return errors.As(err, &reported)
}

func loadCommandConfig(cmd *cobra.Command, args []string) error {
	v, err := newViper(cmd.Flags())
	if err != nil {
		return err
	}
	configFile, _ := cmd.Flags().GetString("config")
	loaded, err := loadConfig(v, configFile)
	if err != nil {
		return err
	}
	config = loaded
	setupLogging(config.Debug)
	log.Debug().Str("config", utils.JsonString(config)).Msg("configuration loaded")
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	session, err := telemetry.OpenSession(config.SessionConfig())
	if err != nil {
		return err
	}
	defer session.Close()

	snapshot, err := session.Refresh(ctx)
	if err != nil {
		return reportRefreshFailure(cmd.ErrOrStderr(), err, changedFlags(cmd.Flags()))
	}
	return writeSnapshot(cmd.OutOrStdout(), snapshot, config.Format)
}

// reportRefreshFailure prints the failure with a retry hint when retrying can
// help. The returned error is not logged again.
func reportRefreshFailure(w io.Writer, err error, args []string) error {
	fmt.Fprint(w, helper.RenderRefreshFailed(err, args))
	return reportedError{err}
}

func writeSnapshot(w io.Writer, snapshot *definitions.Snapshot, format string) error {
	switch format {
	case "json":
		_, err := fmt.Fprintln(w, utils.JsonIndent(snapshot.ToMap()))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snapshot.ToMap()); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		_, err := fmt.Fprint(w, helper.RenderSnapshot(snapshot))
		return err
	}
}

// changedFlags returns the flags the user set, for the retry hint.
func changedFlags(flags *pflag.FlagSet) []string {
	var args []string
	flags.Visit(func(f *pflag.Flag) {
		if f.Value.Type() == "bool" {
			if f.Value.String() == "true" {
				args = append(args, "--"+f.Name)
			}
			return
		}
		args = append(args, "--"+f.Name, f.Value.String())
	})
	return args
}

func runWatch(cmd *cobra.Command, args []string) error {
	names, _ := cmd.Flags().GetStringSlice("streams")
	duration, _ := cmd.Flags().GetDuration("duration")

	kinds, err := parseStreamKinds(names)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	platform, err := telemetry.CreatePlatform(config.SessionConfig())
	if err != nil {
		return err
	}
	hub := telemetry.NewHub(platform, kinds...)
	defer hub.Close()
	if err := hub.Start(ctx); err != nil {
		return err
	}

	return watchEvents(ctx, hub, kinds, cmd.OutOrStdout())
}

func parseStreamKinds(names []string) ([]definitions.StreamKind, error) {
	kinds := make([]definitions.StreamKind, 0, len(names))
	for _, name := range lo.Uniq(names) {
		kind, err := definitions.ParseStreamKind(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, errors.New("no streams selected")
	}
	return kinds, nil
}

// watchEvents writes every event of kinds as one JSON line until ctx ends.
func watchEvents(ctx context.Context, hub *telemetry.Hub, kinds []definitions.StreamKind, w io.Writer) error {
	merged := make(chan definitions.StreamEvent)
	for _, kind := range kinds {
		sub, err := hub.Subscribe(kind)
		if err != nil {
			return err
		}
		defer sub.Close()
		go func() {
			for event := range sub.Events() {
				select {
				case merged <- event:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-merged:
			if _, err := fmt.Fprintln(w, utils.JsonString(event.ToMap())); err != nil {
				return err
			}
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	session, err := telemetry.OpenSession(config.SessionConfig())
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.StartStreams(ctx); err != nil {
		return err
	}
	return NewServer(config.Listen, session.Refresh, session.Hub, config.StreamRate).Run(ctx)
}

func runDevices(cmd *cobra.Command, args []string) error {
	connect, _ := cmd.Flags().GetString("connect")
	disconnect, _ := cmd.Flags().GetString("disconnect")

	ctx, cancel := context.WithTimeout(context.Background(), config.CommandTimeout)
	defer cancel()

	platform, err := telemetry.CreatePlatform(config.SessionConfig())
	if err != nil {
		return err
	}

	switch {
	case connect != "":
		log.Info().Msgf("Connecting to %s...", connect)
		message, err := platform.Connect(ctx, connect)
		if err != nil {
			log.Error().Str("msg", message).Msg("❌")
			return err
		}
		log.Info().Str("msg", message).Msg("✅")
		return nil
	case disconnect != "":
		log.Info().Msgf("Disconnecting from %s...", disconnect)
		message, err := platform.Disconnect(ctx, disconnect)
		if err != nil {
			log.Error().Str("msg", message).Msg("❌")
			return err
		}
		log.Info().Str("msg", message).Msg("✅")
		return nil
	}

	devices, err := platform.ListDevices(ctx)
	if err != nil {
		return err
	}
	printDevices(cmd.OutOrStdout(), devices)
	return nil
}

func printDevices(w io.Writer, devices []definitions.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices connected.")
		return
	}
	fmt.Fprintln(w, "Connected devices:")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, d := range devices {
		statusIcon := "✅"
		if d.Status != "device" {
			statusIcon = "❌"
		}
		modelInfo := ""
		if d.Model != "" {
			modelInfo = fmt.Sprintf(" (%s)", d.Model)
		}
		fmt.Fprintf(w, "  %s %-30s [%s]%s\n", statusIcon, d.DeviceID, d.Link, modelInfo)
	}
}

func runPermissions(cmd *cobra.Command, args []string) error {
	specs, err := constants.LoadPermissions()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-24s %-8s %s\n", "KIND", "MIN SDK", "ANDROID")
	for _, spec := range specs {
		minSDK := "-"
		if spec.MinSDK > 0 {
			minSDK = fmt.Sprint(spec.MinSDK)
		}
		fmt.Fprintf(w, "%-24s %-8s %s\n", spec.Kind, minSDK, strings.Join(spec.Android, ", "))
	}
	return nil
}
