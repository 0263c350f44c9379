package android

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/spance/devpulse/telemetry/definitions"
)

func (r *ADBDevice) Connect(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	log.Debug().Str("cmd", fmt.Sprintf("[Connect] run cmd: %s connect %s", r.adbPath, address)).Msg("")
	output, err := r.run(ctx, r.adbPath, "connect", address)
	if err != nil {
		log.Error().Err(err).Msg("[Connect] run cmd failed")
		return fmt.Sprintf("Connect error: %v", err), err
	}
	return parseConnectOutput(address, string(output)), nil
}

func parseConnectOutput(address, output string) string {
	lowerOutput := strings.ToLower(output)
	if strings.Contains(lowerOutput, "already connected") {
		return fmt.Sprintf("Already connected to %s", address)
	}
	if strings.HasPrefix(lowerOutput, "connected") || strings.Contains(lowerOutput, " connected") {
		return fmt.Sprintf("Connected to %s", address)
	}
	return fmt.Sprintf("Connection error: %s", strings.TrimSpace(output))
}

func (r *ADBDevice) Disconnect(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	cmdArgs := []string{"disconnect"}
	if len(address) > 0 {
		cmdArgs = append(cmdArgs, address)
	}
	log.Debug().Str("cmd", fmt.Sprintf("[Disconnect] run cmd: %s %s", r.adbPath, strings.Join(cmdArgs, " "))).Msg("")

	output, err := r.run(ctx, r.adbPath, cmdArgs...)
	if err != nil {
		log.Error().Err(err).Msg("[Disconnect] run cmd failed")
		return fmt.Sprintf("Disconnect error: %v", err), err
	}
	return strings.TrimSpace(string(output)), nil
}

func (r *ADBDevice) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	log.Debug().Str("cmd", fmt.Sprintf("[ListDevices] run cmd: %s devices -l", r.adbPath)).Msg("")

	output, err := r.run(ctx, r.adbPath, "devices", "-l")
	if err != nil {
		log.Error().Err(err).Msg("[ListDevices] run cmd failed")
		return nil, err
	}
	return parseDevices(string(output)), nil
}

// parseDevices parses `adb devices -l`.
func parseDevices(output string) []definitions.DeviceInfo {
	var devices []definitions.DeviceInfo
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		deviceID := parts[0]
		link := definitions.USB
		if strings.Contains(deviceID, ":") {
			link = definitions.Remote
		} else if strings.Contains(deviceID, "_adb-tls-connect") {
			link = definitions.WiFi
		}

		var model string
		for _, part := range parts[2:] {
			if strings.HasPrefix(part, "model:") {
				model = strings.SplitN(part, ":", 2)[1]
				break
			}
		}

		devices = append(devices, definitions.DeviceInfo{
			DeviceID: deviceID,
			Status:   parts[1],
			Link:     link,
			Model:    model,
		})
	}
	return devices
}

// DeviceIP returns the address the device uses for its default route,
// falling back to the wlan0 address.
func (r *ADBDevice) DeviceIP(ctx context.Context) (string, error) {
	output, err := r.cachedShell(ctx, "DeviceIP", "ip", "route")
	if err != nil {
		return "", err
	}
	if ip := parseRouteSource(output); ip != "" {
		return ip, nil
	}

	output, err = r.cachedShell(ctx, "DeviceIP", "ip", "addr", "show", "wlan0")
	if err != nil {
		return "", err
	}
	if ip := parseInetAddr(output); ip != "" {
		return ip, nil
	}
	return "", fmt.Errorf("no ip address found")
}

func parseRouteSource(output string) string {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		for i, part := range parts {
			if part == "src" && i+1 < len(parts) {
				return parts[i+1]
			}
		}
	}
	return ""
}

func parseInetAddr(output string) string {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) >= 2 && parts[0] == "inet" {
			return strings.Split(parts[1], "/")[0]
		}
	}
	return ""
}
