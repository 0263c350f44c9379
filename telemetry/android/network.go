package android

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spance/devpulse/telemetry/definitions"
)

const wifiInterface = "wlan0"

var (
	activeNetwork = regexp.MustCompile(`Active default network:\s*(\S+)`)
	transports    = regexp.MustCompile(`Transports:\s*(\w+)`)
	agentType     = regexp.MustCompile(`(?:ni\{|NetworkAgentInfo\s*\[)(\w+)`)
)

func (r *ADBDevice) ConnectionType(ctx context.Context) (definitions.ConnectionType, bool, error) {
	output, err := r.cachedShell(ctx, "Connectivity", "dumpsys", "connectivity")
	if err != nil {
		return definitions.ConnectionNone, false, err
	}
	return parseConnectivity(output)
}

// parseConnectivity finds the transport of the default network in
// `dumpsys connectivity`.
func parseConnectivity(output string) (definitions.ConnectionType, bool, error) {
	m := activeNetwork.FindStringSubmatch(output)
	if m == nil {
		return definitions.ConnectionNone, false, fmt.Errorf("no default network in dumpsys connectivity")
	}
	netID := m[1]
	if netID == "none" || netID == "null" {
		return definitions.ConnectionNone, false, nil
	}

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "NetworkAgentInfo") {
			continue
		}
		if !strings.Contains(line, "network{"+netID+"}") && !strings.Contains(line, "- "+netID+"]") {
			continue
		}
		if t := transports.FindStringSubmatch(line); t != nil {
			return transportType(t[1]), true, nil
		}
		if t := agentType.FindStringSubmatch(line); t != nil {
			return transportType(t[1]), true, nil
		}
	}
	return definitions.ConnectionOther, true, nil
}

func transportType(name string) definitions.ConnectionType {
	switch strings.ToUpper(name) {
	case "WIFI":
		return definitions.ConnectionWiFi
	case "CELLULAR", "MOBILE":
		return definitions.ConnectionCellular
	case "ETHERNET":
		return definitions.ConnectionEthernet
	default:
		return definitions.ConnectionOther
	}
}

// wifiInfo holds the fields of the mWifiInfo line of `dumpsys wifi`.
type wifiInfo struct {
	SSID      string
	BSSID     string
	IP        string
	RSSI      *int
	LinkSpeed *int
}

var (
	wifiSSID      = regexp.MustCompile(`SSID:\s*"?([^",]*)"?,`)
	wifiBSSID     = regexp.MustCompile(`BSSID:\s*([0-9a-fA-F:]{17})`)
	wifiIP        = regexp.MustCompile(`IP:\s*/?([0-9.]+)`)
	wifiRSSI      = regexp.MustCompile(`RSSI:\s*(-?\d+)`)
	wifiLinkSpeed = regexp.MustCompile(`Link speed:\s*(\d+)\s*Mbps`)
)

// redactedBSSID is what Android reports without location permission.
const redactedBSSID = "02:00:00:00:00:00"

func (r *ADBDevice) wifiInfo(ctx context.Context) (wifiInfo, error) {
	output, err := r.cachedShell(ctx, "Wifi", "dumpsys", "wifi")
	if err != nil {
		return wifiInfo{}, err
	}
	return parseWifiInfo(output)
}

func parseWifiInfo(output string) (wifiInfo, error) {
	var line string
	for _, l := range strings.Split(output, "\n") {
		if strings.Contains(l, "mWifiInfo") {
			line = l
			break
		}
	}
	if line == "" {
		return wifiInfo{}, fmt.Errorf("no mWifiInfo in dumpsys wifi")
	}

	var info wifiInfo
	if m := wifiSSID.FindStringSubmatch(line); m != nil && m[1] != "<unknown ssid>" {
		info.SSID = m[1]
	}
	if m := wifiBSSID.FindStringSubmatch(line); m != nil && m[1] != redactedBSSID {
		info.BSSID = m[1]
	}
	if m := wifiIP.FindStringSubmatch(line); m != nil && m[1] != "0.0.0.0" {
		info.IP = m[1]
	}
	if m := wifiRSSI.FindStringSubmatch(line); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			info.RSSI = &v
		}
	}
	if m := wifiLinkSpeed.FindStringSubmatch(line); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
			info.LinkSpeed = &v
		}
	}
	return info, nil
}

func (r *ADBDevice) WifiName(ctx context.Context) (string, error) {
	info, err := r.wifiInfo(ctx)
	if err != nil {
		return "", err
	}
	if info.SSID == "" {
		return "", fmt.Errorf("ssid hidden")
	}
	return info.SSID, nil
}

func (r *ADBDevice) WifiIP(ctx context.Context) (string, error) {
	if info, err := r.wifiInfo(ctx); err == nil && info.IP != "" {
		return info.IP, nil
	}
	return r.DeviceIP(ctx)
}

func (r *ADBDevice) WifiBSSID(ctx context.Context) (string, error) {
	info, err := r.wifiInfo(ctx)
	if err != nil {
		return "", err
	}
	if info.BSSID == "" {
		return "", fmt.Errorf("bssid hidden")
	}
	return info.BSSID, nil
}

func (r *ADBDevice) WifiSignal(ctx context.Context) (int, error) {
	info, err := r.wifiInfo(ctx)
	if err != nil {
		return 0, err
	}
	if info.RSSI == nil {
		return 0, fmt.Errorf("rssi not reported")
	}
	return *info.RSSI, nil
}

func (r *ADBDevice) WifiGateway(ctx context.Context) (string, error) {
	output, err := r.cachedShell(ctx, "Gateway", "ip", "route", "get", "1.1.1.1")
	if err != nil {
		return "", err
	}
	if gw := parseRouteVia(output); gw != "" {
		return gw, nil
	}
	return "", fmt.Errorf("no gateway in route")
}

func parseRouteVia(output string) string {
	parts := strings.Fields(output)
	for i, part := range parts {
		if part == "via" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func (r *ADBDevice) WifiSubnet(ctx context.Context) (string, error) {
	output, err := r.cachedShell(ctx, "DeviceIP", "ip", "route")
	if err != nil {
		return "", err
	}
	if subnet := parseSubnet(output, wifiInterface); subnet != "" {
		return subnet, nil
	}
	return "", fmt.Errorf("no %s subnet route", wifiInterface)
}

// parseSubnet returns the kernel link route of iface, e.g. 192.168.1.0/24.
func parseSubnet(output, iface string) string {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 3 || !strings.Contains(parts[0], "/") {
			continue
		}
		if parts[1] == "dev" && parts[2] == iface {
			return parts[0]
		}
	}
	return ""
}

// MeasureSpeed reports the negotiated wifi link speed in Mbps.
func (r *ADBDevice) MeasureSpeed(ctx context.Context) (float64, error) {
	info, err := r.wifiInfo(ctx)
	if err != nil {
		return 0, err
	}
	if info.LinkSpeed == nil {
		return 0, definitions.ErrUnsupported
	}
	return float64(*info.LinkSpeed), nil
}
