package host

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/net"

	"github.com/spance/devpulse/telemetry/definitions"
)

// route is one line of /proc/net/route.
type route struct {
	Iface       string
	Destination string
	Gateway     string
}

func parseRoutes(content string) []route {
	var routes []route
	for i, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if i == 0 || len(fields) < 3 {
			continue
		}
		routes = append(routes, route{Iface: fields[0], Destination: fields[1], Gateway: fields[2]})
	}
	return routes
}

// defaultRoute returns the route with destination 0.0.0.0.
func (r *HostDevice) defaultRoute() (route, bool) {
	routes := parseRoutes(readString(filepath.Join(r.procfs, "net", "route")))
	return lo.Find(routes, func(rt route) bool { return rt.Destination == "00000000" })
}

// hexToIPv4 decodes the little-endian addresses of /proc/net/route.
func hexToIPv4(raw string) (string, error) {
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != 4 {
		return "", fmt.Errorf("bad route address %q", raw)
	}
	var addr [4]byte
	binary.BigEndian.PutUint32(addr[:], binary.LittleEndian.Uint32(b))
	return netip.AddrFrom4(addr).String(), nil
}

var interfacePrefixes = []struct {
	prefix string
	kind   definitions.ConnectionType
}{
	{"wlan", definitions.ConnectionWiFi},
	{"wl", definitions.ConnectionWiFi},
	{"rmnet", definitions.ConnectionCellular},
	{"ccmni", definitions.ConnectionCellular},
	{"wwan", definitions.ConnectionCellular},
	{"eth", definitions.ConnectionEthernet},
	{"en", definitions.ConnectionEthernet},
}

func interfaceType(name string) definitions.ConnectionType {
	for _, p := range interfacePrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.kind
		}
	}
	return definitions.ConnectionOther
}

// ConnectionType classifies the interface that carries the default route.
func (r *HostDevice) ConnectionType(ctx context.Context) (definitions.ConnectionType, bool, error) {
	rt, ok := r.defaultRoute()
	if !ok {
		return definitions.ConnectionNone, false, nil
	}
	return interfaceType(rt.Iface), true, nil
}

// wifiInterface returns the name of the wifi interface carrying the default
// route.
func (r *HostDevice) wifiInterface() (string, error) {
	rt, ok := r.defaultRoute()
	if !ok || interfaceType(rt.Iface) != definitions.ConnectionWiFi {
		return "", fmt.Errorf("no wifi default route")
	}
	return rt.Iface, nil
}

// wifiPrefix returns the first IPv4 address of the wifi interface.
func (r *HostDevice) wifiPrefix(ctx context.Context) (netip.Prefix, error) {
	name, err := r.wifiInterface()
	if err != nil {
		return netip.Prefix{}, err
	}
	interfaces, err := interfacesWithContext(ctx)
	if err != nil {
		return netip.Prefix{}, err
	}
	iface, ok := lo.Find(interfaces, func(i net.InterfaceStat) bool { return i.Name == name })
	if !ok {
		return netip.Prefix{}, fmt.Errorf("interface %s not found", name)
	}
	for _, addr := range iface.Addrs {
		prefix, err := netip.ParsePrefix(addr.Addr)
		if err == nil && prefix.Addr().Is4() {
			return prefix, nil
		}
	}
	return netip.Prefix{}, fmt.Errorf("no IPv4 address on %s", name)
}

// WifiName needs the supplicant, which is not readable from procfs.
func (r *HostDevice) WifiName(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *HostDevice) WifiBSSID(ctx context.Context) (string, error) {
	return "", definitions.ErrUnsupported
}

func (r *HostDevice) WifiIP(ctx context.Context) (string, error) {
	prefix, err := r.wifiPrefix(ctx)
	if err != nil {
		return "", err
	}
	return prefix.Addr().String(), nil
}

func (r *HostDevice) WifiSubnet(ctx context.Context) (string, error) {
	prefix, err := r.wifiPrefix(ctx)
	if err != nil {
		return "", err
	}
	return prefix.Masked().String(), nil
}

func (r *HostDevice) WifiGateway(ctx context.Context) (string, error) {
	if _, err := r.wifiInterface(); err != nil {
		return "", err
	}
	rt, _ := r.defaultRoute()
	return hexToIPv4(rt.Gateway)
}

// WifiSignal reads the signal level column of /proc/net/wireless.
func (r *HostDevice) WifiSignal(ctx context.Context) (int, error) {
	name, err := r.wifiInterface()
	if err != nil {
		return 0, err
	}
	return parseWireless(readString(filepath.Join(r.procfs, "net", "wireless")), name)
}

func parseWireless(content, iface string) (int, error) {
	for _, line := range strings.Split(content, "\n") {
		name, rest, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || name != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			break
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("parse signal level %q: %w", fields[2], err)
		}
		return int(level), nil
	}
	return 0, fmt.Errorf("%s not listed in /proc/net/wireless", iface)
}

// MeasureSpeed reports the negotiated link speed of the default route's
// interface in Mbps.
func (r *HostDevice) MeasureSpeed(ctx context.Context) (float64, error) {
	rt, ok := r.defaultRoute()
	if !ok {
		return 0, fmt.Errorf("no default route")
	}
	speed, err := strconv.Atoi(readString(filepath.Join(r.sysfs, "class", "net", rt.Iface, "speed")))
	if err != nil || speed <= 0 {
		return 0, definitions.ErrUnsupported
	}
	return float64(speed), nil
}
