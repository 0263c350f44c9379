package definitions

type ConnectionType string

const (
	ConnectionWiFi     ConnectionType = "wifi"
	ConnectionCellular ConnectionType = "cellular"
	ConnectionEthernet ConnectionType = "ethernet"
	ConnectionNone     ConnectionType = "none"
	ConnectionOther    ConnectionType = "other"
)

// WifiDetails is what a provider reports for the current wifi association.
type WifiDetails struct {
	Name      *string
	IP        *string
	BSSID     *string
	Gateway   *string
	Subnet    *string
	SignalDBm *int
}

type NetworkStatus struct {
	ConnectionType ConnectionType `json:"connection_type"`
	Connected      bool           `json:"connected"`
	WifiName       *string        `json:"wifi_name"`
	WifiIP         *string        `json:"wifi_ip"`
	WifiBSSID      *string        `json:"wifi_bssid"`
	WifiGateway    *string        `json:"wifi_gateway"`
	WifiSubnet     *string        `json:"wifi_subnet"`
	WifiSignalDBm  *int           `json:"wifi_signal_dbm"`
	SpeedMbps      *float64       `json:"speed_mbps"`
}

// NewNetworkStatus builds a NetworkStatus. Wifi details are only kept when
// the connection type is wifi.
func NewNetworkStatus(kind ConnectionType, connected bool, wifi *WifiDetails, speedMbps *float64) NetworkStatus {
	status := NetworkStatus{
		ConnectionType: kind,
		Connected:      connected,
		SpeedMbps:      speedMbps,
	}
	if kind != ConnectionWiFi || wifi == nil {
		return status
	}

	status.WifiName = wifi.Name
	status.WifiIP = wifi.IP
	status.WifiBSSID = wifi.BSSID
	status.WifiGateway = wifi.Gateway
	status.WifiSubnet = wifi.Subnet
	status.WifiSignalDBm = wifi.SignalDBm
	return status
}

func (n NetworkStatus) ToMap() map[string]any {
	return map[string]any{
		"connection_type": string(n.ConnectionType),
		"connected":       n.Connected,
		"wifi_name":       optional(n.WifiName),
		"wifi_ip":         optional(n.WifiIP),
		"wifi_bssid":      optional(n.WifiBSSID),
		"wifi_gateway":    optional(n.WifiGateway),
		"wifi_subnet":     optional(n.WifiSubnet),
		"wifi_signal_dbm": optional(n.WifiSignalDBm),
		"speed_mbps":      optional(n.SpeedMbps),
	}
}
