package definitions

import "strings"

type LinkType string

const (
	USB    LinkType = "usb"
	WiFi   LinkType = "wifi"
	Remote LinkType = "remote"
	Local  LinkType = "local"
)

// DeviceInfo describes a device visible to the platform tooling (adb devices, idevice_id).
type DeviceInfo struct {
	DeviceID  string   `json:"device_id"`
	Status    string   `json:"status"`
	Link      LinkType `json:"link"`
	Model     string   `json:"model,omitempty"`
	OSVersion string   `json:"os_version,omitempty"`
}

type PlatformFamily string

const (
	PlatformAndroid PlatformFamily = "android"
	PlatformIOS     PlatformFamily = "ios"
)

type DisplayMetrics struct {
	PixelRatio float64 `json:"pixel_ratio"`
	WidthPx    int     `json:"width_px"`
	HeightPx   int     `json:"height_px"`
}

type AppIdentity struct {
	Name    string `json:"name"`
	Package string `json:"package"`
	Version string `json:"version"`
	Build   string `json:"build"`
}

// DeviceIdentity is the hardware, OS and app identity of the device.
type DeviceIdentity struct {
	Platform         PlatformFamily `json:"platform"`
	Model            string         `json:"model"`
	Brand            string         `json:"brand"`
	Manufacturer     string         `json:"manufacturer"`
	OSVersion        string         `json:"os_version"`
	SDKVersion       string         `json:"sdk_version"`
	BuildID          string         `json:"build_id"`
	IsPhysicalDevice bool           `json:"is_physical_device"`
	Display          DisplayMetrics `json:"display"`
	App              AppIdentity    `json:"app"`
}

func (d DeviceIdentity) ToMap() map[string]any {
	return map[string]any{
		"platform":           string(d.Platform),
		"model":              d.Model,
		"brand":              d.Brand,
		"manufacturer":       d.Manufacturer,
		"os_version":         d.OSVersion,
		"sdk_version":        d.SDKVersion,
		"build_id":           d.BuildID,
		"is_physical_device": d.IsPhysicalDevice,
		"display": map[string]any{
			"pixel_ratio": d.Display.PixelRatio,
			"width_px":    d.Display.WidthPx,
			"height_px":   d.Display.HeightPx,
		},
		"app": map[string]any{
			"name":    d.App.Name,
			"package": d.App.Package,
			"version": d.App.Version,
			"build":   d.App.Build,
		},
	}
}

// optional passes nil through and dereferences everything else.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// AndroidBuild is the raw android.os.Build view of a device.
type AndroidBuild struct {
	Model        string
	Brand        string
	Manufacturer string
	Release      string
	SDKInt       int
	BuildID      string
	Fingerprint  string
	Hardware     string
	Product      string
	ABI          string
}

// IsEmulator reports whether the build properties belong to an emulator image.
func (b AndroidBuild) IsEmulator() bool {
	for _, field := range []string{b.Fingerprint, b.Hardware, b.Product, b.Model} {
		lower := strings.ToLower(field)
		for _, marker := range emulatorMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

var emulatorMarkers = []string{"generic", "goldfish", "ranchu", "emulator", "sdk_gphone", "vbox86"}

// IOSDevice is the raw UIDevice view of a device.
type IOSDevice struct {
	Name          string
	Model         string
	SystemName    string
	SystemVersion string
	BuildVersion  string
	IsSimulator   bool
}
