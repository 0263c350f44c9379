package helper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/valyala/fasttemplate"

	"github.com/spance/devpulse/constants"
	"github.com/spance/devpulse/telemetry/definitions"
)

const (
	startTag = "{{ "
	endTag   = " }}"
)

// RenderSnapshot fills constants.SnapshotSummary for s. Absent optional
// values are left out rather than shown as zero.
func RenderSnapshot(s *definitions.Snapshot) string {
	tags := map[string]any{
		"captured_at": s.CapturedAt.Format(time.RFC3339),
		"cycle":       fmt.Sprint(s.Cycle),
	}
	for k, v := range deviceTags(s.Device) {
		tags[k] = v
	}
	for k, v := range batteryTags(s.Battery) {
		tags[k] = v
	}
	for k, v := range storageTags(s.Storage) {
		tags[k] = v
	}
	for k, v := range systemTags(s.System) {
		tags[k] = v
	}
	tags["network"] = networkLine(s.Network)
	tags["location"] = locationLine(s.Location)
	for k, v := range permissionTags(s.Permissions) {
		tags[k] = v
	}
	return fasttemplate.ExecuteString(constants.SnapshotSummary, startTag, endTag, tags)
}

// RenderRefreshFailed fills constants.RefreshFailed. args is the flag string
// to repeat in the retry hint, which is left out when err wraps
// definitions.ErrUnsupportedPlatform.
func RenderRefreshFailed(err error, args []string) string {
	out := fasttemplate.ExecuteString(constants.RefreshFailed, startTag, endTag, map[string]any{
		"error": err.Error(),
	})
	if errors.Is(err, definitions.ErrUnsupportedPlatform) {
		return out
	}
	hint := ""
	if len(args) > 0 {
		hint = " " + strings.Join(args, " ")
	}
	return out + fasttemplate.ExecuteString(constants.RetryHint, startTag, endTag, map[string]any{
		"args": hint,
	})
}

func deviceTags(d *definitions.DeviceIdentity) map[string]any {
	if d == nil {
		return map[string]any{"manufacturer": "", "model": "", "platform": "", "os_version": "", "device_kind": "", "display": "", "app": ""}
	}
	kind := "physical"
	if !d.IsPhysicalDevice {
		kind = "emulator"
	}
	display := "unknown"
	if d.Display.WidthPx > 0 {
		display = fmt.Sprintf("%dx%d @%.2gx", d.Display.WidthPx, d.Display.HeightPx, d.Display.PixelRatio)
	}
	app := "unknown"
	if d.App.Name != "" {
		app = fmt.Sprintf("%s %s (%s)", d.App.Name, d.App.Version, d.App.Package)
	}
	return map[string]any{
		"manufacturer": d.Manufacturer,
		"model":        d.Model,
		"platform":     string(d.Platform),
		"os_version":   d.OSVersion,
		"device_kind":  kind,
		"display":      display,
		"app":          app,
	}
}

func batteryTags(b *definitions.BatteryStatus) map[string]any {
	if b == nil {
		return map[string]any{"battery_level": "?", "battery_state": "", "battery_extra": ""}
	}
	var extra []string
	if b.SaverMode {
		extra = append(extra, "saver on")
	}
	if b.TemperatureC != nil {
		extra = append(extra, fmt.Sprintf("%.1f°C", *b.TemperatureC))
	}
	if b.VoltageMV != nil {
		extra = append(extra, fmt.Sprintf("%d mV", *b.VoltageMV))
	}
	if b.Health != nil {
		extra = append(extra, *b.Health)
	}
	return map[string]any{
		"battery_level": fmt.Sprint(b.Level),
		"battery_state": string(b.State),
		"battery_extra": joinExtra(extra),
	}
}

func storageTags(s *definitions.StorageStatus) map[string]any {
	if s == nil {
		return map[string]any{"storage_used": "?", "storage_total": "?", "storage_percent": "0.0"}
	}
	return map[string]any{
		"storage_used":    FormatBytes(s.UsedBytes),
		"storage_total":   FormatBytes(s.TotalBytes),
		"storage_percent": fmt.Sprintf("%.1f", s.UsagePercentage()),
	}
}

func systemTags(s *definitions.SystemResources) map[string]any {
	if s == nil {
		return map[string]any{"cpu_cores": "?", "architecture": "", "ram": "?", "ram_percent": "0.0", "system_extra": ""}
	}
	ram := "?"
	if s.UsedRAMMB != nil && s.TotalRAMMB != nil {
		ram = fmt.Sprintf("%d/%d MB", *s.UsedRAMMB, *s.TotalRAMMB)
	}
	var extra []string
	if s.CPUUsagePercent != nil {
		extra = append(extra, fmt.Sprintf("cpu %.1f%%", *s.CPUUsagePercent))
	}
	if s.CPUFrequencyMHz != nil {
		extra = append(extra, fmt.Sprintf("%.0f MHz", *s.CPUFrequencyMHz))
	}
	if s.CPUTemperatureC != nil {
		extra = append(extra, fmt.Sprintf("%.1f°C", *s.CPUTemperatureC))
	}
	if s.Uptime != nil {
		extra = append(extra, "up "+s.Uptime.Truncate(time.Second).String())
	}
	if s.ProcessCount != nil {
		extra = append(extra, fmt.Sprintf("%d procs", *s.ProcessCount))
	}
	if s.OSName != nil {
		extra = append(extra, strings.TrimSpace(*s.OSName+" "+lo.FromPtr(s.OSVersion)))
	}
	cores := "?"
	if s.CPUCores != nil {
		cores = fmt.Sprint(*s.CPUCores)
	}
	return map[string]any{
		"cpu_cores":    cores,
		"architecture": lo.FromPtr(s.Architecture),
		"ram":          ram,
		"ram_percent":  fmt.Sprintf("%.1f", s.RAMUsagePercentage()),
		"system_extra": joinExtra(extra),
	}
}

func networkLine(n *definitions.NetworkStatus) string {
	if n == nil {
		return "?"
	}
	line := string(n.ConnectionType)
	if !n.Connected {
		line += " (disconnected)"
	}
	if n.WifiName != nil {
		line += " " + *n.WifiName
	}
	if n.WifiIP != nil {
		line += " " + *n.WifiIP
	}
	if n.WifiSignalDBm != nil {
		line += fmt.Sprintf(" %d dBm", *n.WifiSignalDBm)
	}
	if n.SpeedMbps != nil {
		line += fmt.Sprintf(" %.0f Mbps", *n.SpeedMbps)
	}
	return line
}

func locationLine(g *definitions.GeoPosition) string {
	if g == nil {
		return constants.LocationUnavailable
	}
	line := fmt.Sprintf("%.5f, %.5f ±%.0fm", g.Latitude, g.Longitude, g.Accuracy)
	if g.IsMocked {
		line += " (mocked)"
	}
	return line
}

func permissionTags(p *definitions.PermissionSet) map[string]any {
	if p == nil {
		return map[string]any{"permissions_granted": "0", "permissions_total": "0", "permissions_percent": "0.0"}
	}
	return map[string]any{
		"permissions_granted": fmt.Sprint(p.GrantedCount()),
		"permissions_total":   fmt.Sprint(p.TotalCount()),
		"permissions_percent": fmt.Sprintf("%.1f", p.GrantedPercentage()),
	}
}

func joinExtra(extra []string) string {
	if len(extra) == 0 {
		return ""
	}
	return ", " + strings.Join(extra, ", ")
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// FormatBytes renders a size with a binary unit, or "?" when unknown.
func FormatBytes(n *uint64) string {
	if n == nil {
		return "?"
	}
	value := float64(*n)
	unit := 0
	for value >= 1024 && unit < len(byteUnits)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d B", *n)
	}
	return fmt.Sprintf("%.1f %s", value, byteUnits[unit])
}
