package android

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spance/devpulse/telemetry/definitions"
)

// baselineDensity is the dpi that maps to a pixel ratio of 1.
const baselineDensity = 160

var getpropLine = regexp.MustCompile(`^\[([^\]]+)\]:\s*\[(.*)\]$`)

// properties returns every system property as reported by `getprop`.
func (r *ADBDevice) properties(ctx context.Context) (map[string]string, error) {
	output, err := r.cachedShell(ctx, "Properties", "getprop")
	if err != nil {
		return nil, err
	}
	props := ParseGetprop(output)
	if len(props) == 0 {
		return nil, fmt.Errorf("getprop returned no properties")
	}
	return props, nil
}

// ParseGetprop parses `getprop` output into a property map.
func ParseGetprop(output string) map[string]string {
	props := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		m := getpropLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		props[m[1]] = m[2]
	}
	return props
}

func (r *ADBDevice) AndroidBuild(ctx context.Context) (*definitions.AndroidBuild, error) {
	props, err := r.properties(ctx)
	if err != nil {
		return nil, err
	}
	return BuildFromProperties(props), nil
}

// BuildFromProperties maps ro.* system properties onto an AndroidBuild.
func BuildFromProperties(props map[string]string) *definitions.AndroidBuild {
	sdk, _ := strconv.Atoi(props["ro.build.version.sdk"])
	return &definitions.AndroidBuild{
		Model:        props["ro.product.model"],
		Brand:        props["ro.product.brand"],
		Manufacturer: props["ro.product.manufacturer"],
		Release:      props["ro.build.version.release"],
		SDKInt:       sdk,
		BuildID:      props["ro.build.id"],
		Fingerprint:  props["ro.build.fingerprint"],
		Hardware:     props["ro.hardware"],
		Product:      props["ro.product.name"],
		ABI:          props["ro.product.cpu.abi"],
	}
}

func (r *ADBDevice) IOSDevice(ctx context.Context) (*definitions.IOSDevice, error) {
	return nil, definitions.ErrUnsupported
}

func (r *ADBDevice) sdkInt(ctx context.Context) (int, error) {
	build, err := r.AndroidBuild(ctx)
	if err != nil {
		return 0, err
	}
	return build.SDKInt, nil
}

func (r *ADBDevice) DisplayMetrics(ctx context.Context) (definitions.DisplayMetrics, error) {
	sizeOutput, err := r.cachedShell(ctx, "DisplayMetrics", "wm", "size")
	if err != nil {
		return definitions.DisplayMetrics{}, err
	}
	width, height, ok := parseWMSize(sizeOutput)
	if !ok {
		return definitions.DisplayMetrics{}, fmt.Errorf("unexpected wm size output: %q", strings.TrimSpace(sizeOutput))
	}

	metrics := definitions.DisplayMetrics{WidthPx: width, HeightPx: height}
	densityOutput, err := r.cachedShell(ctx, "DisplayMetrics", "wm", "density")
	if err == nil {
		if dpi, ok := parseWMDensity(densityOutput); ok {
			metrics.PixelRatio = float64(dpi) / baselineDensity
		}
	}
	return metrics, nil
}

var wmSize = regexp.MustCompile(`(Physical|Override) size:\s*(\d+)x(\d+)`)

// parseWMSize prefers the override size, which is what apps render at.
func parseWMSize(output string) (int, int, bool) {
	var width, height int
	found := false
	for _, m := range wmSize.FindAllStringSubmatch(output, -1) {
		if found && m[1] != "Override" {
			continue
		}
		width, _ = strconv.Atoi(m[2])
		height, _ = strconv.Atoi(m[3])
		found = true
	}
	return width, height, found
}

var wmDensity = regexp.MustCompile(`(Physical|Override) density:\s*(\d+)`)

func parseWMDensity(output string) (int, bool) {
	dpi, found := 0, false
	for _, m := range wmDensity.FindAllStringSubmatch(output, -1) {
		if found && m[1] != "Override" {
			continue
		}
		dpi, _ = strconv.Atoi(m[2])
		found = true
	}
	return dpi, found
}

// AppIdentity reports the package whose permissions are inspected.
func (r *ADBDevice) AppIdentity(ctx context.Context) (definitions.AppIdentity, error) {
	output, err := r.packageDump(ctx)
	if err != nil {
		return definitions.AppIdentity{}, err
	}
	app := parsePackageVersion(output)
	app.Package = r.appPackage
	app.Name = r.appPackage[strings.LastIndex(r.appPackage, ".")+1:]
	return app, nil
}

func (r *ADBDevice) packageDump(ctx context.Context) (string, error) {
	output, err := r.cachedShell(ctx, "Package", "dumpsys", "package", r.appPackage)
	if err != nil {
		return "", err
	}
	if strings.Contains(output, "Unable to find package") {
		return "", fmt.Errorf("package %s not installed", r.appPackage)
	}
	return output, nil
}

var (
	versionName = regexp.MustCompile(`versionName=(\S+)`)
	versionCode = regexp.MustCompile(`versionCode=(\d+)`)
)

func parsePackageVersion(output string) definitions.AppIdentity {
	var app definitions.AppIdentity
	if m := versionName.FindStringSubmatch(output); m != nil {
		app.Version = m[1]
	}
	if m := versionCode.FindStringSubmatch(output); m != nil {
		app.Build = m[1]
	}
	return app
}
