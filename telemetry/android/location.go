package android

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/spance/devpulse/telemetry/definitions"
)

const (
	fineLocation   = "android.permission.ACCESS_FINE_LOCATION"
	coarseLocation = "android.permission.ACCESS_COARSE_LOCATION"

	locationPollInterval = time.Second
)

func (r *ADBDevice) LocationServiceEnabled(ctx context.Context) (bool, error) {
	output, err := r.shell(ctx, "LocationEnabled", "settings", "get", "secure", "location_mode")
	if err != nil {
		return false, err
	}
	switch mode := strings.TrimSpace(output); mode {
	case "0":
		return false, nil
	case "1", "2", "3":
		return true, nil
	}

	// location_mode is gone on newer releases.
	output, err = r.shell(ctx, "LocationEnabled", "cmd", "location", "is-location-enabled")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) == "true", nil
}

func (r *ADBDevice) LocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	output, err := r.packageDump(ctx)
	if err != nil {
		return definitions.LocationPermissionNotDetermined, err
	}
	return locationPermission(parseGrants(output)), nil
}

// locationPermission maps the fine/coarse grant flags: never asked has no
// USER_SET flag, a refusal sets USER_SET and "don't ask again" USER_FIXED.
func locationPermission(grants map[string]grant) definitions.LocationPermission {
	fine, hasFine := grants[fineLocation]
	coarse, hasCoarse := grants[coarseLocation]
	if !hasFine && !hasCoarse {
		return definitions.LocationPermissionDenied
	}
	if fine.Granted || coarse.Granted {
		return definitions.LocationPermissionGranted
	}
	if fine.hasFlag("USER_FIXED") || coarse.hasFlag("USER_FIXED") {
		return definitions.LocationPermissionDeniedForever
	}
	if fine.hasFlag("USER_SET") || coarse.hasFlag("USER_SET") {
		return definitions.LocationPermissionDenied
	}
	return definitions.LocationPermissionNotDetermined
}

// RequestLocationPermission grants fine location to the app package with
// `pm grant` and reports the resulting state.
func (r *ADBDevice) RequestLocationPermission(ctx context.Context) (definitions.LocationPermission, error) {
	output, err := r.shell(ctx, "RequestLocation", "pm", "grant", r.appPackage, fineLocation)
	if err != nil || strings.Contains(output, "Exception") {
		log.Warn().Err(err).Str("output", strings.TrimSpace(output)).Msg("pm grant refused")
	}
	r.forget("dumpsys", "package", r.appPackage)

	permission, err := r.LocationPermission(ctx)
	if err != nil {
		return definitions.LocationPermissionDenied, err
	}
	if permission == definitions.LocationPermissionNotDetermined {
		return definitions.LocationPermissionDenied, nil
	}
	return permission, nil
}

// CurrentPosition waits for a last-known fix to appear in `dumpsys location`
// until ctx expires.
func (r *ADBDevice) CurrentPosition(ctx context.Context) (definitions.GeoPosition, error) {
	ticker := time.NewTicker(locationPollInterval)
	defer ticker.Stop()

	for {
		output, err := r.shell(ctx, "Location", "dumpsys", "location")
		if err != nil && ctx.Err() != nil {
			return definitions.GeoPosition{}, ctx.Err()
		}
		if err == nil {
			if fix, ok := parseLastLocation(output); ok {
				return r.positionFromFix(ctx, fix), nil
			}
		}

		select {
		case <-ctx.Done():
			return definitions.GeoPosition{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *ADBDevice) positionFromFix(ctx context.Context, fix locationFix) definitions.GeoPosition {
	position := fix.Position
	position.Timestamp = time.Now()
	if fix.Elapsed > 0 {
		if uptime, err := r.Uptime(ctx); err == nil && uptime >= fix.Elapsed {
			position.Timestamp = position.Timestamp.Add(-(uptime - fix.Elapsed))
		}
	}
	return position
}

// locationFix is one Location[...] record. Elapsed is the fix time as
// time since boot.
type locationFix struct {
	Provider string
	Position definitions.GeoPosition
	Elapsed  time.Duration
}

var (
	locationRecord = regexp.MustCompile(`Location\[(\w+) (-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)([^\]]*)\]`)
	locationField  = regexp.MustCompile(`(\w+)=([+-]?[\w.]+)`)
	elapsedPart    = regexp.MustCompile(`(\d+)(ms|d|h|m|s)`)
)

// parseLastLocation returns the newest fix across providers.
func parseLastLocation(output string) (locationFix, bool) {
	var (
		best  locationFix
		found bool
	)
	for _, m := range locationRecord.FindAllStringSubmatch(output, -1) {
		fix := locationFix{Provider: m[1]}
		fix.Position.Latitude, _ = strconv.ParseFloat(m[2], 64)
		fix.Position.Longitude, _ = strconv.ParseFloat(m[3], 64)

		rest := m[4]
		for _, f := range locationField.FindAllStringSubmatch(rest, -1) {
			v, _ := strconv.ParseFloat(f[2], 64)
			switch f[1] {
			case "hAcc", "acc":
				fix.Position.Accuracy = v
			case "alt":
				fix.Position.Altitude = v
			case "vel":
				fix.Position.Speed = v
			case "sAcc":
				fix.Position.SpeedAccuracy = v
			case "bear":
				fix.Position.Heading = v
			case "bAcc":
				fix.Position.HeadingAccuracy = v
			case "et":
				fix.Elapsed = parseElapsed(f[2])
			}
		}
		fix.Position.IsMocked = strings.Contains(rest, " mock")

		if !found || fix.Elapsed > best.Elapsed {
			best, found = fix, true
		}
	}
	return best, found
}

// parseElapsed parses the android elapsed-time format, e.g. +1d2h3m4s5ms.
func parseElapsed(s string) time.Duration {
	var d time.Duration
	for _, m := range elapsedPart.FindAllStringSubmatch(s, -1) {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "d":
			d += time.Duration(n) * 24 * time.Hour
		case "h":
			d += time.Duration(n) * time.Hour
		case "m":
			d += time.Duration(n) * time.Minute
		case "s":
			d += time.Duration(n) * time.Second
		case "ms":
			d += time.Duration(n) * time.Millisecond
		}
	}
	return d
}
