package android

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spance/devpulse/constants"
	"github.com/spance/devpulse/telemetry/definitions"
)

// grant is one permission line of `dumpsys package`.
type grant struct {
	Granted bool
	Flags   []string
}

func (g grant) hasFlag(flag string) bool {
	for _, f := range g.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

var grantLine = regexp.MustCompile(`^\s*([\w.]+): granted=(true|false)(?:, flags=\[\s*([^\]]*)\])?`)

// parseGrants reads install and runtime permission lines. The first
// occurrence wins, which is user 0 on multi-user devices.
func parseGrants(output string) map[string]grant {
	grants := make(map[string]grant)
	for _, line := range strings.Split(output, "\n") {
		m := grantLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, seen := grants[m[1]]; seen {
			continue
		}
		var flags []string
		for _, f := range strings.Split(m[3], "|") {
			if f = strings.TrimSpace(f); f != "" {
				flags = append(flags, f)
			}
		}
		grants[m[1]] = grant{Granted: m[2] == "true", Flags: flags}
	}
	return grants
}

func (r *ADBDevice) PermissionStatus(ctx context.Context, kind definitions.PermissionKind) (definitions.PermissionStatus, error) {
	spec, ok := constants.GetPermissionSpec(string(kind))
	if !ok || len(spec.Android) == 0 {
		return definitions.PermissionUnknown, definitions.ErrUnsupported
	}
	output, err := r.packageDump(ctx)
	if err != nil {
		return definitions.PermissionUnknown, err
	}
	sdk, err := r.sdkInt(ctx)
	if err != nil {
		return definitions.PermissionUnknown, fmt.Errorf("read sdk level: %w", err)
	}
	return permissionStatus(parseGrants(output), spec, sdk)
}

// permissionStatus folds the manifest permissions behind one kind into a
// single status. Kinds newer than the device are unsupported.
func permissionStatus(grants map[string]grant, spec constants.PermissionSpec, sdk int) (definitions.PermissionStatus, error) {
	if sdk < spec.MinSDK {
		return definitions.PermissionUnknown, definitions.ErrUnsupported
	}

	granted, userFixed, policyFixed := 0, false, false
	for _, name := range spec.Android {
		g, ok := grants[name]
		if !ok {
			continue
		}
		if g.Granted {
			granted++
		}
		userFixed = userFixed || g.hasFlag("USER_FIXED")
		policyFixed = policyFixed || g.hasFlag("POLICY_FIXED")
	}

	switch {
	case granted == len(spec.Android):
		return definitions.PermissionGranted, nil
	case granted > 0:
		return definitions.PermissionLimited, nil
	case policyFixed:
		return definitions.PermissionRestricted, nil
	case userFixed:
		return definitions.PermissionPermanentlyDenied, nil
	default:
		return definitions.PermissionDenied, nil
	}
}
