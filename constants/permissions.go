package constants

import (
	_ "embed"
	"errors"
	"sync"

	json "github.com/bytedance/sonic"
	"github.com/samber/lo"
)

//go:embed permission_kinds.json
var permissionKindsJSON []byte

// PermissionSpec describes one permission kind the dashboard reports and the
// Android manifest permissions behind it.
type PermissionSpec struct {
	Kind    string   `json:"kind"`
	Android []string `json:"android"`
	MinSDK  int      `json:"min_sdk"`
}

var (
	permissionSpecs   []PermissionSpec
	permissionsByKind map[string]PermissionSpec
	errPermissions    error
	permissionsOnce   = new(sync.Once)
)

// LoadPermissions loads the permission table from the embedded JSON.
func LoadPermissions() ([]PermissionSpec, error) {
	permissionsOnce.Do(func() {
		if err := json.Unmarshal(permissionKindsJSON, &permissionSpecs); err != nil {
			errPermissions = errors.Join(err, errors.New("failed to unmarshal embedded permission_kinds.json"))
			return
		}
		permissionsByKind = lo.KeyBy(permissionSpecs, func(spec PermissionSpec) string {
			return spec.Kind
		})
	})
	return permissionSpecs, errPermissions
}

// PermissionKinds returns the fixed, ordered list of permission kinds.
func PermissionKinds() []string {
	specs, err := LoadPermissions()
	if err != nil {
		return nil
	}
	return lo.Map(specs, func(spec PermissionSpec, _ int) string {
		return spec.Kind
	})
}

// GetPermissionSpec returns the table entry for kind.
func GetPermissionSpec(kind string) (PermissionSpec, bool) {
	if _, err := LoadPermissions(); err != nil {
		return PermissionSpec{}, false
	}
	spec, ok := permissionsByKind[kind]
	return spec, ok
}
