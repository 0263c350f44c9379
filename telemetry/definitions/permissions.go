package definitions

import (
	"sort"

	"github.com/samber/lo"
)

type PermissionKind string

type PermissionStatus string

const (
	PermissionGranted           PermissionStatus = "granted"
	PermissionDenied            PermissionStatus = "denied"
	PermissionRestricted        PermissionStatus = "restricted"
	PermissionLimited           PermissionStatus = "limited"
	PermissionPermanentlyDenied PermissionStatus = "permanently_denied"
	PermissionUnknown           PermissionStatus = "unknown"
)

// PermissionSet maps each queried permission kind to its status. Kinds the
// platform does not support, or whose query failed, are absent.
type PermissionSet struct {
	Statuses map[PermissionKind]PermissionStatus `json:"statuses"`
}

// NewPermissionSet copies statuses so the set cannot be changed through the
// caller's map.
func NewPermissionSet(statuses map[PermissionKind]PermissionStatus) PermissionSet {
	copied := make(map[PermissionKind]PermissionStatus, len(statuses))
	for kind, status := range statuses {
		copied[kind] = status
	}
	return PermissionSet{Statuses: copied}
}

func (p PermissionSet) Status(kind PermissionKind) (PermissionStatus, bool) {
	status, ok := p.Statuses[kind]
	return status, ok
}

func (p PermissionSet) GrantedCount() int {
	return lo.CountBy(lo.Values(p.Statuses), func(s PermissionStatus) bool {
		return s == PermissionGranted
	})
}

func (p PermissionSet) TotalCount() int {
	return len(p.Statuses)
}

// GrantedPercentage is granted/total*100, 0 for an empty set.
func (p PermissionSet) GrantedPercentage() float64 {
	total := p.TotalCount()
	if total == 0 {
		return 0
	}
	return float64(p.GrantedCount()) / float64(total) * 100
}

// Kinds returns the kinds present in the set in sorted order.
func (p PermissionSet) Kinds() []PermissionKind {
	kinds := lo.Keys(p.Statuses)
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (p PermissionSet) ToMap() map[string]any {
	statuses := make(map[string]any, len(p.Statuses))
	for kind, status := range p.Statuses {
		statuses[string(kind)] = string(status)
	}

	return map[string]any{
		"statuses":           statuses,
		"granted_count":      p.GrantedCount(),
		"total_count":        p.TotalCount(),
		"granted_percentage": p.GrantedPercentage(),
	}
}
