package definitions

// StorageStatus holds sizes in bytes; any of them is nil when the platform
// call behind it failed.
type StorageStatus struct {
	TotalBytes     *uint64 `json:"total_bytes"`
	UsedBytes      *uint64 `json:"used_bytes"`
	FreeBytes      *uint64 `json:"free_bytes"`
	AvailableBytes *uint64 `json:"available_bytes"`
}

// UsagePercentage is used/total*100, or 0 when either value is unknown or
// total is zero.
func (s StorageStatus) UsagePercentage() float64 {
	if s.TotalBytes == nil || *s.TotalBytes == 0 || s.UsedBytes == nil {
		return 0
	}
	return float64(*s.UsedBytes) / float64(*s.TotalBytes) * 100
}

func (s StorageStatus) ToMap() map[string]any {
	return map[string]any{
		"total_bytes":      optional(s.TotalBytes),
		"used_bytes":       optional(s.UsedBytes),
		"free_bytes":       optional(s.FreeBytes),
		"available_bytes":  optional(s.AvailableBytes),
		"usage_percentage": s.UsagePercentage(),
	}
}
