package definitions

import "time"

// SystemResources describes CPU, memory and OS. Every pointer field is nil
// when the platform cannot report it; values are never made up.
type SystemResources struct {
	CPUCores        *int           `json:"cpu_cores"`
	TotalRAMMB      *uint64        `json:"total_ram_mb"`
	FreeRAMMB       *uint64        `json:"free_ram_mb"`
	UsedRAMMB       *uint64        `json:"used_ram_mb"`
	Architecture    *string        `json:"architecture"`
	OSName          *string        `json:"os_name"`
	OSVersion       *string        `json:"os_version"`
	CPUUsagePercent *float64       `json:"cpu_usage_percent"`
	CPUTemperatureC *float64       `json:"cpu_temperature_c"`
	CPUFrequencyMHz *float64       `json:"cpu_frequency_mhz"`
	Uptime          *time.Duration `json:"uptime"`
	ProcessCount    *int           `json:"process_count"`
}

// MemoryInfo is the platform memory reading in megabytes.
type MemoryInfo struct {
	TotalMB uint64
	FreeMB  uint64
	UsedMB  uint64
}

func (s SystemResources) RAMUsagePercentage() float64 {
	if s.TotalRAMMB == nil || *s.TotalRAMMB == 0 || s.UsedRAMMB == nil {
		return 0
	}
	return float64(*s.UsedRAMMB) / float64(*s.TotalRAMMB) * 100
}

func (s SystemResources) ToMap() map[string]any {
	var uptime any
	if s.Uptime != nil {
		uptime = int64(s.Uptime.Seconds())
	}

	return map[string]any{
		"cpu_cores":            optional(s.CPUCores),
		"total_ram_mb":         optional(s.TotalRAMMB),
		"free_ram_mb":          optional(s.FreeRAMMB),
		"used_ram_mb":          optional(s.UsedRAMMB),
		"ram_usage_percentage": s.RAMUsagePercentage(),
		"architecture":         optional(s.Architecture),
		"os_name":              optional(s.OSName),
		"os_version":           optional(s.OSVersion),
		"cpu_usage_percent":    optional(s.CPUUsagePercent),
		"cpu_temperature_c":    optional(s.CPUTemperatureC),
		"cpu_frequency_mhz":    optional(s.CPUFrequencyMHz),
		"uptime_seconds":       uptime,
		"process_count":        optional(s.ProcessCount),
	}
}
