package constants

// SnapshotSummary is the text rendering of a snapshot used by `devpulse
// snapshot --format text`. Tags are filled by helper.RenderSnapshot.
const SnapshotSummary = `Captured: {{ captured_at }} (cycle {{ cycle }})

Device       {{ manufacturer }} {{ model }} ({{ platform }} {{ os_version }}, {{ device_kind }})
Display      {{ display }}
App          {{ app }}

Battery      {{ battery_level }}% {{ battery_state }}{{ battery_extra }}
Storage      {{ storage_used }} / {{ storage_total }} ({{ storage_percent }}%)
Network      {{ network }}
System       {{ cpu_cores }} cores {{ architecture }}, RAM {{ ram }} ({{ ram_percent }}%){{ system_extra }}
Location     {{ location }}
Permissions  {{ permissions_granted }}/{{ permissions_total }} granted ({{ permissions_percent }}%)
`

// RefreshFailed is printed when a refresh cycle produced no snapshot.
const RefreshFailed = `Refresh failed: {{ error }}
`

// RetryHint follows RefreshFailed unless the failure is permanent.
const RetryHint = `Retry with: devpulse snapshot{{ args }}
`

const LocationUnavailable = "unavailable"
