package definitions

import "time"

type GeoPosition struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Altitude        float64   `json:"altitude"`
	Accuracy        float64   `json:"accuracy"`
	Speed           float64   `json:"speed"`
	SpeedAccuracy   float64   `json:"speed_accuracy"`
	Heading         float64   `json:"heading"`
	HeadingAccuracy float64   `json:"heading_accuracy"`
	Timestamp       time.Time `json:"timestamp"`
	IsMocked        bool      `json:"is_mocked"`
}

func (g GeoPosition) ToMap() map[string]any {
	return map[string]any{
		"latitude":         g.Latitude,
		"longitude":        g.Longitude,
		"altitude":         g.Altitude,
		"accuracy":         g.Accuracy,
		"speed":            g.Speed,
		"speed_accuracy":   g.SpeedAccuracy,
		"heading":          g.Heading,
		"heading_accuracy": g.HeadingAccuracy,
		"timestamp":        g.Timestamp,
		"is_mocked":        g.IsMocked,
	}
}

// LocationPermission is the state of the location permission as reported by
// the platform before and after a request.
type LocationPermission string

const (
	LocationPermissionGranted       LocationPermission = "granted"
	LocationPermissionDenied        LocationPermission = "denied"
	LocationPermissionDeniedForever LocationPermission = "denied_forever"
	LocationPermissionNotDetermined LocationPermission = "not_determined"
)
