package fleet

import (
	"strings"
	"time"
)

// AssetStatus is derived from telemetry on every normalization pass; it is never read from the feed.
type AssetStatus string

const (
	StatusActive      AssetStatus = "ACTIVE"
	StatusLowBattery  AssetStatus = "LOW_BATTERY"
	StatusMaintenance AssetStatus = "MAINTENANCE"
	StatusLost        AssetStatus = "LOST"
)

var allStatuses = []AssetStatus{
	StatusActive,
	StatusLowBattery,
	StatusMaintenance,
	StatusLost,
}

func AllStatuses() []AssetStatus {
	out := make([]AssetStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus accepts any casing and surrounding whitespace.
func ParseStatus(raw string) (AssetStatus, bool) {
	s := AssetStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, st := range allStatuses {
		if st == s {
			return st, true
		}
	}
	return "", false
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a real WGS84 coordinate.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

type Asset struct {
	ID             string      `json:"id"`
	DisplayName    string      `json:"display_name"`
	Status         AssetStatus `json:"status"`
	BatteryPercent int         `json:"battery_percent"`
	LastSeenAt     time.Time   `json:"last_seen_at"`
	Position       Coordinates `json:"position"`
	// Positioned is false when the feed carried no usable coordinate and Position holds the 0,0 fallback.
	Positioned        bool    `json:"positioned"`
	ZoneID            *string `json:"zone_id"`
	SignalStrengthDBM int     `json:"signal_strength_dbm"`
}

// InZone reports whether the asset references zoneID.
func (a Asset) InZone(zoneID string) bool {
	return a.ZoneID != nil && *a.ZoneID == zoneID
}

type Zone struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Center       Coordinates `json:"center"`
	RadiusMeters float64     `json:"radius_meters"`
	Capacity     int         `json:"capacity"`
}

// ZoneName resolves an asset's zone reference against zones. Dangling and nil references resolve to
// UnassignedZoneName.
func ZoneName(zoneID *string, zones []Zone) string {
	if zoneID == nil {
		return UnassignedZoneName
	}
	for _, z := range zones {
		if z.ID == *zoneID {
			return z.Name
		}
	}
	return UnassignedZoneName
}

const UnassignedZoneName = "UNASSIGNED"

// AssetDraft is what an operator fills in before picking a location for a new asset.
type AssetDraft struct {
	ID     string `json:"id"`
	ZoneID string `json:"zone_id"`
}

// ZoneDraft is what an operator fills in before picking the center of a new zone.
type ZoneDraft struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
