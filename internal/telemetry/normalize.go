package telemetry

import (
	"sort"
	"time"

	"fleetmap/core-go/internal/clock"
	"fleetmap/core-go/internal/fleet"
)

const (
	// StaleAfter is how long an asset may go unheard before it is LOST.
	StaleAfter = time.Hour
	// LowBatteryBelow is the exclusive battery threshold for LOW_BATTERY.
	LowBatteryBelow = 20

	DefaultBatteryPercent    = 100
	DefaultSignalStrengthDBM = -60
	DefaultZoneRadiusMeters  = 40
	DefaultZoneCapacity      = 50
)

type Options struct {
	ZoneRadiusMeters float64
	ZoneCapacity     int
}

// Normalizer turns raw feed records into canonical assets and zones. It never fails: every field
// falls back to its default independently.
type Normalizer struct {
	clock        clock.Clock
	zoneRadius   float64
	zoneCapacity int
}

func New(c clock.Clock, opts Options) *Normalizer {
	if c == nil {
		c = clock.Real()
	}
	radius := opts.ZoneRadiusMeters
	if radius <= 0 {
		radius = DefaultZoneRadiusMeters
	}
	capacity := opts.ZoneCapacity
	if capacity <= 0 {
		capacity = DefaultZoneCapacity
	}
	return &Normalizer{clock: c, zoneRadius: radius, zoneCapacity: capacity}
}

// Assets normalizes a whole Tracking snapshot, sorted by id. A nil or empty feed yields an empty slice.
func (n *Normalizer) Assets(raw map[string]map[string]any) []fleet.Asset {
	now := n.clock.Now()
	out := make([]fleet.Asset, 0, len(raw))
	for id, rec := range raw {
		if id == "" {
			continue
		}
		out = append(out, NormalizeAsset(id, rec, now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Zones normalizes a whole Zones snapshot, sorted by id.
func (n *Normalizer) Zones(raw map[string]map[string]any) []fleet.Zone {
	out := make([]fleet.Zone, 0, len(raw))
	for id, rec := range raw {
		if id == "" {
			continue
		}
		out = append(out, n.normalizeZone(id, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NormalizeAsset builds one canonical asset as of now. raw may be nil.
func NormalizeAsset(id string, raw map[string]any, now time.Time) fleet.Asset {
	a := fleet.Asset{
		ID:                id,
		DisplayName:       AssetDisplayName(id),
		BatteryPercent:    DefaultBatteryPercent,
		LastSeenAt:        now,
		SignalStrengthDBM: DefaultSignalStrengthDBM,
	}

	if v, ok := parseInt(raw["battery"]); ok {
		a.BatteryPercent = clampPercent(v)
	}
	if t, ok := parseTimestamp(raw["timestamp"]); ok {
		a.LastSeenAt = t
	}
	if v, ok := parseInt(raw["rssi"]); ok {
		a.SignalStrengthDBM = v
	}
	if zoneID, ok := parseString(raw["zoneId"]); ok {
		a.ZoneID = &zoneID
	}

	a.Position, a.Positioned = parsePosition(raw)
	a.Status = DeriveStatus(a.LastSeenAt, a.BatteryPercent, now)
	return a
}

// DeriveStatus applies the staleness and battery rules in priority order.
func DeriveStatus(lastSeenAt time.Time, batteryPercent int, now time.Time) fleet.AssetStatus {
	if now.Sub(lastSeenAt) >= StaleAfter {
		return fleet.StatusLost
	}
	if batteryPercent < LowBatteryBelow {
		return fleet.StatusLowBattery
	}
	return fleet.StatusActive
}

func (n *Normalizer) normalizeZone(id string, raw map[string]any) fleet.Zone {
	z := fleet.Zone{
		ID:           id,
		Name:         ZoneDisplayName(id),
		RadiusMeters: n.zoneRadius,
		Capacity:     n.zoneCapacity,
	}
	if name, ok := parseString(raw["name"]); ok {
		z.Name = name
	}
	lat, latOK := parseFloat(raw["centerLat"])
	lng, lngOK := parseFloat(raw["centerLng"])
	if latOK && lngOK {
		center := fleet.Coordinates{Lat: lat, Lng: lng}
		if center.Valid() {
			z.Center = center
		}
	}
	return z
}

func parsePosition(raw map[string]any) (fleet.Coordinates, bool) {
	latRaw, latPresent := firstPresent(raw, "latitude", "lat")
	lngRaw, lngPresent := firstPresent(raw, "longitude", "lng")
	if !latPresent || !lngPresent {
		return fleet.Coordinates{}, false
	}
	lat, latOK := parseFloat(latRaw)
	lng, lngOK := parseFloat(lngRaw)
	if !latOK || !lngOK {
		return fleet.Coordinates{}, false
	}
	c := fleet.Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return fleet.Coordinates{}, false
	}
	return c, true
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func AssetDisplayName(id string) string { return "Unit " + id }

func ZoneDisplayName(id string) string { return "Zone " + id }
