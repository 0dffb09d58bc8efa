package mapsync

import (
	"strings"

	"fleetmap/core-go/internal/fleet"
	"fleetmap/core-go/internal/placement"
)

// AssetFilter narrows the asset list. Empty fields match everything.
type AssetFilter struct {
	// ZoneID matches assets referencing the zone; fleet.UnassignedZoneName matches assets whose zone
	// is missing or unknown.
	ZoneID string
	// Query is a case-insensitive substring of the id or display name.
	Query  string
	Status fleet.AssetStatus
}

type AssetView struct {
	fleet.Asset
	ZoneName string `json:"zone_name"`
	Selected bool   `json:"selected"`
}

func (e *Engine) Assets(f AssetFilter) []AssetView {
	e.mu.Lock()
	defer e.mu.Unlock()

	query := strings.ToLower(strings.TrimSpace(f.Query))
	zoneID := strings.TrimSpace(f.ZoneID)
	selected := e.spotlight.Effective(e.assets)

	out := make([]AssetView, 0, len(e.assets))
	for _, a := range e.assets {
		zoneName := fleet.ZoneName(a.ZoneID, e.zones)
		if zoneID != "" {
			if zoneID == fleet.UnassignedZoneName {
				if zoneName != fleet.UnassignedZoneName {
					continue
				}
			} else if !a.InZone(zoneID) {
				continue
			}
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(a.ID), query) &&
			!strings.Contains(strings.ToLower(a.DisplayName), query) {
			continue
		}
		out = append(out, AssetView{Asset: a, ZoneName: zoneName, Selected: a.ID == selected})
	}
	return out
}

type ZoneView struct {
	fleet.Zone
	Occupancy int `json:"occupancy"`
}

// Zones returns every zone with the number of assets currently referencing it.
func (e *Engine) Zones() []ZoneView {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[string]int, len(e.zones))
	for _, a := range e.assets {
		if a.ZoneID != nil {
			counts[*a.ZoneID]++
		}
	}
	out := make([]ZoneView, 0, len(e.zones))
	for _, z := range e.zones {
		out = append(out, ZoneView{Zone: z, Occupancy: counts[z.ID]})
	}
	return out
}

type SelectionView struct {
	SelectedID *string    `json:"selected_id"`
	Asset      *AssetView `json:"asset"`
}

// Selection reports the selected id and, when it still resolves, the asset behind it.
func (e *Engine) Selection() SelectionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	var v SelectionView
	id := e.spotlight.Selected()
	if id == "" {
		return v
	}
	v.SelectedID = &id
	for _, a := range e.assets {
		if a.ID == id {
			v.Asset = &AssetView{Asset: a, ZoneName: fleet.ZoneName(a.ZoneID, e.zones), Selected: true}
			break
		}
	}
	return v
}

type PlacementView struct {
	State   placement.State    `json:"state"`
	Pending *placement.Pending `json:"pending"`
}

func (e *Engine) Placement() PlacementView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return PlacementView{State: e.placement.State(), Pending: e.placement.Pending()}
}
