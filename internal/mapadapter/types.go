// Package mapadapter is the boundary between the synchronization core and whatever renders the map.
//
// The core only ever talks to an Adapter. Scene is the in-process Adapter used by the service: it keeps
// the current primitive set and camera, and journals every operation so map clients can replay them.
package mapadapter

import (
	"strings"

	"fleetmap/core-go/internal/fleet"
)

type Kind string

const (
	KindAsset Kind = "asset"
	KindZone  Kind = "zone"
)

// Key identifies one primitive. Assets and zones live in separate key spaces so an asset and a zone
// that share an id never collide.
type Key string

func AssetKey(id string) Key { return Key(string(KindAsset) + ":" + id) }

func ZoneKey(id string) Key { return Key(string(KindZone) + ":" + id) }

// Split returns the entity kind and id encoded in k.
func (k Key) Split() (Kind, string, bool) {
	kind, id, ok := strings.Cut(string(k), ":")
	if !ok || id == "" {
		return "", "", false
	}
	switch Kind(kind) {
	case KindAsset, KindZone:
		return Kind(kind), id, true
	default:
		return "", "", false
	}
}

type Style struct {
	Radius      float64 `json:"radius"`
	Color       string  `json:"color"`
	FillColor   string  `json:"fill_color"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fill_opacity"`
	Weight      float64 `json:"weight"`
	DashArray   string  `json:"dash_array,omitempty"`
	ZIndex      int     `json:"z_index"`
	// Interactive primitives receive clicks; non-interactive ones let them fall through to the map.
	Interactive bool `json:"interactive"`
	// RadiusInMeters marks geographic circles (zones); otherwise Radius is in screen pixels.
	RadiusInMeters bool `json:"radius_in_meters"`
}

type Tooltip struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	ZoneName          string `json:"zone_name"`
	SignalStrengthDBM int    `json:"signal_strength_dbm"`
	BatteryPercent    int    `json:"battery_percent"`
}

type Primitive struct {
	Key      Key               `json:"key"`
	Kind     Kind              `json:"kind"`
	EntityID string            `json:"entity_id"`
	Position fleet.Coordinates `json:"position"`
	Style    Style             `json:"style"`
	Tooltip  *Tooltip          `json:"tooltip,omitempty"`
}

type Camera struct {
	Center fleet.Coordinates `json:"center"`
	Zoom   int               `json:"zoom"`
}

// Adapter is everything the core may ask of a map renderer.
type Adapter interface {
	CreatePrimitive(p Primitive)
	UpdatePrimitive(p Primitive)
	RemovePrimitive(key Key)
	MoveCamera(center fleet.Coordinates, zoom int)
}
