// Package reconcile keeps the rendered primitive set in step with the canonical asset and zone
// collections. The Reconciler is the only writer of primitives.
package reconcile

import (
	"sort"

	"fleetmap/core-go/internal/fleet"
	"fleetmap/core-go/internal/mapadapter"
)

type Op struct {
	Type      mapadapter.OpType
	Key       mapadapter.Key
	Primitive mapadapter.Primitive
}

type Options struct {
	Theme Theme
}

type Reconciler struct {
	adapter mapadapter.Adapter
	palette Palette
	owned   map[mapadapter.Key]struct{}
}

func New(adapter mapadapter.Adapter, opts Options) *Reconciler {
	theme := opts.Theme
	if theme == "" {
		theme = ThemeDark
	}
	return &Reconciler{
		adapter: adapter,
		palette: PaletteFor(theme),
		owned:   make(map[mapadapter.Key]struct{}),
	}
}

// Reconcile brings the adapter in line with assets and zones and returns the ops it applied.
//
// selectedID must already be resolved against assets: pass "" when nothing is selected or the selected
// asset is gone. Unpositioned assets have no primitive.
func (r *Reconciler) Reconcile(assets []fleet.Asset, zones []fleet.Zone, selectedID string) []Op {
	ops := Plan(r.owned, assets, zones, selectedID, r.palette)
	for _, op := range ops {
		switch op.Type {
		case mapadapter.OpCreate:
			r.owned[op.Key] = struct{}{}
			if r.adapter != nil {
				r.adapter.CreatePrimitive(op.Primitive)
			}
		case mapadapter.OpUpdate:
			if r.adapter != nil {
				r.adapter.UpdatePrimitive(op.Primitive)
			}
		case mapadapter.OpRemove:
			delete(r.owned, op.Key)
			if r.adapter != nil {
				r.adapter.RemovePrimitive(op.Key)
			}
		}
	}
	return ops
}

// Owned reports whether the reconciler currently holds a primitive for key.
func (r *Reconciler) Owned(key mapadapter.Key) bool {
	_, ok := r.owned[key]
	return ok
}

func (r *Reconciler) Len() int { return len(r.owned) }

// Plan computes the ops that turn owned into the desired set without touching anything.
// Order: removals, zones, assets, then the selected asset so it lands on top. A selection without a
// primitive to emphasize leaves every asset neutral.
func Plan(owned map[mapadapter.Key]struct{}, assets []fleet.Asset, zones []fleet.Zone, selectedID string, palette Palette) []Op {
	if !renderable(assets, selectedID) {
		selectedID = ""
	}
	desired := make(map[mapadapter.Key]mapadapter.Primitive, len(assets)+len(zones))
	var zoneKeys, assetKeys []mapadapter.Key
	var selectedKey mapadapter.Key

	for _, z := range zones {
		key := mapadapter.ZoneKey(z.ID)
		if _, dup := desired[key]; dup {
			continue
		}
		desired[key] = zonePrimitive(z, palette)
		zoneKeys = append(zoneKeys, key)
	}
	for _, a := range assets {
		if !a.Positioned {
			continue
		}
		key := mapadapter.AssetKey(a.ID)
		if _, dup := desired[key]; dup {
			continue
		}
		desired[key] = assetPrimitive(a, zones, selectedID, palette)
		if a.ID == selectedID {
			selectedKey = key
			continue
		}
		assetKeys = append(assetKeys, key)
	}

	var removals []mapadapter.Key
	for key := range owned {
		if _, ok := desired[key]; !ok {
			removals = append(removals, key)
		}
	}
	sortKeys(removals)
	sortKeys(zoneKeys)
	sortKeys(assetKeys)
	if selectedKey != "" {
		assetKeys = append(assetKeys, selectedKey)
	}

	ops := make([]Op, 0, len(removals)+len(desired))
	for _, key := range removals {
		ops = append(ops, Op{Type: mapadapter.OpRemove, Key: key})
	}
	for _, group := range [][]mapadapter.Key{zoneKeys, assetKeys} {
		for _, key := range group {
			typ := mapadapter.OpCreate
			if _, ok := owned[key]; ok {
				typ = mapadapter.OpUpdate
			}
			ops = append(ops, Op{Type: typ, Key: key, Primitive: desired[key]})
		}
	}
	return ops
}

func renderable(assets []fleet.Asset, id string) bool {
	if id == "" {
		return false
	}
	for _, a := range assets {
		if a.ID == id {
			return a.Positioned
		}
	}
	return false
}

func assetPrimitive(a fleet.Asset, zones []fleet.Zone, selectedID string, palette Palette) mapadapter.Primitive {
	emphasis := EmphasisNeutral
	if selectedID != "" {
		emphasis = EmphasisDimmed
		if a.ID == selectedID {
			emphasis = EmphasisSelected
		}
	}
	return mapadapter.Primitive{
		Key:      mapadapter.AssetKey(a.ID),
		Kind:     mapadapter.KindAsset,
		EntityID: a.ID,
		Position: a.Position,
		Style:    palette.AssetStyle(a.Status, emphasis),
		Tooltip: &mapadapter.Tooltip{
			ID:                a.ID,
			Status:            string(a.Status),
			ZoneName:          fleet.ZoneName(a.ZoneID, zones),
			SignalStrengthDBM: a.SignalStrengthDBM,
			BatteryPercent:    a.BatteryPercent,
		},
	}
}

func zonePrimitive(z fleet.Zone, palette Palette) mapadapter.Primitive {
	return mapadapter.Primitive{
		Key:      mapadapter.ZoneKey(z.ID),
		Kind:     mapadapter.KindZone,
		EntityID: z.ID,
		Position: z.Center,
		Style:    palette.ZoneStyle(z),
	}
}

func sortKeys(keys []mapadapter.Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

// Counts tallies ops by type.
func Counts(ops []Op) map[mapadapter.OpType]int {
	out := make(map[mapadapter.OpType]int, 3)
	for _, op := range ops {
		out[op.Type]++
	}
	return out
}
