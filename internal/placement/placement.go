// Package placement implements the two-step "describe it, then tap where it goes" workflow for new
// assets and zones.
package placement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fleetmap/core-go/internal/fleet"
)

type State string

const (
	StateIdle             State = "IDLE"
	StateAwaitingLocation State = "AWAITING_LOCATION"
)

type Kind string

const (
	KindAsset Kind = "ASSET"
	KindZone  Kind = "ZONE"
)

const DefaultZoneID = "ZONE-A"

var (
	ErrPlacementPending = errors.New("a placement is already awaiting a location")
	ErrZoneNameRequired = errors.New("zone name is required")
	ErrInvalidLocation  = errors.New("invalid location")
)

// Pending is the single in-flight placement. Exactly one of Asset or Zone is set.
type Pending struct {
	Kind  Kind              `json:"kind"`
	Asset *fleet.AssetDraft `json:"asset,omitempty"`
	Zone  *fleet.ZoneDraft  `json:"zone,omitempty"`
}

// Command is the creation a confirmed placement turns into.
type Command struct {
	Kind     Kind
	ID       string
	Location fleet.Coordinates
	// ZoneID is the resolved zone for an asset; empty means unassigned.
	ZoneID string
	// Name is the zone name.
	Name string
}

type Options struct {
	DefaultZoneID string
	// NewID overrides id generation; prefix is "TR" or "Z".
	NewID func(prefix string) string
}

type Workflow struct {
	pending     *Pending
	defaultZone string
	newID       func(prefix string) string
}

func New(opts Options) *Workflow {
	w := &Workflow{
		defaultZone: strings.TrimSpace(opts.DefaultZoneID),
		newID:       opts.NewID,
	}
	if w.defaultZone == "" {
		w.defaultZone = DefaultZoneID
	}
	if w.newID == nil {
		w.newID = GenerateID
	}
	return w
}

// GenerateID returns prefix-XXXXXXXX from a random uuid.
func GenerateID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:8])
}

func (w *Workflow) State() State {
	if w.pending == nil {
		return StateIdle
	}
	return StateAwaitingLocation
}

// Pending returns a copy of the in-flight placement, or nil when idle.
func (w *Workflow) Pending() *Pending {
	if w.pending == nil {
		return nil
	}
	cp := *w.pending
	if cp.Asset != nil {
		d := *cp.Asset
		cp.Asset = &d
	}
	if cp.Zone != nil {
		d := *cp.Zone
		cp.Zone = &d
	}
	return &cp
}

// BeginAsset stores draft and waits for a location. A blank id is generated. The zone is kept when
// known, otherwise the default zone is used when known, otherwise the asset is unassigned.
func (w *Workflow) BeginAsset(draft fleet.AssetDraft, zones []fleet.Zone) (Pending, error) {
	if w.pending != nil {
		return Pending{}, ErrPlacementPending
	}
	draft.ID = strings.TrimSpace(draft.ID)
	if draft.ID == "" {
		draft.ID = w.newID("TR")
	}
	draft.ZoneID = w.resolveZone(strings.TrimSpace(draft.ZoneID), zones)

	w.pending = &Pending{Kind: KindAsset, Asset: &draft}
	return *w.Pending(), nil
}

// BeginZone stores draft and waits for a location. The name must be non-blank.
func (w *Workflow) BeginZone(draft fleet.ZoneDraft) (Pending, error) {
	if w.pending != nil {
		return Pending{}, ErrPlacementPending
	}
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		return Pending{}, ErrZoneNameRequired
	}
	draft.ID = strings.TrimSpace(draft.ID)
	if draft.ID == "" {
		draft.ID = w.newID("Z")
	}

	w.pending = &Pending{Kind: KindZone, Zone: &draft}
	return *w.Pending(), nil
}

// LocationPicked combines a freshly picked location with the pending draft. When idle it returns
// (nil, nil): the pick was ordinary map interaction. An invalid location leaves the placement pending.
func (w *Workflow) LocationPicked(loc fleet.Coordinates) (*Command, error) {
	if w.pending == nil {
		return nil, nil
	}
	if !loc.Valid() {
		return nil, fmt.Errorf("%w: %v,%v", ErrInvalidLocation, loc.Lat, loc.Lng)
	}

	p := w.pending
	w.pending = nil

	cmd := &Command{Kind: p.Kind, Location: loc}
	switch p.Kind {
	case KindAsset:
		cmd.ID = p.Asset.ID
		cmd.ZoneID = p.Asset.ZoneID
	case KindZone:
		cmd.ID = p.Zone.ID
		cmd.Name = p.Zone.Name
	}
	return cmd, nil
}

// Cancel returns to idle. Always safe.
func (w *Workflow) Cancel() bool {
	was := w.pending != nil
	w.pending = nil
	return was
}

func (w *Workflow) resolveZone(zoneID string, zones []fleet.Zone) string {
	if zoneID != "" && knownZone(zoneID, zones) {
		return zoneID
	}
	if knownZone(w.defaultZone, zones) {
		return w.defaultZone
	}
	return ""
}

func knownZone(id string, zones []fleet.Zone) bool {
	for _, z := range zones {
		if z.ID == id {
			return true
		}
	}
	return false
}
