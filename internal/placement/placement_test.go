package placement

import (
	"errors"
	"regexp"
	"testing"

	"fleetmap/core-go/internal/fleet"
)

var zones = []fleet.Zone{{ID: "ZONE-A"}, {ID: "ZONE-B"}}

var here = fleet.Coordinates{Lat: 1.3521, Lng: 103.8198}

func TestLocationPicked_IdleIsNoOp(t *testing.T) {
	w := New(Options{})
	cmd, err := w.LocationPicked(here)
	if err != nil || cmd != nil {
		t.Fatalf("expected no command while idle, got %+v err=%v", cmd, err)
	}
	if w.State() != StateIdle {
		t.Fatalf("expected IDLE, got %s", w.State())
	}
}

func TestAssetPlacement_EmitsExactlyOneCommand(t *testing.T) {
	w := New(Options{})
	p, err := w.BeginAsset(fleet.AssetDraft{ID: " TR-9 ", ZoneID: "ZONE-B"}, zones)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Kind != KindAsset || p.Asset.ID != "TR-9" || w.State() != StateAwaitingLocation {
		t.Fatalf("unexpected pending %+v state %s", p, w.State())
	}

	cmd, err := w.LocationPicked(here)
	if err != nil || cmd == nil {
		t.Fatalf("expected command, got %+v err=%v", cmd, err)
	}
	if cmd.Kind != KindAsset || cmd.ID != "TR-9" || cmd.ZoneID != "ZONE-B" || cmd.Location != here {
		t.Fatalf("unexpected command %+v", cmd)
	}
	if w.State() != StateIdle || w.Pending() != nil {
		t.Fatalf("expected IDLE after commit")
	}

	again, err := w.LocationPicked(here)
	if err != nil || again != nil {
		t.Fatalf("expected second pick to produce nothing, got %+v", again)
	}
}

func TestBeginAsset_ZoneFallback(t *testing.T) {
	w := New(Options{})
	p, _ := w.BeginAsset(fleet.AssetDraft{ID: "A", ZoneID: "ZONE-GONE"}, zones)
	if p.Asset.ZoneID != "ZONE-A" {
		t.Fatalf("expected default zone, got %q", p.Asset.ZoneID)
	}
	w.Cancel()

	p, _ = w.BeginAsset(fleet.AssetDraft{ID: "A"}, []fleet.Zone{{ID: "ZONE-B"}})
	if p.Asset.ZoneID != "" {
		t.Fatalf("expected unassigned when default zone is unknown, got %q", p.Asset.ZoneID)
	}
	w.Cancel()

	w = New(Options{DefaultZoneID: "ZONE-B"})
	p, _ = w.BeginAsset(fleet.AssetDraft{ID: "A"}, zones)
	if p.Asset.ZoneID != "ZONE-B" {
		t.Fatalf("expected configured default zone, got %q", p.Asset.ZoneID)
	}
}

func TestBegin_RequiresIdle(t *testing.T) {
	w := New(Options{})
	if _, err := w.BeginZone(fleet.ZoneDraft{Name: "Dock"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.BeginAsset(fleet.AssetDraft{}, zones); !errors.Is(err, ErrPlacementPending) {
		t.Fatalf("expected ErrPlacementPending, got %v", err)
	}
	if _, err := w.BeginZone(fleet.ZoneDraft{Name: "Other"}); !errors.Is(err, ErrPlacementPending) {
		t.Fatalf("expected ErrPlacementPending, got %v", err)
	}
	if w.Pending().Zone.Name != "Dock" {
		t.Fatalf("expected original placement to survive")
	}
}

func TestBeginZone_RejectsBlankName(t *testing.T) {
	w := New(Options{})
	for _, name := range []string{"", "   "} {
		if _, err := w.BeginZone(fleet.ZoneDraft{Name: name}); !errors.Is(err, ErrZoneNameRequired) {
			t.Fatalf("expected ErrZoneNameRequired, got %v", err)
		}
	}
	if w.State() != StateIdle {
		t.Fatalf("expected rejected draft to leave workflow IDLE")
	}
}

func TestZonePlacement_GeneratesID(t *testing.T) {
	w := New(Options{NewID: func(prefix string) string { return prefix + "-FIXED" }})
	p, err := w.BeginZone(fleet.ZoneDraft{Name: " Loading Bay "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Zone.ID != "Z-FIXED" || p.Zone.Name != "Loading Bay" {
		t.Fatalf("unexpected draft %+v", p.Zone)
	}
	cmd, _ := w.LocationPicked(here)
	if cmd.Kind != KindZone || cmd.ID != "Z-FIXED" || cmd.Name != "Loading Bay" {
		t.Fatalf("unexpected command %+v", cmd)
	}
}

func TestLocationPicked_InvalidKeepsPending(t *testing.T) {
	w := New(Options{})
	_, _ = w.BeginAsset(fleet.AssetDraft{ID: "A"}, zones)
	cmd, err := w.LocationPicked(fleet.Coordinates{Lat: 120, Lng: 0})
	if !errors.Is(err, ErrInvalidLocation) || cmd != nil {
		t.Fatalf("expected ErrInvalidLocation, got %+v %v", cmd, err)
	}
	if w.State() != StateAwaitingLocation {
		t.Fatalf("expected placement to remain pending")
	}
}

func TestCancel(t *testing.T) {
	w := New(Options{})
	if w.Cancel() {
		t.Fatalf("expected cancel while idle to report no change")
	}
	_, _ = w.BeginAsset(fleet.AssetDraft{}, zones)
	if !w.Cancel() || w.State() != StateIdle {
		t.Fatalf("expected cancel to return to IDLE")
	}
	if cmd, _ := w.LocationPicked(here); cmd != nil {
		t.Fatalf("expected no command after cancel")
	}
}

func TestGenerateID(t *testing.T) {
	re := regexp.MustCompile(`^TR-[0-9A-F]{8}$`)
	a, b := GenerateID("TR"), GenerateID("TR")
	if !re.MatchString(a) {
		t.Fatalf("unexpected id format %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
}
