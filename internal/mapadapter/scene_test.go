package mapadapter

import (
	"errors"
	"testing"

	"fleetmap/core-go/internal/fleet"
)

func TestKeySplit(t *testing.T) {
	kind, id, ok := AssetKey("TR-1").Split()
	if !ok || kind != KindAsset || id != "TR-1" {
		t.Fatalf("expected asset TR-1, got %q %q %v", kind, id, ok)
	}
	kind, id, ok = ZoneKey("a:b").Split()
	if !ok || kind != KindZone || id != "a:b" {
		t.Fatalf("expected zone a:b, got %q %q %v", kind, id, ok)
	}
	for _, bad := range []Key{"", "asset:", "TR-1", "truck:TR-1"} {
		if _, _, ok := bad.Split(); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestScene_CreateUpdateRemove(t *testing.T) {
	s := NewScene(SceneOptions{})
	key := AssetKey("TR-1")

	s.UpdatePrimitive(Primitive{Key: key})
	if s.Len() != 0 {
		t.Fatalf("expected update of unknown key to be ignored")
	}

	s.CreatePrimitive(Primitive{Key: key, Position: fleet.Coordinates{Lat: 1, Lng: 2}})
	s.UpdatePrimitive(Primitive{Key: key, Position: fleet.Coordinates{Lat: 3, Lng: 4}})
	p, ok := s.Primitive(key)
	if !ok || p.Position.Lat != 3 {
		t.Fatalf("expected updated primitive, got %+v %v", p, ok)
	}

	s.RemovePrimitive(key)
	s.RemovePrimitive(key)
	if s.Len() != 0 {
		t.Fatalf("expected empty scene, got %d", s.Len())
	}

	ops, version, complete := s.OpsSince(0)
	if !complete || version != 3 || len(ops) != 3 {
		t.Fatalf("expected 3 journaled ops at version 3, got %d ops version %d complete %v", len(ops), version, complete)
	}
	want := []OpType{OpCreate, OpUpdate, OpRemove}
	for i, op := range ops {
		if op.Type != want[i] || op.Seq != uint64(i+1) {
			t.Fatalf("op %d: expected %s seq %d, got %s seq %d", i, want[i], i+1, op.Type, op.Seq)
		}
	}
}

func TestScene_UnchangedUpdateIsNotJournaled(t *testing.T) {
	s := NewScene(SceneOptions{JournalSize: 4})
	for _, id := range []string{"TR-1", "TR-2", "TR-3"} {
		s.CreatePrimitive(Primitive{
			Key:     AssetKey(id),
			Kind:    KindAsset,
			Style:   Style{Radius: 6, ZIndex: 100},
			Tooltip: &Tooltip{ID: id, Status: "ACTIVE"},
		})
	}

	for i := 0; i < 5; i++ {
		for _, id := range []string{"TR-1", "TR-2", "TR-3"} {
			s.UpdatePrimitive(Primitive{
				Key:     AssetKey(id),
				Kind:    KindAsset,
				Style:   Style{Radius: 6, ZIndex: 100},
				Tooltip: &Tooltip{ID: id, Status: "ACTIVE"},
			})
		}
	}
	ops, version, complete := s.OpsSince(3)
	if version != 3 || len(ops) != 0 || !complete {
		t.Fatalf("expected identical updates to leave version 3, got version %d ops %d complete %v", version, len(ops), complete)
	}

	s.UpdatePrimitive(Primitive{
		Key:     AssetKey("TR-2"),
		Kind:    KindAsset,
		Style:   Style{Radius: 6, ZIndex: 100},
		Tooltip: &Tooltip{ID: "TR-2", Status: "LOST"},
	})
	ops, version, complete = s.OpsSince(3)
	if version != 4 || len(ops) != 1 || !complete || ops[0].Key != AssetKey("TR-2") {
		t.Fatalf("expected one journaled tooltip change, got version %d ops %+v complete %v", version, ops, complete)
	}
}

func TestScene_ViewDrawOrder(t *testing.T) {
	s := NewScene(SceneOptions{})
	s.CreatePrimitive(Primitive{Key: AssetKey("b"), Style: Style{ZIndex: 10}})
	s.CreatePrimitive(Primitive{Key: AssetKey("a"), Style: Style{ZIndex: 10}})
	s.CreatePrimitive(Primitive{Key: ZoneKey("z"), Style: Style{ZIndex: 0}})
	s.CreatePrimitive(Primitive{Key: AssetKey("top"), Style: Style{ZIndex: 1000}})
	s.MoveCamera(fleet.Coordinates{Lat: 1, Lng: 1}, 18)

	v := s.View()
	got := []Key{}
	for _, p := range v.Primitives {
		got = append(got, p.Key)
	}
	want := []Key{ZoneKey("z"), AssetKey("a"), AssetKey("b"), AssetKey("top")}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected draw order %v, got %v", want, got)
		}
	}
	if v.Camera == nil || v.Camera.Zoom != 18 {
		t.Fatalf("expected camera at zoom 18, got %+v", v.Camera)
	}
	if v.Version != 5 {
		t.Fatalf("expected version 5, got %d", v.Version)
	}
}

func TestScene_JournalIsBounded(t *testing.T) {
	s := NewScene(SceneOptions{JournalSize: 3})
	for i := 0; i < 5; i++ {
		s.MoveCamera(fleet.Coordinates{}, i)
	}

	ops, version, complete := s.OpsSince(0)
	if complete {
		t.Fatalf("expected truncated journal to be reported incomplete")
	}
	if version != 5 || len(ops) != 3 || ops[0].Seq != 3 {
		t.Fatalf("expected last 3 ops of 5, got %d ops starting at %d", len(ops), ops[0].Seq)
	}

	ops, _, complete = s.OpsSince(3)
	if !complete || len(ops) != 2 || ops[0].Seq != 4 {
		t.Fatalf("expected ops 4..5 complete, got %+v complete %v", ops, complete)
	}

	ops, _, complete = s.OpsSince(9)
	if !complete || len(ops) != 0 {
		t.Fatalf("expected no ops past head, got %d", len(ops))
	}
}

func TestEvent_Validate(t *testing.T) {
	cases := []struct {
		name  string
		event Event
		ok    bool
	}{
		{name: "pick", event: LocationPickedAt(1.3, 103.9), ok: true},
		{name: "pick out of range", event: LocationPickedAt(91, 0)},
		{name: "pick without coordinates", event: Event{Type: EventLocationPicked}},
		{name: "pick without lng", event: Event{Type: EventLocationPicked, Lat: LocationPickedAt(1, 2).Lat}},
		{name: "click at", event: PrimitiveClickedAt(ZoneKey("ZONE-A"), 1.35, 103.98), ok: true},
		{name: "click out of range", event: PrimitiveClickedAt(ZoneKey("ZONE-A"), 0, 200)},
		{name: "click", event: Event{Type: EventPrimitiveClicked, Key: AssetKey("TR-1")}, ok: true},
		{name: "click bad key", event: Event{Type: EventPrimitiveClicked, Key: "nope"}},
		{name: "unknown", event: Event{Type: "drag"}},
	}
	for _, tc := range cases {
		err := tc.event.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: expected valid, got %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("%s: expected ErrInvalidEvent, got %v", tc.name, err)
		}
	}
}
