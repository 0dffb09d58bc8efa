package feed

import (
	"context"
	"errors"
	"testing"
	"time"
)

func collect(t *testing.T, store Store) (<-chan Snapshot, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan Snapshot, 32)
	go func() {
		_ = store.Subscribe(ctx, func(s Snapshot) { ch <- s })
	}()
	return ch, cancel
}

func next(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestMemoryStore_InitialSnapshotsZonesFirst(t *testing.T) {
	store := NewMemoryStore(MemorySeed{
		Tracking: map[string]Record{"TR-1": {"battery": 10}},
		Zones:    map[string]Record{"ZONE-A": {"name": "A"}},
	})
	ch, cancel := collect(t, store)
	defer cancel()

	first := next(t, ch)
	second := next(t, ch)
	if first.Collection != Zones || second.Collection != Tracking {
		t.Fatalf("expected zones then tracking, got %s then %s", first.Collection, second.Collection)
	}
	if second.Records["TR-1"]["battery"] != 10 {
		t.Fatalf("unexpected tracking snapshot %v", second.Records)
	}
}

func TestMemoryStore_WritesPushWholeCollection(t *testing.T) {
	store := NewMemoryStore(MemorySeed{Tracking: map[string]Record{"TR-1": {}}})
	ch, cancel := collect(t, store)
	defer cancel()
	next(t, ch)
	next(t, ch)

	if err := store.PutAsset(context.Background(), "TR-2", Record{"battery": 80}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := next(t, ch)
	if snap.Collection != Tracking || len(snap.Records) != 2 {
		t.Fatalf("expected full tracking snapshot with 2 records, got %s %v", snap.Collection, snap.Records)
	}

	if err := store.DeleteAsset(context.Background(), "TR-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap = next(t, ch)
	if _, ok := snap.Records["TR-1"]; ok || len(snap.Records) != 1 {
		t.Fatalf("expected TR-1 gone, got %v", snap.Records)
	}
}

func TestMemoryStore_SnapshotsAreCopies(t *testing.T) {
	store := NewMemoryStore(MemorySeed{Zones: map[string]Record{"Z": {"name": "A"}}})
	ch, cancel := collect(t, store)
	defer cancel()

	snap := next(t, ch)
	snap.Records["Z"]["name"] = "mutated"
	if store.Records(Zones)["Z"]["name"] != "A" {
		t.Fatalf("expected store to be isolated from snapshot mutation")
	}
}

func TestMemoryStore_DeleteUnknown(t *testing.T) {
	store := NewMemoryStore(MemorySeed{})
	if err := store.DeleteAsset(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteZone(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_FailWrites(t *testing.T) {
	store := NewMemoryStore(MemorySeed{})
	boom := errors.New("offline")
	store.FailWrites(boom)

	if err := store.PutZone(context.Background(), "Z", Record{}); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := store.ClearZoneAssignments(context.Background(), "Z"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	store.FailWrites(nil)
	if err := store.PutZone(context.Background(), "Z", Record{}); err != nil {
		t.Fatalf("expected write to succeed, got %v", err)
	}
}

func TestMemoryStore_SubscribeStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(MemorySeed{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Subscribe(ctx, func(Snapshot) {}) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscribe did not return after cancel")
	}
}
