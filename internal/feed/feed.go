// Package feed is the boundary to the external realtime store holding the raw Tracking and Zones
// collections. Reads arrive as whole-collection snapshots; writes are keyed record puts and deletes.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

type Collection string

const (
	Tracking Collection = "tracking"
	Zones    Collection = "zones"
)

func (c Collection) Valid() bool { return c == Tracking || c == Zones }

// Record is one loosely typed feed entry, as decoded from JSON.
type Record = map[string]any

// Snapshot is the full content of one collection at a point in time.
type Snapshot struct {
	Collection Collection
	Records    map[string]Record
}

// Raw adapts Records to the normalizer input shape.
func (s Snapshot) Raw() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s.Records))
	for id, rec := range s.Records {
		out[id] = rec
	}
	return out
}

var ErrNotFound = errors.New("record not found")

type Store interface {
	// Subscribe delivers an initial snapshot of both collections (zones first), then a snapshot of
	// each collection whenever it changes, in order. It blocks until ctx is done or the store fails.
	Subscribe(ctx context.Context, fn func(Snapshot)) error
	PutAsset(ctx context.Context, id string, rec Record) error
	DeleteAsset(ctx context.Context, id string) error
	PutZone(ctx context.Context, id string, rec Record) error
	DeleteZone(ctx context.Context, id string) error
	// ClearZoneAssignments removes zoneId from every tracking record referencing zoneID.
	ClearZoneAssignments(ctx context.Context, zoneID string) (int64, error)
	Ping(ctx context.Context) error
}

// NewAssetRecord is the record written for a newly placed asset. An empty zoneID leaves the asset
// unassigned.
func NewAssetRecord(lat, lng float64, zoneID string, now time.Time) Record {
	rec := Record{
		"latitude":  lat,
		"longitude": lng,
		"rssi":      -60,
		"battery":   100,
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if zoneID != "" {
		rec["zoneId"] = zoneID
	}
	return rec
}

func NewZoneRecord(name string, lat, lng float64) Record {
	return Record{
		"name":      name,
		"centerLat": lat,
		"centerLng": lng,
	}
}

// CascadeError reports that a zone was deleted but its assets could not be unassigned.
type CascadeError struct {
	ZoneID string
	Err    error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("zone %s deleted but clearing asset assignments failed: %v", e.ZoneID, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// DeleteZoneCascade deletes the zone, then clears zoneId on the assets that referenced it. The second
// step is best effort: its failure comes back as a *CascadeError after the zone is already gone.
func DeleteZoneCascade(ctx context.Context, store Store, zoneID string) (int64, error) {
	if err := store.DeleteZone(ctx, zoneID); err != nil {
		return 0, fmt.Errorf("delete zone %s: %w", zoneID, err)
	}
	cleared, err := store.ClearZoneAssignments(ctx, zoneID)
	if err != nil {
		return 0, &CascadeError{ZoneID: zoneID, Err: err}
	}
	return cleared, nil
}

func cloneRecord(rec Record) Record {
	if rec == nil {
		return Record{}
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

func cloneRecords(in map[string]Record) map[string]Record {
	out := make(map[string]Record, len(in))
	for id, rec := range in {
		out[id] = cloneRecord(rec)
	}
	return out
}

// orderCollections puts zones ahead of tracking so zone names resolve on the first asset pass.
func orderCollections(cs []Collection) []Collection {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i] == Zones && cs[j] != Zones })
	return cs
}

func backoffDuration(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if failures <= 0 {
		return base
	}

	if failures > 6 {
		failures = 6
	}
	d := base * time.Duration(1<<failures)
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}
