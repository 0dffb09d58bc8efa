// Package mapsync ties the feed, the normalizers, the reconciler and the operator interaction state
// together. Every state change goes through one mutex, so a reconciliation pass never observes a
// half-applied snapshot or interaction.
package mapsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fleetmap/core-go/internal/clock"
	"fleetmap/core-go/internal/feed"
	"fleetmap/core-go/internal/fleet"
	"fleetmap/core-go/internal/mapadapter"
	"fleetmap/core-go/internal/metrics"
	"fleetmap/core-go/internal/placement"
	"fleetmap/core-go/internal/reconcile"
	"fleetmap/core-go/internal/spotlight"
	"fleetmap/core-go/internal/telemetry"
)

var ErrFeedWrite = errors.New("feed write failed")

type Options struct {
	Clock             clock.Clock
	Theme             reconcile.Theme
	FollowZoom        int
	DefaultZoneID     string
	ZoneRadiusMeters  float64
	ZoneCapacity      int
	RefreshInterval   time.Duration
	NotificationLimit int
	NewID             func(prefix string) string
}

type Engine struct {
	log          zerolog.Logger
	store        feed.Store
	metrics      *metrics.Metrics
	clock        clock.Clock
	refreshEvery time.Duration

	mu          sync.Mutex
	normalizer  *telemetry.Normalizer
	reconciler  *reconcile.Reconciler
	spotlight   *spotlight.Controller
	placement   *placement.Workflow
	rawTracking map[string]map[string]any
	assets      []fleet.Asset
	zones       []fleet.Zone
	seen        map[feed.Collection]bool
	notes       *notifications
}

func New(log zerolog.Logger, store feed.Store, adapter mapadapter.Adapter, m *metrics.Metrics, opts Options) *Engine {
	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}
	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = 30 * time.Second
	}

	return &Engine{
		log:          log,
		store:        store,
		metrics:      m,
		clock:        c,
		refreshEvery: refresh,
		normalizer: telemetry.New(c, telemetry.Options{
			ZoneRadiusMeters: opts.ZoneRadiusMeters,
			ZoneCapacity:     opts.ZoneCapacity,
		}),
		reconciler: reconcile.New(adapter, reconcile.Options{Theme: opts.Theme}),
		spotlight:  spotlight.New(adapter, spotlight.Options{FollowZoom: opts.FollowZoom}),
		placement: placement.New(placement.Options{
			DefaultZoneID: opts.DefaultZoneID,
			NewID:         opts.NewID,
		}),
		assets: []fleet.Asset{},
		zones:  []fleet.Zone{},
		seen:   make(map[feed.Collection]bool),
		notes:  newNotifications(opts.NotificationLimit),
	}
}

// Run subscribes to the feed and periodically re-derives status so assets turn LOST without new data.
// It returns when ctx is done or the subscription fails.
func (e *Engine) Run(ctx context.Context) error {
	if e == nil || e.store == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(e.refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Refresh()
			}
		}
	}()

	err := e.store.Subscribe(ctx, e.ApplySnapshot)
	cancel()
	<-done
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("feed subscription: %w", err)
	}
	return nil
}

// ApplySnapshot replaces one canonical collection wholesale and reconciles.
func (e *Engine) ApplySnapshot(snap feed.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch snap.Collection {
	case feed.Tracking:
		e.rawTracking = snap.Raw()
		e.assets = e.normalizer.Assets(e.rawTracking)
	case feed.Zones:
		e.zones = e.normalizer.Zones(snap.Raw())
	default:
		e.log.Warn().Str("collection", string(snap.Collection)).Msg("ignoring snapshot for unknown collection")
		return
	}
	e.seen[snap.Collection] = true
	e.metrics.ObserveSnapshot(string(snap.Collection), len(snap.Records))
	e.log.Debug().Str("collection", string(snap.Collection)).Int("records", len(snap.Records)).Msg("feed snapshot applied")
	e.reconcileLocked()
}

// Refresh renormalizes the last tracking snapshot against the current clock.
func (e *Engine) Refresh() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assets = e.normalizer.Assets(e.rawTracking)
	e.reconcileLocked()
}

func (e *Engine) reconcileLocked() {
	start := time.Now()
	ops := e.reconciler.Reconcile(e.assets, e.zones, e.spotlight.Effective(e.assets))

	counts := make(map[string]int, 3)
	for typ, n := range reconcile.Counts(ops) {
		counts[string(typ)] = n
	}
	e.metrics.ObserveReconcile(counts, e.reconciler.Len(), time.Since(start))
}

// Synced reports whether both collections have been received at least once.
func (e *Engine) Synced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seen[feed.Tracking] && e.seen[feed.Zones]
}

func (e *Engine) Ping(ctx context.Context) error {
	if e.store == nil {
		return errors.New("feed store not configured")
	}
	return e.store.Ping(ctx)
}

// Select focuses an asset. Selecting the current asset again is a no-op.
func (e *Engine) Select(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed, err := e.spotlight.Select(id, e.assets)
	if err != nil {
		return err
	}
	if changed {
		e.reconcileLocked()
	}
	return nil
}

func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.spotlight.Clear() {
		e.reconcileLocked()
	}
}

type EventOutcome string

const (
	OutcomeSelected  EventOutcome = "selected"
	OutcomeCommitted EventOutcome = "committed"
	OutcomeIgnored   EventOutcome = "ignored"
)

type EventResult struct {
	Outcome  EventOutcome       `json:"outcome"`
	Selected string             `json:"selected,omitempty"`
	Kind     placement.Kind     `json:"kind,omitempty"`
	EntityID string             `json:"entity_id,omitempty"`
	Location *fleet.Coordinates `json:"location,omitempty"`
}

// HandleMapEvent routes a map event. A click on an asset selects it and is never a location pick.
// Zones do not take clicks, so a zone click is handled as a pick at the event coordinate. A zone click
// without a coordinate is ignored when idle and rejected while a placement is pending.
func (e *Engine) HandleMapEvent(ctx context.Context, ev mapadapter.Event) (EventResult, error) {
	if err := ev.Validate(); err != nil {
		return EventResult{}, err
	}

	if ev.Type == mapadapter.EventPrimitiveClicked {
		kind, id, _ := ev.Key.Split()
		if kind == mapadapter.KindAsset {
			if err := e.Select(id); err != nil {
				return EventResult{}, err
			}
			return EventResult{Outcome: OutcomeSelected, Selected: id}, nil
		}
	}

	loc, hasLoc := ev.Location()
	e.mu.Lock()
	if !hasLoc {
		pending := e.placement.State() == placement.StateAwaitingLocation
		e.mu.Unlock()
		if pending {
			return EventResult{}, fmt.Errorf("%w: click on %s carries no coordinate to place at", mapadapter.ErrInvalidEvent, ev.Key)
		}
		return EventResult{Outcome: OutcomeIgnored}, nil
	}
	cmd, err := e.placement.LocationPicked(loc)
	e.mu.Unlock()
	if err != nil {
		return EventResult{}, err
	}
	if cmd == nil {
		return EventResult{Outcome: OutcomeIgnored}, nil
	}

	if err := e.commit(ctx, cmd); err != nil {
		return EventResult{}, err
	}
	return EventResult{Outcome: OutcomeCommitted, Kind: cmd.Kind, EntityID: cmd.ID, Location: &loc}, nil
}

func (e *Engine) BeginAssetPlacement(draft fleet.AssetDraft) (placement.Pending, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placement.BeginAsset(draft, e.zones)
}

func (e *Engine) BeginZonePlacement(draft fleet.ZoneDraft) (placement.Pending, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placement.BeginZone(draft)
}

func (e *Engine) CancelPlacement() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.placement.Cancel()
}

// commit writes a confirmed placement. The workflow is already idle; a failed write is reported and
// not rolled back.
func (e *Engine) commit(ctx context.Context, cmd *placement.Command) error {
	var (
		op  string
		err error
	)
	switch cmd.Kind {
	case placement.KindAsset:
		op = "asset_create"
		err = e.store.PutAsset(ctx, cmd.ID, feed.NewAssetRecord(cmd.Location.Lat, cmd.Location.Lng, cmd.ZoneID, e.clock.Now()))
	case placement.KindZone:
		op = "zone_create"
		err = e.store.PutZone(ctx, cmd.ID, feed.NewZoneRecord(cmd.Name, cmd.Location.Lat, cmd.Location.Lng))
	default:
		return fmt.Errorf("unknown placement kind %q", cmd.Kind)
	}
	if err != nil {
		return e.writeFailed(op, cmd.ID, err)
	}

	e.metrics.IncPlacement(string(cmd.Kind))
	e.log.Info().Str("op", op).Str("id", cmd.ID).Float64("lat", cmd.Location.Lat).Float64("lng", cmd.Location.Lng).Msg("placement committed")
	return nil
}

// DeleteAsset removes an asset from the feed. If it was selected, the selection is cleared first.
func (e *Engine) DeleteAsset(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	e.mu.Lock()
	if e.spotlight.Forget(id) {
		e.reconcileLocked()
	}
	e.mu.Unlock()

	if err := e.store.DeleteAsset(ctx, id); err != nil {
		if errors.Is(err, feed.ErrNotFound) {
			return err
		}
		return e.writeFailed("asset_delete", id, err)
	}
	e.log.Info().Str("asset_id", id).Msg("asset deleted")
	return nil
}

type ZoneDeletion struct {
	ZoneID        string `json:"zone_id"`
	ClearedAssets int64  `json:"cleared_assets"`
	CascadeFailed bool   `json:"cascade_failed"`
}

// DeleteZone removes a zone and unassigns its assets. A failed unassignment is reported as a
// notification; the zone stays deleted.
func (e *Engine) DeleteZone(ctx context.Context, id string) (ZoneDeletion, error) {
	id = strings.TrimSpace(id)
	res := ZoneDeletion{ZoneID: id}

	cleared, err := feed.DeleteZoneCascade(ctx, e.store, id)
	var cascadeErr *feed.CascadeError
	switch {
	case err == nil:
		res.ClearedAssets = cleared
	case errors.As(err, &cascadeErr):
		res.CascadeFailed = true
		e.metrics.IncFeedWriteFailure("zone_cascade")
		e.log.Warn().Err(cascadeErr.Err).Str("zone_id", id).Msg("zone deleted but asset unassignment failed")
		e.notes.add(e.clock.Now(), LevelWarning, "zone_cascade", cascadeErr.Error())
	case errors.Is(err, feed.ErrNotFound):
		return res, err
	default:
		return res, e.writeFailed("zone_delete", id, err)
	}

	e.log.Info().Str("zone_id", id).Int64("cleared_assets", res.ClearedAssets).Msg("zone deleted")
	return res, nil
}

func (e *Engine) writeFailed(op, id string, err error) error {
	e.metrics.IncFeedWriteFailure(op)
	e.log.Error().Err(err).Str("op", op).Str("id", id).Msg("feed write failed")
	e.notes.add(e.clock.Now(), LevelError, op, fmt.Sprintf("%s %s failed: %v", op, id, err))
	return fmt.Errorf("%w: %s %s: %w", ErrFeedWrite, op, id, err)
}
