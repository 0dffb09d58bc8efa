package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fleetmap/core-go/internal/sqlcgen"
)

// NotifyChannel is the channel the feed triggers publish on; the payload is the changed table name.
const NotifyChannel = "feed_changed"

type PostgresQueries interface {
	ListTrackingRecords(ctx context.Context) ([]sqlcgen.TrackingRecord, error)
	UpsertTrackingRecord(ctx context.Context, arg sqlcgen.UpsertTrackingRecordParams) error
	DeleteTrackingRecord(ctx context.Context, id string) (int64, error)
	ClearTrackingZone(ctx context.Context, zoneID string) (int64, error)
	ListZoneRecords(ctx context.Context) ([]sqlcgen.ZoneRecord, error)
	UpsertZoneRecord(ctx context.Context, arg sqlcgen.UpsertZoneRecordParams) error
	DeleteZoneRecord(ctx context.Context, id string) (int64, error)
}

// Listener is satisfied by *db.Pool.
type Listener interface {
	Listen(ctx context.Context, channel string, onReady func(), fn func(payload string)) error
	Ping(ctx context.Context) error
}

type PostgresOptions struct {
	ReconnectBase time.Duration
}

// PostgresStore keeps each collection as a jsonb table and pushes snapshots on LISTEN/NOTIFY.
type PostgresStore struct {
	log           zerolog.Logger
	q             PostgresQueries
	listener      Listener
	reconnectBase time.Duration
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(log zerolog.Logger, q PostgresQueries, listener Listener, opts PostgresOptions) *PostgresStore {
	base := opts.ReconnectBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &PostgresStore{
		log:           log,
		q:             q,
		listener:      listener,
		reconnectBase: base,
	}
}

// Subscribe reloads both collections every time the LISTEN connection is (re)established, since
// notifications sent while disconnected are lost.
func (s *PostgresStore) Subscribe(ctx context.Context, fn func(Snapshot)) error {
	var failures int
	for {
		err := s.listener.Listen(ctx, NotifyChannel,
			func() {
				failures = 0
				s.deliver(ctx, fn, Zones, Tracking)
			},
			func(payload string) {
				c := Collection(payload)
				if !c.Valid() {
					s.deliver(ctx, fn, Zones, Tracking)
					return
				}
				s.deliver(ctx, fn, c)
			},
		)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failures++
		wait := backoffDuration(s.reconnectBase, failures)
		s.log.Warn().Err(err).Int("failures", failures).Dur("retry_in", wait).Msg("feed listen connection lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *PostgresStore) deliver(ctx context.Context, fn func(Snapshot), collections ...Collection) {
	for _, c := range orderCollections(collections) {
		snap, err := s.load(ctx, c)
		if err != nil {
			s.log.Error().Err(err).Str("collection", string(c)).Msg("feed reload failed")
			continue
		}
		fn(snap)
	}
}

func (s *PostgresStore) load(ctx context.Context, c Collection) (Snapshot, error) {
	snap := Snapshot{Collection: c, Records: map[string]Record{}}
	switch c {
	case Tracking:
		rows, err := s.q.ListTrackingRecords(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("list tracking: %w", err)
		}
		for _, r := range rows {
			snap.Records[r.ID] = cloneRecord(r.Record)
		}
	case Zones:
		rows, err := s.q.ListZoneRecords(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("list zones: %w", err)
		}
		for _, r := range rows {
			snap.Records[r.ID] = cloneRecord(r.Record)
		}
	default:
		return Snapshot{}, fmt.Errorf("unknown collection %q", c)
	}
	return snap, nil
}

func (s *PostgresStore) PutAsset(ctx context.Context, id string, rec Record) error {
	return s.q.UpsertTrackingRecord(ctx, sqlcgen.UpsertTrackingRecordParams{ID: id, Record: rec})
}

func (s *PostgresStore) DeleteAsset(ctx context.Context, id string) error {
	n, err := s.q.DeleteTrackingRecord(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) PutZone(ctx context.Context, id string, rec Record) error {
	return s.q.UpsertZoneRecord(ctx, sqlcgen.UpsertZoneRecordParams{ID: id, Record: rec})
}

func (s *PostgresStore) DeleteZone(ctx context.Context, id string) error {
	n, err := s.q.DeleteZoneRecord(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClearZoneAssignments(ctx context.Context, zoneID string) (int64, error) {
	return s.q.ClearTrackingZone(ctx, zoneID)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.listener.Ping(ctx)
}
