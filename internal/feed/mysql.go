package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type TrackingRow struct {
	ID        string `gorm:"primaryKey;size:128"`
	Record    datatypes.JSON
	UpdatedAt time.Time
}

func (TrackingRow) TableName() string { return "tracking" }

type ZoneRow struct {
	ID        string `gorm:"primaryKey;size:128"`
	Record    datatypes.JSON
	UpdatedAt time.Time
}

func (ZoneRow) TableName() string { return "zones" }

type MySQLConfig struct {
	User     string
	Password string
	Host     string
	Database string
	Debug    bool
}

// OpenMySQL connects with gorm. Auto-migration is left to the caller.
func OpenMySQL(cfg MySQLConfig) (*gorm.DB, error) {
	if cfg.User == "" || cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("missing mysql connection info")
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Database)
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		db.Logger = db.Logger.LogMode(logger.Info)
	}
	return db, nil
}

func MigrateMySQL(db *gorm.DB) error {
	return db.AutoMigrate(&TrackingRow{}, &ZoneRow{})
}

type MySQLOptions struct {
	PollInterval time.Duration
}

// MySQLStore has no change stream, so it polls both tables and pushes a collection only when its
// fingerprint moves.
type MySQLStore struct {
	log          zerolog.Logger
	db           *gorm.DB
	pollInterval time.Duration
	fingerprints map[Collection]uint64
}

var _ Store = (*MySQLStore)(nil)

func NewMySQLStore(log zerolog.Logger, db *gorm.DB, opts MySQLOptions) *MySQLStore {
	pi := opts.PollInterval
	if pi <= 0 {
		pi = 2 * time.Second
	}
	return &MySQLStore{
		log:          log,
		db:           db,
		pollInterval: pi,
		fingerprints: make(map[Collection]uint64),
	}
}

func (s *MySQLStore) Subscribe(ctx context.Context, fn func(Snapshot)) error {
	s.fingerprints = make(map[Collection]uint64)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		snaps, err := s.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			s.log.Warn().Err(err).Int("failures", failures).Msg("feed poll failed")
		} else {
			failures = 0
			for _, snap := range snaps {
				fn(snap)
			}
		}
		timer.Reset(backoffDuration(s.pollInterval, failures))
	}
}

// poll returns snapshots for the collections whose content changed since the last poll.
func (s *MySQLStore) poll(ctx context.Context) ([]Snapshot, error) {
	var zoneRows []ZoneRow
	if err := s.db.WithContext(ctx).Order("id").Find(&zoneRows).Error; err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	var trackingRows []TrackingRow
	if err := s.db.WithContext(ctx).Order("id").Find(&trackingRows).Error; err != nil {
		return nil, fmt.Errorf("list tracking: %w", err)
	}

	zoneRaw := make(map[string]datatypes.JSON, len(zoneRows))
	for _, r := range zoneRows {
		zoneRaw[r.ID] = r.Record
	}
	trackingRaw := make(map[string]datatypes.JSON, len(trackingRows))
	for _, r := range trackingRows {
		trackingRaw[r.ID] = r.Record
	}

	var out []Snapshot
	for _, c := range []Collection{Zones, Tracking} {
		raw := zoneRaw
		if c == Tracking {
			raw = trackingRaw
		}
		fp := fingerprint(raw)
		if prev, seen := s.fingerprints[c]; seen && prev == fp {
			continue
		}
		s.fingerprints[c] = fp
		out = append(out, Snapshot{Collection: c, Records: s.decode(c, raw)})
	}
	return out, nil
}

func (s *MySQLStore) decode(c Collection, raw map[string]datatypes.JSON) map[string]Record {
	out := make(map[string]Record, len(raw))
	for id, b := range raw {
		rec := Record{}
		if len(b) > 0 {
			if err := json.Unmarshal(b, &rec); err != nil {
				s.log.Debug().Err(err).Str("collection", string(c)).Str("id", id).Msg("undecodable feed record")
				rec = Record{}
			}
		}
		out[id] = rec
	}
	return out
}

func fingerprint(raw map[string]datatypes.JSON) uint64 {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := xxhash.New()
	for _, id := range ids {
		_, _ = h.WriteString(id)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(raw[id])
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func (s *MySQLStore) PutAsset(ctx context.Context, id string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode asset %s: %w", id, err)
	}
	row := TrackingRow{ID: id, Record: datatypes.JSON(b)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *MySQLStore) DeleteAsset(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&TrackingRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) PutZone(ctx context.Context, id string, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode zone %s: %w", id, err)
	}
	row := ZoneRow{ID: id, Record: datatypes.JSON(b)}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (s *MySQLStore) DeleteZone(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&ZoneRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) ClearZoneAssignments(ctx context.Context, zoneID string) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&TrackingRow{}).
		Where("JSON_UNQUOTE(JSON_EXTRACT(record, '$.zoneId')) = ?", zoneID).
		Update("record", gorm.Expr("JSON_REMOVE(record, '$.zoneId')"))
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
