package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const listTrackingRecords = `-- name: ListTrackingRecords :many
SELECT id,
       record,
       updated_at
FROM tracking
ORDER BY id ASC
`

func (q *Queries) ListTrackingRecords(ctx context.Context) ([]TrackingRecord, error) {
	rows, err := q.db.Query(ctx, listTrackingRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TrackingRecord
	for rows.Next() {
		var i TrackingRecord
		if err := rows.Scan(&i.ID, &i.Record, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertTrackingRecord = `-- name: UpsertTrackingRecord :exec
INSERT INTO tracking (id, record)
VALUES ($1, COALESCE($2, '{}'::jsonb))
ON CONFLICT (id) DO UPDATE
SET record = EXCLUDED.record,
    updated_at = now()
`

type UpsertTrackingRecordParams struct {
	ID     string
	Record map[string]any
}

func (q *Queries) UpsertTrackingRecord(ctx context.Context, arg UpsertTrackingRecordParams) error {
	_, err := q.db.Exec(ctx, upsertTrackingRecord, arg.ID, arg.Record)
	return err
}

const deleteTrackingRecord = `-- name: DeleteTrackingRecord :execrows
DELETE FROM tracking
WHERE id = $1
`

func (q *Queries) DeleteTrackingRecord(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteTrackingRecord, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const clearTrackingZone = `-- name: ClearTrackingZone :execrows
UPDATE tracking
SET record = record - 'zoneId',
    updated_at = now()
WHERE record->>'zoneId' = $1
`

func (q *Queries) ClearTrackingZone(ctx context.Context, zoneID string) (int64, error) {
	result, err := q.db.Exec(ctx, clearTrackingZone, zoneID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listZoneRecords = `-- name: ListZoneRecords :many
SELECT id,
       record,
       updated_at
FROM zones
ORDER BY id ASC
`

func (q *Queries) ListZoneRecords(ctx context.Context) ([]ZoneRecord, error) {
	rows, err := q.db.Query(ctx, listZoneRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ZoneRecord
	for rows.Next() {
		var i ZoneRecord
		if err := rows.Scan(&i.ID, &i.Record, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertZoneRecord = `-- name: UpsertZoneRecord :exec
INSERT INTO zones (id, record)
VALUES ($1, COALESCE($2, '{}'::jsonb))
ON CONFLICT (id) DO UPDATE
SET record = EXCLUDED.record,
    updated_at = now()
`

type UpsertZoneRecordParams struct {
	ID     string
	Record map[string]any
}

func (q *Queries) UpsertZoneRecord(ctx context.Context, arg UpsertZoneRecordParams) error {
	_, err := q.db.Exec(ctx, upsertZoneRecord, arg.ID, arg.Record)
	return err
}

const deleteZoneRecord = `-- name: DeleteZoneRecord :execrows
DELETE FROM zones
WHERE id = $1
`

func (q *Queries) DeleteZoneRecord(ctx context.Context, id string) (int64, error) {
	result, err := q.db.Exec(ctx, deleteZoneRecord, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
