package sqlcgen

import "time"

type TrackingRecord struct {
	ID        string
	Record    map[string]any
	UpdatedAt time.Time
}

type ZoneRecord struct {
	ID        string
	Record    map[string]any
	UpdatedAt time.Time
}
