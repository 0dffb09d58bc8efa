package feed

import (
	"context"
	"strings"
	"sync"
)

type MemorySeed struct {
	Tracking map[string]Record
	Zones    map[string]Record
}

// MemoryStore keeps both collections in process. Writers never block on subscribers: pending changes
// are coalesced per collection and each subscriber reads the latest content when it wakes.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[Collection]map[string]Record
	subscribers map[*memorySubscriber]struct{}
	failWrites  error
}

type memorySubscriber struct {
	pending map[Collection]bool
	wake    chan struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(seed MemorySeed) *MemoryStore {
	return &MemoryStore{
		collections: map[Collection]map[string]Record{
			Tracking: cloneRecords(seed.Tracking),
			Zones:    cloneRecords(seed.Zones),
		},
		subscribers: make(map[*memorySubscriber]struct{}),
	}
}

// FailWrites makes every subsequent write return err until called with nil.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

func (s *MemoryStore) Subscribe(ctx context.Context, fn func(Snapshot)) error {
	sub := &memorySubscriber{
		pending: map[Collection]bool{Zones: true, Tracking: true},
		wake:    make(chan struct{}, 1),
	}
	sub.wake <- struct{}{}

	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subscribers, sub)
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sub.wake:
		}

		s.mu.Lock()
		var changed []Collection
		for c := range sub.pending {
			changed = append(changed, c)
		}
		sub.pending = make(map[Collection]bool)
		snaps := make([]Snapshot, 0, len(changed))
		for _, c := range orderCollections(changed) {
			snaps = append(snaps, Snapshot{Collection: c, Records: cloneRecords(s.collections[c])})
		}
		s.mu.Unlock()

		for _, snap := range snaps {
			fn(snap)
		}
	}
}

func (s *MemoryStore) PutAsset(_ context.Context, id string, rec Record) error {
	return s.put(Tracking, id, rec)
}

func (s *MemoryStore) DeleteAsset(_ context.Context, id string) error {
	return s.delete(Tracking, id)
}

func (s *MemoryStore) PutZone(_ context.Context, id string, rec Record) error {
	return s.put(Zones, id, rec)
}

func (s *MemoryStore) DeleteZone(_ context.Context, id string) error {
	return s.delete(Zones, id)
}

func (s *MemoryStore) ClearZoneAssignments(_ context.Context, zoneID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return 0, s.failWrites
	}

	var n int64
	for id, rec := range s.collections[Tracking] {
		if v, ok := rec["zoneId"].(string); ok && strings.TrimSpace(v) == zoneID {
			updated := cloneRecord(rec)
			delete(updated, "zoneId")
			s.collections[Tracking][id] = updated
			n++
		}
	}
	if n > 0 {
		s.notifyLocked(Tracking)
	}
	return n, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Records returns a copy of one collection.
func (s *MemoryStore) Records(c Collection) map[string]Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.collections[c])
}

func (s *MemoryStore) put(c Collection, id string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	s.collections[c][id] = cloneRecord(rec)
	s.notifyLocked(c)
	return nil
}

func (s *MemoryStore) delete(c Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	if _, ok := s.collections[c][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[c], id)
	s.notifyLocked(c)
	return nil
}

func (s *MemoryStore) notifyLocked(c Collection) {
	for sub := range s.subscribers {
		sub.pending[c] = true
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}
