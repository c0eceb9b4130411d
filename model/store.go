package model

import (
	"bytes"
	"sync"
)

// Store holds all ingested records, partitioned by short schema tag and
// indexed by id. Every record is reachable from exactly one schema bucket
// and from the id index.
//
// The store is read from the render loop while a background load ingests,
// so all access goes through the lock.
type Store struct {
	mu       sync.RWMutex
	bySchema map[string]map[string]*Record
	byID     map[string]*Record
}

// NewStore creates an empty record store.
func NewStore() *Store {
	return &Store{
		bySchema: make(map[string]map[string]*Record),
		byID:     make(map[string]*Record),
	}
}

// Ingest parses a batch of raw JSON lines into the store. Malformed records
// are skipped and counted, never fatal to the batch. A record whose id is
// already present replaces the stored one unless the stored one has a newer
// timestamp; on equal timestamps the new batch wins.
//
// The returned snapshots slice holds the accepted records of the periodic
// snapshot schema, for merging into the time-indexed series.
func (s *Store) Ingest(lines [][]byte) (accepted, rejected int, snapshots []*Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			rejected++
			continue
		}
		accepted++
		if !s.insertLocked(rec) {
			continue // stale duplicate, parsed fine but dropped
		}
		if rec.ShortSchema == SchemaSnapshot {
			snapshots = append(snapshots, rec)
		}
	}
	return accepted, rejected, snapshots
}

// insertLocked stores rec, replacing any existing record with the same id.
// Returns false when the existing record is strictly newer.
func (s *Store) insertLocked(rec *Record) bool {
	if prev, ok := s.byID[rec.ID]; ok {
		if prev.Time > rec.Time {
			return false
		}
		// A replacement may arrive under a different schema tag; keep the
		// one-bucket invariant by removing the old entry first.
		if prev.ShortSchema != rec.ShortSchema {
			delete(s.bySchema[prev.ShortSchema], prev.ID)
		}
	}
	bucket := s.bySchema[rec.ShortSchema]
	if bucket == nil {
		bucket = make(map[string]*Record)
		s.bySchema[rec.ShortSchema] = bucket
	}
	bucket[rec.ID] = rec
	s.byID[rec.ID] = rec
	return true
}

// ByID returns the record with the given id, if present.
func (s *Store) ByID(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec, ok
}

// Records returns the records of one schema bucket. The slice is a copy;
// the records themselves are immutable and shared.
func (s *Store) Records(shortSchema string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.bySchema[shortSchema]
	out := make([]*Record, 0, len(bucket))
	for _, rec := range bucket {
		out = append(out, rec)
	}
	return out
}

// Count returns the number of records in one schema bucket.
func (s *Store) Count(shortSchema string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySchema[shortSchema])
}

// Len returns the total number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Lines returns the raw JSON line of every record, for archive writes.
// Ordering is unspecified; re-ingesting must reproduce an equivalent store.
func (s *Store) Lines() [][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec.Raw)
	}
	return out
}

// Clear drops all records.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySchema = make(map[string]map[string]*Record)
	s.byID = make(map[string]*Record)
}
