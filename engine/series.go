package engine

import (
	"sort"
	"sync"

	"github.com/ftahirops/xrewind/model"
)

// Series keeps the periodic snapshot records ordered by timestamp with a
// movable cursor. The cursor always points at the record with the closest
// timestamp <= the requested time; small scrub steps move it in O(1) and
// large jumps reposition it with a binary search.
//
// The series is read from the render loop while a background load merges
// new batches, so all access goes through the lock.
type Series struct {
	mu     sync.RWMutex
	recs   []*model.Record // sorted by (Time, ID), unique per (Time, ID)
	cursor int             // last index with Time <= target, -1 when none
	target float64
}

// NewSeries creates an empty series.
func NewSeries() *Series {
	return &Series{cursor: -1}
}

// InsertBatch merges new snapshots into sorted order, deduplicating by
// (timestamp, id) with the new batch winning. The cursor keeps referencing
// the same logical record it pointed at before the merge.
func (s *Series) InsertBatch(batch []*model.Record) {
	if len(batch) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var curTime float64
	var curID string
	hasCur := s.cursor >= 0 && s.cursor < len(s.recs)
	if hasCur {
		curTime = s.recs[s.cursor].Time
		curID = s.recs[s.cursor].ID
	}

	sorted := make([]*model.Record, len(batch))
	copy(sorted, batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Time != sorted[j].Time {
			return sorted[i].Time < sorted[j].Time
		}
		return sorted[i].ID < sorted[j].ID
	})
	// Collapse duplicates within the batch itself, keeping the last.
	dedup := sorted[:0]
	for i, rec := range sorted {
		if i+1 < len(sorted) && sorted[i+1].Time == rec.Time && sorted[i+1].ID == rec.ID {
			continue
		}
		dedup = append(dedup, rec)
	}

	merged := make([]*model.Record, 0, len(s.recs)+len(dedup))
	i, j := 0, 0
	for i < len(s.recs) && j < len(dedup) {
		a, b := s.recs[i], dedup[j]
		switch {
		case a.Time < b.Time || (a.Time == b.Time && a.ID < b.ID):
			merged = append(merged, a)
			i++
		case b.Time < a.Time || (a.Time == b.Time && b.ID < a.ID):
			merged = append(merged, b)
			j++
		default: // same (time, id): new batch wins
			merged = append(merged, b)
			i++
			j++
		}
	}
	merged = append(merged, s.recs[i:]...)
	merged = append(merged, dedup[j:]...)
	s.recs = merged

	if hasCur {
		s.cursor = s.indexOfLocked(curTime, curID)
	} else {
		s.seekLocked(s.target)
	}
}

// Seek repositions the cursor to the snapshot with the closest timestamp
// <= t. When t precedes all known data the cursor is left on the first
// element and Seek returns false; the caller treats that as "no prior data".
func (s *Series) Seek(t float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = t
	return s.seekLocked(t)
}

func (s *Series) seekLocked(t float64) bool {
	if len(s.recs) == 0 {
		s.cursor = -1
		return false
	}
	idx := sort.Search(len(s.recs), func(i int) bool {
		return s.recs[i].Time > t
	}) - 1
	if idx < 0 {
		s.cursor = 0
		return false
	}
	s.cursor = idx
	return true
}

// Advance moves the cursor one step forward (dir > 0) or backward (dir < 0),
// clamped to the series bounds. Returns whether the cursor moved.
func (s *Series) Advance(dir int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recs) == 0 || s.cursor < 0 {
		return false
	}
	next := s.cursor
	if dir > 0 {
		next++
	} else if dir < 0 {
		next--
	}
	if next < 0 || next >= len(s.recs) {
		return false
	}
	s.cursor = next
	s.target = s.recs[next].Time
	return true
}

// AtCursor returns the snapshot under the cursor. ok is false only when the
// series holds no data at all.
func (s *Series) AtCursor() (*model.Record, bool) {
	return s.Offset(0)
}

// Offset returns the snapshot n steps from the cursor (negative = earlier).
func (s *Series) Offset(n int) (*model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.cursor + n
	if s.cursor < 0 || idx < 0 || idx >= len(s.recs) {
		return nil, false
	}
	return s.recs[idx], true
}

// First returns the earliest snapshot.
func (s *Series) First() (*model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recs) == 0 {
		return nil, false
	}
	return s.recs[0], true
}

// Last returns the latest snapshot.
func (s *Series) Last() (*model.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.recs) == 0 {
		return nil, false
	}
	return s.recs[len(s.recs)-1], true
}

// Len returns the number of snapshots held.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Clear drops all snapshots and resets the cursor.
func (s *Series) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = nil
	s.cursor = -1
	s.target = 0
}

// indexOfLocked finds the exact (time, id) entry by binary search on time
// followed by a scan across the equal-time run.
func (s *Series) indexOfLocked(t float64, id string) int {
	idx := sort.Search(len(s.recs), func(i int) bool {
		return s.recs[i].Time >= t
	})
	for ; idx < len(s.recs) && s.recs[idx].Time == t; idx++ {
		if s.recs[idx].ID == id {
			return idx
		}
	}
	// The record vanished (should not happen: merges never remove entries);
	// fall back to the nearest position for the time.
	if idx > 0 {
		return idx - 1
	}
	return -1
}
