package engine

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ftahirops/xrewind/model"
)

func snap(id string, t float64) *model.Record {
	return &model.Record{
		Schema:      "event_top:1.0.0",
		ShortSchema: model.SchemaSnapshot,
		ID:          id,
		Time:        t,
		Fields:      map[string]any{"id": id, "time": t},
	}
}

func assertSorted(t *testing.T, s *Series) {
	t.Helper()
	if s.Len() == 0 {
		return
	}
	// Park the cursor on the last element and walk back through Offset.
	var prev float64 = -1 << 30
	s.Seek(1 << 30)
	for off := -(s.Len() - 1); off <= 0; off++ {
		rec, ok := s.Offset(off)
		if !ok {
			t.Fatalf("offset %d invalid", off)
		}
		if rec.Time < prev {
			t.Fatalf("series out of order: %v after %v", rec.Time, prev)
		}
		prev = rec.Time
	}
}

func TestInsertBatchKeepsSortedOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewSeries()
	for batch := 0; batch < 10; batch++ {
		var recs []*model.Record
		for i := 0; i < 20; i++ {
			ts := float64(rng.Intn(1000))
			recs = append(recs, snap(fmt.Sprintf("b%d-i%d", batch, i), ts))
		}
		s.InsertBatch(recs)
		assertSorted(t, s)
	}
}

func TestInsertBatchDeduplicates(t *testing.T) {
	s := NewSeries()
	s.InsertBatch([]*model.Record{snap("a", 100), snap("b", 100)})
	s.InsertBatch([]*model.Record{snap("a", 100), snap("c", 200)})
	if s.Len() != 3 {
		t.Fatalf("expected 3 unique snapshots, got %d", s.Len())
	}
}

func TestSeekFindsNearestAtOrBefore(t *testing.T) {
	s := NewSeries()
	s.InsertBatch([]*model.Record{snap("a", 100), snap("b", 200), snap("c", 300)})

	if ok := s.Seek(250); !ok {
		t.Fatal("seek(250) should succeed")
	}
	rec, _ := s.AtCursor()
	if rec.ID != "b" {
		t.Fatalf("seek(250) landed on %s, want b", rec.ID)
	}

	// Exact hit.
	s.Seek(200)
	rec, _ = s.AtCursor()
	if rec.ID != "b" {
		t.Fatalf("seek(200) landed on %s, want b", rec.ID)
	}

	// Before all data: cursor on first element, not ok.
	if ok := s.Seek(50); ok {
		t.Fatal("seek(50) should report no prior data")
	}
	rec, ok := s.AtCursor()
	if !ok || rec.ID != "a" {
		t.Fatalf("cursor should rest on first element, got %v %v", rec, ok)
	}
}

func TestSeekEmptySeries(t *testing.T) {
	s := NewSeries()
	if ok := s.Seek(100); ok {
		t.Fatal("seek on empty series should fail")
	}
	if _, ok := s.AtCursor(); ok {
		t.Fatal("AtCursor on empty series should report empty")
	}
}

func TestAdvanceRoundTrip(t *testing.T) {
	s := NewSeries()
	var recs []*model.Record
	for i := 0; i < 10; i++ {
		recs = append(recs, snap(fmt.Sprintf("r%d", i), float64(100+i*10)))
	}
	s.InsertBatch(recs)

	s.Seek(125)
	start, _ := s.AtCursor()
	const n = 4
	for i := 0; i < n; i++ {
		if !s.Advance(1) {
			t.Fatalf("advance %d failed", i)
		}
	}
	for i := 0; i < n; i++ {
		if !s.Advance(-1) {
			t.Fatalf("retreat %d failed", i)
		}
	}
	end, _ := s.AtCursor()
	if end.ID != start.ID {
		t.Fatalf("round trip landed on %s, want %s", end.ID, start.ID)
	}
}

func TestAdvanceClampsAtBounds(t *testing.T) {
	s := NewSeries()
	s.InsertBatch([]*model.Record{snap("a", 100), snap("b", 200)})
	s.Seek(100)
	if s.Advance(-1) {
		t.Fatal("advance past start should not move")
	}
	s.Seek(200)
	if s.Advance(1) {
		t.Fatal("advance past end should not move")
	}
}

func TestCursorSurvivesInsertion(t *testing.T) {
	s := NewSeries()
	s.InsertBatch([]*model.Record{snap("a", 100), snap("d", 400)})
	s.Seek(400)
	before, _ := s.AtCursor()

	// Insert records both before and after the cursor's record.
	s.InsertBatch([]*model.Record{snap("b", 200), snap("c", 300), snap("e", 500)})

	after, ok := s.AtCursor()
	if !ok || after.ID != before.ID || after.Time != before.Time {
		t.Fatalf("cursor moved off its record: had %s@%v, got %s@%v",
			before.ID, before.Time, after.ID, after.Time)
	}
}

func TestInsertReplacesSameTimestampAndID(t *testing.T) {
	s := NewSeries()
	old := snap("a", 100)
	old.Fields["marker"] = "old"
	s.InsertBatch([]*model.Record{old})

	repl := snap("a", 100)
	repl.Fields["marker"] = "new"
	s.InsertBatch([]*model.Record{repl})

	if s.Len() != 1 {
		t.Fatalf("replacement duplicated the snapshot: len=%d", s.Len())
	}
	s.Seek(100)
	rec, _ := s.AtCursor()
	if rec.Str("marker") != "new" {
		t.Fatalf("new batch should win, got %q", rec.Str("marker"))
	}
}
