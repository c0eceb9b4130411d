package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ftahirops/xrewind/model"
)

// SpanSet tracks which time windows have been fetched, as a sorted list of
// disjoint closed intervals. A window that was fetched and found empty is
// still marked loaded: absence is cached, so the UI renders "no data"
// instead of re-fetching.
type SpanSet struct {
	mu    sync.RWMutex
	spans []model.Span // sorted by Start, pairwise non-touching
}

// NewSpanSet creates an empty tracker.
func NewSpanSet() *SpanSet {
	return &SpanSet{}
}

// MarkLoaded inserts a span, coalescing it with any tracked spans it
// overlaps or touches.
func (ss *SpanSet) MarkLoaded(sp model.Span) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	merged := sp
	out := make([]model.Span, 0, len(ss.spans)+1)
	inserted := false
	for _, cur := range ss.spans {
		switch {
		case cur.Touches(merged):
			merged = merged.Union(cur)
		case cur.Start > merged.End:
			if !inserted {
				out = append(out, merged)
				inserted = true
			}
			out = append(out, cur)
		default:
			out = append(out, cur)
		}
	}
	if !inserted {
		out = append(out, merged)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	ss.spans = out
}

// Cover returns the ordered sub-intervals of win not yet tracked, so a
// caller fetches only what is missing.
func (ss *SpanSet) Cover(win model.Span) []model.Span {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	var gaps []model.Span
	cur := win.Start
	for _, sp := range ss.spans {
		if sp.End < cur {
			continue
		}
		if sp.Start > win.End {
			break
		}
		if sp.Start > cur {
			gaps = append(gaps, model.Span{Start: cur, End: sp.Start})
		}
		if sp.End > cur {
			cur = sp.End
		}
		if cur >= win.End {
			return gaps
		}
	}
	if cur < win.End {
		gaps = append(gaps, model.Span{Start: cur, End: win.End})
	}
	return gaps
}

// Contains reports whether t falls inside a loaded span.
func (ss *SpanSet) Contains(t float64) bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	for _, sp := range ss.spans {
		if sp.Contains(t) {
			return true
		}
	}
	return false
}

// Spans returns a copy of the tracked intervals.
func (ss *SpanSet) Spans() []model.Span {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	out := make([]model.Span, len(ss.spans))
	copy(out, ss.spans)
	return out
}

// Clear drops all tracked intervals.
func (ss *SpanSet) Clear() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.spans = nil
}

func (ss *SpanSet) String() string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	parts := make([]string, len(ss.spans))
	for i, sp := range ss.spans {
		parts[i] = fmt.Sprintf("[%.0f,%.0f]", sp.Start, sp.End)
	}
	return strings.Join(parts, " ")
}
