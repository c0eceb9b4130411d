package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ftahirops/xrewind/model"
	"github.com/ftahirops/xrewind/source"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// RecoverStrategy selects how to leave the Failed state.
type RecoverStrategy int

const (
	// RecoverRetry re-fetches the window of the failed load.
	RecoverRetry RecoverStrategy = iota
	// RecoverRevert falls back to the last known-good time.
	RecoverRevert
	// RecoverReload drops everything and loads the current time from scratch.
	RecoverReload
)

// Look-around margin for the window requested around a target time.
const (
	lookBehind = 120.0 // seconds fetched before the target
	lookAhead  = 300.0 // seconds fetched after the target
)

// graceSeconds is how stale the cursor snapshot may be before it is treated
// as "no data" for the requested time. Snapshots arrive at least every 15s.
const graceSeconds = 16.0

// LoadRequest describes one background fetch: the requested window and the
// uncovered sub-intervals that actually need fetching.
type LoadRequest struct {
	Window model.Span
	Gaps   []model.Span
}

// LoadResult reports a finished background fetch.
type LoadResult struct {
	Window   model.Span
	Gaps     []model.Span
	Accepted int
	Rejected int
	Err      error
}

// Engine owns the record store, the time-indexed series, the loaded-span
// tracker, and the process tree, and drives loading around a movable time
// cursor.
//
// Concurrency contract: every method except Load runs on the foreground
// loop. Load runs on a background goroutine but only touches the store and
// series, which carry their own locks; the engine guarantees at most one
// Load in flight, and a navigation arriving mid-load is coalesced into one
// pending follow-up window.
type Engine struct {
	store  *model.Store
	series *Series
	spans  *SpanSet
	tree   *Tree

	src       source.Source
	machineID string
	archive   *source.ArchiveWriter // optional tee of every fetched line

	state      State
	failureMsg string

	target       float64 // requested cursor time
	lastGood     float64
	haveLastGood bool
	lastWindow   model.Span
	inflight     bool
	pending      *model.Span
}

// NewEngine creates an engine over the given source.
func NewEngine(src source.Source, machineID string) *Engine {
	return &Engine{
		store:     model.NewStore(),
		series:    NewSeries(),
		spans:     NewSpanSet(),
		tree:      &Tree{Nodes: map[string]*Node{}},
		src:       src,
		machineID: machineID,
		state:     StateUninitialized,
	}
}

// SetArchiveWriter tees every fetched line into an archive for later replay.
func (e *Engine) SetArchiveWriter(w *source.ArchiveWriter) { e.archive = w }

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// FailureMessage returns the user-facing message for the Failed state.
func (e *Engine) FailureMessage() string { return e.failureMsg }

// Timestamp returns the requested cursor time in epoch seconds.
func (e *Engine) Timestamp() float64 { return e.target }

// MachineID returns the machine this session replays.
func (e *Engine) MachineID() string { return e.machineID }

// Init starts the first load around t. When t is zero the first snapshot in
// the fetched data becomes the cursor once the load finishes.
func (e *Engine) Init(t float64) *LoadRequest {
	e.target = t
	e.series.Seek(t)
	window := e.windowAround(t)
	e.state = StateLoading
	e.inflight = true
	e.lastWindow = window
	return &LoadRequest{Window: window, Gaps: e.spans.Cover(window)}
}

// SetTime moves the cursor to t. If the look-around window has gaps it
// returns a LoadRequest for exactly the missing sub-intervals, or coalesces
// the window into the in-flight load's follow-up. Navigation is not served
// while Failed.
func (e *Engine) SetTime(t float64) *LoadRequest {
	if e.state == StateFailed {
		return nil
	}
	e.target = t
	e.series.Seek(t)

	window := e.windowAround(t)
	gaps := e.spans.Cover(window)
	if len(gaps) == 0 {
		if !e.inflight {
			e.state = StateReady
			e.lastGood = t
			e.haveLastGood = true
		}
		return nil
	}
	if e.inflight {
		merged := window
		if e.pending != nil {
			merged = merged.Union(*e.pending)
		}
		e.pending = &merged
		return nil
	}
	e.state = StateLoading
	e.inflight = true
	e.lastWindow = window
	return &LoadRequest{Window: window, Gaps: gaps}
}

// StepSnapshot moves the cursor one snapshot forward or backward and returns
// the load request that movement may require.
func (e *Engine) StepSnapshot(dir int) *LoadRequest {
	if e.state == StateFailed {
		return nil
	}
	if !e.series.Advance(dir) {
		// At the edge of loaded data: nudge the target past it so the gap
		// query fetches the adjacent window.
		step := lookBehind
		if dir < 0 {
			step = -step
		}
		return e.SetTime(e.target + step)
	}
	rec, ok := e.series.AtCursor()
	if !ok {
		return nil
	}
	return e.SetTime(rec.Time)
}

// Load performs the fetch and ingestion for req. It is the only engine
// method that may block and the only one that runs off the foreground loop.
func (e *Engine) Load(ctx context.Context, req *LoadRequest) LoadResult {
	res := LoadResult{Window: req.Window, Gaps: req.Gaps}
	for _, gap := range req.Gaps {
		lines, err := e.src.Fetch(ctx, e.machineID, gap)
		if err != nil {
			res.Err = err
			return res
		}
		if e.archive != nil && len(lines) > 0 {
			if err := e.archive.WriteLines(lines); err != nil {
				log.Printf("xrewind: archive write failed: %v", err)
			}
		}
		acc, rej, snaps := e.store.Ingest(lines)
		e.series.InsertBatch(snaps)
		res.Accepted += acc
		res.Rejected += rej
	}
	return res
}

// FinishLoad applies a completed load on the foreground loop: marks the
// fetched spans (absence included), rebuilds the process tree, restores
// Ready, and hands back the coalesced follow-up request if navigation
// happened mid-load.
func (e *Engine) FinishLoad(res LoadResult) *LoadRequest {
	e.inflight = false

	if res.Err != nil {
		e.pending = nil
		e.Fail(loadFailureMessage(res.Err))
		return nil
	}

	for _, gap := range res.Gaps {
		e.spans.MarkLoaded(gap)
	}

	// A zero target means "start wherever the data starts".
	if e.target == 0 {
		if first, ok := e.series.First(); ok {
			e.target = first.Time
			e.spans.MarkLoaded(model.Span{Start: first.Time, End: first.Time})
		}
	}
	e.series.Seek(e.target)
	if e.series.Len() > 0 {
		if _, ok := e.series.AtCursor(); !ok {
			e.Invariant("series cursor out of bounds after load")
			return nil
		}
	}
	e.tree = BuildTree(e.store.Records(model.SchemaProcess))
	if e.tree.Anomalies > 0 {
		log.Printf("xrewind: process tree build broke %d parent link(s)", e.tree.Anomalies)
	}

	e.state = StateReady
	e.lastGood = e.target
	e.haveLastGood = true

	if e.pending != nil {
		window := *e.pending
		e.pending = nil
		gaps := e.spans.Cover(window)
		if len(gaps) > 0 {
			e.state = StateLoading
			e.inflight = true
			e.lastWindow = window
			return &LoadRequest{Window: window, Gaps: gaps}
		}
	}
	return nil
}

// Fail records a user-facing message and stops serving navigation until a
// recovery strategy runs.
func (e *Engine) Fail(msg string) {
	log.Printf("xrewind: entering failed state: %s", msg)
	e.state = StateFailed
	e.failureMsg = msg
}

// Invariant reports a programming-contract violation through the failure
// channel, so the user always has a recovery path, while logging it apart
// from ordinary load failures.
func (e *Engine) Invariant(msg string) {
	log.Printf("xrewind: INVARIANT VIOLATION: %s", msg)
	e.state = StateFailed
	e.failureMsg = "internal error: " + msg
}

// Recover attempts to leave the Failed state. It returns a load request when
// the strategy needs a fetch, and an error when recovery itself failed.
func (e *Engine) Recover(strategy RecoverStrategy) (*LoadRequest, error) {
	switch strategy {
	case RecoverRetry:
		window := e.lastWindow
		if window.IsZero() {
			window = e.windowAround(e.target)
		}
		gaps := e.spans.Cover(window)
		e.failureMsg = ""
		if len(gaps) == 0 {
			e.state = StateReady
			return nil, nil
		}
		e.state = StateLoading
		e.inflight = true
		e.lastWindow = window
		return &LoadRequest{Window: window, Gaps: gaps}, nil

	case RecoverRevert:
		if !e.haveLastGood {
			return e.Recover(RecoverReload)
		}
		e.target = e.lastGood
		e.series.Seek(e.target)
		e.failureMsg = ""
		e.state = StateReady
		return nil, nil

	case RecoverReload:
		t := e.target
		e.store.Clear()
		e.series.Clear()
		e.spans.Clear()
		e.tree = &Tree{Nodes: map[string]*Node{}}
		e.pending = nil
		e.failureMsg = ""
		e.state = StateUninitialized
		return e.Init(t), nil
	}
	return nil, fmt.Errorf("unknown recovery strategy %d", strategy)
}

// windowAround returns the look-around window for a target time.
func (e *Engine) windowAround(t float64) model.Span {
	return model.Span{Start: t - lookBehind, End: t + lookAhead}
}

// Store exposes the record store to the presentation layer.
func (e *Engine) Store() *model.Store { return e.store }

// Series exposes the snapshot series.
func (e *Engine) Series() *Series { return e.series }

// Spans exposes the loaded-span tracker.
func (e *Engine) Spans() *SpanSet { return e.spans }

// Tree returns the current process forest.
func (e *Engine) Tree() *Tree { return e.tree }

// Snapshot returns the snapshot under the cursor. ok is false when the
// series is empty or the cursor snapshot is too stale for the requested
// time, which the UI renders as "no data".
func (e *Engine) Snapshot() (*model.Record, bool) {
	rec, ok := e.series.AtCursor()
	if !ok {
		return nil, false
	}
	if rec.Time > e.target || e.target-rec.Time >= graceSeconds {
		return rec, false
	}
	return rec, true
}

// PrevSnapshot returns the snapshot before the cursor, for rate deltas.
func (e *Engine) PrevSnapshot() (*model.Record, bool) {
	return e.series.Offset(-1)
}

// Usage returns the per-pid resource maps of the cursor and previous
// snapshots, plus the elapsed seconds between them, for CPU%/MEM% columns.
func (e *Engine) Usage() (cur, prev map[string]any, elapsed float64) {
	curRec, ok := e.Snapshot()
	if !ok {
		return nil, nil, 0
	}
	prevRec, ok := e.PrevSnapshot()
	if !ok {
		return curRec.Map("processes"), nil, 0
	}
	return curRec.Map("processes"), prevRec.Map("processes"), curRec.Time - prevRec.Time
}

// ClkTck returns the clock tick rate from the cursor snapshot, defaulting
// to the conventional 100 when unavailable.
func (e *Engine) ClkTck() float64 {
	if rec, ok := e.Snapshot(); ok {
		if v, ok := rec.Float("clk_tck"); ok && v > 0 {
			return v
		}
	}
	return 100
}

// MemTotal returns total machine memory in bytes for the current time.
// Memory arrives only on some snapshots, so this walks back from the cursor
// to the nearest snapshot that carried it.
func (e *Engine) MemTotal() float64 {
	for off := 0; off >= -8; off-- {
		rec, ok := e.series.Offset(off)
		if !ok {
			break
		}
		if mem := rec.Map("memory"); mem != nil {
			if v, ok := model.AsFloat(mem["MemTotal"]); ok {
				return v
			}
		}
	}
	return 0
}

func loadFailureMessage(err error) string {
	var fe *source.FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return fmt.Sprintf("loading data failed: %v", err)
}
