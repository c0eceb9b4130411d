package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ftahirops/xrewind/engine"
	"github.com/ftahirops/xrewind/model"
)

type stubSource struct{ lines [][]byte }

func (s *stubSource) Name() string { return "stub" }
func (s *stubSource) Fetch(ctx context.Context, machineID string, span model.Span) ([][]byte, error) {
	lines := s.lines
	s.lines = nil
	return lines, nil
}

func line(format string, args ...any) []byte {
	return []byte(fmt.Sprintf(format, args...))
}

func loadedModel(t *testing.T) Model {
	t.Helper()
	src := &stubSource{lines: [][]byte{
		line(`{"schema":"event_top:1.0.0","id":"t1","time":100,"clk_tck":100,"processes":{"1":{"utime":10,"stime":5,"res":1048576}}}`),
		line(`{"schema":"event_top:1.0.0","id":"t2","time":115,"clk_tck":100,"processes":{"1":{"utime":20,"stime":10,"res":1048576}}}`),
		line(`{"schema":"model_process:1.1.0","id":"p1","time":100,"pid":1,"ppuid":"","euser":"root","args":["/sbin/init"],"valid_from":90}`),
		line(`{"schema":"model_process:1.1.0","id":"p2","time":100,"pid":2,"ppuid":"p1","euser":"root","args":["sshd"],"valid_from":90,"duration":10}`),
		line(`{"schema":"event_redflag:1.0.0","id":"f1","time":110,"severity":"high","description":"odd exec"}`),
	}}
	eng := engine.NewEngine(src, "m")
	m := NewModel(eng, 115, Options{})
	res := eng.Load(context.Background(), m.firstReq)
	next, _ := m.Update(loadMsg(res))
	return next.(Model)
}

func TestModelReadyAfterLoad(t *testing.T) {
	m := loadedModel(t)
	if m.eng.State() != engine.StateReady {
		t.Fatalf("state = %v, want Ready", m.eng.State())
	}
	if got := m.eng.Series().Len(); got != 2 {
		t.Fatalf("series has %d snapshots, want 2", got)
	}
	// The header shows the cursor time both absolute and relative.
	if header := m.renderHeader(); !strings.Contains(header, "ago") {
		t.Fatalf("header missing relative time: %s", header)
	}
}

func TestLifetimeFilteringHidesExpiredRecords(t *testing.T) {
	m := loadedModel(t)
	// p2's lifetime [90, 100] ended before the cursor at 115.
	recs := m.recordsAlive(model.SchemaProcess, m.eng.Timestamp())
	if len(recs) != 1 || recs[0].ID != "p1" {
		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = r.ID
		}
		t.Fatalf("alive processes = %v, want [p1]", ids)
	}
}

func TestFlagsVisibleUpToCursor(t *testing.T) {
	m := loadedModel(t)
	if recs := m.recordsAlive(model.SchemaFlag, 115); len(recs) != 1 {
		t.Fatalf("flags at t=115: %d, want 1", len(recs))
	}
	if recs := m.recordsAlive(model.SchemaFlag, 105); len(recs) != 0 {
		t.Fatalf("flags at t=105: %d, want 0 (flag raised at 110)", len(recs))
	}
}

func TestTabSwitching(t *testing.T) {
	m := loadedModel(t)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	if m.tab != TabSessions {
		t.Fatalf("tab after tab key = %v, want Sessions", m.tab)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'5'}})
	m = next.(Model)
	if m.tab != TabFlags {
		t.Fatalf("tab after 5 = %v, want Flags", m.tab)
	}
}

func TestProcessTableComputesCPUPercent(t *testing.T) {
	m := loadedModel(t)
	m.refreshData()
	tbl := m.tables[TabProcesses]
	if tbl.Len() != 1 {
		t.Fatalf("process rows = %d, want 1", tbl.Len())
	}
	// (30-15 ticks) / 100 clk_tck / 15s elapsed = 1.0%
	view := tbl.View()
	if !strings.Contains(view, "1.0") {
		t.Fatalf("CPU%% column missing from view:\n%s", view)
	}
	if !strings.Contains(view, "/sbin/init") {
		t.Fatalf("command column missing from view:\n%s", view)
	}
}

func TestFailureViewOffersRecovery(t *testing.T) {
	m := loadedModel(t)
	m.eng.Fail("the API went away")
	view := m.View()
	if !strings.Contains(view, "the API went away") {
		t.Fatal("failure view does not show the message")
	}
	for _, hint := range []string{"retry", "revert", "reload"} {
		if !strings.Contains(view, hint) {
			t.Fatalf("failure view missing %q hint", hint)
		}
	}
}
