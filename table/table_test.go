package table

import (
	"strings"
	"testing"

	"github.com/ftahirops/xrewind/engine"
	"github.com/ftahirops/xrewind/model"
)

func testCols() []Column {
	return []Column{
		{
			Key: "pid", Title: "PID", Align: AlignRight, Width: 6, Enabled: true,
			Sort:    func(_ *Context, r *model.Record) any { v, _ := r.Float("pid"); return v },
			Display: func(_ *Context, r *model.Record) string { return r.Str("name") },
		},
		{
			Key: "cmd", Title: "Command", Width: 0, Fill: true, Enabled: true,
			Sort:    func(_ *Context, r *model.Record) any { return r.Str("cmd") },
			Display: func(_ *Context, r *model.Record) string { return r.Str("cmd") },
		},
	}
}

func rec(id string, pid float64, cmd string) *model.Record {
	return &model.Record{
		Schema:      "model_process:1.1.0",
		ShortSchema: model.SchemaProcess,
		ID:          id,
		Time:        100,
		Fields:      map[string]any{"id": id, "pid": pid, "cmd": cmd, "name": id},
	}
}

func newTestTable(recs ...*model.Record) *Table {
	t := New(testCols(), Styles{})
	t.SetRecords(recs)
	t.SetViewport(40, 10)
	return t
}

func visibleIDs(t *Table) []string {
	t.Sync()
	ids := make([]string, len(t.order))
	copy(ids, t.order)
	return ids
}

func TestSortOrdersByKeyValue(t *testing.T) {
	tbl := newTestTable(
		rec("a", 3, "zsh"),
		rec("b", 1, "init"),
		rec("c", 2, "sshd"),
	)
	tbl.SetSort("pid", false)
	if got := visibleIDs(tbl); strings.Join(got, ",") != "b,c,a" {
		t.Fatalf("ascending pid order = %v, want [b c a]", got)
	}
}

func TestSortDirectionRoundTrip(t *testing.T) {
	tbl := newTestTable(rec("a", 3, "z"), rec("b", 1, "i"), rec("c", 2, "s"))
	tbl.SetSort("pid", false)
	asc := visibleIDs(tbl)

	tbl.SetSort("pid", true)
	desc := visibleIDs(tbl)
	for i := range asc {
		if asc[i] != desc[len(desc)-1-i] {
			t.Fatalf("descending is not the reverse: asc=%v desc=%v", asc, desc)
		}
	}

	tbl.SetSort("pid", false)
	if got := visibleIDs(tbl); strings.Join(got, ",") != strings.Join(asc, ",") {
		t.Fatalf("flipping direction twice changed the order: %v vs %v", got, asc)
	}
}

func TestNilSortKeysSinkToBottom(t *testing.T) {
	broken := rec("x", 0, "bad")
	delete(broken.Fields, "pid")
	cols := testCols()
	cols[0].Sort = func(_ *Context, r *model.Record) any {
		if v, ok := r.Float("pid"); ok {
			return v
		}
		return nil
	}
	tbl := New(cols, Styles{})
	tbl.SetRecords([]*model.Record{broken, rec("a", 2, "z"), rec("b", 1, "i")})
	tbl.SetViewport(40, 10)

	tbl.SetSort("pid", false)
	ids := visibleIDs(tbl)
	if ids[len(ids)-1] != "x" {
		t.Fatalf("nil key should sort last ascending: %v", ids)
	}
	tbl.SetSort("pid", true)
	ids = visibleIDs(tbl)
	if ids[len(ids)-1] != "x" {
		t.Fatalf("nil key should sort last descending too: %v", ids)
	}
}

func TestFilterDoesNotRecompute(t *testing.T) {
	tbl := newTestTable(rec("a", 1, "sshd"), rec("b", 2, "zsh"), rec("c", 3, "sshfs"))
	tbl.Sync()
	calls := tbl.ComputeCalls()

	tbl.SetFilter("ssh")
	if got := tbl.Len(); got != 2 {
		t.Fatalf("filter 'ssh' kept %d rows, want 2", got)
	}
	tbl.SetFilter("")
	if got := tbl.Len(); got != 3 {
		t.Fatalf("clearing the filter restored %d rows, want 3", got)
	}
	if tbl.ComputeCalls() != calls {
		t.Fatalf("filtering recomputed cells: %d calls, had %d", tbl.ComputeCalls(), calls)
	}
}

func TestFilterMiniLanguage(t *testing.T) {
	tbl := newTestTable(rec("a", 1, "sshd"), rec("b", 2, "zsh"), rec("c", 3, "init"))

	tbl.SetFilter("cmd:sshd")
	if ids := visibleIDs(tbl); len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("cmd:sshd matched %v", ids)
	}
	tbl.SetFilter("!sh")
	if ids := visibleIDs(tbl); len(ids) != 1 || ids[0] != "c" {
		t.Fatalf("!sh matched %v", ids)
	}
	tbl.SetFilter("cmd:sh !zsh")
	if ids := visibleIDs(tbl); len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("combined terms matched %v", ids)
	}
}

func TestPanicInOneCellYieldsSentinel(t *testing.T) {
	cols := testCols()
	cols[0].Display = func(_ *Context, r *model.Record) string {
		return r.Fields["missing"].(string) // panics on every record
	}
	tbl := New(cols, Styles{})
	tbl.SetRecords([]*model.Record{rec("a", 1, "sshd")})
	tbl.SetViewport(40, 10)
	tbl.Sync()

	row := tbl.rows["a"]
	if row.Cells[0] != Unavailable {
		t.Fatalf("panicking cell = %q, want %q", row.Cells[0], Unavailable)
	}
	if row.Cells[1] != "sshd" {
		t.Fatalf("healthy cell damaged: %q", row.Cells[1])
	}
}

func TestSelectionFollowsRecordAcrossResort(t *testing.T) {
	tbl := newTestTable(rec("a", 3, "z"), rec("b", 1, "i"), rec("c", 2, "s"))
	tbl.SetSort("pid", false) // b, c, a
	tbl.MoveSelection(1)      // c
	id, ok := tbl.Selected()
	if !ok || id != "c" {
		t.Fatalf("selected %q, want c", id)
	}

	tbl.SetSort("pid", true) // a, c, b
	id, ok = tbl.Selected()
	if !ok || id != "c" {
		t.Fatalf("selection drifted to %q after re-sort, want c", id)
	}
}

func TestTreeOrderAndPrefixes(t *testing.T) {
	recs := []*model.Record{
		rec("p1", 1, "init"),
		rec("p2", 2, "sshd"),
		rec("p3", 3, "bash"),
	}
	recs[0].Fields["ppuid"] = ""
	recs[1].Fields["ppuid"] = "p1"
	recs[2].Fields["ppuid"] = "p1"
	tree := engine.BuildTree(recs)

	tbl := newTestTable(recs...)
	tbl.SetSort("pid", true)
	tbl.SetTree(tree, true)

	// Depth-first, siblings in pid-descending order.
	if ids := visibleIDs(tbl); strings.Join(ids, ",") != "p1,p3,p2" {
		t.Fatalf("tree order = %v, want depth-first [p1 p3 p2]", ids)
	}
	if tbl.prefix["p1"] != "" {
		t.Fatalf("root prefix = %q, want empty", tbl.prefix["p1"])
	}
	if tbl.prefix["p3"] != "├─ " || tbl.prefix["p2"] != "└─ " {
		t.Fatalf("child prefixes = %q %q", tbl.prefix["p3"], tbl.prefix["p2"])
	}

	// Leaving tree mode restores the sorted order.
	tbl.SetTree(tree, false)
	if ids := visibleIDs(tbl); strings.Join(ids, ",") != "p3,p2,p1" {
		t.Fatalf("flat order after tree = %v", ids)
	}
}

func TestTreeSiblingsFollowActiveSort(t *testing.T) {
	recs := []*model.Record{
		rec("p1", 1, "init"),
		rec("pa", 10, "sshd"),
		rec("pb", 99, "nginx"),
	}
	recs[0].Fields["ppuid"] = ""
	recs[1].Fields["ppuid"] = "p1"
	recs[2].Fields["ppuid"] = "p1"
	tree := engine.BuildTree(recs)

	tbl := newTestTable(recs...)
	tbl.SetTree(tree, true)

	tbl.SetSort("pid", true)
	if ids := visibleIDs(tbl); strings.Join(ids, ",") != "p1,pb,pa" {
		t.Fatalf("tree order under pid desc = %v, want [p1 pb pa]", ids)
	}
	tbl.SetSort("pid", false)
	if ids := visibleIDs(tbl); strings.Join(ids, ",") != "p1,pa,pb" {
		t.Fatalf("tree order under pid asc = %v, want [p1 pa pb]", ids)
	}
}

func TestFindWrapsAround(t *testing.T) {
	tbl := newTestTable(rec("a", 1, "sshd"), rec("b", 2, "zsh"), rec("c", 3, "init"))
	tbl.SetSort("pid", false)
	tbl.SelectLast()

	if !tbl.Find("sshd") {
		t.Fatal("Find should wrap past the end")
	}
	if id, _ := tbl.Selected(); id != "a" {
		t.Fatalf("found %q, want a", id)
	}
	if tbl.Find("nonexistent") {
		t.Fatal("Find matched nothing")
	}
}

func TestViewportFollowsSelection(t *testing.T) {
	var recs []*model.Record
	for i := 0; i < 30; i++ {
		recs = append(recs, rec(string(rune('a'+i)), float64(i), "proc"))
	}
	tbl := newTestTable(recs...)
	tbl.SetViewport(40, 5)
	tbl.SetSort("pid", false)

	tbl.SelectLast()
	lines := tbl.Lines()
	if len(lines) != 5 {
		t.Fatalf("viewport rendered %d lines, want 5", len(lines))
	}
	if tbl.top != 25 {
		t.Fatalf("viewport top = %d, want 25", tbl.top)
	}
}
