package table

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ftahirops/xrewind/engine"
	"github.com/ftahirops/xrewind/model"
)

// Level grades how stale the table is. Levels are ordered: a higher level
// implies all the work of the levels below it.
type Level int

const (
	LevelNone        Level = iota
	LevelRefresh           // re-render the visible lines
	LevelUpdate            // re-sort, re-filter, re-order
	LevelRecalculate       // recompute every cell from the records
)

// Styles holds the lipgloss styles the table renders with, injected by the
// presentation layer so this package stays palette-free.
type Styles struct {
	Header   lipgloss.Style
	SortCol  lipgloss.Style
	Row      lipgloss.Style
	Selected lipgloss.Style
}

// Table is a sortable, filterable view over a set of records. Mutations only
// raise a dirtiness level; all recomputation happens in Sync, so a burst of
// changes between two frames costs one pass at the highest requested level.
type Table struct {
	cols []Column
	ctx  Context

	recs   []*model.Record
	rows   map[string]Row
	order  []string
	prefix map[string]string

	sortKey  string
	sortDesc bool
	filter   string
	tree     *engine.Tree
	treeOn   bool

	selected int
	followID string
	top      int
	width    int
	height   int

	lines        []string
	header       string
	dirty        Level
	computeCalls int

	styles Styles
}

// New creates a table over the given column definitions.
func New(cols []Column, styles Styles) *Table {
	return &Table{
		cols:   cols,
		rows:   map[string]Row{},
		prefix: map[string]string{},
		styles: styles,
		width:  80,
		height: 20,
	}
}

// Invalidate raises the dirtiness level. Lower levels never downgrade a
// higher pending one.
func (t *Table) Invalidate(level Level) {
	if level > t.dirty {
		t.dirty = level
	}
}

// SetRecords replaces the table's records and forces a full recompute.
func (t *Table) SetRecords(recs []*model.Record) {
	t.recs = recs
	t.Invalidate(LevelRecalculate)
}

// SetContext replaces the snapshot-wide formula inputs.
func (t *Table) SetContext(ctx Context) {
	t.ctx = ctx
	t.Invalidate(LevelRecalculate)
}

// SetSort orders rows by the column with the given key. Sorting an already
// computed table only re-orders it.
func (t *Table) SetSort(key string, desc bool) {
	t.sortKey = key
	t.sortDesc = desc
	t.Invalidate(LevelUpdate)
}

// SortKey returns the current sort column key.
func (t *Table) SortKey() string { return t.sortKey }

// SortDesc reports whether the sort is descending.
func (t *Table) SortDesc() bool { return t.sortDesc }

// SetFilter installs a filter expression: space-separated terms that must all
// match. A term is plain text matched against every cell, "column:text"
// matched against one column, or "!term" to negate. Matching is
// case-insensitive.
func (t *Table) SetFilter(expr string) {
	t.filter = expr
	t.Invalidate(LevelUpdate)
}

// Filter returns the current filter expression.
func (t *Table) Filter() string { return t.filter }

// SetTree switches between flat and forest ordering. In tree mode rows
// follow a depth-first walk of the forest with siblings on each level
// ordered by the active sort column; the fill column carries branch
// prefixes.
func (t *Table) SetTree(tree *engine.Tree, on bool) {
	t.tree = tree
	t.treeOn = on && tree != nil
	t.Invalidate(LevelUpdate)
}

// TreeEnabled reports whether forest ordering is active.
func (t *Table) TreeEnabled() bool { return t.treeOn }

// SetViewport resizes the rendered window.
func (t *Table) SetViewport(width, height int) {
	t.width = width
	t.height = height
	t.Invalidate(LevelRefresh)
}

// MoveSelection moves the selected row by delta, clamped to the table.
func (t *Table) MoveSelection(delta int) {
	t.Sync()
	if len(t.order) == 0 {
		return
	}
	t.selected += delta
	if t.selected < 0 {
		t.selected = 0
	}
	if t.selected >= len(t.order) {
		t.selected = len(t.order) - 1
	}
	t.followID = t.order[t.selected]
	t.Invalidate(LevelRefresh)
}

// SelectFirst moves the selection to the top row.
func (t *Table) SelectFirst() { t.MoveSelection(-1 << 30) }

// SelectLast moves the selection to the bottom row.
func (t *Table) SelectLast() { t.MoveSelection(1 << 30) }

// Selected returns the id of the selected row.
func (t *Table) Selected() (string, bool) {
	t.Sync()
	if t.selected < 0 || t.selected >= len(t.order) {
		return "", false
	}
	return t.order[t.selected], true
}

// Follow keeps the selection pinned to the given record id across re-sorts
// and reloads.
func (t *Table) Follow(id string) {
	t.followID = id
	t.Invalidate(LevelUpdate)
}

// Find moves the selection to the next row after the current one whose cells
// contain text, wrapping around. It reports whether a match was found.
func (t *Table) Find(text string) bool {
	t.Sync()
	if len(t.order) == 0 || text == "" {
		return false
	}
	needle := strings.ToLower(text)
	for i := 1; i <= len(t.order); i++ {
		idx := (t.selected + i) % len(t.order)
		row := t.rows[t.order[idx]]
		if strings.Contains(strings.ToLower(strings.Join(row.Cells, " ")), needle) {
			t.selected = idx
			t.followID = t.order[idx]
			t.Invalidate(LevelRefresh)
			return true
		}
	}
	return false
}

// Len returns the number of visible rows after filtering.
func (t *Table) Len() int {
	t.Sync()
	return len(t.order)
}

// ComputeCalls returns how many full cell recomputations have run.
func (t *Table) ComputeCalls() int { return t.computeCalls }

// Header returns the rendered column title line.
func (t *Table) Header() string {
	t.Sync()
	return t.header
}

// Lines returns the rendered viewport rows.
func (t *Table) Lines() []string {
	t.Sync()
	return t.lines
}

// View returns the header and viewport joined for display.
func (t *Table) View() string {
	t.Sync()
	return t.header + "\n" + strings.Join(t.lines, "\n")
}

// Sync settles the pending dirtiness top-down: recalculate implies update,
// update implies refresh.
func (t *Table) Sync() {
	if t.dirty == LevelNone {
		return
	}
	if t.dirty >= LevelRecalculate {
		t.recalculate()
	}
	if t.dirty >= LevelUpdate {
		t.update()
	}
	t.refresh()
	t.dirty = LevelNone
}

func (t *Table) recalculate() {
	t.computeCalls++
	t.rows = make(map[string]Row, len(t.recs))
	for _, rec := range t.recs {
		t.rows[rec.ID] = Compute(t.cols, &t.ctx, rec)
	}
}

func (t *Table) update() {
	if t.treeOn {
		t.order = t.treeOrder()
	} else {
		t.order = t.flatOrder()
	}
	if t.filter != "" {
		kept := t.order[:0]
		for _, id := range t.order {
			if t.rowMatches(t.rows[id]) {
				kept = append(kept, id)
			}
		}
		t.order = kept
	}

	// Re-find the followed row; fall back to clamping.
	t.selected = 0
	if t.followID != "" {
		for i, id := range t.order {
			if id == t.followID {
				t.selected = i
				break
			}
		}
	}
}

func (t *Table) flatOrder() []string {
	t.prefix = map[string]string{}
	order := make([]string, 0, len(t.recs))
	for _, rec := range t.recs {
		if _, ok := t.rows[rec.ID]; ok {
			order = append(order, rec.ID)
		}
	}
	return t.sortIDs(order, t.enabledIndex(t.sortKey))
}

// sortIDs orders row ids by the active sort column: nil keys sink to the
// bottom under either direction, equal keys tie-break on id.
func (t *Table) sortIDs(ids []string, keyIdx int) []string {
	if keyIdx < 0 {
		sort.Strings(ids)
		return ids
	}
	key := func(id string) any {
		row, ok := t.rows[id]
		if !ok || keyIdx >= len(row.Keys) {
			return nil
		}
		return row.Keys[keyIdx]
	}
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := key(ids[i]), key(ids[j])
		if (a == nil) != (b == nil) {
			return b == nil
		}
		c := compareSort(a, b)
		if c == 0 {
			return ids[i] < ids[j]
		}
		if t.sortDesc {
			return c > 0
		}
		return c < 0
	})
	return ids
}

func (t *Table) treeOrder() []string {
	t.prefix = map[string]string{}
	keyIdx := t.enabledIndex(t.sortKey)
	var order []string
	var walk func(id, lead string, last, root bool)
	walk = func(id, lead string, last, root bool) {
		node, ok := t.tree.Nodes[id]
		if !ok {
			return
		}
		if _, has := t.rows[id]; has {
			if root {
				t.prefix[id] = ""
			} else if last {
				t.prefix[id] = lead + "└─ "
			} else {
				t.prefix[id] = lead + "├─ "
			}
			order = append(order, id)
		}
		childLead := lead
		if !root {
			if last {
				childLead += "   "
			} else {
				childLead += "│  "
			}
		}
		// Siblings on each level follow the active sort column.
		children := t.sortIDs(append([]string(nil), node.Children...), keyIdx)
		for i, c := range children {
			walk(c, childLead, i == len(children)-1, false)
		}
	}
	roots := t.sortIDs(append([]string(nil), t.tree.Roots...), keyIdx)
	for _, r := range roots {
		walk(r, "", true, true)
	}
	return order
}

func (t *Table) rowMatches(row Row) bool {
	for _, term := range strings.Fields(t.filter) {
		neg := strings.HasPrefix(term, "!")
		term = strings.TrimPrefix(term, "!")
		if term == "" {
			continue
		}
		colKey, text, scoped := strings.Cut(term, ":")
		idx := -1
		if scoped {
			idx = t.enabledIndex(colKey)
		}
		var matched bool
		if idx >= 0 {
			matched = containsFold(row.Cells[idx], text)
		} else {
			matched = containsFold(strings.Join(row.Cells, " "), term)
		}
		if matched == neg {
			return false
		}
	}
	return true
}

func (t *Table) refresh() {
	t.clampViewport()

	t.header = t.renderHeader()
	t.lines = t.lines[:0]
	end := t.top + t.height
	if end > len(t.order) {
		end = len(t.order)
	}
	for i := t.top; i < end; i++ {
		line := t.renderRow(t.order[i])
		if i == t.selected {
			line = t.styles.Selected.Render(line)
		} else {
			line = t.styles.Row.Render(line)
		}
		t.lines = append(t.lines, line)
	}
}

func (t *Table) clampViewport() {
	if t.selected >= len(t.order) {
		t.selected = len(t.order) - 1
	}
	if t.selected < 0 {
		t.selected = 0
	}
	if t.height <= 0 {
		t.top = 0
		return
	}
	if t.selected < t.top {
		t.top = t.selected
	}
	if t.selected >= t.top+t.height {
		t.top = t.selected - t.height + 1
	}
	if t.top < 0 {
		t.top = 0
	}
}

func (t *Table) renderHeader() string {
	var parts []string
	fillW := t.fillWidth()
	for i := range t.cols {
		c := &t.cols[i]
		if !c.Enabled {
			continue
		}
		w := c.Width
		if c.Fill {
			w = fillW
		}
		cell := pad(c.Title, w, c.Align)
		if c.Key == t.sortKey {
			cell = t.styles.SortCol.Render(cell)
		} else {
			cell = t.styles.Header.Render(cell)
		}
		parts = append(parts, cell)
	}
	return strings.Join(parts, " ")
}

func (t *Table) renderRow(id string) string {
	row := t.rows[id]
	fillW := t.fillWidth()
	var parts []string
	cell := 0
	for i := range t.cols {
		c := &t.cols[i]
		if !c.Enabled {
			continue
		}
		text := row.Cells[cell]
		w := c.Width
		if c.Fill {
			w = fillW
			if p := t.prefix[id]; p != "" {
				text = p + text
			}
		}
		parts = append(parts, pad(text, w, c.Align))
		cell++
	}
	return strings.Join(parts, " ")
}

// fillWidth is the leftover width granted to the fill column.
func (t *Table) fillWidth() int {
	used := 0
	n := 0
	for i := range t.cols {
		if !t.cols[i].Enabled {
			continue
		}
		n++
		if !t.cols[i].Fill {
			used += t.cols[i].Width
		}
	}
	w := t.width - used - (n - 1)
	if w < 8 {
		w = 8
	}
	return w
}

// enabledIndex maps a column key to its index among the enabled columns, or
// -1 when the key is unknown or disabled.
func (t *Table) enabledIndex(key string) int {
	if key == "" {
		return -1
	}
	idx := 0
	for i := range t.cols {
		if !t.cols[i].Enabled {
			continue
		}
		if strings.EqualFold(t.cols[i].Key, key) {
			return idx
		}
		idx++
	}
	return -1
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
