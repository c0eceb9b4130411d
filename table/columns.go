package table

import (
	"fmt"
	"strings"

	"github.com/ftahirops/xrewind/model"
)

// Unavailable is the sentinel cell rendered when a value is missing or a
// column formula panics on a malformed record.
const Unavailable = "-"

// Align controls horizontal cell alignment within the column width.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Context carries the snapshot-wide inputs column formulas read: the cursor
// time, the machine clock rate, total memory, and the per-pid resource maps
// of the cursor and previous snapshots.
type Context struct {
	Timestamp float64
	ClkTck    float64
	MemTotal  float64
	Usage     map[string]any
	PrevUsage map[string]any
	Elapsed   float64 // seconds between the two snapshots
}

// Column defines one table column. Sort produces the value rows are ordered
// by; Display produces the cell text. Either may be nil. Fill marks the
// column that absorbs leftover width and carries tree prefixes.
type Column struct {
	Key     string
	Title   string
	Align   Align
	Width   int
	Fill    bool
	Enabled bool
	Sort    func(*Context, *model.Record) any
	Display func(*Context, *model.Record) string
}

// Row is one record rendered through the enabled columns: its cell texts and
// the parallel sort key values.
type Row struct {
	ID    string
	Cells []string
	Keys  []any
}

// Compute evaluates every enabled column against one record. A panic in a
// single formula is contained to its own cell: the cell shows Unavailable,
// the sort key becomes nil, and the rest of the row is unaffected.
func Compute(cols []Column, ctx *Context, rec *model.Record) Row {
	row := Row{
		ID:    rec.ID,
		Cells: make([]string, 0, len(cols)),
		Keys:  make([]any, 0, len(cols)),
	}
	for i := range cols {
		if !cols[i].Enabled {
			continue
		}
		row.Cells = append(row.Cells, safeCell(&cols[i], ctx, rec))
		row.Keys = append(row.Keys, safeKey(&cols[i], ctx, rec))
	}
	return row
}

func safeCell(c *Column, ctx *Context, rec *model.Record) (s string) {
	defer func() {
		if recover() != nil {
			s = Unavailable
		}
	}()
	if c.Display == nil {
		return Unavailable
	}
	if s = c.Display(ctx, rec); s == "" {
		s = Unavailable
	}
	return s
}

func safeKey(c *Column, ctx *Context, rec *model.Record) (v any) {
	defer func() {
		if recover() != nil {
			v = nil
		}
	}()
	if c.Sort == nil {
		return nil
	}
	return c.Sort(ctx, rec)
}

// compareSort orders two sort key values: numbers compare numerically and
// sort before strings, strings compare lexically, nil always sorts last
// regardless of direction.
func compareSort(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	af, aNum := model.AsFloat(a)
	bf, bNum := model.AsFloat(b)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// pad aligns text within width, truncating when it does not fit.
func pad(text string, width int, align Align) string {
	if width <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) > width {
		return string(runes[:width])
	}
	fill := strings.Repeat(" ", width-len(runes))
	if align == AlignRight {
		return fill + text
	}
	return text + fill
}
