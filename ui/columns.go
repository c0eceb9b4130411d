package ui

import (
	"fmt"
	"strings"

	"github.com/ftahirops/xrewind/model"
	"github.com/ftahirops/xrewind/table"
	"github.com/ftahirops/xrewind/util"
)

// usageEntry returns the per-pid resource map for a process record from a
// snapshot's "processes" section.
func usageEntry(usage map[string]any, rec *model.Record) map[string]any {
	if usage == nil {
		return nil
	}
	pid, ok := rec.Float("pid")
	if !ok {
		return nil
	}
	ent, _ := usage[fmt.Sprintf("%d", int(pid))].(map[string]any)
	return ent
}

func usageField(usage map[string]any, rec *model.Record, key string) (float64, bool) {
	ent := usageEntry(usage, rec)
	if ent == nil {
		return 0, false
	}
	return model.AsFloat(ent[key])
}

// cpuTicks is the cumulative user+system ticks a process has consumed.
func cpuTicks(usage map[string]any, rec *model.Record) (float64, bool) {
	u, uok := usageField(usage, rec, "utime")
	s, sok := usageField(usage, rec, "stime")
	if !uok && !sok {
		return 0, false
	}
	return u + s, true
}

// cpuPercent is the tick delta between the cursor and previous snapshots
// converted to a percentage of one core.
func cpuPercent(ctx *table.Context, rec *model.Record) (float64, bool) {
	cur, ok := cpuTicks(ctx.Usage, rec)
	if !ok || ctx.Elapsed <= 0 || ctx.ClkTck <= 0 {
		return 0, false
	}
	prev, ok := cpuTicks(ctx.PrevUsage, rec)
	if !ok {
		return 0, false
	}
	return (cur - prev) / ctx.ClkTck / ctx.Elapsed * 100, true
}

func memPercent(ctx *table.Context, rec *model.Record) (float64, bool) {
	rss, ok := usageField(ctx.Usage, rec, "res")
	if !ok || ctx.MemTotal <= 0 {
		return 0, false
	}
	return rss / ctx.MemTotal * 100, true
}

func fmtPct(v float64, ok bool) string {
	if !ok {
		return table.Unavailable
	}
	if v < 0 {
		v = 0
	}
	return fmt.Sprintf("%.1f", v)
}

func fmtUsageBytes(ctx *table.Context, rec *model.Record, key string) string {
	v, ok := usageField(ctx.Usage, rec, key)
	if !ok {
		return table.Unavailable
	}
	return util.PrettyBytes(v)
}

func fmtUsageInt(ctx *table.Context, rec *model.Record, key string) string {
	v, ok := usageField(ctx.Usage, rec, key)
	if !ok {
		return table.Unavailable
	}
	return fmt.Sprintf("%d", int(v))
}

// commandLine prefers the full argument vector over the bare executable name.
func commandLine(rec *model.Record) string {
	if args := rec.Strings("args"); len(args) > 0 {
		return strings.Join(args, " ")
	}
	if exe := rec.Str("exe"); exe != "" {
		return exe
	}
	return rec.Str("name")
}

func processColumns() []table.Column {
	return []table.Column{
		{
			Key: "pid", Title: "PID", Align: table.AlignRight, Width: 7, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { v, _ := r.Float("pid"); return v },
			Display: func(_ *table.Context, r *model.Record) string { return fmt.Sprintf("%d", r.Int("pid")) },
		},
		{
			Key: "user", Title: "USER", Width: 9, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("euser") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("euser") },
		},
		{
			Key: "pri", Title: "PRI", Align: table.AlignRight, Width: 3, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				v, ok := usageField(ctx.Usage, r, "pri")
				if !ok {
					return nil
				}
				return v
			},
			Display: func(ctx *table.Context, r *model.Record) string { return fmtUsageInt(ctx, r, "pri") },
		},
		{
			Key: "ni", Title: "NI", Align: table.AlignRight, Width: 3, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				v, ok := usageField(ctx.Usage, r, "nice")
				if !ok {
					return nil
				}
				return v
			},
			Display: func(ctx *table.Context, r *model.Record) string { return fmtUsageInt(ctx, r, "nice") },
		},
		{
			Key: "virt", Title: "VIRT", Align: table.AlignRight, Width: 7, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				v, ok := usageField(ctx.Usage, r, "virt")
				if !ok {
					return nil
				}
				return v
			},
			Display: func(ctx *table.Context, r *model.Record) string { return fmtUsageBytes(ctx, r, "virt") },
		},
		{
			Key: "res", Title: "RES", Align: table.AlignRight, Width: 7, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				v, ok := usageField(ctx.Usage, r, "res")
				if !ok {
					return nil
				}
				return v
			},
			Display: func(ctx *table.Context, r *model.Record) string { return fmtUsageBytes(ctx, r, "res") },
		},
		{
			Key: "shr", Title: "SHR", Align: table.AlignRight, Width: 7, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				v, ok := usageField(ctx.Usage, r, "shr")
				if !ok {
					return nil
				}
				return v
			},
			Display: func(ctx *table.Context, r *model.Record) string { return fmtUsageBytes(ctx, r, "shr") },
		},
		{
			Key: "state", Title: "S", Width: 1, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				ent := usageEntry(ctx.Usage, r)
				if ent == nil {
					return nil
				}
				s, _ := ent["state"].(string)
				return s
			},
			Display: func(ctx *table.Context, r *model.Record) string {
				ent := usageEntry(ctx.Usage, r)
				if ent == nil {
					return table.Unavailable
				}
				s, _ := ent["state"].(string)
				return s
			},
		},
		{
			Key: "cpu", Title: "CPU%", Align: table.AlignRight, Width: 5, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				v, ok := cpuPercent(ctx, r)
				if !ok {
					return nil
				}
				return v
			},
			Display: func(ctx *table.Context, r *model.Record) string {
				v, ok := cpuPercent(ctx, r)
				return fmtPct(v, ok)
			},
		},
		{
			Key: "mem", Title: "MEM%", Align: table.AlignRight, Width: 5, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				v, ok := memPercent(ctx, r)
				if !ok {
					return nil
				}
				return v
			},
			Display: func(ctx *table.Context, r *model.Record) string {
				v, ok := memPercent(ctx, r)
				return fmtPct(v, ok)
			},
		},
		{
			Key: "time", Title: "TIME+", Align: table.AlignRight, Width: 9, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				ticks, ok := cpuTicks(ctx.Usage, r)
				if !ok {
					return nil
				}
				return ticks
			},
			Display: func(ctx *table.Context, r *model.Record) string {
				ticks, ok := cpuTicks(ctx.Usage, r)
				if !ok || ctx.ClkTck <= 0 {
					return table.Unavailable
				}
				return util.PrettyTime(ticks / ctx.ClkTck)
			},
		},
		{
			Key: "command", Title: "Command", Fill: true, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return commandLine(r) },
			Display: func(_ *table.Context, r *model.Record) string { return commandLine(r) },
		},
	}
}

func sessionColumns() []table.Column {
	return []table.Column{
		{
			Key: "user", Title: "USER", Width: 9, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("euser") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("euser") },
		},
		{
			Key: "pid", Title: "LEAD PID", Align: table.AlignRight, Width: 8, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { v, _ := r.Float("pid"); return v },
			Display: func(_ *table.Context, r *model.Record) string { return fmt.Sprintf("%d", r.Int("pid")) },
		},
		{
			Key: "start", Title: "START", Width: 19, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return validFrom(r) },
			Display: func(_ *table.Context, r *model.Record) string { return util.FormatTimestamp(validFrom(r)) },
		},
		{
			Key: "dur", Title: "DURATION", Align: table.AlignRight, Width: 9, Enabled: true,
			Sort: func(ctx *table.Context, r *model.Record) any {
				return ctx.Timestamp - validFrom(r)
			},
			Display: func(ctx *table.Context, r *model.Record) string {
				return util.PrettyTime(ctx.Timestamp - validFrom(r))
			},
		},
		{
			Key: "id", Title: "Session", Fill: true, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.ID },
			Display: func(_ *table.Context, r *model.Record) string { return r.ID },
		},
	}
}

func connectionColumns() []table.Column {
	return []table.Column{
		{
			Key: "local", Title: "LOCAL", Width: 21, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return localAddr(r) },
			Display: func(_ *table.Context, r *model.Record) string { return localAddr(r) },
		},
		{
			Key: "remote", Title: "REMOTE", Width: 21, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return remoteAddr(r) },
			Display: func(_ *table.Context, r *model.Record) string { return remoteAddr(r) },
		},
		{
			Key: "proto", Title: "PROTO", Width: 5, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("proto") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("proto") },
		},
		{
			Key: "dir", Title: "DIR", Width: 8, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("direction") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("direction") },
		},
		{
			Key: "start", Title: "Started", Fill: true, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return validFrom(r) },
			Display: func(_ *table.Context, r *model.Record) string { return util.FormatTimestamp(validFrom(r)) },
		},
	}
}

func listeningColumns() []table.Column {
	return []table.Column{
		{
			Key: "addr", Title: "ADDRESS", Width: 21, Enabled: true,
			Sort: func(_ *table.Context, r *model.Record) any {
				v, _ := r.Float("port")
				return v
			},
			Display: func(_ *table.Context, r *model.Record) string {
				return util.PrettyAddress(r.Str("ip"), r.Int("port"))
			},
		},
		{
			Key: "proto", Title: "PROTO", Width: 5, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("proto") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("proto") },
		},
		{
			Key: "family", Title: "FAMILY", Width: 6, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("family") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("family") },
		},
		{
			Key: "proc", Title: "Process", Fill: true, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("puid") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("puid") },
		},
	}
}

func flagColumns() []table.Column {
	return []table.Column{
		{
			Key: "severity", Title: "SEVERITY", Width: 8, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return severityRank(r.Str("severity")) },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("severity") },
		},
		{
			Key: "time", Title: "TIME", Width: 19, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Time },
			Display: func(_ *table.Context, r *model.Record) string { return util.FormatTimestamp(r.Time) },
		},
		{
			Key: "desc", Title: "Description", Fill: true, Enabled: true,
			Sort:    func(_ *table.Context, r *model.Record) any { return r.Str("description") },
			Display: func(_ *table.Context, r *model.Record) string { return r.Str("description") },
		},
	}
}

// validFrom is the record's lifetime start, falling back to its event time.
func validFrom(r *model.Record) float64 {
	if v, ok := r.Float("valid_from"); ok {
		return v
	}
	return r.Time
}

func localAddr(r *model.Record) string {
	return util.PrettyAddress(r.Str("local_ip"), r.Int("local_port"))
}

func remoteAddr(r *model.Record) string {
	return util.PrettyAddress(r.Str("remote_ip"), r.Int("remote_port"))
}

func severityRank(s string) float64 {
	switch strings.ToLower(s) {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	}
	return 0
}
