package model

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"
)

// Short schema tags used to partition records. The full schema field on a
// record carries a version suffix ("model_process:1.1.0"); everything before
// the first colon is the partition key.
const (
	SchemaSnapshot   = "event_top"
	SchemaProcess    = "model_process"
	SchemaSession    = "model_session"
	SchemaConnection = "model_connection"
	SchemaListening  = "model_listening_socket"
	SchemaFlag       = "event_redflag"
	SchemaMachine    = "model_machine"
)

// Record is one immutable telemetry record. Records are created during
// ingestion and never mutated; replacing a record means storing a new one
// under the same id.
type Record struct {
	Schema      string         // full schema tag, e.g. "model_process:1.1.0"
	ShortSchema string         // partition key, e.g. "model_process"
	ID          string
	Time        float64        // epoch seconds
	Fields      map[string]any // full decoded document
	Raw         []byte         // original line, kept for archive round-trips
}

// ParseRecord decodes one JSON telemetry line. A record must carry a schema
// discriminator, an id, and a numeric time field; anything else is malformed.
func ParseRecord(line []byte) (*Record, error) {
	doc, err := oj.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	fields, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record is not a JSON object")
	}
	schema, _ := fields["schema"].(string)
	if schema == "" {
		return nil, fmt.Errorf("record has no schema")
	}
	id, _ := fields["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("record has no id")
	}
	ts, ok := AsFloat(fields["time"])
	if !ok {
		return nil, fmt.Errorf("record has no time")
	}

	short := schema
	if idx := strings.Index(schema, ":"); idx >= 0 {
		short = schema[:idx]
	}

	raw := make([]byte, len(line))
	copy(raw, line)
	return &Record{
		Schema:      schema,
		ShortSchema: short,
		ID:          id,
		Time:        ts,
		Fields:      fields,
		Raw:         raw,
	}, nil
}

// Str returns a string field, or "" when absent or not a string.
func (r *Record) Str(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Float returns a numeric field. The second return reports whether the field
// was present and numeric.
func (r *Record) Float(key string) (float64, bool) {
	return AsFloat(r.Fields[key])
}

// Int returns a numeric field truncated to int, or 0 when absent.
func (r *Record) Int(key string) int {
	v, _ := AsFloat(r.Fields[key])
	return int(v)
}

// Bool returns a boolean field, or false when absent.
func (r *Record) Bool(key string) bool {
	b, _ := r.Fields[key].(bool)
	return b
}

// Map returns an object-valued field, or nil.
func (r *Record) Map(key string) map[string]any {
	m, _ := r.Fields[key].(map[string]any)
	return m
}

// Strings returns an array-of-strings field, skipping non-string elements.
func (r *Record) Strings(key string) []string {
	arr, ok := r.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// AsFloat normalizes the numeric types the JSON parser can produce.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
