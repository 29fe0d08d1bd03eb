package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one record of a warehouse table. Tables are schemaless at the store
// level; the transformations that read a table know which columns they expect.
type Row map[string]any

// Has reports whether the column is present and non-nil.
func (r Row) Has(col string) bool {
	v, ok := r[col]
	return ok && v != nil
}

// String returns the column as a trimmed string, or "" if absent or null.
func (r Row) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Float returns the column as a float64. JSON decoding yields float64 for all
// numbers; numeric strings are accepted as well since raw feeds quote numbers
// inconsistently.
func (r Row) Float(col string) (float64, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int returns the column as an int64, truncating floats.
func (r Row) Int(col string) (int64, bool) {
	f, ok := r.Float(col)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Bool returns the column as a bool.
func (r Row) Bool(col string) bool {
	v, ok := r[col]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Time parses the column as an RFC3339 timestamp.
func (r Row) Time(col string) (time.Time, bool) {
	s := r.String(col)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Ingestion writes fractional-second timestamps; plain dates appear in
		// backfilled referential snapshots.
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t.UTC(), true
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Columns returns the union of column names observed across rows. This is the
// effective schema of a schemaless table and the basis for drift detection.
func Columns(rows []Row) map[string]bool {
	cols := make(map[string]bool)
	for _, r := range rows {
		for k := range r {
			cols[k] = true
		}
	}
	return cols
}
