// Package dimension rebuilds reference tables from staged snapshots,
// collapsing repeated snapshots of the same entity to the most recently
// ingested version per natural key.
package dimension

import (
	"sort"
	"strings"

	"github.com/transitlab/transitmart/internal/model"
)

// LatestByKey returns one row per distinct natural-key tuple, keeping the row
// with the greatest recency value. Rows with a null or empty key attribute are
// dropped silently; they surface downstream as health null-rate findings.
//
// On equal recency the later input row wins ("last seen wins"). The upstream
// feed does not define an order for identical snapshots, so input position is
// the documented deterministic tie-break. Output is sorted by key tuple so
// rebuilds are byte-stable.
func LatestByKey(rows []model.Row, keyCols []string, recencyCol string) []model.Row {
	type candidate struct {
		row     model.Row
		recency string
	}

	best := make(map[string]candidate)
	var order []string

	for _, row := range rows {
		key, ok := keyOf(row, keyCols)
		if !ok {
			continue
		}
		recency := row.String(recencyCol)

		cur, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = candidate{row: row, recency: recency}
			continue
		}
		// RFC3339 UTC timestamps compare correctly as strings. >= keeps the
		// later input row on ties.
		if recency >= cur.recency {
			best[key] = candidate{row: row, recency: recency}
		}
	}

	sort.Strings(order)
	out := make([]model.Row, 0, len(order))
	for _, key := range order {
		out = append(out, best[key].row)
	}
	return out
}

// keyOf builds the grouping key, rejecting rows with any null key attribute.
func keyOf(row model.Row, keyCols []string) (string, bool) {
	parts := make([]string, 0, len(keyCols))
	for _, col := range keyCols {
		v := row.String(col)
		if v == "" {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "\x1f"), true
}
