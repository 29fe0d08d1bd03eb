// Package rawload lands bronze JSON files into the raw_* warehouse tables.
// Files are arrays of objects as written by the upstream ingestion client and
// are routed to a table by filename prefix.
package rawload

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/store"
)

// routes maps filename prefixes to raw tables. Checked in order; prefixes are
// mutually exclusive.
var routes = []struct {
	Prefix string
	Table  string
}{
	{"validations_", "raw_validations"},
	{"punctuality_", "raw_punctuality"},
	{"ref_stop_lines_", "raw_ref_stop_lines"},
	{"ref_stops_", "raw_ref_stops"},
	{"ref_lines_", "raw_ref_lines"},
}

// TableFor resolves the raw table a bronze file belongs to.
func TableFor(filename string) (string, bool) {
	base := filepath.Base(filename)
	for _, r := range routes {
		if strings.HasPrefix(base, r.Prefix) {
			return r.Table, true
		}
	}
	return "", false
}

// Summary reports a completed load.
type Summary struct {
	Files  int
	Rows   int64
	Tables map[string]int64
}

// Loader copies bronze files into raw tables. With Truncate set, each target
// table is reset before its first file of the run; later files for the same
// table append, so a multi-file feed still lands whole.
type Loader struct {
	Store    store.Store
	Truncate bool
	Now      time.Time
}

// LoadDir loads every .json file in dir, in name order. Files with an
// unrecognized prefix are skipped with a warning; a malformed file aborts the
// load.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Summary, error) {
	log := zap.L().With(zap.String("component", "rawload"))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "rawload: read dir %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	summary := &Summary{Tables: make(map[string]int64)}
	truncated := make(map[string]bool)
	for _, name := range files {
		table, ok := TableFor(name)
		if !ok {
			log.Warn("unrecognized bronze file", zap.String("file", name))
			continue
		}

		rows, err := l.readFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		if l.Truncate && !truncated[table] {
			truncated[table] = true
			err = l.Store.Replace(ctx, table, rows)
		} else {
			err = l.Store.Append(ctx, table, rows)
		}
		if err != nil {
			return nil, err
		}

		log.Info("loaded bronze file",
			zap.String("file", name),
			zap.String("table", table),
			zap.Int("rows", len(rows)),
		)
		summary.Files++
		summary.Rows += int64(len(rows))
		summary.Tables[table] += int64(len(rows))
	}

	return summary, nil
}

func (l *Loader) readFile(path string) ([]model.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rawload: read %s", path)
	}

	var rows []model.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "rawload: parse %s", path)
	}

	// The ingestion client stamps ingestion_ts and source itself; backfilled
	// or hand-crafted files may not.
	ingested := l.Now.Format(time.RFC3339)
	base := filepath.Base(path)
	for _, row := range rows {
		if !row.Has("ingestion_ts") {
			row["ingestion_ts"] = ingested
		}
		if !row.Has("source") {
			row["source"] = base
		}
	}
	return rows, nil
}
