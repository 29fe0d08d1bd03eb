package dimension

import (
	"context"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/transform"
)

// Def is a dimension rebuild for one staged referential source.
type Def struct {
	DimName    string
	Source     string // staged table
	Keys       []string
	RecencyCol string
}

func (d *Def) Name() string        { return d.DimName }
func (d *Def) Table() string       { return d.DimName }
func (d *Def) Upstreams() []string { return []string{d.Source} }

// Build deduplicates the staged snapshots to the latest version per natural
// key and atomically replaces the dimension.
func (d *Def) Build(ctx context.Context, env *transform.Env) (*transform.Result, error) {
	staged, err := env.Store.Read(ctx, d.Source)
	if err != nil {
		return nil, err
	}

	if len(staged) > 0 {
		cols := model.Columns(staged)
		var missing []string
		for _, col := range append(append([]string{}, d.Keys...), d.RecencyCol) {
			if !cols[col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return nil, &transform.SchemaDriftError{Node: d.DimName, Table: d.Source, Missing: missing}
		}
	}

	deduped := LatestByKey(staged, d.Keys, d.RecencyCol)
	if err := env.Store.Replace(ctx, d.DimName, deduped); err != nil {
		return nil, err
	}
	return &transform.Result{Rows: int64(len(deduped)), Mode: transform.ModeReplace}, nil
}

// Stops is the stops dimension, one row per stop_id.
func Stops() *Def {
	return &Def{
		DimName:    "dim_stops",
		Source:     "stg_ref_stops",
		Keys:       []string{"stop_id"},
		RecencyCol: "ingestion_ts",
	}
}

// Lines is the lines dimension, one row per line_id.
func Lines() *Def {
	return &Def{
		DimName:    "dim_lines",
		Source:     "stg_ref_lines",
		Keys:       []string{"line_id"},
		RecencyCol: "ingestion_ts",
	}
}

// StopLines is the stop-line mapping dimension, one row per (stop_id, line_id).
func StopLines() *Def {
	return &Def{
		DimName:    "dim_stop_lines",
		Source:     "stg_ref_stop_lines",
		Keys:       []string{"stop_id", "line_id"},
		RecencyCol: "ingestion_ts",
	}
}
