// Package stage recomputes staged tables from raw landing tables: critical
// fields type-coerced, null-filtered rows dropped, values normalized. Staged
// tables are rebuilt in full every run.
package stage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/store"
	"github.com/transitlab/transitmart/internal/transform"
)

// Kind is the target type of a staged field.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindDate      // normalized to YYYY-MM-DD
	KindMonth     // normalized to YYYY-MM
	KindTimestamp // normalized to RFC3339 UTC
)

// Field declares one staged column. Required fields that are null or
// uncoercible drop the whole row; that is a quality finding surfaced through
// the health monitor, not an error.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Def is a staging transformation for one raw source.
type Def struct {
	StageName string
	Source    string // raw landing table
	Fields    []Field
}

func (d *Def) Name() string        { return d.StageName }
func (d *Def) Table() string       { return d.StageName }
func (d *Def) Upstreams() []string { return nil }

// Build reads the raw table, validates and normalizes each row, and replaces
// the staged table. A raw table that has not been loaded yet stages empty.
// Required columns missing from the raw schema entirely are schema drift and
// fatal for this node.
func (d *Def) Build(ctx context.Context, env *transform.Env) (*transform.Result, error) {
	log := zap.L().With(zap.String("component", "stage"), zap.String("node", d.StageName))

	raw, err := env.Store.Read(ctx, d.Source)
	if err != nil && !errors.Is(err, store.ErrTableNotFound) {
		return nil, err
	}

	if len(raw) > 0 {
		if err := d.checkDrift(raw); err != nil {
			return nil, err
		}
	}

	staged := make([]model.Row, 0, len(raw))
	dropped := 0
	for _, row := range raw {
		out, ok := d.stageRow(row)
		if !ok {
			dropped++
			continue
		}
		staged = append(staged, out)
	}

	if dropped > 0 {
		log.Warn("dropped rows failing validation",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(staged)),
		)
	}

	if err := env.Store.Replace(ctx, d.StageName, staged); err != nil {
		return nil, err
	}
	return &transform.Result{Rows: int64(len(staged)), Mode: transform.ModeReplace}, nil
}

// checkDrift verifies every required column is present somewhere in the raw
// schema. Per-row nulls are a quality finding; a column that vanished from
// the feed entirely is drift.
func (d *Def) checkDrift(raw []model.Row) error {
	cols := model.Columns(raw)
	var missing []string
	for _, f := range d.Fields {
		if f.Required && !cols[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return &transform.SchemaDriftError{Node: d.StageName, Table: d.Source, Missing: missing}
	}
	return nil
}

func (d *Def) stageRow(row model.Row) (model.Row, bool) {
	out := make(model.Row, len(d.Fields))
	for _, f := range d.Fields {
		v, ok := coerce(row, f)
		if !ok {
			if f.Required {
				return nil, false
			}
			out[f.Name] = nil
			continue
		}
		out[f.Name] = v
	}
	return out, true
}

func coerce(row model.Row, f Field) (any, bool) {
	switch f.Kind {
	case KindString:
		s := row.String(f.Name)
		return s, s != ""
	case KindFloat:
		v, ok := row.Float(f.Name)
		return v, ok
	case KindInt:
		v, ok := row.Int(f.Name)
		return v, ok
	case KindDate:
		s := row.String(f.Name)
		if len(s) > 10 {
			s = s[:10]
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return nil, false
		}
		return s, true
	case KindMonth:
		s := row.String(f.Name)
		if len(s) > 7 {
			s = s[:7]
		}
		if _, err := time.Parse("2006-01", s); err != nil {
			return nil, false
		}
		return s, true
	case KindTimestamp:
		t, ok := row.Time(f.Name)
		if !ok {
			return nil, false
		}
		return t.Format(time.RFC3339), true
	default:
		return nil, false
	}
}
