package mart

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/transform"
)

// LinePerformance rebuilds mart_line_performance_monthly: one row per
// line × month, full outer join of demand (summed daily validations) and
// quality (monthly punctuality), line attributes, MoM demand growth, and a
// risk level.
type LinePerformance struct{}

func (m *LinePerformance) Name() string  { return "mart_line_performance_monthly" }
func (m *LinePerformance) Table() string { return "mart_line_performance_monthly" }
func (m *LinePerformance) Upstreams() []string {
	return []string{"fct_validations_daily", "fct_punctuality_monthly", "dim_lines"}
}

func (m *LinePerformance) Build(ctx context.Context, env *transform.Env) (*transform.Result, error) {
	log := zap.L().With(zap.String("component", "mart"), zap.String("node", m.Name()))

	validations, err := env.Store.Read(ctx, "fct_validations_daily")
	if err != nil {
		return nil, err
	}
	punctuality, err := env.Store.Read(ctx, "fct_punctuality_monthly")
	if err != nil {
		return nil, err
	}
	lines, err := env.Store.Read(ctx, "dim_lines")
	if err != nil {
		return nil, err
	}

	demand := make(map[seriesKey]*float64)
	for _, row := range validations {
		line := row.String("line_id")
		month := monthOf(row.String("date"))
		if line == "" || month == "" {
			continue
		}
		count, ok := row.Float("validation_count")
		if !ok {
			continue
		}
		k := seriesKey{Entity: line, Month: month}
		if demand[k] == nil {
			demand[k] = new(float64)
		}
		*demand[k] += count
	}

	quality := make(map[seriesKey]*float64)
	for _, row := range punctuality {
		line := row.String("line_id")
		month := row.String("month")
		if line == "" || month == "" {
			continue
		}
		if rate, ok := row.Float("punctuality_rate"); ok {
			r := rate
			quality[seriesKey{Entity: line, Month: month}] = &r
		}
	}

	attrs := make(map[string]model.Row, len(lines))
	for _, row := range lines {
		attrs[row.String("line_id")] = row
	}

	// Outer join: a line-month with demand but no punctuality feed (or the
	// reverse) still gets a scorecard row, with the missing side null.
	keys := make(map[seriesKey]bool, len(demand)+len(quality))
	for k := range demand {
		keys[k] = true
	}
	for k := range quality {
		keys[k] = true
	}
	ordered := make([]seriesKey, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Entity != ordered[j].Entity {
			return ordered[i].Entity < ordered[j].Entity
		}
		return ordered[i].Month < ordered[j].Month
	})

	prevDemand := lagByEntity(demand)
	loadedAt := env.Now.Format(time.RFC3339)

	out := make([]model.Row, 0, len(ordered))
	for _, k := range ordered {
		growth := growthPct(demand[k], prevDemand[k])
		row := model.Row{
			"line_id":           k.Entity,
			"month":             k.Month,
			"loaded_at":         loadedAt,
			"total_validations": asValue(demand[k]),
			"punctuality_rate":  asValue(quality[k]),
			"demand_growth_pct": asValue(growth),
			"risk_level":        riskLevel(growth, quality[k], env.Cfg.Mart),
			"line_name":         nil,
			"transport_mode":    nil,
			"operator":          nil,
		}
		if attr, ok := attrs[k.Entity]; ok {
			row["line_name"] = attr["line_name"]
			row["transport_mode"] = attr["transport_mode"]
			row["operator"] = attr["operator"]
		}
		out = append(out, row)
	}

	log.Info("rebuilt scorecard",
		zap.Int("line_months", len(out)),
		zap.Int("demand_rows", len(validations)),
		zap.Int("quality_rows", len(punctuality)),
	)

	if err := env.Store.Replace(ctx, m.Table(), out); err != nil {
		return nil, err
	}
	return &transform.Result{Rows: int64(len(out)), Mode: transform.ModeReplace}, nil
}
