package mart

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/transform"
)

// StationTraffic rebuilds mart_station_traffic_monthly: one row per
// stop × month with total validations, MoM traffic growth, and stop
// attributes.
type StationTraffic struct{}

func (m *StationTraffic) Name() string  { return "mart_station_traffic_monthly" }
func (m *StationTraffic) Table() string { return "mart_station_traffic_monthly" }
func (m *StationTraffic) Upstreams() []string {
	return []string{"fct_validations_daily", "dim_stops"}
}

func (m *StationTraffic) Build(ctx context.Context, env *transform.Env) (*transform.Result, error) {
	log := zap.L().With(zap.String("component", "mart"), zap.String("node", m.Name()))

	validations, err := env.Store.Read(ctx, "fct_validations_daily")
	if err != nil {
		return nil, err
	}
	stops, err := env.Store.Read(ctx, "dim_stops")
	if err != nil {
		return nil, err
	}

	traffic := make(map[seriesKey]*float64)
	for _, row := range validations {
		stop := row.String("stop_id")
		month := monthOf(row.String("date"))
		if stop == "" || month == "" {
			continue
		}
		count, ok := row.Float("validation_count")
		if !ok {
			continue
		}
		k := seriesKey{Entity: stop, Month: month}
		if traffic[k] == nil {
			traffic[k] = new(float64)
		}
		*traffic[k] += count
	}

	attrs := make(map[string]model.Row, len(stops))
	for _, row := range stops {
		attrs[row.String("stop_id")] = row
	}

	ordered := make([]seriesKey, 0, len(traffic))
	for k := range traffic {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Entity != ordered[j].Entity {
			return ordered[i].Entity < ordered[j].Entity
		}
		return ordered[i].Month < ordered[j].Month
	})

	prev := lagByEntity(traffic)
	loadedAt := env.Now.Format(time.RFC3339)

	out := make([]model.Row, 0, len(ordered))
	for _, k := range ordered {
		row := model.Row{
			"stop_id":            k.Entity,
			"month":              k.Month,
			"loaded_at":          loadedAt,
			"total_validations":  asValue(traffic[k]),
			"traffic_growth_pct": asValue(growthPct(traffic[k], prev[k])),
			"stop_name":          nil,
			"town":               nil,
			"latitude":           nil,
			"longitude":          nil,
		}
		if attr, ok := attrs[k.Entity]; ok {
			row["stop_name"] = attr["stop_name"]
			row["town"] = attr["town"]
			row["latitude"] = attr["latitude"]
			row["longitude"] = attr["longitude"]
		}
		out = append(out, row)
	}

	log.Info("rebuilt station traffic", zap.Int("stop_months", len(out)))

	if err := env.Store.Replace(ctx, m.Table(), out); err != nil {
		return nil, err
	}
	return &transform.Result{Rows: int64(len(out)), Mode: transform.ModeReplace}, nil
}
