package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/transform"
)

// Table is the health metric log. Append-only: each pipeline run adds one row
// per monitored table, and history is retained for trend analysis.
const Table = "fct_data_health_daily"

// Monitor is the pipeline node that measures every probe and appends the
// results. It depends on all monitored nodes so it always observes the state
// the current run produced.
type Monitor struct{}

func (m *Monitor) Name() string  { return Table }
func (m *Monitor) Table() string { return Table }

func (m *Monitor) Upstreams() []string {
	probes := Probes()
	up := make([]string, 0, len(probes))
	for _, p := range probes {
		up = append(up, p.UpstreamNode)
	}
	return up
}

func (m *Monitor) Build(ctx context.Context, env *transform.Env) (*transform.Result, error) {
	log := zap.L().With(zap.String("component", "health"))

	out := make([]model.Row, 0, len(Probes()))
	breached := 0
	for _, probe := range Probes() {
		metrics, err := probe.Measure(ctx, env.Store, env.Cfg.Health, env.Now)
		if err != nil {
			return nil, err
		}
		if !metrics.SLAMet {
			breached++
			log.Warn("sla breach",
				zap.String("table", metrics.TableName),
				zap.Float64("freshness_hours", metrics.FreshnessHours),
				zap.Float64("sla_hours", metrics.SLAHours),
				zap.Int64("row_count", metrics.RowCount),
			)
		}
		out = append(out, metrics.Row(env.Now))
	}

	log.Info("health metrics collected",
		zap.Int("tables", len(out)),
		zap.Int("breached", breached),
	)

	if err := env.Store.Append(ctx, Table, out); err != nil {
		return nil, err
	}
	return &transform.Result{Rows: int64(len(out)), Mode: transform.ModeAppend}, nil
}
