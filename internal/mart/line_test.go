package mart

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/transitmart/internal/config"
	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/store"
	"github.com/transitlab/transitmart/internal/transform"
)

func newTestEnv(t *testing.T) *transform.Env {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "mart.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return &transform.Env{
		Store: st,
		Cfg:   &config.Config{Mart: thresholds()},
		Now:   time.Now().UTC(),
	}
}

func seedLineInputs(t *testing.T, env *transform.Env, validations, punctuality, lines []model.Row) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.Store.Replace(ctx, "fct_validations_daily", validations))
	require.NoError(t, env.Store.Replace(ctx, "fct_punctuality_monthly", punctuality))
	require.NoError(t, env.Store.Replace(ctx, "dim_lines", lines))
}

func indexByLineMonth(rows []model.Row) map[seriesKey]model.Row {
	out := make(map[seriesKey]model.Row, len(rows))
	for _, row := range rows {
		out[seriesKey{Entity: row.String("line_id"), Month: row.String("month")}] = row
	}
	return out
}

func TestLinePerformance_JoinGrowthAndRisk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedLineInputs(t, env,
		[]model.Row{
			{"date": "2024-01-10", "line_id": "810", "stop_id": "401", "ticket_type": "Navigo", "validation_count": float64(600)},
			{"date": "2024-01-20", "line_id": "810", "stop_id": "402", "ticket_type": "Navigo", "validation_count": float64(400)},
			// 12% drop in February.
			{"date": "2024-02-10", "line_id": "810", "stop_id": "401", "ticket_type": "Navigo", "validation_count": float64(880)},
		},
		[]model.Row{
			{"month": "2024-01", "line_id": "810", "punctuality_rate": float64(92)},
			{"month": "2024-02", "line_id": "810", "punctuality_rate": float64(80)},
		},
		[]model.Row{
			{"line_id": "810", "line_name": "RER B", "transport_mode": "rail", "operator": "RATP"},
		},
	)

	result, err := (&LinePerformance{}).Build(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, transform.ModeReplace, result.Mode)

	rows, err := env.Store.Read(ctx, "mart_line_performance_monthly")
	require.NoError(t, err)
	byKey := indexByLineMonth(rows)
	require.Len(t, byKey, 2)

	jan := byKey[seriesKey{"810", "2024-01"}]
	require.NotNil(t, jan)
	count, _ := jan.Float("total_validations")
	assert.Equal(t, 1000.0, count)
	assert.False(t, jan.Has("demand_growth_pct"), "first month has no baseline")
	assert.Equal(t, RiskLow, jan.String("risk_level"))
	assert.Equal(t, "RER B", jan.String("line_name"))

	feb := byKey[seriesKey{"810", "2024-02"}]
	require.NotNil(t, feb)
	growth, ok := feb.Float("demand_growth_pct")
	require.True(t, ok)
	assert.InDelta(t, -12, growth, 1e-9)
	assert.Equal(t, RiskHigh, feb.String("risk_level"))
}

func TestLinePerformance_OuterJoinKeepsUnmatchedSides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedLineInputs(t, env,
		[]model.Row{
			{"date": "2024-01-10", "line_id": "810", "stop_id": "401", "ticket_type": "Navigo", "validation_count": float64(100)},
		},
		[]model.Row{
			{"month": "2024-01", "line_id": "999", "punctuality_rate": float64(97)},
		},
		nil,
	)

	_, err := (&LinePerformance{}).Build(ctx, env)
	require.NoError(t, err)

	rows, err := env.Store.Read(ctx, "mart_line_performance_monthly")
	require.NoError(t, err)
	byKey := indexByLineMonth(rows)
	require.Len(t, byKey, 2)

	demandOnly := byKey[seriesKey{"810", "2024-01"}]
	require.NotNil(t, demandOnly)
	assert.False(t, demandOnly.Has("punctuality_rate"))
	assert.False(t, demandOnly.Has("line_name"), "no dimension match")

	qualityOnly := byKey[seriesKey{"999", "2024-01"}]
	require.NotNil(t, qualityOnly)
	assert.False(t, qualityOnly.Has("total_validations"))
}

func TestStationTraffic_TotalsAndGrowth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.Store.Replace(ctx, "fct_validations_daily", []model.Row{
		{"date": "2024-01-05", "stop_id": "401", "line_id": "810", "ticket_type": "Navigo", "validation_count": float64(300)},
		{"date": "2024-01-06", "stop_id": "401", "line_id": "810", "ticket_type": "Amethyste", "validation_count": float64(200)},
		{"date": "2024-02-05", "stop_id": "401", "line_id": "810", "ticket_type": "Navigo", "validation_count": float64(600)},
	}))
	require.NoError(t, env.Store.Replace(ctx, "dim_stops", []model.Row{
		{"stop_id": "401", "stop_name": "CHATELET", "town": "Paris", "latitude": 48.858, "longitude": 2.347},
	}))

	result, err := (&StationTraffic{}).Build(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Rows)

	rows, err := env.Store.Read(ctx, "mart_station_traffic_monthly")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var jan, feb model.Row
	for _, row := range rows {
		switch row.String("month") {
		case "2024-01":
			jan = row
		case "2024-02":
			feb = row
		}
	}
	require.NotNil(t, jan)
	require.NotNil(t, feb)

	total, _ := jan.Float("total_validations")
	assert.Equal(t, 500.0, total)
	assert.Equal(t, "CHATELET", jan.String("stop_name"))

	growth, ok := feb.Float("traffic_growth_pct")
	require.True(t, ok)
	assert.InDelta(t, 20, growth, 1e-9)
}
