package health

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

var testNow = time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "health.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func healthCfg() config.HealthConfig {
	return config.HealthConfig{
		LookbackDays: 7,
		SLAHours: map[string]float64{
			"fct_validations_daily": 24,
		},
	}
}

func stopsProbe() Probe {
	for _, p := range Probes() {
		if p.TableName == "dim_stops" {
			return p
		}
	}
	panic("dim_stops probe missing")
}

func validationsProbe() Probe {
	for _, p := range Probes() {
		if p.TableName == "fct_validations_daily" {
			return p
		}
	}
	panic("fct_validations_daily probe missing")
}

func TestMeasure_FreshWithinSLA(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Loaded 10 hours ago against a 24-hour SLA.
	require.NoError(t, st.Append(ctx, "fct_validations_daily", []model.Row{
		{"date": "2024-02-01", "stop_id": "401", "ticket_type": "Navigo",
			"validation_count": float64(100), "loaded_at": testNow.Add(-10 * time.Hour).Format(time.RFC3339)},
	}))

	m, err := validationsProbe().Measure(ctx, st, healthCfg(), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.RowCount)
	assert.InDelta(t, 10, m.FreshnessHours, 1e-6)
	assert.Equal(t, 24.0, m.SLAHours)
	assert.True(t, m.SLAMet)
}

func TestMeasure_StaleBreachesSLA(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, "fct_validations_daily", []model.Row{
		{"date": "2024-01-31", "stop_id": "401", "ticket_type": "Navigo",
			"validation_count": float64(100), "loaded_at": testNow.Add(-40 * time.Hour).Format(time.RFC3339)},
	}))

	m, err := validationsProbe().Measure(ctx, st, healthCfg(), testNow)
	require.NoError(t, err)
	assert.InDelta(t, 40, m.FreshnessHours, 1e-6)
	assert.False(t, m.SLAMet)
}

func TestMeasure_EmptyWindowNotMet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Only data far outside the 7-day lookback.
	require.NoError(t, st.Append(ctx, "fct_validations_daily", []model.Row{
		{"date": "2023-11-01", "stop_id": "401", "ticket_type": "Navigo",
			"validation_count": float64(100), "loaded_at": "2023-11-02T02:00:00Z"},
	}))

	m, err := validationsProbe().Measure(ctx, st, healthCfg(), testNow)
	require.NoError(t, err)
	assert.Zero(t, m.RowCount)
	assert.False(t, m.SLAMet, "a window with zero rows never meets SLA")
}

func TestMeasure_MissingTableIsObservationNotError(t *testing.T) {
	st := newTestStore(t)

	m, err := validationsProbe().Measure(context.Background(), st, healthCfg(), testNow)
	require.NoError(t, err)
	assert.Zero(t, m.RowCount)
	assert.Equal(t, FreshnessUnknown, m.FreshnessHours)
	assert.False(t, m.SLAMet)
	assert.Nil(t, m.NullPercentage)
}

func TestMeasure_NullsAndDuplicates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	recent := testNow.Add(-time.Hour).Format(time.RFC3339)

	require.NoError(t, st.Append(ctx, "dim_stops", []model.Row{
		{"stop_id": "S1", "stop_name": "A", "ingestion_ts": recent},
		{"stop_id": "S1", "stop_name": "A bis", "ingestion_ts": recent},
		{"stop_id": "S1", "stop_name": nil, "ingestion_ts": recent},
		{"stop_id": "S2", "stop_name": "B", "ingestion_ts": recent},
	}))

	m, err := stopsProbe().Measure(ctx, st, healthCfg(), testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(4), m.RowCount)
	assert.Equal(t, int64(2), m.DuplicateCount)
	require.NotNil(t, m.NullPercentage)
	assert.InDelta(t, 25, *m.NullPercentage, 1e-9)
}

func TestMonitor_AppendsOneRowPerProbe(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	env := &transform.Env{Store: st, Cfg: &config.Config{Health: healthCfg()}, Now: testNow}

	result, err := (&Monitor{}).Build(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, int64(len(Probes())), result.Rows)

	rows, err := st.Read(ctx, Table)
	require.NoError(t, err)
	require.Len(t, rows, len(Probes()))
	for _, row := range rows {
		assert.Equal(t, "2024-02-02", row.String("metric_date"))
		assert.False(t, row.Bool("sla_met"), "empty warehouse breaches everywhere")
	}

	// History accumulates across runs.
	_, err = (&Monitor{}).Build(ctx, env)
	require.NoError(t, err)
	rows, err = st.Read(ctx, Table)
	require.NoError(t, err)
	assert.Len(t, rows, 2*len(Probes()))
}

func TestCheck_ReturnsBreachesInWindow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Append(ctx, Table, []model.Row{
		{"table_name": "dim_stops", "metric_date": "2024-02-01", "sla_met": true,
			"row_count": float64(10), "freshness_hours": float64(2), "sla_hours": float64(192)},
		{"table_name": "fct_validations_daily", "metric_date": "2024-02-01", "sla_met": false,
			"row_count": float64(0), "freshness_hours": float64(-1), "sla_hours": float64(24)},
		{"table_name": "fct_validations_daily", "metric_date": "2024-01-01", "sla_met": false,
			"row_count": float64(0), "freshness_hours": float64(-1), "sla_hours": float64(24)},
	}))

	breaches, err := Check(ctx, st, 7, testNow)
	require.NoError(t, err)
	require.Len(t, breaches, 1, "old breach is outside the window, met row is not a breach")
	assert.Equal(t, "fct_validations_daily", breaches[0].TableName)
	assert.Equal(t, "2024-02-01", breaches[0].MetricDate)
	assert.Equal(t, 24.0, breaches[0].SLAHours)
}

func TestCheck_MissingHealthTable(t *testing.T) {
	st := newTestStore(t)

	_, err := Check(context.Background(), st, 7, testNow)
	require.ErrorIs(t, err, store.ErrTableNotFound)
}
