// Package health computes data-quality and freshness metrics for the
// materialized tables and appends them to fct_data_health_daily. SLA breaches
// are findings, not errors: the monitor always succeeds and the breach
// surfaces through sla_met=false.
package health

import (
	"context"
	"time"

	"github.com/transitlab/transitmart/internal/config"
	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/store"
)

// FreshnessUnknown marks a table with no parsable recency at all, either
// because the table does not exist yet or no row carries the recency column.
// Negative so it can never satisfy an SLA comparison by accident.
const FreshnessUnknown = -1.0

// DefaultSLAHours applies to monitored tables with no explicit entry in
// health.sla_hours.
const DefaultSLAHours = 24.0

// Probe describes how to measure one monitored table.
type Probe struct {
	TableName string
	// RecencyCol orders rows in time: loaded_at for facts and marts,
	// ingestion_ts for dimensions.
	RecencyCol string
	// CriticalCol is the measure whose null rate is reported.
	CriticalCol string
	// KeyCols is the tuple expected to be unique per row.
	KeyCols []string
	// UpstreamNode ties the probe's table to its pipeline node so the monitor
	// can schedule after it.
	UpstreamNode string
}

// Metrics is one health observation of a table.
type Metrics struct {
	TableName      string
	RowCount       int64
	FreshnessHours float64
	SLAHours       float64
	NullPercentage *float64
	DuplicateCount int64
	SLAMet         bool
}

// Probes returns the monitored outputs: both facts, all dimensions, both
// marts. Staging tables are transient and raw tables are owned by the loader,
// so neither is monitored.
func Probes() []Probe {
	return []Probe{
		{
			TableName:    "fct_validations_daily",
			RecencyCol:   "loaded_at",
			CriticalCol:  "validation_count",
			KeyCols:      []string{"date", "stop_id", "ticket_type"},
			UpstreamNode: "fct_validations_daily",
		},
		{
			TableName:    "fct_punctuality_monthly",
			RecencyCol:   "loaded_at",
			CriticalCol:  "punctuality_rate",
			KeyCols:      []string{"month", "line_id"},
			UpstreamNode: "fct_punctuality_monthly",
		},
		{
			TableName:    "dim_stops",
			RecencyCol:   "ingestion_ts",
			CriticalCol:  "stop_name",
			KeyCols:      []string{"stop_id"},
			UpstreamNode: "dim_stops",
		},
		{
			TableName:    "dim_lines",
			RecencyCol:   "ingestion_ts",
			CriticalCol:  "line_name",
			KeyCols:      []string{"line_id"},
			UpstreamNode: "dim_lines",
		},
		{
			TableName:    "dim_stop_lines",
			RecencyCol:   "ingestion_ts",
			CriticalCol:  "line_id",
			KeyCols:      []string{"stop_id", "line_id"},
			UpstreamNode: "dim_stop_lines",
		},
		{
			TableName:    "mart_line_performance_monthly",
			RecencyCol:   "loaded_at",
			CriticalCol:  "risk_level",
			KeyCols:      []string{"month", "line_id"},
			UpstreamNode: "mart_line_performance_monthly",
		},
		{
			TableName:    "mart_station_traffic_monthly",
			RecencyCol:   "loaded_at",
			CriticalCol:  "total_validations",
			KeyCols:      []string{"month", "stop_id"},
			UpstreamNode: "mart_station_traffic_monthly",
		},
	}
}

// Measure computes the probe's metrics as of now. A missing table is a valid
// observation (empty, stale, breached), never an error.
func (p Probe) Measure(ctx context.Context, st store.Store, cfg config.HealthConfig, now time.Time) (*Metrics, error) {
	sla := DefaultSLAHours
	if v, ok := cfg.SLAHours[p.TableName]; ok {
		sla = v
	}

	exists, err := st.Exists(ctx, p.TableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &Metrics{
			TableName:      p.TableName,
			FreshnessHours: FreshnessUnknown,
			SLAHours:       sla,
			SLAMet:         false,
		}, nil
	}

	rows, err := st.Read(ctx, p.TableName)
	if err != nil {
		return nil, err
	}

	lookback := now.AddDate(0, 0, -cfg.LookbackDays)
	freshness := FreshnessUnknown
	var window []model.Row
	for _, row := range rows {
		ts, ok := row.Time(p.RecencyCol)
		if !ok {
			continue
		}
		if age := now.Sub(ts).Hours(); freshness == FreshnessUnknown || age < freshness {
			freshness = age
		}
		if !ts.Before(lookback) {
			window = append(window, row)
		}
	}

	m := &Metrics{
		TableName:      p.TableName,
		RowCount:       int64(len(window)),
		FreshnessHours: freshness,
		SLAHours:       sla,
	}

	if len(window) > 0 {
		nulls := 0
		keyCounts := make(map[string]int64)
		for _, row := range window {
			if !row.Has(p.CriticalCol) {
				nulls++
			}
			key := ""
			for _, col := range p.KeyCols {
				key += row.String(col) + "\x1f"
			}
			keyCounts[key]++
		}
		pct := float64(nulls) / float64(len(window)) * 100
		m.NullPercentage = &pct
		for _, c := range keyCounts {
			m.DuplicateCount += c - 1
		}
	}

	m.SLAMet = m.RowCount > 0 && freshness != FreshnessUnknown && freshness <= sla
	return m, nil
}

// Row renders the metrics as a fct_data_health_daily record.
func (m *Metrics) Row(now time.Time) model.Row {
	row := model.Row{
		"table_name":      m.TableName,
		"metric_date":     now.Format("2006-01-02"),
		"row_count":       m.RowCount,
		"freshness_hours": m.FreshnessHours,
		"sla_hours":       m.SLAHours,
		"null_percentage": nil,
		"duplicate_count": m.DuplicateCount,
		"sla_met":         m.SLAMet,
		"loaded_at":       now.Format(time.RFC3339),
	}
	if m.NullPercentage != nil {
		row["null_percentage"] = *m.NullPercentage
	}
	return row
}
