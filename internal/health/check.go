package health

import (
	"context"
	"sort"
	"time"

	"github.com/transitlab/transitmart/internal/model"
	"github.com/transitlab/transitmart/internal/store"
)

// Breach is one sla_met=false health row inside the checked window.
type Breach struct {
	TableName      string
	MetricDate     string
	RowCount       int64
	FreshnessHours float64
	SLAHours       float64
}

// Check reads the health log for the trailing number of days and returns the
// breaches found, newest first. A missing health table is an error: it means
// the pipeline has never run, which is itself a finding the caller must see.
func Check(ctx context.Context, st store.Store, days int, now time.Time) ([]Breach, error) {
	rows, err := st.Read(ctx, Table)
	if err != nil {
		return nil, err
	}

	cutoff := now.AddDate(0, 0, -days).Format("2006-01-02")
	var breaches []Breach
	for _, row := range rows {
		if row.String("metric_date") < cutoff {
			continue
		}
		if row.Bool("sla_met") {
			continue
		}
		breaches = append(breaches, breachFromRow(row))
	}

	sort.Slice(breaches, func(i, j int) bool {
		if breaches[i].MetricDate != breaches[j].MetricDate {
			return breaches[i].MetricDate > breaches[j].MetricDate
		}
		return breaches[i].TableName < breaches[j].TableName
	})
	return breaches, nil
}

func breachFromRow(row model.Row) Breach {
	b := Breach{
		TableName:  row.String("table_name"),
		MetricDate: row.String("metric_date"),
	}
	b.RowCount, _ = row.Int("row_count")
	b.FreshnessHours, _ = row.Float("freshness_hours")
	b.SLAHours, _ = row.Float("sla_hours")
	return b
}
