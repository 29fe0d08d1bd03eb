// Package mart rebuilds the monthly scorecard tables from fact and dimension
// tables: per-line performance with risk classification and per-station
// traffic. Marts are full rebuilds; incrementality lives in the fact layer.
package mart

import (
	"sort"

	"github.com/transitlab/transitmart/internal/config"
)

// Risk levels for the line scorecard, ordered by severity.
const (
	RiskLow    = "low_risk"
	RiskMedium = "medium_risk"
	RiskHigh   = "high_risk"
)

// seriesKey identifies one monthly observation of an entity (line or stop).
type seriesKey struct {
	Entity string
	Month  string
}

// growthPct computes month-over-month growth in percent. Nil when either side
// is missing or the previous value is zero: a division by a zero baseline has
// no meaningful percentage, and a synthetic 0 or 100 would skew risk scoring.
func growthPct(v, prev *float64) *float64 {
	if v == nil || prev == nil || *prev == 0 {
		return nil
	}
	g := (*v - *prev) / *prev * 100
	return &g
}

// lagByEntity maps each key to the value of the previous month observed for
// the same entity, in sorted month order. Mirrors a windowed lag over
// (entity ORDER BY month).
func lagByEntity(values map[seriesKey]*float64) map[seriesKey]*float64 {
	byEntity := make(map[string][]string)
	for k := range values {
		byEntity[k.Entity] = append(byEntity[k.Entity], k.Month)
	}

	prev := make(map[seriesKey]*float64, len(values))
	for entity, months := range byEntity {
		sort.Strings(months)
		for i, month := range months {
			k := seriesKey{Entity: entity, Month: month}
			if i == 0 {
				prev[k] = nil
				continue
			}
			prev[k] = values[seriesKey{Entity: entity, Month: months[i-1]}]
		}
	}
	return prev
}

// riskLevel classifies a line-month. High requires both a steep demand drop
// and poor quality; medium needs either a moderate drop or middling quality.
// A missing side never satisfies its condition.
func riskLevel(growth, quality *float64, cfg config.MartConfig) string {
	var drop float64
	hasDrop := false
	if growth != nil {
		drop = -*growth
		hasDrop = true
	}

	steepDrop := hasDrop && drop > cfg.DemandDropHighPct
	moderateDrop := hasDrop && drop > cfg.DemandDropMediumPct
	lowQuality := quality != nil && *quality < cfg.QualityLowThreshold
	midQuality := quality != nil && *quality < cfg.QualityMidThreshold

	switch {
	case steepDrop && lowQuality:
		return RiskHigh
	case moderateDrop || midQuality:
		return RiskMedium
	default:
		return RiskLow
	}
}

// monthOf extracts YYYY-MM from a YYYY-MM-DD date.
func monthOf(date string) string {
	if len(date) < 7 {
		return ""
	}
	return date[:7]
}

// asValue unwraps a nullable measure for storage.
func asValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
