// Package catalog assembles the full pipeline: staging, dimensions, facts,
// marts, and the health monitor, in dependency order.
package catalog

import (
	"github.com/transitlab/transitmart/internal/dimension"
	"github.com/transitlab/transitmart/internal/fact"
	"github.com/transitlab/transitmart/internal/health"
	"github.com/transitlab/transitmart/internal/mart"
	"github.com/transitlab/transitmart/internal/stage"
	"github.com/transitlab/transitmart/internal/transform"
)

// New returns the registry of every pipeline transformation.
func New() *transform.Registry {
	r := transform.NewRegistry()

	// Staging
	r.Register(stage.Validations())
	r.Register(stage.Punctuality())
	r.Register(stage.RefStops())
	r.Register(stage.RefLines())
	r.Register(stage.RefStopLines())

	// Dimensions
	r.Register(dimension.Stops())
	r.Register(dimension.Lines())
	r.Register(dimension.StopLines())

	// Facts
	r.Register(fact.ValidationsDaily())
	r.Register(fact.PunctualityMonthly())

	// Marts
	r.Register(&mart.LinePerformance{})
	r.Register(&mart.StationTraffic{})

	// Health runs last, after everything it observes.
	r.Register(&health.Monitor{})

	return r
}
