package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FullCatalogResolves(t *testing.T) {
	r := New()

	ordered, err := r.Resolve(nil)
	require.NoError(t, err)
	assert.Len(t, ordered, 13)

	pos := make(map[string]int, len(ordered))
	for i, node := range ordered {
		pos[node.Name()] = i
	}

	// Every node's upstreams precede it.
	for _, node := range ordered {
		for _, up := range node.Upstreams() {
			assert.Less(t, pos[up], pos[node.Name()],
				"%s must run after %s", node.Name(), up)
		}
	}

	assert.Equal(t, len(ordered)-1, pos["fct_data_health_daily"], "health monitor runs last")
}

func TestNew_SelectPullsUpstreamClosure(t *testing.T) {
	r := New()

	ordered, err := r.Resolve([]string{"mart_station_traffic_monthly"})
	require.NoError(t, err)

	names := make([]string, 0, len(ordered))
	for _, node := range ordered {
		names = append(names, node.Name())
	}
	assert.ElementsMatch(t, []string{
		"stg_validations",
		"stg_ref_stops",
		"dim_stops",
		"fct_validations_daily",
		"mart_station_traffic_monthly",
	}, names)
}
