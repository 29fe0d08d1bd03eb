package mart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/transitmart/internal/config"
)

func f(v float64) *float64 { return &v }

func thresholds() config.MartConfig {
	return config.MartConfig{
		DemandDropHighPct:   10,
		DemandDropMediumPct: 5,
		QualityLowThreshold: 85,
		QualityMidThreshold: 90,
	}
}

func TestGrowthPct(t *testing.T) {
	g := growthPct(f(110), f(100))
	require.NotNil(t, g)
	assert.InDelta(t, 10, *g, 1e-9)

	assert.Nil(t, growthPct(f(110), nil), "no prior month")
	assert.Nil(t, growthPct(nil, f(100)), "no current value")
	assert.Nil(t, growthPct(f(110), f(0)), "zero baseline")
}

func TestRiskLevel(t *testing.T) {
	cfg := thresholds()

	cases := []struct {
		name    string
		growth  *float64
		quality *float64
		want    string
	}{
		{"steep drop and poor quality", f(-12), f(80), RiskHigh},
		{"steep drop but good quality", f(-12), f(95), RiskMedium},
		{"moderate drop alone", f(-6), f(95), RiskMedium},
		{"middling quality alone", f(2), f(88), RiskMedium},
		{"poor quality without drop", nil, f(80), RiskMedium},
		{"growth and good quality", f(4), f(96), RiskLow},
		{"no signal at all", nil, nil, RiskLow},
		{"drop at exact medium threshold", f(-5), f(95), RiskLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, riskLevel(tc.growth, tc.quality, cfg))
		})
	}
}

func TestLagByEntity(t *testing.T) {
	values := map[seriesKey]*float64{
		{"A", "2024-01"}: f(100),
		{"A", "2024-02"}: f(110),
		{"B", "2024-02"}: f(50),
	}
	prev := lagByEntity(values)

	assert.Nil(t, prev[seriesKey{"A", "2024-01"}])
	require.NotNil(t, prev[seriesKey{"A", "2024-02"}])
	assert.Equal(t, 100.0, *prev[seriesKey{"A", "2024-02"}])
	assert.Nil(t, prev[seriesKey{"B", "2024-02"}], "other entity's months are invisible")
}
