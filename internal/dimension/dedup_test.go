package dimension

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitlab/transitmart/internal/model"
)

func TestLatestByKey_KeepsLatestSnapshot(t *testing.T) {
	rows := []model.Row{
		{"stop_id": "S1", "stop_name": "Old", "ingestion_ts": "2024-01-01T00:00:00Z"},
		{"stop_id": "S1", "stop_name": "New", "ingestion_ts": "2024-02-01T00:00:00Z"},
		{"stop_id": "S2", "stop_name": "Other", "ingestion_ts": "2024-01-15T00:00:00Z"},
	}

	out := LatestByKey(rows, []string{"stop_id"}, "ingestion_ts")
	require.Len(t, out, 2)
	assert.Equal(t, "New", out[0].String("stop_name"))
	assert.Equal(t, "S1", out[0].String("stop_id"))
	assert.Equal(t, "S2", out[1].String("stop_id"))
}

func TestLatestByKey_EqualRecencyLastSeenWins(t *testing.T) {
	rows := []model.Row{
		{"stop_id": "S1", "stop_name": "First", "ingestion_ts": "2024-01-01T00:00:00Z"},
		{"stop_id": "S1", "stop_name": "Second", "ingestion_ts": "2024-01-01T00:00:00Z"},
	}

	out := LatestByKey(rows, []string{"stop_id"}, "ingestion_ts")
	require.Len(t, out, 1)
	assert.Equal(t, "Second", out[0].String("stop_name"))
}

func TestLatestByKey_DropsNullKeys(t *testing.T) {
	rows := []model.Row{
		{"stop_id": nil, "ingestion_ts": "2024-01-01T00:00:00Z"},
		{"ingestion_ts": "2024-01-01T00:00:00Z"},
		{"stop_id": "S1", "ingestion_ts": "2024-01-01T00:00:00Z"},
	}

	out := LatestByKey(rows, []string{"stop_id"}, "ingestion_ts")
	require.Len(t, out, 1)
	assert.Equal(t, "S1", out[0].String("stop_id"))
}

func TestLatestByKey_CompositeKey(t *testing.T) {
	rows := []model.Row{
		{"stop_id": "S1", "line_id": "A", "ingestion_ts": "2024-01-01T00:00:00Z"},
		{"stop_id": "S1", "line_id": "B", "ingestion_ts": "2024-01-01T00:00:00Z"},
		{"stop_id": "S1", "line_id": "A", "ingestion_ts": "2024-03-01T00:00:00Z"},
		{"stop_id": "S1", "line_id": nil, "ingestion_ts": "2024-03-01T00:00:00Z"},
	}

	out := LatestByKey(rows, []string{"stop_id", "line_id"}, "ingestion_ts")
	require.Len(t, out, 2)
}

func TestLatestByKey_UniquenessHolds(t *testing.T) {
	rows := []model.Row{
		{"stop_id": "S1", "ingestion_ts": "2024-01-01T00:00:00Z"},
		{"stop_id": "S2", "ingestion_ts": "2024-01-02T00:00:00Z"},
		{"stop_id": "S1", "ingestion_ts": "2024-01-03T00:00:00Z"},
		{"stop_id": "S2", "ingestion_ts": "2024-01-01T00:00:00Z"},
		{"stop_id": "S3", "ingestion_ts": "2024-01-01T00:00:00Z"},
	}

	out := LatestByKey(rows, []string{"stop_id"}, "ingestion_ts")
	seen := make(map[string]int)
	for _, row := range out {
		seen[row.String("stop_id")]++
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, "key %s duplicated", key)
	}
	assert.Len(t, seen, 3)
}
