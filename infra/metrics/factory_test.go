package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/factory"
	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
)

func TestPrometheusSinkConstLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	old := PromRegisterer
	PromRegisterer = reg
	t.Cleanup(func() { PromRegisterer = old })

	sink, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "prometheus",
		Conf: map[string]any{"const_labels": map[string]any{"region": "blr"}},
	}})
	require.NoError(t, err)
	rec, ok := sink.(coremetrics.ConflictRecorder)
	require.True(t, ok)
	require.NoError(t, rec.RecordConflict(coremetrics.ConflictEvent{UnitID: "1", Requests: 2}))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() != "assignment_conflicts_total" {
			continue
		}
		found = true
		labels := mf.GetMetric()[0].GetLabel()
		require.Len(t, labels, 1)
		assert.Equal(t, "region", labels[0].GetName())
		assert.Equal(t, "blr", labels[0].GetValue())
	}
	assert.True(t, found)
}

func TestInfluxSinkRequiresURLAndBucket(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"org": "ops"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url is required")
	assert.Contains(t, err.Error(), "bucket is required")
}
