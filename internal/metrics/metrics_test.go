package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegistersEveryMetricWithoutPanicking(t *testing.T) {
	reg := Registry()
	require.NotNil(t, reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	// CounterVecs with no observed label values yet (StageRuns,
	// EntrezRequestFailures) have no children to collect, so only the
	// plain Counter/Gauge metrics are guaranteed to show up unobserved.
	assert.Contains(t, names, "pmcpipeline_articles_processed_total")
	assert.Contains(t, names, "pmcpipeline_extract_in_flight_articles")

	StageRuns.WithLabelValues("article_split", "0").Inc()
	families, err = reg.Gather()
	require.NoError(t, err)
	names = nil
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pmcpipeline_stage_runs_total")
}

func TestRegistry_ReturnsFreshRegistryEachCall(t *testing.T) {
	a := Registry()
	b := Registry()
	assert.NotSame(t, a, b)
}
