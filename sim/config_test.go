package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkloadConfig_EffectiveDeadlines(t *testing.T) {
	cfg := WorkloadConfig{
		SFProcessingRate: []float64{10, 20},
		TrafficClasses:   [][]int{{0, 1}, {0}, {1}},
		DeadlineScaling:  2,
	}
	base := cfg.deadlinePerClass()
	assert.Equal(t, int64(1_000_000/10+1_000_000/20), base[0])
	assert.Equal(t, int64(1_000_000/10), base[1])
	assert.Equal(t, int64(1_000_000/20), base[2])

	eff := cfg.EffectiveDeadlines()
	for i, b := range base {
		assert.Equal(t, b*2, eff[i])
	}
}

func TestDefaultConfig_Sane(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2, cfg.Workload.NumberOfSFTypes)
	assert.Len(t, cfg.Workload.SFProcessingRate, 2)
	assert.Equal(t, "greedy-oracle", cfg.Policy.Scheduler)
	assert.Equal(t, int64(10_000_000), cfg.Horizon)
	assert.NotEmpty(t, cfg.Topology.LatencyWithinSites)
}
