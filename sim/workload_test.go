package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkloadSim() (*Simulator, *WorkloadGenerator) {
	sim := NewSimulator(NewSimulationKey(5), 1_000_000)
	sim.SFC = NewSFCRegistry(false)
	sim.ServiceRates = NewServiceRateTable(2)
	sim.ServiceRates.Set(0, 10)
	sim.ServiceRates.Set(1, 10)
	sim.AddSFF(0, &RejectScheduler{})

	cfg := &WorkloadConfig{
		StartNewFlowsTill:          1_000,
		ProbabilityStayInL:         0.8,
		ProbabilityStayInH:         0.4,
		ProbabilityFactor:          0.8,
		FlowArrivalL:               50,
		FlowArrivalH:               10,
		Lambda:                     1,
		PacketInterArrivalExpected: 20,
		PacketsPerFlow:             3,
		NumberOfSFTypes:            2,
		SFProcessingRate:           []float64{10, 10},
		TrafficClasses:             [][]int{{0, 1}},
		DeadlineScaling:            1,
	}
	w := NewWorkloadGenerator(sim, cfg)
	return sim, w
}

func TestWorkloadGenerator_PrepareThenDrainsInAscendingOrder(t *testing.T) {
	_, w := newWorkloadSim()
	w.PrepareBeforeSimulationStarts()
	require.False(t, w.Exhausted())

	var last int64
	var count int
	for {
		ev := w.Next()
		if ev == nil {
			break
		}
		assert.GreaterOrEqual(t, ev.At, last)
		last = ev.At
		count++
	}
	assert.True(t, w.Exhausted())
	assert.Greater(t, count, 0)
}

func TestWorkloadGenerator_DemandPerSFTracksChainUsage(t *testing.T) {
	sim, w := newWorkloadSim()
	_ = sim
	w.PrepareBeforeSimulationStarts()

	demand := w.DemandPerSF()
	// the single traffic class uses both SF types equally (chain {0,1})
	assert.Equal(t, demand[0], demand[1])
	assert.Greater(t, demand[0], int64(0))
}

func TestWorkloadGenerator_ZeroSizeFlowSkipsStraightToNextFlow(t *testing.T) {
	sim, w := newWorkloadSim()
	w.flows = []*pendingFlow{
		{chain: []int{0}, classIdx: 0, deadline: 1000, egress: 0, ingress: 0, startTime: 0, size: 0},
		{chain: []int{0}, classIdx: 0, deadline: 1000, egress: 0, ingress: 0, startTime: 10, size: 1},
	}
	w.deadlines = []int64{1000}
	ev := w.Next()
	require.NotNil(t, ev)
	assert.GreaterOrEqual(t, ev.At, int64(10), "the size-0 flow must be skipped, landing on the second flow's start time")
	assert.Nil(t, w.Next())
	assert.True(t, w.Exhausted())
	_ = sim
}

func TestPoissonSample_ZeroMeanAlwaysZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, poissonSample(rng, 0))
	}
}

func TestPoissonSample_LargeMeanNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		assert.GreaterOrEqual(t, poissonSample(rng, 1000), 0)
	}
}

func TestPoissonSample_SmallMeanDeterministicPerSeed(t *testing.T) {
	a := rand.New(rand.NewSource(99))
	b := rand.New(rand.NewSource(99))
	for i := 0; i < 20; i++ {
		assert.Equal(t, poissonSample(a, 5), poissonSample(b, 5))
	}
}
