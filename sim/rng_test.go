package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreams_DeterministicAcrossInstances(t *testing.T) {
	a := NewStreams(NewSimulationKey(42))
	b := NewStreams(NewSimulationKey(42))

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Sim().Float64(), b.Sim().Float64())
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Workload().Int63(), b.Workload().Int63())
	}
}

func TestStreams_SimAndWorkloadAreIndependent(t *testing.T) {
	s := NewStreams(NewSimulationKey(7))
	firstSim := s.Sim().Float64()
	firstWL := s.Workload().Float64()
	assert.NotEqual(t, firstSim, firstWL)
}

func TestStreams_DifferentSeedsDiverge(t *testing.T) {
	a := NewStreams(NewSimulationKey(1))
	b := NewStreams(NewSimulationKey(2))
	assert.NotEqual(t, a.Sim().Float64(), b.Sim().Float64())
}
