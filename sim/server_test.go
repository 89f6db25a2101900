package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRatedSim(rates ...float64) *Simulator {
	s := NewSimulator(NewSimulationKey(1), 1_000_000)
	s.ServiceRates = NewServiceRateTable(len(rates))
	for i, r := range rates {
		s.ServiceRates.Set(i, r)
	}
	return s
}

func TestParseCPUPolicy(t *testing.T) {
	p, err := ParseCPUPolicy("static")
	require.NoError(t, err)
	assert.Equal(t, PolicyStatic, p)

	_, err = ParseCPUPolicy("bogus")
	require.Error(t, err)
}

func TestServer_StaticEqualSplit(t *testing.T) {
	sim := newRatedSim(10)
	server := NewServer(0, 100, PolicyStatic, 100)
	sfi1 := NewSFI(0, 0, 0, sim)
	sfi2 := NewSFI(1, 0, 0, sim)
	sfi3 := NewSFI(2, 0, 0, sim)
	require.NoError(t, server.AddSFI(sfi1))
	require.NoError(t, server.AddSFI(sfi2))
	require.NoError(t, server.AddSFI(sfi3))

	var total int64
	for _, sf := range server.SFIs {
		assert.Equal(t, sfi1.CPUShares, sf.CPUShares)
		total += sf.CPUShares
	}
	assert.LessOrEqual(t, total, server.Granularity)
}

func TestServer_StaticOversubscribedErrors(t *testing.T) {
	sim := newRatedSim(10)
	server := NewServer(0, 100, PolicyStatic, 2)
	require.NoError(t, server.AddSFI(NewSFI(0, 0, 0, sim)))
	require.NoError(t, server.AddSFI(NewSFI(1, 0, 0, sim)))
	err := server.AddSFI(NewSFI(2, 0, 0, sim))
	require.Error(t, err)
}

func TestServer_DynamicRebalanceSumsToGranularity(t *testing.T) {
	sim := newRatedSim(10)
	server := NewServer(0, 100, PolicyDynamic, 10)
	for i := 0; i < 3; i++ {
		require.NoError(t, server.AddSFI(NewSFI(i, 0, 0, sim)))
	}
	server.SFIs[0].Queue = make([]*Packet, 4)
	server.updateDynamicCPUWeights()

	var total int64
	for _, sf := range server.SFIs {
		total += sf.CPUShares
		assert.Greater(t, sf.CPUShares, int64(0))
	}
	assert.Equal(t, server.Granularity, total)
	assert.Greater(t, server.SFIs[0].CPUShares, server.SFIs[1].CPUShares)
}

func TestServer_OneAtATimeExclusiveGrant(t *testing.T) {
	sim := newRatedSim(10)
	server := NewServer(0, 100, PolicyOneAtATime, 100)
	sfi1 := NewSFI(0, 0, 0, sim)
	sfi2 := NewSFI(1, 0, 0, sim)
	require.NoError(t, server.AddSFI(sfi1))
	require.NoError(t, server.AddSFI(sfi2))

	assert.True(t, server.AskForProcessing(sfi1))
	assert.Equal(t, server.Granularity, sfi1.CPUShares)
	assert.Equal(t, int64(0), sfi2.CPUShares)

	sfi1.Free = false
	assert.False(t, server.AskForProcessing(sfi2))
}

func TestServer_IdleTimeAccumulates(t *testing.T) {
	sim := newRatedSim(10)
	server := NewServer(0, 100, PolicyOneAtATime, 100)
	sfi := NewSFI(0, 0, 0, sim)
	require.NoError(t, server.AddSFI(sfi))

	server.noteWentFree(0)
	assert.Equal(t, int64(100), server.IdleTime(100))

	sfi.Free = false // server no longer free; busy transition stops the idle clock
	server.noteWentBusy(100)
	assert.Equal(t, int64(100), server.IdleTime(150))
}
