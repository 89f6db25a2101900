package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestACP_ShouldForward_NoLocalSFIAlwaysForwards(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	acp := NewACP(sim, 0.2, 0.8)
	assert.True(t, acp.ShouldForward(sff0, 0, 0))
}

func TestACP_ShouldForward_HighLoadAlwaysForwards(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	server := NewServer(0, 100, PolicyStatic, 100)
	require.NoError(t, server.AddSFI(NewSFI(0, 0, 0, sim)))
	require.NoError(t, sff0.RegisterSFI(server.SFIs[0]))

	est := NewEWMA(0.5, 4, 100_000)
	acp := NewACP(sim, 0.2, 0.8)
	acp.SetEstimator(0, est)
	est.value = 1000 // pushes Rate() far above ThetaHigh*local

	assert.True(t, acp.ShouldForward(sff0, 0, 0))
}

func TestACP_ShouldForward_LowLoadNeverForwards(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	server := NewServer(0, 100, PolicyStatic, 100)
	require.NoError(t, server.AddSFI(NewSFI(0, 0, 0, sim)))
	require.NoError(t, sff0.RegisterSFI(server.SFIs[0]))

	est := NewEWMA(0.5, 4, 100_000)
	acp := NewACP(sim, 0.2, 0.8)
	acp.SetEstimator(0, est)
	est.value = 0 // Rate()==0, load==0 <= ThetaLow

	assert.False(t, acp.ShouldForward(sff0, 0, 0))
}

func TestACP_Forward_SelectsRemoteSFFAndAppendsPath(t *testing.T) {
	sim, sff0, sff1 := newTwoSFFSim(1e9, false)
	server1 := NewServer(1, 100, PolicyStatic, 100)
	require.NoError(t, server1.AddSFI(NewSFI(1, 0, 1, sim)))
	require.NoError(t, sff1.RegisterSFI(server1.SFIs[0]))

	base, err := sim.SFC.RegisterSFC([]int{0}, 1_000_000, 1)
	require.NoError(t, err)
	flow := &Flow{ID: 1, SFCChain: []int{0}, QosMaxDelay: 1_000_000, DesiredEgressID: 1, BaseClass: base}
	p := &Packet{ID: 1, Flow: flow, TransmissionSize: 1}
	sff0.PacketQueue = []*Packet{p}

	acp := NewACP(sim, 0.2, 0.8)
	acp.Forward(sff0, p, 0)

	assert.Empty(t, sff0.PacketQueue)
	assert.Empty(t, p.FinalState)
	require.NotEmpty(t, p.FullPath)
	assert.Equal(t, 1, p.FullPath[len(p.FullPath)-1].ID)
}

func TestACP_Forward_NoRemoteCandidateRejects(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	base, err := sim.SFC.RegisterSFC([]int{0}, 1_000_000, 0)
	require.NoError(t, err)
	flow := &Flow{ID: 1, SFCChain: []int{0}, QosMaxDelay: 1_000_000, DesiredEgressID: 0, BaseClass: base}
	p := &Packet{ID: 1, Flow: flow, TransmissionSize: 1}
	sff0.PacketQueue = []*Packet{p}

	acp := NewACP(sim, 0.2, 0.8)
	acp.Forward(sff0, p, 0)

	assert.Equal(t, "rejectSchedule", p.FinalState)
}

func TestACP_Forward_ExceedsVisitThresholdTimesOut(t *testing.T) {
	sim, sff0, sff1 := newTwoSFFSim(1e9, false)
	server1 := NewServer(1, 100, PolicyStatic, 100)
	require.NoError(t, server1.AddSFI(NewSFI(1, 0, 1, sim)))
	require.NoError(t, sff1.RegisterSFI(server1.SFIs[0]))

	base, err := sim.SFC.RegisterSFC([]int{0}, 1_000_000, 1)
	require.NoError(t, err)
	flow := &Flow{ID: 1, SFCChain: []int{0}, QosMaxDelay: 1_000_000, DesiredEgressID: 1, BaseClass: base}
	p := &Packet{ID: 1, Flow: flow, TransmissionSize: 1, SeenByScheduler: DefaultACPVisitThreshold}
	sff0.PacketQueue = []*Packet{p}

	acp := NewACP(sim, 0.2, 0.8)
	acp.Forward(sff0, p, 10)

	assert.Equal(t, "timeout", p.FinalState)
}
