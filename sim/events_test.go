package sim

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeName_ClassifiesEveryConcreteEvent(t *testing.T) {
	cases := []struct {
		ev   Event
		want string
	}{
		{&IngressEvent{}, "IngressEvent"},
		{&NetworkDelayEvent{}, "NetworkDelayEvent"},
		{&SFIProcessEvent{}, "SFIProcessEvent"},
		{&DoSchedulingEvent{}, "DoSchedulingEvent"},
		{&ServerCPUShareEvent{}, "ServerCPUShareEvent"},
		{&RateEstimatorTickEvent{}, "RateEstimatorTickEvent"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, eventTypeName(c.ev))
	}
}

func TestIngressEvent_InjectsPacketAtIngressSFF(t *testing.T) {
	sim, _, _ := newTwoSFFSim(1e9, false)
	base, err := sim.SFC.RegisterSFC([]int{0}, 1_000_000, 0)
	require.NoError(t, err)
	flow := &Flow{ID: 1, SFCChain: []int{0}, QosMaxDelay: 1_000_000, DesiredEgressID: 0, IngressSFFID: 0, BaseClass: base}
	ev := &IngressEvent{BaseEvent: BaseEvent{At: 0}, Flow: flow}

	var torndown *Packet
	sim.AddTeardownHook(func(p *Packet, state string) { torndown = p })

	ev.Execute(sim)
	assert.Equal(t, int64(1), sim.Stats.Injected)
	require.NotNil(t, torndown, "the ingress SFF's Reject scheduler tears the packet down immediately")
	assert.Equal(t, int64(1), torndown.ID)
	assert.Equal(t, "rejectSchedule", torndown.FinalState)
}

func TestNetworkDelayEvent_SFFToSFFReleasesBWAndDelivers(t *testing.T) {
	sim, _, _ := newTwoSFFSim(1, true)
	sim.Topology.reserveBW(0, 1, 1) // simulate the outbound reservation this packet already holds
	p := testFlow(sim, 1, 1_000_000)
	p.TransmissionSize = 1
	ev := &NetworkDelayEvent{
		BaseEvent: BaseEvent{At: 5},
		SrcKind:   HopSFF, SrcID: 0,
		DstKind: HopSFF, DstID: 1,
		Packet: p,
	}
	ev.Execute(sim)
	assert.Equal(t, 1.0, sim.Topology.bwRemain.At(0, 1), "bandwidth was released back to the edge")
	assert.Equal(t, "rejectSchedule", p.FinalState, "the packet reached SFF1, whose Reject scheduler tore it down")
}

func TestNetworkDelayEvent_ToSFIEnqueuesOnTarget(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	server := NewServer(0, 100, PolicyStatic, 100)
	sfi := NewSFI(0, 0, 0, sim)
	require.NoError(t, server.AddSFI(sfi))
	require.NoError(t, sff0.RegisterSFI(sfi))
	sim.sfiByID[0] = sfi

	p := testFlow(sim, 0, 1_000_000)
	ev := &NetworkDelayEvent{
		BaseEvent: BaseEvent{At: 5},
		SrcKind:   HopSFF, SrcID: 0,
		DstKind: HopSFI, DstID: 0,
		Packet: p,
	}
	ev.Execute(sim)
	assert.False(t, sfi.Free, "static policy grants processing immediately on enqueue")
}

func TestServerCPUShareEvent_ReschedulesItself(t *testing.T) {
	sim, _, _ := newTwoSFFSim(1e9, false)
	server := NewServer(0, 100, PolicyDynamic, 10)
	ev := &ServerCPUShareEvent{BaseEvent: BaseEvent{At: 100}, Server: server}
	ev.Execute(sim)
	require.Equal(t, 1, sim.queue.Len())
	next := heap.Pop(sim.queue).(*ServerCPUShareEvent)
	assert.Equal(t, int64(100+server.DynamicInterval), next.At)
}

func TestDoSchedulingEvent_ReschedulesOnlyWhenPeriodPositive(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	sched := &MPPScheduler{AllowUnderway: 1, BatchScheduling: 1}
	sff0.Scheduler = sched
	sched.AssignSFF(sff0)
	ev := &DoSchedulingEvent{BaseEvent: BaseEvent{At: 0}, SFF: sff0}
	ev.Execute(sim)
	require.Equal(t, 1, sim.queue.Len())
	next := heap.Pop(sim.queue).(*DoSchedulingEvent)
	assert.Equal(t, DefaultMPPTriggerPeriod, next.At)
}

func TestDoSchedulingEvent_NoRescheduleForArrivalOnlyScheduler(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	ev := &DoSchedulingEvent{BaseEvent: BaseEvent{At: 0}, SFF: sff0}
	ev.Execute(sim)
	assert.Equal(t, 0, sim.queue.Len())
}

func TestRateEstimatorTickEvent_TicksAndReschedules(t *testing.T) {
	sim, _, _ := newTwoSFFSim(1e9, false)
	est := NewEWMA(0.5, 4, 1000)
	est.Arrival(0)
	ev := &RateEstimatorTickEvent{BaseEvent: BaseEvent{At: 0}, Estimator: est}
	ev.Execute(sim)

	require.Equal(t, 1, sim.queue.Len())
	next := heap.Pop(sim.queue).(*RateEstimatorTickEvent)
	assert.Equal(t, int64(1000), next.At)
}
