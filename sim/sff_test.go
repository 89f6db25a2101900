package sim

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panicScheduler always panics SchedulingFailure from ApplySchedulingLogic,
// used to exercise informSchedulerAboutPacket's strict/non-strict handling.
type panicScheduler struct {
	BaseScheduler
}

func (p *panicScheduler) HandlePacketArrival(pkt *Packet, now int64) {
	p.handleArrival(pkt, now, p.ApplySchedulingLogic)
}
func (p *panicScheduler) ApplySchedulingLogic(*Packet, int64) {
	panic(SchedulingFailure{Msg: "no route"})
}

func newTwoSFFSim(bwCap float64, considerBW bool) (*Simulator, *SFF, *SFF) {
	sim := NewSimulator(NewSimulationKey(1), 1_000_000)
	sim.SFC = NewSFCRegistry(false)
	sim.ServiceRates = NewServiceRateTable(1)
	sim.ServiceRates.Set(0, 10)
	sim.Props.SFIHopLatency = NewLatencyDistribution([]int{5})
	sim.Topology = NewTopology(2)
	sim.Topology.AddLatencyDistribution(0, []int{10})
	sff0 := sim.AddSFF(0, &RejectScheduler{})
	sff1 := sim.AddSFF(1, &RejectScheduler{})
	if err := sim.Topology.Connect(0, 1, bwCap, 0, true); err != nil {
		panic(err)
	}
	sim.Topology.SetConsiderBW(considerBW)
	return sim, sff0, sff1
}

func testFlow(sim *Simulator, egress int, maxDelay int64) *Packet {
	base, err := sim.SFC.RegisterSFC([]int{0}, maxDelay, egress)
	if err != nil {
		panic(err)
	}
	flow := &Flow{ID: 1, SFCChain: []int{0}, QosMaxDelay: maxDelay, DesiredEgressID: egress, BaseClass: base}
	return &Packet{ID: 1, Flow: flow, TimeIngress: 0, TransmissionSize: 1}
}

func TestSFF_ReceiveTimeoutTearsDownPacket(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	p := testFlow(sim, 0, 50)
	sff0.ReceiveFromIngress(p, 100)
	assert.Equal(t, "timeout", p.FinalState)
}

func TestSFF_ReceiveLazyEgressCompletion(t *testing.T) {
	sim, sff0, sff1 := newTwoSFFSim(1e9, false)
	_ = sff1
	p := testFlow(sim, 1, 1_000_000)
	p.ProcessingDone = true
	p.PathPosition = 0
	sff0.ReceiveFromSFI(p, 10)
	// lazily appended path toward egress 1, then consumed one hop
	assert.Equal(t, 1, p.PathPosition)
	assert.NotEmpty(t, p.FullPath)
}

func TestSFF_ReceiveConsumesNextHopBeforeQueue(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	server := NewServer(0, 100, PolicyStatic, 100)
	sfi := NewSFI(0, 0, 0, sim)
	require.NoError(t, server.AddSFI(sfi))
	require.NoError(t, sff0.RegisterSFI(sfi))
	sim.sfiByID[0] = sfi

	p := testFlow(sim, 0, 1_000_000)
	p.FullPath = []PathHop{{Kind: HopSFI, ID: 0}}
	p.PathPosition = 0
	sff0.ReceiveFromIngress(p, 10)

	assert.Equal(t, 1, p.PathPosition)
	assert.Empty(t, p.FinalState)
	require.Equal(t, 1, sim.queue.Len(), "the SFI hop was scheduled as a network delay, not enqueued immediately")

	ev := heap.Pop(sim.queue).(Event)
	ev.Execute(sim)
	// the static-policy server grants processing immediately, so the SFI's
	// own queue already drained into a scheduled SFIProcessEvent
	assert.False(t, sfi.Free)
	assert.Equal(t, 1, sim.queue.Len())
}

func TestSFF_ReceiveFallsThroughToQueueAndRejects(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	p := testFlow(sim, 0, 1_000_000)
	sff0.ReceiveFromIngress(p, 10)
	assert.Equal(t, "rejectSchedule", p.FinalState)
}

func TestSFF_ReceiveDoneWhenPathExhaustedAndProcessingDone(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	p := testFlow(sim, 0, 1_000_000)
	p.ProcessingDone = true
	sff0.ReceiveFromSFI(p, 10)
	assert.Equal(t, "done", p.FinalState)
}

func TestSFF_HandlePacketFromSchedulerPanicsOnEmptyPath(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	p := testFlow(sim, 0, 1_000_000)
	assert.Panics(t, func() { sff0.HandlePacketFromScheduler(p, 0) })
	_ = sim
}

func TestSFF_RouteToSFF_RoutingErrorOnOversizedPacket(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(10, false)
	p := testFlow(sim, 1, 1_000_000)
	p.TransmissionSize = 100
	assert.Panics(t, func() { sff0.routeToSFF(p, 1, 0) })
}

func TestSFF_RouteToSFF_BWGatedQueuesWhenNoCapacity(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1, true)
	p1 := testFlow(sim, 1, 1_000_000)
	p1.TransmissionSize = 1
	sff0.routeToSFF(p1, 1, 0)
	assert.Empty(t, sff0.outQueue[1], "first packet fits and reserves all remaining bandwidth")

	p2 := testFlow(sim, 1, 1_000_000)
	p2.TransmissionSize = 1
	sff0.routeToSFF(p2, 1, 1)
	assert.Len(t, sff0.outQueue[1], 1, "second packet has no bandwidth left and queues")
}

func TestSFF_FreeBWResourceToDest_DrainsQueueOnRelease(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1, true)
	p1 := testFlow(sim, 1, 1_000_000)
	p1.TransmissionSize = 1
	sff0.routeToSFF(p1, 1, 0)

	p2 := testFlow(sim, 1, 1_000_000)
	p2.TransmissionSize = 1
	sff0.routeToSFF(p2, 1, 1)
	require.Len(t, sff0.outQueue[1], 1)

	sff0.freeBWResourceToDest(1, 1, 2)
	assert.Empty(t, sff0.outQueue[1], "releasing bandwidth lets the queued packet onto the wire")
}

func TestSFF_InformScheduler_NonStrictRejectsOnSchedulingFailure(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	sff0.Scheduler = &panicScheduler{}
	sff0.Scheduler.AssignSFF(sff0)
	p := testFlow(sim, 0, 1_000_000)

	sff0.putPacketInQueue(p, 0)
	assert.Equal(t, "rejectSchedule", p.FinalState)
}

func TestSFF_InformScheduler_StrictPropagatesSchedulingFailure(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	sim.Props.Strict = true
	sff0.Scheduler = &panicScheduler{}
	sff0.Scheduler.AssignSFF(sff0)
	p := testFlow(sim, 0, 1_000_000)

	assert.Panics(t, func() { sff0.putPacketInQueue(p, 0) })
}

func TestSFF_RemoveFromQueueSingleQueue(t *testing.T) {
	sim, sff0, _ := newTwoSFFSim(1e9, false)
	p1 := testFlow(sim, 0, 1_000_000)
	p2 := testFlow(sim, 0, 1_000_000)
	sff0.PacketQueue = []*Packet{p1, p2}
	sff0.removeFromQueue(p1)
	assert.Equal(t, []*Packet{p2}, sff0.PacketQueue)
}
