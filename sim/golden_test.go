package sim

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mblo/sfctss/sim/internal/testutil"
)

// injectFixedFlow directly schedules count IngressEvents for one flow,
// bypassing the probabilistic workload generator. Golden scenarios 1-4 need
// an exact packet count, which a Markov/Poisson process can't guarantee, so
// baseConfig leaves StartNewFlowsTill at 0 (no generated flows) and the
// scenario's deterministic flow is injected here instead.
func injectFixedFlow(t *testing.T, s *Simulator, wl *WorkloadConfig, classIdx, ingress, egress, count int, interval int64) {
	t.Helper()
	deadline := wl.EffectiveDeadlines()[classIdx]
	base, err := s.SFC.RegisterSFC(wl.TrafficClasses[classIdx], deadline, egress)
	require.NoError(t, err)
	flow := &Flow{
		ID:              s.nextFlowID(),
		SFCChain:        wl.TrafficClasses[classIdx],
		QosMaxDelay:     deadline,
		DesiredEgressID: egress,
		IngressSFFID:    ingress,
		BaseClass:       base,
	}
	for i := 0; i < count; i++ {
		s.Schedule(&IngressEvent{BaseEvent: BaseEvent{At: int64(i) * interval, ID: s.nextEventID()}, Flow: flow})
	}
}

// Scenario 1: single SFF, 2 SFIs of SF0, one 10-packet flow, Greedy
// local-incremental — every packet must succeed and both SFIs must be used.
func TestGolden_SingleSFFTwoSFIsAllSucceed(t *testing.T) {
	sc := testutil.ScenarioSingleSFFRoundRobinSFIs()
	s, err := BuildSimulator(sc.Config, sc.Seed)
	require.NoError(t, err)

	var delivered []*Packet
	s.AddTeardownHook(func(p *Packet, state string) { delivered = append(delivered, p) })
	injectFixedFlow(t, s, &sc.Config.Workload, 0, 0, 0, 10, 100)
	s.Run()

	require.Len(t, delivered, 10)
	assert.Equal(t, int64(10), s.Stats.Done)
	assert.Equal(t, int64(0), s.Stats.Reject)
	assert.Equal(t, int64(0), s.Stats.Timeout)

	sawSFI := map[int]bool{}
	for _, p := range delivered {
		assert.Equal(t, "done", p.FinalState)
		for _, hop := range p.FullPath {
			if hop.Kind == HopSFI {
				sawSFI[hop.ID] = true
			}
		}
	}
	assert.True(t, sawSFI[0] && sawSFI[1], "greedy incremental load-balances across both SFIs rather than pinning one")
}

// Scenario 2: two SFFs in separate sites, one SFI of SF0 on SFF0, a flow
// ingressing at SFF1, Greedy oracle non-incremental — the packet must bounce
// SFF1 -> SFF0 -> SFI -> SFF0 -> SFF1 and pay at least two inter-site hops.
func TestGolden_TwoSFFOracleRemoteBouncesAndPaysNetworkDelay(t *testing.T) {
	sc := testutil.ScenarioTwoSFFOracleRemote()
	sc.Config.Trace = true
	s, err := BuildSimulator(sc.Config, sc.Seed)
	require.NoError(t, err)

	var delivered []*Packet
	s.AddTeardownHook(func(p *Packet, state string) { delivered = append(delivered, p) })
	injectFixedFlow(t, s, &sc.Config.Workload, 0, 1, 1, 5, 100)
	s.Run()

	require.Len(t, delivered, 5)
	for _, p := range delivered {
		assert.Equal(t, "done", p.FinalState)
		assert.GreaterOrEqual(t, p.TimeNetwork, int64(2*1000), "must pay both inter-site legs of the SFF1->SFF0->SFF1 bounce")
		require.NotEmpty(t, p.VisitedHops)
		assert.Equal(t, 1, p.VisitedHops[0], "ingress at SFF1")
		assert.Equal(t, 1, p.VisitedHops[len(p.VisitedHops)-1], "egress back at SFF1")
		assert.Contains(t, p.VisitedHops, 0, "routed through SFF0 to reach the SFI")
	}
}

// Scenario 3: three SFFs mesh, Reject scheduler, 100 packets — everything
// rejected with zero delay.
func TestGolden_RejectAllZeroDelay(t *testing.T) {
	sc := testutil.ScenarioRejectAll()
	s, err := BuildSimulator(sc.Config, sc.Seed)
	require.NoError(t, err)

	var delivered []*Packet
	s.AddTeardownHook(func(p *Packet, state string) { delivered = append(delivered, p) })
	injectFixedFlow(t, s, &sc.Config.Workload, 0, 0, 0, 100, 10)
	s.Run()

	require.Len(t, delivered, 100)
	assert.Equal(t, int64(0), s.Stats.Done)
	assert.Equal(t, int64(100), s.Stats.Reject)
	assert.Equal(t, int64(0), s.Stats.Timeout)
	for _, p := range delivered {
		assert.Equal(t, "rejectSchedule", p.FinalState)
		assert.Equal(t, int64(0), p.Delay())
	}
}

// Scenario 4: single SFF, MPP scheduler, two classes ([0,1] and [0]) sharing
// a server — with equal queue lengths the smaller-deadline class must win
// the deadline-weighted tie-break.
func TestGolden_MPPDeadlineWeightingFavorsSmallerDeadline(t *testing.T) {
	sc := testutil.ScenarioMPPDeadlineWeighting()
	s, err := BuildSimulator(sc.Config, sc.Seed)
	require.NoError(t, err)

	deadlines := sc.Config.Workload.EffectiveDeadlines()
	require.Greater(t, deadlines[0], deadlines[1], "class 0 ([0,1]) sums two service times so its deadline is larger than class 1's ([0])")

	// RegisterSFC allocates class ids per distinct chain: chain [0,1] gets
	// base class 0 (classes 0,1), then chain [0] gets base class 2 (the
	// smaller-deadline, single-hop class).
	injectFixedFlow(t, s, &sc.Config.Workload, 0, 0, 0, 1, 0)
	injectFixedFlow(t, s, &sc.Config.Workload, 1, 0, 0, 1, 0)
	const largeDeadlineClass, smallDeadlineClass = 0, 2

	sff := s.sffByID[0]
	mpp, ok := sff.Scheduler.(*MPPScheduler)
	require.True(t, ok)

	// drain the two manually-injected IngressEvents (both at t=0, ahead of
	// the DoSchedulingEvent BuildSimulator already queued at t=0, by the
	// IngressEvent < DoSchedulingEvent tie-break priority) so both packets
	// sit in their class queues, each with length 1, before the batch pass.
	for {
		ev, ok := s.queue.Peek().(*IngressEvent)
		if !ok {
			break
		}
		heap.Pop(s.queue)
		ev.Execute(s)
	}
	require.Len(t, sff.PacketQueuePerClass[largeDeadlineClass], 1)
	require.Len(t, sff.PacketQueuePerClass[smallDeadlineClass], 1)

	mpp.TriggerSchedulingLogic(0)
	assert.Empty(t, sff.PacketQueuePerClass[smallDeadlineClass], "the smaller-deadline class must be dispatched ahead of the larger-deadline class under equal queue lengths")
}

// TestGolden_Determinism runs every golden scenario twice with the same
// seed and config and requires identical per-packet outcomes and aggregate
// counters, per spec's determinism invariant.
func TestGolden_Determinism(t *testing.T) {
	for _, sc := range testutil.AllScenarios() {
		sc := sc
		t.Run(sc.Name, func(t *testing.T) {
			run := func() (Stats, []string) {
				s, err := BuildSimulator(sc.Config, sc.Seed)
				require.NoError(t, err)
				var states []string
				s.AddTeardownHook(func(p *Packet, state string) { states = append(states, state) })
				s.Run()
				return s.Stats, states
			}
			stats1, states1 := run()
			stats2, states2 := run()
			assert.Equal(t, stats1, stats2)
			assert.Equal(t, states1, states2)
		})
	}
}
