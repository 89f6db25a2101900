package sim

import "sort"

// GreedyScheduler picks, for each remaining SF type in a packet's chain, the
// SFI minimizing expectedWaiting+expectedProcessing+connectionLatency. Oracle
// mode considers every SFF's SFIs; local mode only this SFF's own.
type GreedyScheduler struct {
	BaseScheduler
	Oracle      bool
	Incremental bool
}

func (g *GreedyScheduler) IsAlwaysAbleToBuildFullPath() bool { return !g.Oracle }

func (g *GreedyScheduler) HandlePacketArrival(p *Packet, now int64) {
	g.handleArrival(p, now, g.ApplySchedulingLogic)
}

type greedyCandidate struct {
	sfi   *SFI
	sffID int
	delay int64
}

func (g *GreedyScheduler) ApplySchedulingLogic(p *Packet, now int64) {
	sim := g.sim
	pAtSFF := g.sff.ID
	var scheduledPath []PathHop

	positions := make([]int, 0, len(p.Flow.SFCChain)-p.SFCPosition)
	if g.Incremental {
		positions = append(positions, p.SFCPosition)
	} else {
		for pos := p.SFCPosition; pos < len(p.Flow.SFCChain); pos++ {
			positions = append(positions, pos)
		}
	}

	for _, pos := range positions {
		sfType := p.Flow.SFCChain[pos]
		best, ok := g.pickBest(pAtSFF, sfType, now)
		if !ok {
			if g.Oracle {
				p.tearDown(sim, now, "rejectSchedule")
				return
			}
			panic(SchedulingFailure{Msg: "no SFI available for required SF type and ACP did not forward"})
		}
		if best.sffID != pAtSFF {
			if n := len(scheduledPath); n > 0 && scheduledPath[n-1].Kind == HopSFI {
				scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: pAtSFF})
			}
			for _, id := range sim.Topology.FullPathIDs(pAtSFF, best.sffID) {
				scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: id})
			}
		}
		scheduledPath = append(scheduledPath, PathHop{Kind: HopSFI, ID: best.sfi.ID})
		pAtSFF = best.sffID
		if g.Incremental {
			scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: pAtSFF})
		}
	}

	if !g.Incremental {
		if n := len(scheduledPath); n > 0 && scheduledPath[n-1].Kind == HopSFI && pAtSFF != p.Flow.DesiredEgressID {
			scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: pAtSFF})
		}
		for _, id := range sim.Topology.FullPathIDs(pAtSFF, p.Flow.DesiredEgressID) {
			scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: id})
		}
	}

	p.FullPath = append(p.FullPath, scheduledPath...)
	g.sff.HandlePacketFromScheduler(p, now)
}

// pickBest finds the minimum-delay SFI of sfType reachable from pAtSFF,
// pruning SFFs whose connection latency alone already equals or exceeds the
// current best delay, and tie-breaking toward SFIs colocated with pAtSFF.
func (g *GreedyScheduler) pickBest(pAtSFF, sfType int, now int64) (greedyCandidate, bool) {
	sffIDs := g.candidateSFFIDs()
	var best greedyCandidate
	found := false
	for _, sffID := range sffIDs {
		var latency int64
		if sffID != pAtSFF {
			latency = g.sim.Topology.MultiHopLatency(pAtSFF, sffID)
			if found && latency >= best.delay {
				continue
			}
		}
		for _, sfi := range g.sim.sffByID[sffID].SFIsPerType[sfType] {
			delay := sfi.ExpectedWaitingTime() + sfi.ExpectedProcessingTime() + latency
			if !found || delay < best.delay || (delay == best.delay && sffID == pAtSFF && best.sffID != pAtSFF) {
				best = greedyCandidate{sfi: sfi, sffID: sffID, delay: delay}
				found = true
			}
		}
	}
	return best, found
}

func (g *GreedyScheduler) candidateSFFIDs() []int {
	if !g.Oracle {
		return []int{g.sff.ID}
	}
	ids := make([]int, 0, len(g.sim.sffByID))
	for id := range g.sim.sffByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
