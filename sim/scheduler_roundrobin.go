package sim

// RoundRobinScheduler samples a target SFI for each required SF type using
// cum-weights over SFI expected processing rates, considering every SFF
// (including its own).
type RoundRobinScheduler struct {
	BaseScheduler
}

func (r *RoundRobinScheduler) AppliesRoundRobin() bool { return true }

func (r *RoundRobinScheduler) HandlePacketArrival(p *Packet, now int64) {
	r.handleArrival(p, now, r.ApplySchedulingLogic)
}

func (r *RoundRobinScheduler) ApplySchedulingLogic(p *Packet, now int64) {
	sim := r.sim
	pAtSFF := r.sff.ID
	var scheduledPath []PathHop

	for pos := p.SFCPosition; pos < len(p.Flow.SFCChain); pos++ {
		sfType := p.Flow.SFCChain[pos]
		sffID, ok := r.sampleSFF(sfType)
		if !ok {
			p.tearDown(sim, now, "rejectSchedule")
			return
		}
		sfiTable := sim.sffByID[sffID].sfiRatesPerSF(sfType)
		sfiID := sampleCumWeight(sfiTable, sim.Streams.Sim().Float64())

		if sffID != pAtSFF {
			if n := len(scheduledPath); n > 0 && scheduledPath[n-1].Kind == HopSFI {
				scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: pAtSFF})
			}
			for _, id := range sim.Topology.FullPathIDs(pAtSFF, sffID) {
				scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: id})
			}
		}
		scheduledPath = append(scheduledPath, PathHop{Kind: HopSFI, ID: sfiID})
		pAtSFF = sffID
	}

	for _, id := range sim.Topology.FullPathIDs(pAtSFF, p.Flow.DesiredEgressID) {
		scheduledPath = append(scheduledPath, PathHop{Kind: HopSFF, ID: id})
	}

	p.FullPath = append(p.FullPath, scheduledPath...)
	r.sff.HandlePacketFromScheduler(p, now)
}

func (r *RoundRobinScheduler) sampleSFF(sfType int) (int, bool) {
	table := r.sim.sffRatesPerSF(sfType)
	if len(table) == 0 {
		return 0, false
	}
	return sampleCumWeight(table, r.sim.Streams.Sim().Float64()), true
}
