package sim

import "sort"

// DefaultMPPTriggerPeriod is the default periodic batch-scheduling interval
// for MPPScheduler, in microseconds.
const DefaultMPPTriggerPeriod int64 = 10_000

// mppActivity is one (sourceSFF, class, targetSFI) triple the max-weight
// scheduler can choose to serve.
type mppActivity struct {
	sourceSFFID, class, targetSFIID int
}

// MPPScheduler is the max-weight scheduler described in spec §4.6.3. It
// requires one-at-a-time CPU policy and per-class queues, and acts entirely
// through its periodic TriggerSchedulingLogic pass rather than on arrival.
type MPPScheduler struct {
	BaseScheduler
	Oracle            bool
	DeadlineWeighting bool
	AllowUnderway     int
	BatchScheduling   int
	Period            int64

	rateBuilt bool
	rate      map[mppActivity]float64
	underway  map[int]int // server id -> packets currently underway
}

func (m *MPPScheduler) RequiresQueuesPerClass() bool { return true }
func (m *MPPScheduler) SupportsCPUPolicy(p CPUPolicy) bool { return p == PolicyOneAtATime }

func (m *MPPScheduler) HandlePacketArrival(p *Packet, now int64) {
	m.handleArrival(p, now, func(*Packet, int64) {})
}

func (m *MPPScheduler) period() int64 {
	if m.Period > 0 {
		return m.Period
	}
	return DefaultMPPTriggerPeriod
}

// candidateServers returns every server this scheduler is allowed to
// consider: all servers globally in oracle mode, else just this SFF's own.
func (m *MPPScheduler) candidateServers() []*Server {
	if !m.Oracle {
		return m.sff.Servers
	}
	ids := make([]int, 0, len(m.sim.sffByID))
	for id := range m.sim.sffByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var all []*Server
	for _, id := range ids {
		all = append(all, m.sim.sffByID[id].Servers...)
	}
	return all
}

// candidateSourceSFFs returns the SFFs whose queues may be served: all SFFs
// globally in oracle mode, else just this scheduler's own.
func (m *MPPScheduler) candidateSourceSFFs() []*SFF {
	if !m.Oracle {
		return []*SFF{m.sff}
	}
	ids := make([]int, 0, len(m.sim.sffByID))
	for id := range m.sim.sffByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var all []*SFF
	for _, id := range ids {
		all = append(all, m.sim.sffByID[id])
	}
	return all
}

// buildRateTable computes the static per-activity rate matrix R, done once
// lazily on the first trigger (classes/SFIs are fixed after the simulation
// starts).
func (m *MPPScheduler) buildRateTable() {
	m.rate = make(map[mppActivity]float64)
	m.underway = make(map[int]int)
	maxDeadline := m.sim.SFC.MaxDeadline()
	for class := 0; class < m.sim.SFC.NumClasses(); class++ {
		cls := m.sim.SFC.Class(class)
		alpha := 1.0
		if m.DeadlineWeighting && cls.Deadline > 0 {
			alpha = float64(maxDeadline*maxDeadline) / float64(cls.Deadline*cls.Deadline)
			if alpha < 1 {
				alpha = 1
			}
		}
		for _, sourceSFF := range m.candidateSourceSFFs() {
			for _, targetSFF := range m.candidateSourceSFFs() {
				if !m.Oracle && targetSFF.ID != sourceSFF.ID {
					continue
				}
				for _, sfi := range targetSFF.SFIsPerType[cls.SFType] {
					delay := sfi.ExpectedProcessingTime()
					if targetSFF.ID != sourceSFF.ID {
						delay += m.sim.Topology.MultiHopLatency(sourceSFF.ID, targetSFF.ID)
					}
					if delay <= 0 {
						continue
					}
					key := mppActivity{sourceSFFID: sourceSFF.ID, class: class, targetSFIID: sfi.ID}
					m.rate[key] = alpha * 1_000_000.0 / float64(delay)
				}
			}
		}
	}
	m.rateBuilt = true
}

// TriggerSchedulingLogic runs scheduling passes until no eligible activity
// remains, then returns the period to wait before the next pass.
func (m *MPPScheduler) TriggerSchedulingLogic(now int64) int64 {
	if !m.rateBuilt {
		m.buildRateTable()
	}
	for m.runOnePass(now) {
	}
	return m.period()
}

// activityRank orders activities the way the original's integer activity id
// does (sfiID most significant, then class, then sourceSFFID): used only to
// break a pValue/time-marker tie by "larger id wins".
func activityRank(a mppActivity) [3]int {
	return [3]int{a.targetSFIID, a.class, a.sourceSFFID}
}

// activityBeats reports whether candidate should replace incumbent under
// spec §4.6.3 step 3's tie-break: higher pValue; else older head-of-queue
// time marker (smaller activeMarkStart); else larger activity id.
func activityBeats(candPValue float64, candMarker int64, candAct mppActivity, incPValue float64, incMarker int64, incAct mppActivity) bool {
	if candPValue != incPValue {
		return candPValue > incPValue
	}
	if candMarker != incMarker {
		return candMarker < incMarker
	}
	cr, ir := activityRank(candAct), activityRank(incAct)
	return cr[0] > ir[0] || (cr[0] == ir[0] && (cr[1] > ir[1] || (cr[1] == ir[1] && cr[2] > ir[2])))
}

// runOnePass selects, for each candidate server, the best-weighted activity
// it could serve (tie-broken per spec §4.6.3 step 3), then dispatches the
// activity with the greatest pValue across all servers (step 4). Returns
// whether it found one (the caller loops until it doesn't).
func (m *MPPScheduler) runOnePass(now int64) bool {
	type pick struct {
		act       mppActivity
		pValue    float64
		marker    int64
		server    *Server
		sfi       *SFI
		sourceSFF *SFF
	}

	// dropTimedOut mutates queues regardless of which server ends up being
	// considered, so run it once per (sourceSFF, class) up front.
	for _, sourceSFF := range m.candidateSourceSFFs() {
		classes := make([]int, 0, len(sourceSFF.PacketQueuePerClass))
		for class := range sourceSFF.PacketQueuePerClass {
			classes = append(classes, class)
		}
		sort.Ints(classes)
		for _, class := range classes {
			m.dropTimedOut(sourceSFF, class, now)
		}
	}

	var best *pick
	for _, s := range m.candidateServers() {
		if m.AllowUnderway-m.underway[s.ID] < m.BatchScheduling {
			continue
		}
		var serverBest *pick
		for _, sourceSFF := range m.candidateSourceSFFs() {
			classes := make([]int, 0, len(sourceSFF.PacketQueuePerClass))
			for class := range sourceSFF.PacketQueuePerClass {
				classes = append(classes, class)
			}
			sort.Ints(classes)
			for _, class := range classes {
				queue := sourceSFF.PacketQueuePerClass[class]
				if len(queue) == 0 {
					continue
				}
				cls := m.sim.SFC.Class(class)
				for _, sfi := range s.SFIs {
					if sfi.SFType != cls.SFType {
						continue
					}
					if !m.Oracle && sfi.SFFID != sourceSFF.ID {
						continue
					}
					key := mppActivity{sourceSFFID: sourceSFF.ID, class: class, targetSFIID: sfi.ID}
					rate, ok := m.rate[key]
					if !ok {
						continue
					}
					pValue := rate * float64(len(queue)-m.underway[s.ID])
					if !cls.IsLastOfSFC {
						nextQueue := m.sim.sffByID[sfi.SFFID].PacketQueuePerClass[class+1]
						pValue -= rate * float64(len(nextQueue))
					}
					marker := queue[0].activeMarkStart
					if serverBest == nil || activityBeats(pValue, marker, key, serverBest.pValue, serverBest.marker, serverBest.act) {
						serverBest = &pick{act: key, pValue: pValue, marker: marker, server: s, sfi: sfi, sourceSFF: sourceSFF}
					}
				}
			}
		}
		if serverBest == nil {
			continue
		}
		if best == nil || serverBest.pValue > best.pValue {
			best = serverBest
		}
	}
	if best == nil {
		return false
	}

	queue := best.sourceSFF.PacketQueuePerClass[best.act.class]
	n := m.BatchScheduling
	allowed := m.AllowUnderway - m.underway[best.server.ID]
	if allowed < n {
		n = allowed
	}
	if n > len(queue) {
		n = len(queue)
	}
	dispatched := false
	for i := 0; i < n; i++ {
		if len(queue) == 0 {
			break
		}
		p := queue[0]
		queue = queue[1:]
		targetSFF := m.sim.sffByID[best.sfi.SFFID]
		remaining := m.sim.Topology.MultiHopLatency(best.sourceSFF.ID, targetSFF.ID) +
			m.sim.Topology.MultiHopLatency(targetSFF.ID, p.Flow.DesiredEgressID)
		if p.Flow.QosMaxDelay < now-p.TimeIngress+remaining {
			p.tearDown(m.sim, now, "timeout")
			continue
		}
		m.underway[best.server.ID]++
		p.SchedulerFlags.MPPLocking = true
		sfi := best.sfi
		p.SetDropCallback(func(dropped *Packet) {
			m.underway[sfi.Server.ID]--
		})
		if targetSFF.ID != best.sourceSFF.ID {
			for _, id := range m.sim.Topology.FullPathIDs(best.sourceSFF.ID, targetSFF.ID) {
				p.FullPath = append(p.FullPath, PathHop{Kind: HopSFF, ID: id})
			}
		}
		p.FullPath = append(p.FullPath, PathHop{Kind: HopSFI, ID: best.sfi.ID})
		best.sourceSFF.HandlePacketFromScheduler(p, now)
		dispatched = true
	}
	best.sourceSFF.PacketQueuePerClass[best.act.class] = queue
	return dispatched
}

// dropTimedOut removes head-of-queue packets of class that have already
// exceeded their QoS deadline.
func (m *MPPScheduler) dropTimedOut(sff *SFF, class int, now int64) {
	q := sff.PacketQueuePerClass[class]
	i := 0
	for i < len(q) {
		p := q[i]
		if now-p.TimeIngress > p.Flow.QosMaxDelay {
			p.tearDown(m.sim, now, "timeout")
			q = append(q[:i], q[i+1:]...)
			continue
		}
		i++
	}
	sff.PacketQueuePerClass[class] = q
}

// NotifySFIFinishedProcessingOfPacket decrements the underway counter for a
// packet that carried an MPP lock, and opportunistically schedules an
// immediate rescheduling pass now that capacity freed up.
func (m *MPPScheduler) NotifySFIFinishedProcessingOfPacket(sfi *SFI, p *Packet) {
	if !p.SchedulerFlags.MPPLocking {
		return
	}
	if m.underway[sfi.Server.ID] > 0 {
		m.underway[sfi.Server.ID]--
	}
	m.sim.Schedule(&DoSchedulingEvent{
		BaseEvent: BaseEvent{At: m.sim.Clock, ID: m.sim.nextEventID(), Ignoring: true},
		SFF:       m.sff,
	})
}
