package sim

// SFF is a Service Function Forwarder: it routes packets along their
// fullPath, hosts SFIs grouped by SF type across a set of servers, and
// drives one Scheduler that decides paths for packets with no path left to
// consume.
type SFF struct {
	ID        int
	sim       *Simulator
	Scheduler Scheduler
	Servers   []*Server

	SFIsPerType      map[int][]*SFI
	ServiceRatePerSF map[int]float64

	PacketQueue         []*Packet
	PacketQueuePerClass map[int][]*Packet

	outQueue map[int][]*Packet // destSFFID -> FIFO waiting on outbound bandwidth
}

// NewSFF creates an SFF with id and binds it to scheduler.
func NewSFF(id int, sim *Simulator, scheduler Scheduler) *SFF {
	sff := &SFF{
		ID:                  id,
		sim:                 sim,
		Scheduler:           scheduler,
		SFIsPerType:         make(map[int][]*SFI),
		ServiceRatePerSF:    make(map[int]float64),
		PacketQueuePerClass: make(map[int][]*Packet),
		outQueue:            make(map[int][]*Packet),
	}
	scheduler.AssignSFF(sff)
	return sff
}

// RegisterSFI attaches an SFI to this SFF, rejecting a second SFI of the
// same SF type on the same server (an unambiguous scheduling ambiguity the
// original treats as a configuration error).
func (sff *SFF) RegisterSFI(sfi *SFI) error {
	for _, existing := range sff.SFIsPerType[sfi.SFType] {
		if existing.Server == sfi.Server {
			return ConfigurationError{Msg: "two SFIs of the same SF type on the same server within one SFF"}
		}
	}
	sff.SFIsPerType[sfi.SFType] = append(sff.SFIsPerType[sfi.SFType], sfi)
	sff.ServiceRatePerSF[sfi.SFType] += sff.sim.ServiceRates.Get(sfi.SFType)
	return nil
}

// ensurePerClassQueue seeds an empty queue slot for class if this SFF's
// scheduler requires per-class queues.
func (sff *SFF) ensurePerClassQueue(class int) {
	if !sff.Scheduler.RequiresQueuesPerClass() {
		return
	}
	if _, ok := sff.PacketQueuePerClass[class]; !ok {
		sff.PacketQueuePerClass[class] = nil
	}
}

// ReceiveFromIngress handles a packet freshly injected by the workload
// generator at this SFF.
func (sff *SFF) ReceiveFromIngress(p *Packet, now int64) { sff.receive(p, now) }

// ReceiveFromOtherSFF handles a packet arriving over an inter-SFF link.
func (sff *SFF) ReceiveFromOtherSFF(p *Packet, now int64) { sff.receive(p, now) }

// ReceiveFromSFI handles a packet handed back by one of this SFF's SFIs
// after processing.
func (sff *SFF) ReceiveFromSFI(p *Packet, now int64) { sff.receive(p, now) }

// receive implements the common receive-path gate (spec §4.5): timeout
// check, lazy egress-path completion, consume-next-hop-or-terminate, and
// falling through to the scheduler queue when no path is left to consume
// and the chain isn't finished.
func (sff *SFF) receive(p *Packet, now int64) {
	if sff.sim.Props.Trace {
		p.VisitedHops = append(p.VisitedHops, sff.ID)
	}
	if now-p.TimeIngress > p.Flow.QosMaxDelay {
		p.tearDown(sff.sim, now, "timeout")
		return
	}
	if p.ProcessingDone && p.PathPosition >= len(p.FullPath) && sff.ID != p.Flow.DesiredEgressID {
		ids := sff.sim.Topology.FullPathIDs(sff.ID, p.Flow.DesiredEgressID)
		for _, id := range ids {
			p.FullPath = append(p.FullPath, PathHop{Kind: HopSFF, ID: id})
		}
	}
	if p.PathPosition < len(p.FullPath) {
		next := p.FullPath[p.PathPosition]
		p.PathPosition++
		sff.routeHop(p, next, now)
		return
	}
	if p.ProcessingDone {
		p.tearDown(sff.sim, now, "done")
		return
	}
	sff.putPacketInQueue(p, now)
}

func (sff *SFF) routeHop(p *Packet, next PathHop, now int64) {
	switch next.Kind {
	case HopSFF:
		sff.routeToSFF(p, next.ID, now)
	case HopSFI:
		sff.routeToSFI(p, sff.sim.sfiByID[next.ID], now)
	}
}

// HandlePacketFromScheduler routes a packet along the path a scheduler has
// just appended. The scheduler contract guarantees at least one hop is
// present; an empty path here is a scheduler bug.
func (sff *SFF) HandlePacketFromScheduler(p *Packet, now int64) {
	if p.PathPosition >= len(p.FullPath) {
		panic(SchedulingFailure{Msg: "scheduler produced an empty path"})
	}
	next := p.FullPath[p.PathPosition]
	p.PathPosition++
	sff.routeHop(p, next, now)
}

// routeToSFF sends p toward destSFFID, gating on link bandwidth when the
// topology is configured to consider link capacity.
func (sff *SFF) routeToSFF(p *Packet, destSFFID int, now int64) {
	size := float64(p.TransmissionSize)
	if sff.sim.Topology.bwCap.At(sff.ID, destSFFID) < size {
		panic(RoutingError{Msg: "packet larger than link capacity"})
	}
	if !sff.sim.Topology.ConsidersBW() {
		sff.putPacketOnWire(destSFFID, p, now)
		return
	}
	if len(sff.outQueue[destSFFID]) == 0 && sff.sim.Topology.reserveBW(sff.ID, destSFFID, size) {
		sff.putPacketOnWire(destSFFID, p, now)
		return
	}
	p.MarkTime(now, timerQueueNetwork)
	sff.outQueue[destSFFID] = append(sff.outQueue[destSFFID], p)
}

func (sff *SFF) putPacketOnWire(destSFFID int, p *Packet, now int64) {
	p.MarkTime(now, timerNetwork)
	delay := sff.sim.Topology.DelayOfConnection(sff.ID, destSFFID)
	sff.sim.Schedule(&NetworkDelayEvent{
		BaseEvent: sff.sim.nextBaseEvent(now + delay),
		SrcKind:   HopSFF, SrcID: sff.ID,
		DstKind: HopSFF, DstID: destSFFID,
		Packet: p,
	})
}

// freeBWResourceToDest releases bandwidth back to the sff->dest edge and, if
// the per-destination FIFO's head now fits, immediately puts it on the wire.
func (sff *SFF) freeBWResourceToDest(destSFFID int, size float64, now int64) {
	sff.sim.Topology.releaseBW(sff.ID, destSFFID, size)
	q := sff.outQueue[destSFFID]
	if len(q) == 0 {
		return
	}
	head := q[0]
	if sff.sim.Topology.reserveBW(sff.ID, destSFFID, float64(head.TransmissionSize)) {
		sff.outQueue[destSFFID] = q[1:]
		sff.putPacketOnWire(destSFFID, head, now)
	}
}

// routeToSFI schedules a network delay for the hop from this SFF to sfi.
func (sff *SFF) routeToSFI(p *Packet, sfi *SFI, now int64) {
	p.MarkTime(now, timerNetwork)
	delay := sff.sim.Props.SFIHopLatency.Next()
	sff.sim.Schedule(&NetworkDelayEvent{
		BaseEvent: sff.sim.nextBaseEvent(now + int64(delay)),
		SrcKind:   HopSFF, SrcID: sff.ID,
		DstKind: HopSFI, DstID: sfi.ID,
		Packet: p,
	})
}

// putPacketInQueue enqueues p into the scheduler's queue (per-class if
// required, else the single queue), marks the queue-scheduling timer, and
// notifies the scheduler. A SchedulingFailure raised by the scheduler
// rejects the packet unless strict mode is set, in which case it propagates.
func (sff *SFF) putPacketInQueue(p *Packet, now int64) {
	class := p.Class()
	if sff.Scheduler.RequiresQueuesPerClass() {
		sff.PacketQueuePerClass[class] = append(sff.PacketQueuePerClass[class], p)
	} else {
		sff.PacketQueue = append(sff.PacketQueue, p)
	}
	p.MarkTime(now, timerQueueScheduling)
	sff.informSchedulerAboutPacket(p, now)
}

func (sff *SFF) informSchedulerAboutPacket(p *Packet, now int64) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(SchedulingFailure); ok && !sff.sim.Props.Strict {
				p.tearDown(sff.sim, now, "rejectSchedule")
				return
			}
			panic(r)
		}
	}()
	sff.Scheduler.HandlePacketArrival(p, now)
}

// sfiFinishesProcessingOfPacket forwards the notification to this SFF's
// scheduler (used by MPP's underway accounting).
func (sff *SFF) sfiFinishesProcessingOfPacket(sfi *SFI, p *Packet) {
	sff.Scheduler.NotifySFIFinishedProcessingOfPacket(sfi, p)
}

// popClassQueueHead pops and returns the head packet of the per-class queue
// for class, or nil if empty.
func (sff *SFF) popClassQueueHead(class int) *Packet {
	q := sff.PacketQueuePerClass[class]
	if len(q) == 0 {
		return nil
	}
	sff.PacketQueuePerClass[class] = q[1:]
	return q[0]
}

// popQueueHead pops and returns the head of the single (non-per-class) queue.
func (sff *SFF) popQueueHead() *Packet {
	if len(sff.PacketQueue) == 0 {
		return nil
	}
	head := sff.PacketQueue[0]
	sff.PacketQueue = sff.PacketQueue[1:]
	return head
}

// removeFromQueue removes p from whichever queue it is sitting in
// (per-class or single), used by ACP/scheduler logic that must pull a
// specific packet rather than always the head.
func (sff *SFF) removeFromQueue(p *Packet) {
	if sff.Scheduler.RequiresQueuesPerClass() {
		q := sff.PacketQueuePerClass[p.Class()]
		sff.PacketQueuePerClass[p.Class()] = removePacket(q, p)
		return
	}
	sff.PacketQueue = removePacket(sff.PacketQueue, p)
}

func removePacket(q []*Packet, target *Packet) []*Packet {
	for i, p := range q {
		if p == target {
			return append(q[:i], q[i+1:]...)
		}
	}
	return q
}
