package sim

// IngressEvent injects one flow's packet into the simulation at its ingress
// SFF. The packet starts with an empty fullPath and the chain's full class
// sequence still to visit, so the ingress SFF's receive gate falls straight
// through to the scheduler queue.
type IngressEvent struct {
	BaseEvent
	Flow *Flow
}

func (e *IngressEvent) Execute(sim *Simulator) {
	p := &Packet{
		ID:               sim.nextPacketID(),
		Flow:             e.Flow,
		TimeIngress:      e.At,
		ToBeVisited:      append([]int(nil), e.Flow.SFCChain...),
		TransmissionSize: sim.Props.PacketSize.Next(),
	}
	sim.recordPacketStarted(p)
	sim.sffByID[e.Flow.IngressSFFID].ReceiveFromIngress(p, e.At)
}

// NetworkDelayEvent fires once a packet's wire or SFI-hop transit time has
// elapsed, delivering it to the destination named by DstKind/DstID.
type NetworkDelayEvent struct {
	BaseEvent
	SrcKind, DstKind HopKind
	SrcID, DstID     int
	Packet           *Packet
}

func (e *NetworkDelayEvent) Execute(sim *Simulator) {
	now := e.At
	switch e.DstKind {
	case HopSFF:
		if e.SrcKind == HopSFF {
			sim.sffByID[e.SrcID].freeBWResourceToDest(e.DstID, float64(e.Packet.TransmissionSize), now)
			sim.sffByID[e.DstID].ReceiveFromOtherSFF(e.Packet, now)
			return
		}
		sim.sffByID[e.DstID].ReceiveFromSFI(e.Packet, now)
	case HopSFI:
		sim.sfiByID[e.DstID].EnqueuePacket(now, e.Packet)
	}
}

// SFIProcessEvent fires when an SFI's processing delay for one packet
// elapses.
type SFIProcessEvent struct {
	BaseEvent
	SFI    *SFI
	Packet *Packet
}

func (e *SFIProcessEvent) Execute(sim *Simulator) {
	e.SFI.FinishedProcessing(e.At, e.Packet)
}

// ServerCPUShareEvent periodically rebalances a dynamic-policy server's
// shares and reschedules itself; it carries no simulation-relevant
// information between firings, so interactive stepping is free to skip it.
type ServerCPUShareEvent struct {
	BaseEvent
	Server *Server
}

func (e *ServerCPUShareEvent) Execute(sim *Simulator) {
	e.Server.updateDynamicCPUWeights()
	sim.Schedule(&ServerCPUShareEvent{
		BaseEvent: BaseEvent{At: e.At + e.Server.DynamicInterval, ID: sim.nextEventID(), Ignoring: true},
		Server:    e.Server,
	})
}

// DoSchedulingEvent drives a scheduler's periodic batch pass (MPP's
// trigger-window logic; a no-op tick for schedulers that act purely on
// arrival).
type DoSchedulingEvent struct {
	BaseEvent
	SFF *SFF
}

func (e *DoSchedulingEvent) Execute(sim *Simulator) {
	period := e.SFF.Scheduler.TriggerSchedulingLogic(e.At)
	if period > 0 {
		sim.Schedule(&DoSchedulingEvent{
			BaseEvent: BaseEvent{At: e.At + period, ID: sim.nextEventID(), Ignoring: true},
			SFF:       e.SFF,
		})
	}
}

// rateEstimatorTicker is implemented by EWMA and DRE: both need a periodic
// tick to age out stale windows even absent fresh samples.
type rateEstimatorTicker interface {
	Tick(now int64)
	TickPeriod() int64
}

// RateEstimatorTickEvent drives one estimator's periodic tick and
// reschedules itself at the estimator's own period.
type RateEstimatorTickEvent struct {
	BaseEvent
	Estimator rateEstimatorTicker
}

func (e *RateEstimatorTickEvent) Execute(sim *Simulator) {
	e.Estimator.Tick(e.At)
	sim.Schedule(&RateEstimatorTickEvent{
		BaseEvent: BaseEvent{At: e.At + e.Estimator.TickPeriod(), ID: sim.nextEventID(), Ignoring: true},
		Estimator: e.Estimator,
	})
}

// StatsPollEvent fires Fn every Interval microseconds, feeding the CLI's
// --stats-poll-interval time-series sink. It carries no simulation-relevant
// state between firings, so interactive stepping is free to skip it.
type StatsPollEvent struct {
	BaseEvent
	Interval int64
	Fn       func(now int64)
}

func (e *StatsPollEvent) Execute(sim *Simulator) {
	e.Fn(e.At)
	if e.Interval > 0 {
		sim.Schedule(&StatsPollEvent{
			BaseEvent: BaseEvent{At: e.At + e.Interval, ID: sim.nextEventID(), Ignoring: true},
			Interval:  e.Interval,
			Fn:        e.Fn,
		})
	}
}

// eventTypeName classifies an Event for EventQueue tie-break priority.
func eventTypeName(e Event) string {
	switch e.(type) {
	case *IngressEvent:
		return "IngressEvent"
	case *NetworkDelayEvent:
		return "NetworkDelayEvent"
	case *SFIProcessEvent:
		return "SFIProcessEvent"
	case *DoSchedulingEvent:
		return "DoSchedulingEvent"
	case *ServerCPUShareEvent:
		return "ServerCPUShareEvent"
	case *RateEstimatorTickEvent:
		return "RateEstimatorTickEvent"
	case *StatsPollEvent:
		return "StatsPollEvent"
	default:
		return "unknown"
	}
}
