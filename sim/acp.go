package sim

// DefaultACPVisitThreshold bounds how many times a packet may be bounced
// between schedulers (each forward counts as one visit) before it is
// declared undeliverable and dropped as a timeout, preventing an unlucky
// sequence of forwards from looping forever.
const DefaultACPVisitThreshold = 50

// ACP is the admission-control/forwarding overlay consulted by every
// scheduler's arrival pipeline before its own scheduling logic runs.
type ACP struct {
	ThetaLow, ThetaHigh float64
	VisitThreshold      int
	sim                 *Simulator
	arrivalRate         map[int]rateUpdatable // sf type -> estimator exposing Rate()
}

// NewACP creates an ACP bound to sim with the given admission thresholds.
func NewACP(sim *Simulator, thetaLow, thetaHigh float64) *ACP {
	return &ACP{
		ThetaLow: thetaLow, ThetaHigh: thetaHigh,
		VisitThreshold: DefaultACPVisitThreshold,
		sim:            sim,
		arrivalRate:    make(map[int]rateUpdatable),
	}
}

// rateEstimate is the subset of EWMA/DRE needed to compute load.
type rateEstimate interface {
	Rate() float64
}

// SetEstimator registers the estimator ACP consults for sfType's arrival
// rate (the same estimator instance the scheduler feeds on arrival).
func (a *ACP) SetEstimator(sfType int, est interface {
	rateUpdatable
	rateEstimate
}) {
	a.arrivalRate[sfType] = est
}

// ShouldForward decides, for a packet whose next hop needs sfType, whether
// this SFF should forward it elsewhere instead of scheduling it locally.
func (a *ACP) ShouldForward(sff *SFF, sfType int, now int64) bool {
	if len(sff.SFIsPerType[sfType]) == 0 {
		return true
	}
	est, ok := a.arrivalRate[sfType].(rateEstimate)
	if !ok {
		return false
	}
	local := sff.ServiceRatePerSF[sfType]
	if local <= 0 {
		return true
	}
	load := est.Rate() / local
	switch {
	case load <= a.ThetaLow:
		return false
	case load >= a.ThetaHigh:
		return true
	default:
		p := (load - a.ThetaLow) / (a.ThetaHigh - a.ThetaLow)
		return a.sim.Streams.Sim().Float64() < p
	}
}

// Forward removes p from sff's queue, picks a remote SFF via cum-weight
// sampling over static SFF service rates for the packet's next SF type
// (excluding sff itself), appends the APSP path, and re-dispatches via
// HandlePacketFromScheduler. Packets bounced more than VisitThreshold times
// are dropped as timeouts instead.
func (a *ACP) Forward(sff *SFF, p *Packet, now int64) {
	p.SeenByScheduler++
	if p.SeenByScheduler > a.VisitThreshold {
		sff.removeFromQueue(p)
		p.tearDown(a.sim, now, "timeout")
		return
	}
	cls := a.sim.SFC.Class(p.Class())
	filtered := a.sim.sffRatesPerSFExcluding(cls.SFType, sff.ID)
	if len(filtered) == 0 {
		sff.removeFromQueue(p)
		p.tearDown(a.sim, now, "rejectSchedule")
		return
	}
	remote := sampleCumWeight(filtered, a.sim.Streams.Sim().Float64())
	sff.removeFromQueue(p)
	for _, id := range a.sim.Topology.FullPathIDs(sff.ID, remote) {
		p.FullPath = append(p.FullPath, PathHop{Kind: HopSFF, ID: id})
	}
	p.MarkTime(now, timerNone)
	sff.HandlePacketFromScheduler(p, now)
}
