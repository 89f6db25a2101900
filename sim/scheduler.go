package sim

import "sort"

// Scheduler is the strategy an SFF delegates path-building decisions to.
// One Scheduler instance is bound to exactly one SFF via AssignSFF.
type Scheduler interface {
	AssignSFF(sff *SFF)
	RequiresQueuesPerClass() bool
	HandlePacketArrival(p *Packet, now int64)
	// TriggerSchedulingLogic runs one scheduling pass and returns the delay
	// until the next pass should fire, or 0 if this scheduler doesn't
	// self-reschedule (acts purely on arrival).
	TriggerSchedulingLogic(now int64) int64
	NotifySFIFinishedProcessingOfPacket(sfi *SFI, p *Packet)
	AppliesRoundRobin() bool
	IsAlwaysAbleToBuildFullPath() bool
	SupportsCPUPolicy(policy CPUPolicy) bool
	// ApplySchedulingLogic is the subclass-specific decision made after the
	// common arrival pipeline (ACP consult, rate estimator notify).
	ApplySchedulingLogic(p *Packet, now int64)
}

// cumWeight is one entry of a cumulative-weight sampling table.
type cumWeight struct {
	id  int
	cum float64
}

// sampleCumWeight draws an id from table using u in [0,1), where table's
// cum values are a non-decreasing prefix sum ending at the total weight.
func sampleCumWeight(table []cumWeight, u float64) int {
	if len(table) == 0 {
		return -1
	}
	target := u * table[len(table)-1].cum
	for _, e := range table {
		if target <= e.cum {
			return e.id
		}
	}
	return table[len(table)-1].id
}

// BaseScheduler implements the common arrival pipeline (ACP consult, rate
// estimator notification, SFF/SFI cum-weight precomputation) shared by every
// concrete scheduler. Concrete schedulers embed it and supply
// ApplySchedulingLogic plus whichever capability predicates differ from the
// zero-value defaults below.
type BaseScheduler struct {
	sff       *SFF
	sim       *Simulator
	acp       *ACP
	estimator map[int]rateUpdatable // sf type -> estimator fed on arrival
}

// rateUpdatable is the subset of EWMA/DRE's interface the arrival pipeline
// needs: record one arrival.
type rateUpdatable interface {
	Arrival(now int64)
}

func (b *BaseScheduler) AssignSFF(sff *SFF) {
	b.sff = sff
	b.sim = sff.sim
}

func (b *BaseScheduler) RequiresQueuesPerClass() bool  { return false }
func (b *BaseScheduler) TriggerSchedulingLogic(int64) int64 { return 0 }
func (b *BaseScheduler) NotifySFIFinishedProcessingOfPacket(*SFI, *Packet) {}
func (b *BaseScheduler) AppliesRoundRobin() bool             { return false }
func (b *BaseScheduler) IsAlwaysAbleToBuildFullPath() bool   { return false }
func (b *BaseScheduler) SupportsCPUPolicy(CPUPolicy) bool    { return true }

// SetACP installs the admission-control/forwarding overlay for this SFF's
// scheduler. Nil (the default) disables ACP entirely.
func (b *BaseScheduler) SetACP(acp *ACP) { b.acp = acp }

// SetEstimator registers the rate estimator fed on every arrival for sfType.
func (b *BaseScheduler) SetEstimator(sfType int, est rateUpdatable) {
	if b.estimator == nil {
		b.estimator = make(map[int]rateUpdatable)
	}
	b.estimator[sfType] = est
}

// handleArrival runs the shared (a)(b)(c) pipeline described in spec §4.6
// and must be called by every concrete scheduler's HandlePacketArrival.
func (b *BaseScheduler) handleArrival(p *Packet, now int64, apply func(p *Packet, now int64)) {
	cls := b.sim.SFC.Class(p.Class())
	if b.acp != nil && b.acp.ShouldForward(b.sff, cls.SFType, now) {
		b.acp.Forward(b.sff, p, now)
		return
	}
	if est, ok := b.estimator[cls.SFType]; ok {
		est.Arrival(now)
	}
	apply(p, now)
}

// sffRatesPerSF builds the cumulative-weight table over sorted SFF ids of
// the total SFI expected processing rate those SFFs offer for sfType,
// excluding any SFF with zero rate (no SFI of that type) and, when given,
// the excludeID SFF.
func (sim *Simulator) sffRatesPerSF(sfType int) []cumWeight {
	return sim.sffRatesPerSFExcluding(sfType, -1)
}

func (sim *Simulator) sffRatesPerSFExcluding(sfType, excludeID int) []cumWeight {
	ids := make([]int, 0, len(sim.sffByID))
	for id := range sim.sffByID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var table []cumWeight
	cum := 0.0
	for _, id := range ids {
		if id == excludeID {
			continue
		}
		rate := sim.sffByID[id].ServiceRatePerSF[sfType]
		if rate <= 0 {
			continue
		}
		cum += rate
		table = append(table, cumWeight{id: id, cum: cum})
	}
	return table
}

// sfiRatesPerSF builds the cumulative-weight table over sorted SFI ids
// within one SFF offering sfType, weighted by each SFI's expected
// processing rate (1/expectedProcessingTime).
func (sff *SFF) sfiRatesPerSF(sfType int) []cumWeight {
	sfis := append([]*SFI(nil), sff.SFIsPerType[sfType]...)
	sort.Slice(sfis, func(i, j int) bool { return sfis[i].ID < sfis[j].ID })
	var table []cumWeight
	cum := 0.0
	for _, sf := range sfis {
		t := sf.ExpectedProcessingTime()
		if t <= 0 {
			continue
		}
		cum += 1.0 / float64(t)
		table = append(table, cumWeight{id: sf.ID, cum: cum})
	}
	return table
}

// NewScheduler constructs a scheduler by name: "greedy-oracle",
// "greedy-local", "round-robin", "mpp", or "reject".
func NewScheduler(name string) Scheduler {
	switch name {
	case "greedy-oracle":
		return &GreedyScheduler{Oracle: true}
	case "greedy-local":
		return &GreedyScheduler{Oracle: false}
	case "round-robin":
		return &RoundRobinScheduler{}
	case "mpp":
		return &MPPScheduler{AllowUnderway: 1, BatchScheduling: 1}
	case "reject":
		return &RejectScheduler{}
	default:
		panic(ConfigurationError{Msg: "unknown scheduler " + name})
	}
}
