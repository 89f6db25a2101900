package sim

import (
	"math"
	"math/rand"
	"sort"
)

// pendingFlow is a fully-determined flow waiting to have its packets
// expanded: everything the Markov arrival process decided up front.
type pendingFlow struct {
	chain     []int
	classIdx  int
	deadline  int64
	egress    int
	ingress   int
	startTime int64
	size      int
}

// WorkloadGenerator produces IngressEvents lazily from a precomputed,
// start-time-sorted set of flows, expanding one flow's packets at a time.
// Grounded in original_source/sfctss/workload.py's SyntheticWorkloadGenerator:
// a two-state Markov process decides flow inter-arrival bursts per ingress
// SFF, and each flow's packets arrive at independent Poisson offsets from
// the flow's start time (not a cumulative walk — this is a quirk of the
// original worth preserving rather than "fixing").
type WorkloadGenerator struct {
	sim *Simulator
	rng *rand.Rand
	cfg *WorkloadConfig

	deadlines []int64
	flows     []*pendingFlow
	flowIdx   int

	curFlow       *Flow
	curOffsets    []int64
	curCursor     int
	demandPackets map[int]int64 // sf type -> total packets expected to need it
}

// NewWorkloadGenerator creates a generator bound to sim's workload RNG
// stream and cfg.
func NewWorkloadGenerator(sim *Simulator, cfg *WorkloadConfig) *WorkloadGenerator {
	return &WorkloadGenerator{
		sim:           sim,
		rng:           sim.Streams.Workload(),
		cfg:           cfg,
		demandPackets: make(map[int]int64),
		curCursor:     -1,
	}
}

// PrepareBeforeSimulationStarts runs the full two-state Markov arrival
// process across every SFF acting as ingress, then sorts the resulting
// flows by start time. Must run before Simulator.Run.
func (w *WorkloadGenerator) PrepareBeforeSimulationStarts() {
	w.deadlines = w.cfg.EffectiveDeadlines()

	flowArrivalL := w.cfg.Lambda * w.cfg.FlowArrivalL
	flowArrivalH := w.cfg.Lambda * w.cfg.FlowArrivalH
	stayInL := w.cfg.ProbabilityStayInL * w.cfg.ProbabilityFactor
	stayInH := w.cfg.ProbabilityStayInH * w.cfg.ProbabilityFactor

	ingressIDs := make([]int, 0, len(w.sim.sffByID))
	for id := range w.sim.sffByID {
		ingressIDs = append(ingressIDs, id)
	}
	sort.Ints(ingressIDs)

	high := false
	for _, ingress := range ingressIDs {
		flowStart := int64(0)
		for flowStart < w.cfg.StartNewFlowsTill {
			if high {
				if w.rng.Float64() > stayInH {
					high = false
				}
			} else {
				if w.rng.Float64() > stayInL {
					high = true
				}
			}
			mean := flowArrivalL
			if high {
				mean = flowArrivalH
			}
			flowStart += int64(poissonSample(w.rng, mean))

			egress := ingressIDs[w.rng.Intn(len(ingressIDs))]
			classIdx := w.rng.Intn(len(w.cfg.TrafficClasses))

			w.flows = append(w.flows, &pendingFlow{
				chain:     w.cfg.TrafficClasses[classIdx],
				classIdx:  classIdx,
				deadline:  w.deadlines[classIdx],
				egress:    egress,
				ingress:   ingress,
				startTime: flowStart,
			})
		}
	}

	sort.SliceStable(w.flows, func(i, j int) bool { return w.flows[i].startTime < w.flows[j].startTime })

	sizes := make([]int, len(w.flows))
	for i := range sizes {
		sizes[i] = poissonSample(w.rng, w.cfg.PacketsPerFlow)
	}
	for i, f := range w.flows {
		f.size = sizes[len(sizes)-1-i]
	}
	for _, f := range w.flows {
		for _, sf := range f.chain {
			w.demandPackets[sf] += int64(f.size)
		}
	}
}

// Next returns the next IngressEvent, flow by flow in flow start-time order,
// or nil once every precomputed flow's packets have been expanded. The
// packets of one flow are not returned in time order, and packets of
// overlapping flows are not interleaved by time.
func (w *WorkloadGenerator) Next() *IngressEvent {
	for w.curCursor < 0 {
		if w.flowIdx >= len(w.flows) {
			return nil
		}
		w.beginFlow(w.flows[w.flowIdx])
		w.flowIdx++
	}
	offset := w.curOffsets[w.curCursor]
	w.curCursor--
	flow := w.curFlow
	if w.curCursor < 0 {
		w.curFlow = nil
	}
	return &IngressEvent{
		BaseEvent: BaseEvent{At: flow.StartTime + offset, ID: w.sim.nextEventID()},
		Flow:      flow,
	}
}

func (w *WorkloadGenerator) beginFlow(pf *pendingFlow) {
	base, err := w.sim.SFC.RegisterSFC(pf.chain, pf.deadline, pf.egress)
	if err != nil {
		panic(err)
	}
	w.curFlow = &Flow{
		ID:              w.sim.nextFlowID(),
		SFCChain:        pf.chain,
		QosMaxDelay:     pf.deadline,
		DesiredEgressID: pf.egress,
		IngressSFFID:    pf.ingress,
		StartTime:       pf.startTime,
		BaseClass:       base,
	}
	w.curOffsets = make([]int64, pf.size)
	for i := range w.curOffsets {
		w.curOffsets[i] = int64(poissonSample(w.rng, w.cfg.PacketInterArrivalExpected))
	}
	w.curCursor = pf.size - 1
	if pf.size == 0 {
		w.curFlow = nil
	}
}

// Exhausted reports whether every flow has been fully expanded.
func (w *WorkloadGenerator) Exhausted() bool {
	return w.curCursor < 0 && w.flowIdx >= len(w.flows)
}

// DemandPerSF returns, for each SF type, the total number of packets the
// generated workload is expected to route through it — useful for a
// dry-run summary of required service rate.
func (w *WorkloadGenerator) DemandPerSF() map[int]int64 {
	out := make(map[int]int64, len(w.demandPackets))
	for k, v := range w.demandPackets {
		out[k] = v
	}
	return out
}

// FlowDump is one precomputed flow's full arrival decision, as produced by
// the Markov/Poisson generation pass, for the CLI's --full-workload-dump
// sink.
type FlowDump struct {
	Ingress   int
	Egress    int
	ClassIdx  int
	Deadline  int64
	StartTime int64
	Size      int
}

// DumpFlows returns every flow PrepareBeforeSimulationStarts generated, in
// start-time order. Unlike Next, this doesn't consume the generator — it's
// a read-only snapshot for inspection before Run.
func (w *WorkloadGenerator) DumpFlows() []FlowDump {
	out := make([]FlowDump, len(w.flows))
	for i, f := range w.flows {
		out[i] = FlowDump{
			Ingress:   f.ingress,
			Egress:    f.egress,
			ClassIdx:  f.classIdx,
			Deadline:  f.deadline,
			StartTime: f.startTime,
			Size:      f.size,
		}
	}
	return out
}

// poissonSample draws one Poisson(mean)-distributed integer using Knuth's
// algorithm for small means and a normal approximation (rounded, floored at
// zero) for large ones, where Knuth's per-sample cost (O(mean)) would
// otherwise dominate workload generation time.
func poissonSample(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	if mean > 30 {
		v := mean + math.Sqrt(mean)*rng.NormFloat64()
		if v < 0 {
			v = 0
		}
		return int(math.Round(v))
	}
	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		k++
		p *= rng.Float64()
		if p <= l {
			return k - 1
		}
	}
}
