package sim

import "fmt"

// HopKind distinguishes the two kinds of stops a packet's fullPath can name.
type HopKind int

const (
	HopSFF HopKind = iota
	HopSFI
)

// PathHop is one element of a packet's fullPath: a stop at an SFF (routing
// only) or at an SFI (processing). Packets hold a sequence of these rather
// than pointers, so the path survives independent of any particular SFF/SFI
// object graph.
type PathHop struct {
	Kind HopKind
	ID   int
}

// PacketClass describes one allocated SFC class: the SF type a packet in
// this class must visit next, whether this is the last SF in its chain, and
// the chain's QoS deadline. Classes are allocated contiguously per
// registered (chain, egress) pair and never mutated after allocation.
type PacketClass struct {
	SFType     int
	IsLastOfSFC bool
	Deadline   int64
	Egress     int // valid only when the registry uses per-egress classes
}

// SFCRegistry is the append-only, simulation-wide table mapping SFC class
// ids to PacketClass records. It replaces the Python original's class-level
// globals (Flow.Props.sfc_classes, sfc_class_to_sf, sfc_next_free_class,
// max_deadline) with plain fields owned by the Simulator.
type SFCRegistry struct {
	started               bool // blocks further registration once true; Simulator.Run does not set it, and the workload generator registers classes during Run
	individualPerEgress   bool
	classes               []PacketClass
	identifierToBaseClass map[string]int
	maxDeadline           int64

	// perClassQueueSFFs lists SFF ids whose scheduler requires per-class
	// queues; newly registered classes eagerly get an empty queue seeded on
	// each of these SFFs, mirroring register_sfc_for_packet_classes in the
	// original, which creates packet_queue_per_class entries on every SFF
	// needing them, not just the ingress SFF.
	perClassQueueSFFs []*SFF
}

// NewSFCRegistry creates an empty registry. individualPerEgress controls
// whether the identifier used for dedup/allocation includes the desired
// egress SFF id (config key individual_class_per_egress).
func NewSFCRegistry(individualPerEgress bool) *SFCRegistry {
	return &SFCRegistry{
		individualPerEgress:   individualPerEgress,
		identifierToBaseClass: make(map[string]int),
	}
}

// RegisterPerClassQueueSFF records an SFF that needs a queue slot seeded for
// every SFC class allocated from now on (and retroactively for classes
// already allocated).
func (r *SFCRegistry) RegisterPerClassQueueSFF(sff *SFF) {
	r.perClassQueueSFFs = append(r.perClassQueueSFFs, sff)
	for class := range r.classes {
		sff.ensurePerClassQueue(class)
	}
}

// Identifier computes the dedup key for a (chain, egress) pair.
func (r *SFCRegistry) Identifier(chain []int, egress int) string {
	if r.individualPerEgress {
		return fmt.Sprintf("%v@%d", chain, egress)
	}
	return fmt.Sprintf("%v", chain)
}

// RegisterSFC allocates (or reuses) the contiguous class range for chain,
// returning the base class id. deadline is the chain's effective QoS
// deadline; egress is only used to form the identifier when
// individualPerEgress is set.
func (r *SFCRegistry) RegisterSFC(chain []int, deadline int64, egress int) (int, error) {
	if r.started {
		return 0, ConfigurationError{Msg: "cannot register a new SFC after the simulation has started"}
	}
	id := r.Identifier(chain, egress)
	if base, ok := r.identifierToBaseClass[id]; ok {
		return base, nil
	}
	base := len(r.classes)
	for i, sf := range chain {
		r.classes = append(r.classes, PacketClass{
			SFType:      sf,
			IsLastOfSFC: i == len(chain)-1,
			Deadline:    deadline,
			Egress:      egress,
		})
	}
	r.identifierToBaseClass[id] = base
	if deadline > r.maxDeadline {
		r.maxDeadline = deadline
	}
	for _, sff := range r.perClassQueueSFFs {
		for c := base; c < len(r.classes); c++ {
			sff.ensurePerClassQueue(c)
		}
	}
	return base, nil
}

// Class returns the PacketClass record for a class id.
func (r *SFCRegistry) Class(class int) PacketClass { return r.classes[class] }

// MaxDeadline returns the largest deadline seen across all registered SFCs,
// used by MPP's alpha(q) = maxDeadline^2/deadline(q)^2 weighting.
func (r *SFCRegistry) MaxDeadline() int64 { return r.maxDeadline }

// NumClasses returns the number of allocated classes.
func (r *SFCRegistry) NumClasses() int { return len(r.classes) }

// Flow is one admitted traffic flow: an SFC chain injected at an ingress SFF
// toward a desired egress SFF, starting at a fixed virtual time.
type Flow struct {
	ID              int64
	SFCChain        []int
	QosMaxDelay     int64
	DesiredEgressID int
	IngressSFFID    int
	StartTime       int64
	BaseClass       int
}

// SchedulerFlags replaces the original's free-form scheduler_flags dict
// with a fixed struct of the one flag any scheduler in this module actually
// needs: whether MPP has reserved an "underway" slot for this packet.
type SchedulerFlags struct {
	MPPLocking bool
}

type timerBucket int

const (
	timerNone timerBucket = iota
	timerProcessing
	timerQueueProcessing
	timerNetwork
	timerQueueNetwork
	timerQueueScheduling
	timerRealScheduling
)

// Packet is one unit of traffic traversing its Flow's SFC chain.
type Packet struct {
	ID               int64
	Flow             *Flow
	TimeIngress      int64
	ToBeVisited      []int // remaining SF types, chain[sfcPosition:]
	SFCPosition      int
	FullPath         []PathHop
	PathPosition     int
	TransmissionSize int
	SeenByScheduler  int
	SchedulerFlags   SchedulerFlags
	ProcessingDone   bool
	FinalState       string // "", "done", "timeout", "rejectSchedule"
	VisitedHops      []int  // populated only when trace is enabled

	// cumulative timers, see timerBucket
	TimeProcessing        int64
	TimeQueueProcessing   int64
	TimeNetwork           int64
	TimeQueueNetwork      int64
	TimeQueueScheduling   int64
	RealTimeScheduling    int64
	activeBucket          timerBucket
	activeMarkStart       int64

	dropCallback func(p *Packet)
}

// Class returns the packet's current SFC class.
func (p *Packet) Class() int { return p.Flow.BaseClass + p.SFCPosition }

// MarkTime closes whichever timer bucket is currently active (crediting it
// with the elapsed delta) and opens bucket as the new active one. Calling it
// with timerNone simply closes the active bucket without opening a new one.
func (p *Packet) MarkTime(now int64, bucket timerBucket) {
	p.closeActive(now)
	p.activeBucket = bucket
	p.activeMarkStart = now
}

func (p *Packet) closeActive(now int64) {
	if p.activeBucket == timerNone {
		return
	}
	delta := now - p.activeMarkStart
	switch p.activeBucket {
	case timerProcessing:
		p.TimeProcessing += delta
	case timerQueueProcessing:
		p.TimeQueueProcessing += delta
	case timerNetwork:
		p.TimeNetwork += delta
	case timerQueueNetwork:
		p.TimeQueueNetwork += delta
	case timerQueueScheduling:
		p.TimeQueueScheduling += delta
	case timerRealScheduling:
		p.RealTimeScheduling += delta
	}
	p.activeBucket = timerNone
}

// Delay returns the total accounted delay. Per §8, this excludes
// RealTimeScheduling, which is scheduling-pass wall time bookkeeping, not a
// component of the packet's own end-to-end delay.
func (p *Packet) Delay() int64 {
	return p.TimeProcessing + p.TimeNetwork + p.TimeQueueScheduling + p.TimeQueueProcessing + p.TimeQueueNetwork
}

// SetDropCallback installs the callback MPP uses to release an "underway"
// reservation if this packet is dropped mid-flight after being dispatched.
func (p *Packet) SetDropCallback(cb func(p *Packet)) { p.dropCallback = cb }

// tearDown finalizes the packet in the given terminal state, firing the
// drop callback (if any and if the packet didn't reach "done") exactly once
// and running every teardown hook registered with the owning Simulator.
func (p *Packet) tearDown(sim *Simulator, now int64, state string) {
	if p.FinalState != "" {
		return // already torn down
	}
	p.closeActive(now)
	p.FinalState = state
	if state != "done" && p.dropCallback != nil {
		p.dropCallback(p)
		p.dropCallback = nil
	}
	for _, hook := range sim.teardownHooks {
		hook(p, state)
	}
}
