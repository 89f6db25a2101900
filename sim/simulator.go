// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// replenishWindow and replenishSlice* implement the lazy workload
// replenishment rule from spec §4.1: once the furthest already-scheduled
// relevant event is within replenishWindow of the last popped time, pull
// another slice sized at whichever is larger of replenishSliceCount packets
// or a horizon advance of replenishSliceWindow microseconds.
const (
	replenishWindow      int64 = 500_000
	replenishSliceCount        = 800_000
	replenishSliceWindow int64 = 800_000
)

// SchedulerProps groups scheduler-wide knobs that don't belong to any one
// scheduler implementation.
type SchedulerProps struct {
	DropAfterAttempts int
}

// Props holds every simulator-wide configuration value that used to be
// process-global state in the original (Flow.Props, SFI.Props, ...),
// re-architected per spec §9 into fields the Simulator owns.
type Props struct {
	Trace         bool
	Strict        bool
	SFIHopLatency *LatencyDistribution
	PacketSize    *LatencyDistribution
	Scheduler     SchedulerProps
}

// Stats accumulates the aggregate run statistics described in SPEC_FULL's
// supplemented-features section, fed by the teardown hook except for
// Injected, which IngressEvent counts as each packet enters.
type Stats struct {
	Injected int64
	Done     int64
	Timeout  int64
	Reject   int64

	statsRatiosQos float64 // sum of delay/qosMaxDelay over every "done" packet
}

func (s *Stats) record(p *Packet) {
	switch p.FinalState {
	case "done":
		s.Done++
		s.statsRatiosQos += float64(p.Delay()) / float64(p.Flow.QosMaxDelay)
	case "timeout":
		s.Timeout++
	case "rejectSchedule":
		s.Reject++
	}
}

// Total returns every packet that reached a terminal state.
func (s *Stats) Total() int64 { return s.Done + s.Timeout + s.Reject }

// SuccessRate is Done/Total.
func (s *Stats) SuccessRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total())
}

// RejectRate is (Timeout+Reject)/Total.
func (s *Stats) RejectRate() float64 {
	if s.Total() == 0 {
		return 0
	}
	return float64(s.Timeout+s.Reject) / float64(s.Total())
}

// ServiceQuality is 1 minus the mean of delay/qosMaxDelay over every
// successfully delivered packet: a unitless [0,1] score where 1 means every
// packet finished instantly relative to its deadline and 0 means every
// packet finished exactly at its deadline.
func (s *Stats) ServiceQuality() float64 {
	if s.Done == 0 {
		return 0
	}
	return 1 - s.statsRatiosQos/float64(s.Done)
}

// Simulator owns every piece of shared state the original scattered across
// process-global class attributes: RNG streams, the SFC class registry, the
// service-rate table, the topology, every SFF/SFI/Server, and the event
// queue driving virtual time forward.
type Simulator struct {
	Clock   int64
	Horizon int64

	Streams      *Streams
	SFC          *SFCRegistry
	ServiceRates *ServiceRateTable
	Topology     *Topology
	Props        Props
	Stats        Stats

	sffByID map[int]*SFF
	sfiByID map[int]*SFI
	servers []*Server

	queue            *EventQueue
	nextEvtID        int64
	nextPktID        int64
	nextFlwID        int64
	lastPoppedTime   int64
	lastRelevantTime int64
	ignoreAllFuture  bool

	workload *WorkloadGenerator

	teardownHooks        []func(*Packet, string)
	workloadOverHooks    []func(*Simulator)
	simulationDoneHooks  []func(*Simulator)
	simulationStartHooks []func(*Simulator)
}

// NewSimulator creates an empty Simulator seeded from key, running until
// horizon microseconds of virtual time.
func NewSimulator(key SimulationKey, horizon int64) *Simulator {
	sim := &Simulator{
		Clock:   0,
		Horizon: horizon,
		Streams: NewStreams(key),
		sffByID: make(map[int]*SFF),
		sfiByID: make(map[int]*SFI),
	}
	sim.queue = NewEventQueue(eventTypeName)
	return sim
}

func (sim *Simulator) nextEventID() int64  { sim.nextEvtID++; return sim.nextEvtID }
func (sim *Simulator) nextPacketID() int64 { sim.nextPktID++; return sim.nextPktID }
func (sim *Simulator) nextFlowID() int64   { sim.nextFlwID++; return sim.nextFlwID }

func (sim *Simulator) nextBaseEvent(at int64) BaseEvent {
	return BaseEvent{At: at, ID: sim.nextEventID()}
}

func (sim *Simulator) recordPacketStarted(p *Packet) { sim.Stats.Injected++ }

// Schedule enqueues ev, silently dropping it if the engine has been told to
// ignore all future schedule attempts (set once Run's horizon is exceeded).
func (sim *Simulator) Schedule(ev Event) {
	if sim.ignoreAllFuture {
		return
	}
	heap.Push(sim.queue, ev)
	if !ev.IgnoreWhenFinished() && ev.Timestamp() > sim.lastRelevantTime {
		sim.lastRelevantTime = ev.Timestamp()
	}
}

// AddTeardownHook registers a function invoked exactly once per packet,
// when it reaches a terminal state.
func (sim *Simulator) AddTeardownHook(hook func(*Packet, string)) {
	sim.teardownHooks = append(sim.teardownHooks, hook)
}

// AddSimulationStartHook / AddSimulationDoneHook / AddWorkloadOverHook
// register lifecycle callbacks, replacing the original's classmethod
// registries (see spec §9).
func (sim *Simulator) AddSimulationStartHook(hook func(*Simulator)) {
	sim.simulationStartHooks = append(sim.simulationStartHooks, hook)
}
func (sim *Simulator) AddSimulationDoneHook(hook func(*Simulator)) {
	sim.simulationDoneHooks = append(sim.simulationDoneHooks, hook)
}
func (sim *Simulator) AddWorkloadOverHook(hook func(*Simulator)) {
	sim.workloadOverHooks = append(sim.workloadOverHooks, hook)
}

// SetWorkload attaches the workload generator that lazily supplies
// IngressEvents as the event horizon runs low.
func (sim *Simulator) SetWorkload(w *WorkloadGenerator) { sim.workload = w }

// Run drains the event queue in nondecreasing-time order until both the
// queue is empty and the workload generator is exhausted, or until the
// horizon is exceeded.
func (sim *Simulator) Run() {
	for _, hook := range sim.simulationStartHooks {
		hook(sim)
	}
	sim.maybeReplenish()

	for {
		next := sim.queue.Peek()
		if next == nil {
			if sim.maybeReplenish() {
				continue
			}
			break
		}
		if next.Timestamp() > sim.Horizon {
			sim.ignoreAllFuture = true
			break
		}
		ev := heap.Pop(sim.queue).(Event)
		if ev.Timestamp() < sim.Clock {
			panic(fmt.Sprintf("event engine time went backwards: %d < %d", ev.Timestamp(), sim.Clock))
		}
		sim.Clock = ev.Timestamp()
		sim.lastPoppedTime = ev.Timestamp()
		log.WithFields(log.Fields{"time": sim.Clock, "type": eventTypeName(ev)}).Debug("event popped")
		ev.Execute(sim)
		sim.maybeReplenish()
	}

	for _, hook := range sim.simulationDoneHooks {
		hook(sim)
	}
}

// maybeReplenish pulls another slice from the workload generator if the
// furthest relevant scheduled event is within replenishWindow of the last
// popped time. Returns whether anything was pulled.
func (sim *Simulator) maybeReplenish() bool {
	if sim.workload == nil || sim.workload.Exhausted() {
		return false
	}
	if sim.queue.Len() > 0 && sim.lastRelevantTime-sim.lastPoppedTime > replenishWindow {
		return false
	}
	start := sim.lastPoppedTime
	count := 0
	for {
		ev := sim.workload.Next()
		if ev == nil {
			for _, hook := range sim.workloadOverHooks {
				hook(sim)
			}
			break
		}
		sim.Schedule(ev)
		count++
		if count >= replenishSliceCount && ev.At-start >= replenishSliceWindow {
			break
		}
	}
	return count > 0
}

// AddSFF creates and registers an SFF with the given scheduler.
func (sim *Simulator) AddSFF(id int, scheduler Scheduler) *SFF {
	sff := NewSFF(id, sim, scheduler)
	sim.sffByID[id] = sff
	return sff
}

// AddServer creates a server, registers it with sim, and appends it to the
// owning SFF's server list.
func (sim *Simulator) AddServer(id int, owner *SFF, capacity float64, policy CPUPolicy, granularity int64) *Server {
	s := NewServer(id, capacity, policy, granularity)
	sim.servers = append(sim.servers, s)
	owner.Servers = append(owner.Servers, s)
	if policy == PolicyDynamic {
		sim.Schedule(&ServerCPUShareEvent{
			BaseEvent: BaseEvent{At: 0, ID: sim.nextEventID(), Ignoring: true},
			Server:    s,
		})
	}
	return s
}

// AddSFI creates an SFI of sfType on server, registered with sff, and
// returns it.
func (sim *Simulator) AddSFI(id, sfType int, server *Server, sff *SFF) (*SFI, error) {
	sfi := NewSFI(id, sfType, sff.ID, sim)
	if err := server.AddSFI(sfi); err != nil {
		return nil, err
	}
	if err := sff.RegisterSFI(sfi); err != nil {
		return nil, err
	}
	sim.ServiceRates.register(sfi)
	sim.sfiByID[id] = sfi
	return sfi, nil
}

// AggregateServerIdleTime returns the sum of IdleTime(now) over every server.
func (sim *Simulator) AggregateServerIdleTime(now int64) int64 {
	var total int64
	for _, s := range sim.servers {
		total += s.IdleTime(now)
	}
	return total
}

// Workload returns the simulator's workload generator, feeding the CLI's
// --dry-run demand summary and --full-workload-dump sink.
func (sim *Simulator) Workload() *WorkloadGenerator { return sim.workload }

// ServerRows returns one ServerRow per server as of now, feeding the CLI's
// --stats-servers sink.
func (sim *Simulator) ServerRows(now int64) []ServerRow {
	rows := make([]ServerRow, 0, len(sim.servers))
	for _, s := range sim.servers {
		rows = append(rows, ServerRow{ID: s.ID, IdleTime: s.IdleTime(now), Horizon: sim.Horizon})
	}
	return rows
}

// AddStatsPoll schedules fn to run every interval microseconds of virtual
// time starting at 0, feeding the CLI's --stats-poll-interval sink. A
// non-positive interval is a no-op.
func (sim *Simulator) AddStatsPoll(interval int64, fn func(now int64)) {
	if interval <= 0 {
		return
	}
	sim.AddSimulationStartHook(func(s *Simulator) {
		s.Schedule(&StatsPollEvent{
			BaseEvent: BaseEvent{At: 0, ID: s.nextEventID(), Ignoring: true},
			Interval:  interval,
			Fn:        fn,
		})
	})
}
