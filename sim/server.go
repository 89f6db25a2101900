package sim

// CPUPolicy selects how a Server divides its processing capacity among the
// SFIs it hosts.
type CPUPolicy int

const (
	PolicyStatic CPUPolicy = iota
	PolicyDynamic
	PolicyOneAtATime
)

func ParseCPUPolicy(s string) (CPUPolicy, error) {
	switch s {
	case "static":
		return PolicyStatic, nil
	case "dynamic":
		return PolicyDynamic, nil
	case "one-at-a-time":
		return PolicyOneAtATime, nil
	default:
		return 0, ConfigurationError{Msg: "unknown cpu_policy " + s}
	}
}

// DefaultDynamicInterval is the rebalance period for PolicyDynamic, in
// microseconds (SERVER_CPU_POLICY_DYNAMIC_INTERVAL in the original).
const DefaultDynamicInterval int64 = 1_000_000

// Server owns a set of SFIs sharing one processing capacity C, divided into
// Granularity (G) integer shares per the server's CPUPolicy.
type Server struct {
	ID              int
	Capacity        float64
	Policy          CPUPolicy
	Granularity     int64
	DynamicInterval int64

	SFIs    []*SFI
	weights map[int]int64 // SFI.ID -> weight

	lastFreeAt  int64
	idleAccum   int64
	wasFreeInit bool
}

// NewServer creates a server with the given capacity, policy, and share
// granularity G.
func NewServer(id int, capacity float64, policy CPUPolicy, granularity int64) *Server {
	di := DefaultDynamicInterval
	return &Server{
		ID:              id,
		Capacity:        capacity,
		Policy:          policy,
		Granularity:     granularity,
		DynamicInterval: di,
		weights:         make(map[int]int64),
	}
}

// IsFree reports whether every SFI this server hosts is free.
func (s *Server) IsFree() bool {
	for _, sfi := range s.SFIs {
		if !sfi.Free {
			return false
		}
	}
	return true
}

// AddSFI registers a new SFI with the server, assigning initial shares
// according to the CPU policy. Over-subscribing a static-policy server
// (granularity / numSFIs == 0) is a ConfigurationError.
func (s *Server) AddSFI(sfi *SFI) error {
	s.SFIs = append(s.SFIs, sfi)
	sfi.Server = s

	switch s.Policy {
	case PolicyStatic:
		eq := s.Granularity / int64(len(s.SFIs))
		if eq <= 0 {
			return ConfigurationError{Msg: "static CPU policy over-subscribed: granularity too small for number of SFIs"}
		}
		for _, sf := range s.SFIs {
			s.weights[sf.ID] = eq
			sf.CPUShares = eq
			sf.RefreshProcessingSpeed()
		}
	case PolicyDynamic:
		s.weights[sfi.ID] = 1
		sfi.CPUShares = 1
		s.updateDynamicCPUWeights()
	case PolicyOneAtATime:
		s.weights[sfi.ID] = 0
		sfi.CPUShares = 0
	}
	return nil
}

// AskForProcessing is called by an SFI that wants to start (or continue)
// processing. Under one-at-a-time it returns true only if the server is
// currently free; on success it strips every other SFI's weight to 0, gives
// the asker the full granularity G, notifies every SFI to recalculate
// shares, and then explicitly refreshes the asker's shares a second time so
// its zero-to-G transition is observed even if the notify-all pass deferred
// it (the asking SFI is, by construction, not "momentarily busy" at this
// point, but a second explicit call keeps this invariant true regardless of
// notify order). Under dynamic/static it always returns true.
func (s *Server) AskForProcessing(sfi *SFI) bool {
	if s.Policy != PolicyOneAtATime {
		return true
	}
	if !s.IsFree() {
		return false
	}
	for _, other := range s.SFIs {
		if other.ID == sfi.ID {
			s.weights[other.ID] = s.Granularity
		} else {
			s.weights[other.ID] = 0
		}
	}
	s.notifyAllToRecalculate()
	sfi.RefreshServerShares()
	return true
}

func (s *Server) notifyAllToRecalculate() {
	for _, sf := range s.SFIs {
		sf.RefreshServerShares()
	}
}

// weightFor returns the current weight assigned to sfi.
func (s *Server) weightFor(sfi *SFI) int64 { return s.weights[sfi.ID] }

// SFIFinishesProcessing is called when an SFI transitions from busy to free.
// Under one-at-a-time, once the server as a whole is free it shuffles its
// SFIs using the simulation RNG (not the workload RNG) and hands control to
// the first one with a non-empty queue, to avoid SF-type starvation from
// always picking the lowest id.
func (s *Server) SFIFinishesProcessing(now int64, finished *SFI, sim *Simulator) {
	if s.IsFree() {
		s.noteWentFree(now)
	}
	if s.Policy != PolicyOneAtATime || !s.IsFree() {
		return
	}
	order := make([]*SFI, len(s.SFIs))
	copy(order, s.SFIs)
	sim.Streams.Sim().Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for _, sf := range order {
		if len(sf.Queue) > 0 {
			sf.NotifyForProcessing(now)
			return
		}
	}
}

func (s *Server) noteWentFree(now int64) {
	s.lastFreeAt = now
	s.wasFreeInit = true
}

// IdleTime returns the accumulated idle time plus, if the server is
// currently idle, the time since it last went free — matching the original
// server_idle_time statistic's end-of-run adjustment for still-idle servers.
func (s *Server) IdleTime(now int64) int64 {
	total := s.idleAccum
	if s.wasFreeInit && s.IsFree() {
		total += now - s.lastFreeAt
	}
	return total
}

// noteWentBusy accumulates idle time when a server transitions from free to
// busy (called by SFI bookkeeping around AskForProcessing grants).
func (s *Server) noteWentBusy(now int64) {
	if s.wasFreeInit {
		s.idleAccum += now - s.lastFreeAt
	}
}

// updateDynamicCPUWeights rebalances shares proportional to (queueLen+1),
// guaranteeing every SFI at least weightForOneShare (one unit), with any
// leftover remainder distributed one unit at a time in SFI order.
func (s *Server) updateDynamicCPUWeights() {
	n := int64(len(s.SFIs))
	if n == 0 {
		return
	}
	weightForOneShare := int64(1)
	weightsFreeToAssign := s.Granularity - weightForOneShare*n
	if weightsFreeToAssign < 0 {
		weightsFreeToAssign = 0
	}
	var totalQueueLength int64
	for _, sf := range s.SFIs {
		totalQueueLength += int64(len(sf.Queue))
	}
	denom := totalQueueLength + n
	assigned := int64(0)
	computed := make([]int64, len(s.SFIs))
	for i, sf := range s.SFIs {
		qlen := int64(len(sf.Queue))
		w := weightForOneShare + weightsFreeToAssign*(qlen+1)/denom
		computed[i] = w
		assigned += w
	}
	remainder := s.Granularity - assigned
	for i := 0; remainder > 0 && i < len(computed); i = (i + 1) % len(computed) {
		computed[i]++
		remainder--
		if len(computed) == 0 {
			break
		}
	}
	for i, sf := range s.SFIs {
		s.weights[sf.ID] = computed[i]
		sf.CPUShares = computed[i]
		sf.RefreshProcessingSpeed()
	}
}
