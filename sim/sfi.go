package sim

// ServiceRateTable holds each SF type's processing rate (packets/second with
// one cpu share), shared by every SFI of that type. Setting a rate
// retroactively refreshes the cached processing time of existing SFIs of
// that type, matching setup_sf_processing_rate_per_1s in the original.
type ServiceRateTable struct {
	rates []float64
	sfis  map[int][]*SFI // sfType -> SFIs registered with this type
}

func NewServiceRateTable(numSFTypes int) *ServiceRateTable {
	return &ServiceRateTable{rates: make([]float64, numSFTypes), sfis: make(map[int][]*SFI)}
}

func (t *ServiceRateTable) Get(sfType int) float64 { return t.rates[sfType] }

func (t *ServiceRateTable) Set(sfType int, mu float64) {
	t.rates[sfType] = mu
	for _, sfi := range t.sfis[sfType] {
		sfi.RefreshProcessingSpeed()
	}
}

func (t *ServiceRateTable) register(sfi *SFI) {
	t.sfis[sfi.SFType] = append(t.sfis[sfi.SFType], sfi)
}

// SFI is one runnable instance of a service function, hosted on a Server and
// registered with exactly one SFF.
type SFI struct {
	ID     int
	SFType int
	Server *Server
	SFFID  int
	sim    *Simulator

	Queue []*Packet
	Free  bool

	CPUShares           int64
	CachedTimeToProcess int64 // microseconds, recomputed by RefreshProcessingSpeed
	refreshDeferred     bool
}

// NewSFI creates an SFI of the given SF type, to be registered with a
// server and an SFF.
func NewSFI(id, sfType int, sffID int, sim *Simulator) *SFI {
	return &SFI{ID: id, SFType: sfType, SFFID: sffID, sim: sim, Free: true}
}

// RefreshProcessingSpeed recomputes CachedTimeToProcess from the current
// service rate and cpu shares. Under one-at-a-time the shares the server
// bookkeeps are irrelevant to the per-packet processing time (the SFI gets
// the server's full capacity whenever it runs at all); it is a no-op when
// currently zero-shared there since no packet can be mid-processing in that
// state. Other policies assert cpuShares>0 when invoked, since an SFI must
// never be asked to process with zero shares.
func (sfi *SFI) RefreshProcessingSpeed() {
	mu := sfi.sim.ServiceRates.Get(sfi.SFType)
	if sfi.Server.Policy == PolicyOneAtATime {
		if sfi.CPUShares == 0 {
			return
		}
		sfi.CachedTimeToProcess = int64(1_000_000.0 / (sfi.Server.Capacity * mu))
		return
	}
	if sfi.CPUShares <= 0 {
		panic("SFI asked to refresh processing speed with zero cpu shares")
	}
	sfi.CachedTimeToProcess = int64(1_000_000.0 / (mu * float64(sfi.CPUShares)))
}

// ExpectedProcessingTime returns the per-packet processing time this SFI
// would currently use.
func (sfi *SFI) ExpectedProcessingTime() int64 {
	if sfi.Server.Policy == PolicyOneAtATime {
		mu := sfi.sim.ServiceRates.Get(sfi.SFType)
		return int64(1_000_000.0 / (sfi.Server.Capacity * mu))
	}
	return sfi.CachedTimeToProcess
}

// ExpectedWaitingTime is queue length times the relevant per-packet
// processing time.
func (sfi *SFI) ExpectedWaitingTime() int64 {
	return int64(len(sfi.Queue)) * sfi.ExpectedProcessingTime()
}

// FreeAllServerShares zeroes this SFI's weight on its server (used when an
// SFI is about to be torn down or replaced — not currently exercised by any
// scheduler in this module, kept for symmetry with RefreshServerShares).
func (sfi *SFI) FreeAllServerShares() {
	sfi.Server.weights[sfi.ID] = 0
	sfi.CPUShares = 0
}

// RefreshServerShares pulls this SFI's current weight from its server and
// applies it, deferring the recompute if the SFI is mid-processing (the
// deferred refresh is applied by FinishedProcessing, while momentarily
// free, before the SFI re-busies itself).
func (sfi *SFI) RefreshServerShares() {
	if !sfi.Free {
		sfi.refreshDeferred = true
		return
	}
	sfi.CPUShares = sfi.Server.weightFor(sfi)
	if sfi.CPUShares > 0 {
		sfi.RefreshProcessingSpeed()
	}
}

// NotifyForProcessing is called by the server (one-at-a-time hand-off) to
// tell this SFI it has been granted exclusive processing rights.
func (sfi *SFI) NotifyForProcessing(now int64) {
	sfi.Free = false
	sfi.Server.noteWentBusy(now)
	sfi.CPUShares = sfi.Server.Granularity
	sfi.RefreshProcessingSpeed()
	sfi.internalScheduleEvent(now)
}

// EnqueuePacket appends p to the SFI's queue, marking the start of its
// queue-processing timer bucket. If the SFI is currently free and wins the
// server's grant, it immediately attempts to start processing from the head
// of its (now non-empty) queue.
func (sfi *SFI) EnqueuePacket(now int64, p *Packet) {
	p.MarkTime(now, timerQueueProcessing)
	sfi.Queue = append(sfi.Queue, p)
	if sfi.Free && sfi.Server.AskForProcessing(sfi) {
		sfi.Free = false
		sfi.Server.noteWentBusy(now)
		sfi.internalScheduleEvent(now)
	}
}

// internalScheduleEvent drops every already-timed-out packet at the head of
// the queue, then schedules processing for the first packet that would not
// time out even after its processing delay, or releases the SFI back to
// free/idle if the queue drains without finding one.
func (sfi *SFI) internalScheduleEvent(now int64) {
	for len(sfi.Queue) > 0 {
		head := sfi.Queue[0]
		exp := sfi.ExpectedProcessingTime()
		if head.Flow.QosMaxDelay < now-head.TimeIngress+exp {
			sfi.Queue = sfi.Queue[1:]
			head.MarkTime(now, timerNone)
			head.tearDown(sfi.sim, now, "timeout")
			continue
		}
		sfi.Queue = sfi.Queue[1:]
		head.MarkTime(now, timerProcessing)
		sfi.sim.Schedule(&SFIProcessEvent{
			BaseEvent: sfi.sim.nextBaseEvent(now + exp),
			SFI:       sfi,
			Packet:    head,
		})
		return
	}
	sfi.Free = true
	sfi.Server.SFIFinishesProcessing(now, sfi, sfi.sim)
}

// FinishedProcessing is invoked by SFIProcessEvent once a packet's
// processing delay elapses.
func (sfi *SFI) FinishedProcessing(now int64, p *Packet) {
	if sfi.refreshDeferred {
		sfi.refreshDeferred = false
		wasFree := sfi.Free
		sfi.Free = true
		sfi.RefreshServerShares()
		sfi.Free = wasFree
	}

	owner := sfi.sim.sffByID[sfi.SFFID]
	if sfi.Server.Policy == PolicyOneAtATime {
		sfi.Free = true
		owner.sfiFinishesProcessingOfPacket(sfi, p)
		sfi.Server.SFIFinishesProcessing(now, sfi, sfi.sim)
	} else {
		owner.sfiFinishesProcessingOfPacket(sfi, p)
		sfi.internalScheduleEvent(now)
	}

	cls := sfi.sim.SFC.Class(p.Class())
	if cls.IsLastOfSFC {
		p.ProcessingDone = true
	}
	p.SFCPosition++
	if len(p.ToBeVisited) > 0 {
		p.ToBeVisited = p.ToBeVisited[1:]
	}

	var target PathHop
	if p.PathPosition < len(p.FullPath) {
		target = p.FullPath[p.PathPosition]
	} else {
		target = PathHop{Kind: HopSFF, ID: sfi.SFFID}
	}
	p.PathPosition++
	p.MarkTime(now, timerNetwork)
	delay := sfi.sim.Props.SFIHopLatency.Next()
	switch target.Kind {
	case HopSFF:
		sfi.sim.Schedule(&NetworkDelayEvent{
			BaseEvent: sfi.sim.nextBaseEvent(now + int64(delay)),
			SrcKind:   HopSFI, SrcID: sfi.ID,
			DstKind: HopSFF, DstID: target.ID,
			Packet: p,
		})
	case HopSFI:
		sfi.sim.Schedule(&NetworkDelayEvent{
			BaseEvent: sfi.sim.nextBaseEvent(now + int64(delay)),
			SrcKind:   HopSFI, SrcID: sfi.ID,
			DstKind: HopSFI, DstID: target.ID,
			Packet: p,
		})
	}
}
