// Package sim provides the core discrete-event simulation engine for sfctss,
// a service function chain traffic scheduling simulator.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - packet.go: Packet/Flow lifecycle, timer buckets, and the SFC class registry
//   - event.go, events.go: Event types that drive the simulation
//   - simulator.go: The event loop, lazy workload replenishment, and run statistics
//   - build.go: wiring a Simulator's topology/servers/SFIs/schedulers from a RunConfig
//
// # Architecture
//
// An SFC is a chain of service function (SF) types a flow's packets must
// traverse in order, each instance of which (an SFI) runs on a server behind
// a service function forwarder (SFF). The SFF owns the scheduling decision of
// which SFI instance (possibly on a remote SFF) handles each packet next:
//   - server.go: CPU-share policies (static, dynamic, one-at-a-time) a server
//     applies across the SFIs it hosts
//   - sfi.go: an SFI's processing-rate bookkeeping and packet queue
//   - sff.go: the packet receive gate, routing, and scheduler hand-off
//   - topology.go: the SFF graph, bandwidth accounting, and all-pairs shortest
//     paths
//   - scheduler.go, scheduler_*.go: the pluggable scheduling strategies
//   - acp.go: the admission-control-and-forwarding overlay consulted before
//     local scheduling
//   - rate_estimator.go: EWMA/DRE arrival-rate estimators feeding ACP and MPP
//   - workload.go: the synthetic two-state-Markov/Poisson traffic generator
//   - rng.go: the two-stream deterministic RNG architecture every sampling
//     decision draws from
//
// # Key Interfaces
//
//   - Scheduler: path-building strategy bound to one SFF
//   - rateEstimatorTicker: EWMA/DRE, driven by periodic RateEstimatorTickEvents
//   - Event: anything schedulable onto the Simulator's event queue
package sim
