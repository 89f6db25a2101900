package sim

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Named streams ===
//
// Exactly two RNG streams matter for determinism: the simulation stream
// (tie-breaks, shuffles, one-at-a-time hand-off selection, cum-weight
// sampling in schedulers and ACP) and the workload stream (Markov-state
// transitions, Poisson flow/packet inter-arrival draws). Generalizing to
// arbitrary named subsystems isn't needed here; the two streams are fixed
// and always present.
const (
	streamSim      = "sim"
	streamWorkload = "workload"
)

// Streams provides deterministic, isolated *rand.Rand instances for the
// simulation and workload streams, derived from one SimulationKey.
//
// Derivation: the simulation stream uses masterSeed XOR fnv1a64(streamSim);
// the workload stream uses masterSeed XOR fnv1a64("workload"), so it never
// collides with the simulation stream while remaining fully determined by
// the seed alone.
type Streams struct {
	key SimulationKey
	sim *rand.Rand
	wl  *rand.Rand
}

// NewStreams derives both RNG streams from a SimulationKey.
func NewStreams(key SimulationKey) *Streams {
	return &Streams{
		key: key,
		sim: rand.New(rand.NewSource(int64(key) ^ fnv1a64(streamSim))),
		wl:  rand.New(rand.NewSource(int64(key) ^ fnv1a64(streamWorkload))),
	}
}

// Key returns the SimulationKey these streams were derived from.
func (s *Streams) Key() SimulationKey { return s.key }

// Sim returns the simulation-wide RNG: tie-breaks, shuffles, and any sample
// whose outcome affects scheduling/routing behavior.
func (s *Streams) Sim() *rand.Rand { return s.sim }

// Workload returns the workload RNG: Markov-state transitions and Poisson
// inter-arrival draws. This *rand.Rand is long-lived and never recreated
// between workload-generator resumptions, which is what makes the total RNG
// stream independent of how often (or when) lazy replenishment pulls from
// it — there is nothing to snapshot or restore because the stream is never
// interrupted, only paused between calls to WorkloadGenerator.Next.
func (s *Streams) Workload() *rand.Rand { return s.wl }

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
