package sim

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// LatencyDistribution is a finite integer sequence sampled cyclically: each
// call to Next returns the next value and wraps back to the start.
type LatencyDistribution struct {
	samples []int
	cursor  int
}

// NewLatencyDistribution creates a cyclic distribution over samples, which
// must be non-empty.
func NewLatencyDistribution(samples []int) *LatencyDistribution {
	if len(samples) == 0 {
		panic("latency distribution requires at least one sample")
	}
	cp := make([]int, len(samples))
	copy(cp, samples)
	return &LatencyDistribution{samples: cp}
}

// Next returns the next sample in cyclic order.
func (d *LatencyDistribution) Next() int {
	v := d.samples[d.cursor]
	d.cursor = (d.cursor + 1) % len(d.samples)
	return v
}

// Mean returns the arithmetic mean of n consecutive cyclic samples without
// disturbing the distribution's cursor (used for the expected per-link
// latency APSP seeds from).
func (d *LatencyDistribution) Mean(n int) float64 {
	sum := 0
	c := d.cursor
	for i := 0; i < n; i++ {
		sum += d.samples[c]
		c = (c + 1) % len(d.samples)
	}
	return float64(sum) / float64(n)
}

const apspSampleCount = 500

// Topology holds the directed SFF graph: per-edge bandwidth cap, remaining
// bandwidth, and latency-distribution id, stored as dense NxN matrices
// because the graph is small, fully materialized, and the relaxation step
// (Floyd-Warshall) is the kind of dense square-matrix numerical work a
// linear-algebra library is built for.
type Topology struct {
	numSFF     int
	frozen     bool // true once any SFF has been added and topology sizing has happened
	bwCap      *mat.Dense
	bwRemain   *mat.Dense
	distID     *mat.Dense // -1 entries mean "no direct edge"
	distTable  map[int]*LatencyDistribution

	apspReady   bool
	latency     *mat.Dense
	nextHop     *mat.Dense // -1 means "no path"
	minBW       *mat.Dense
	considerBW  bool
}

// NewTopology sizes the matrices for numSFF SFFs with ids 0..numSFF-1.
// Neither this function nor Simulator.AddSFF checks the number of SFFs
// added against numSFF; adding an SFF later raises no ConfigurationError.
func NewTopology(numSFF int) *Topology {
	t := &Topology{
		numSFF:    numSFF,
		frozen:    true,
		bwCap:     mat.NewDense(numSFF, numSFF, nil),
		bwRemain:  mat.NewDense(numSFF, numSFF, nil),
		distID:    mat.NewDense(numSFF, numSFF, nil),
		distTable: make(map[int]*LatencyDistribution),
	}
	for i := 0; i < numSFF; i++ {
		for j := 0; j < numSFF; j++ {
			t.distID.Set(i, j, -1)
		}
	}
	return t
}

// SetConsiderBW toggles whether SFF.RouteToSFF enforces per-destination FIFO
// BW gating (config: consider_link_capacity).
func (t *Topology) SetConsiderBW(v bool) { t.considerBW = v }
func (t *Topology) ConsidersBW() bool    { return t.considerBW }

// AddLatencyDistribution registers a cyclic latency-sample sequence under id.
func (t *Topology) AddLatencyDistribution(id int, samples []int) {
	t.distTable[id] = NewLatencyDistribution(samples)
}

// Connect creates a directed link a->b with the given bandwidth cap and
// latency distribution id; if bidirectional, also creates b->a with the
// same parameters (mirroring the original's setup_connection option).
func (t *Topology) Connect(a, b int, bwCap float64, distID int, bidirectional bool) error {
	if _, ok := t.distTable[distID]; !ok {
		return ConfigurationError{Msg: "link references unknown latency distribution id"}
	}
	t.bwCap.Set(a, b, bwCap)
	t.bwRemain.Set(a, b, bwCap)
	t.distID.Set(a, b, float64(distID))
	if bidirectional {
		t.bwCap.Set(b, a, bwCap)
		t.bwRemain.Set(b, a, bwCap)
		t.distID.Set(b, a, float64(distID))
	}
	return nil
}

// DelayOfConnection draws the next latency sample for the direct edge a->b.
func (t *Topology) DelayOfConnection(a, b int) int64 {
	id := int(t.distID.At(a, b))
	return int64(t.distTable[id].Next())
}

// releaseBW restores size units of bandwidth to edge a->b.
func (t *Topology) releaseBW(a, b int, size float64) {
	t.bwRemain.Set(a, b, t.bwRemain.At(a, b)+size)
}

// reserveBW deducts size units of bandwidth from edge a->b if available.
func (t *Topology) reserveBW(a, b int, size float64) bool {
	if t.bwRemain.At(a, b) < size {
		return false
	}
	t.bwRemain.Set(a, b, t.bwRemain.At(a, b)-size)
	return true
}

// InitEndToEndPaths computes expected per-distribution latencies (mean of
// apspSampleCount cyclic samples) and runs Floyd-Warshall once. It asserts
// it has not already run, matching the original's guard against resizing or
// recomputing mid-run.
func (t *Topology) InitEndToEndPaths() {
	if t.apspReady {
		panic("topology APSP already initialized")
	}
	n := t.numSFF
	t.latency = mat.NewDense(n, n, nil)
	t.nextHop = mat.NewDense(n, n, nil)
	t.minBW = mat.NewDense(n, n, nil)

	inf := math.Inf(1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			t.nextHop.Set(i, j, -1)
			if i == j {
				t.latency.Set(i, j, 0)
				continue
			}
			id := int(t.distID.At(i, j))
			if id < 0 {
				t.latency.Set(i, j, inf)
				continue
			}
			expected := t.distTable[id].Mean(apspSampleCount)
			t.latency.Set(i, j, expected)
			t.nextHop.Set(i, j, float64(j))
			t.minBW.Set(i, j, t.bwCap.At(i, j))
		}
	}

	for via := 0; via < n; via++ {
		for s := 0; s < n; s++ {
			if s == via || math.IsInf(t.latency.At(s, via), 1) {
				continue
			}
			for d := 0; d < n; d++ {
				if via == d || math.IsInf(t.latency.At(via, d), 1) {
					continue
				}
				sum := t.latency.At(s, via) + t.latency.At(via, d)
				if sum < t.latency.At(s, d) {
					t.latency.Set(s, d, sum)
					t.nextHop.Set(s, d, t.nextHop.At(s, via))
					t.minBW.Set(s, d, math.Min(t.minBW.At(s, via), minOrCap(t, via, d)))
				}
			}
		}
	}
	t.apspReady = true
}

// minOrCap returns the multi-hop min-bw already computed for via->d (itself
// possibly multi-hop), so the relaxation composes min-bw transitively.
func minOrCap(t *Topology, via, d int) float64 {
	if via == d {
		return math.Inf(1)
	}
	return t.minBW.At(via, d)
}

func (t *Topology) ensureAPSP() {
	if !t.apspReady {
		t.InitEndToEndPaths()
	}
}

// MultiHopLatency returns the APSP latency from s to d. s==d is 0 without
// triggering lazy APSP init, matching the original's get_multi_hop_latency_for.
func (t *Topology) MultiHopLatency(s, d int) int64 {
	if s == d {
		return 0
	}
	t.ensureAPSP()
	if t.bwEndToEnd(s, d) == 0 {
		panic(RoutingError{Msg: "graph is not connected"})
	}
	return int64(t.latency.At(s, d))
}

// MultiHopBW returns the APSP min bandwidth from s to d.
func (t *Topology) MultiHopBW(s, d int) float64 {
	t.ensureAPSP()
	return t.bwEndToEnd(s, d)
}

func (t *Topology) bwEndToEnd(s, d int) float64 {
	if s == d {
		return math.Inf(1)
	}
	return t.minBW.At(s, d)
}

// NextHop returns the first-hop SFF id on the shortest s->d path.
func (t *Topology) NextHop(s, d int) int {
	t.ensureAPSP()
	if t.bwEndToEnd(s, d) == 0 {
		panic(RoutingError{Msg: "graph is not connected"})
	}
	return int(t.nextHop.At(s, d))
}

// FullPathIDs returns the list of intermediate SFFs including d, exclusive
// of s, on the shortest s->d path.
func (t *Topology) FullPathIDs(s, d int) []int {
	if s == d {
		return nil
	}
	t.ensureAPSP()
	if t.bwEndToEnd(s, d) == 0 {
		panic(RoutingError{Msg: "graph is not connected"})
	}
	var path []int
	cur := s
	for cur != d {
		next := int(t.nextHop.At(cur, d))
		if next < 0 {
			panic(RoutingError{Msg: "graph is not connected"})
		}
		path = append(path, next)
		cur = next
	}
	return path
}

// NumSFF returns the number of SFFs this topology was sized for.
func (t *Topology) NumSFF() int { return t.numSFF }
