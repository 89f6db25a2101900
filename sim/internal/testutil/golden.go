// Package testutil provides shared test infrastructure for the sfctss
// simulator: golden end-to-end scenario builders reused across
// sim/*_test.go.
package testutil

import "github.com/mblo/sfctss/sim"

// GoldenScenario is one seed input/expectation pair from the end-to-end
// scenario list. Unlike the teacher's flat, JSON-driven GoldenDataset (a CLI
// flag bag), a scenario here is a nested sim.RunConfig plus the seed to run
// it with — the domain's config shape doesn't flatten into a single
// CSV-friendly row, so scenarios are Go-native builder functions instead of
// a testdata/*.json fixture (see DESIGN.md).
type GoldenScenario struct {
	Name   string
	Seed   int64
	Config sim.RunConfig
}

// baseConfig returns a minimal, explicit RunConfig every scenario starts
// from and overrides, rather than sim.DefaultConfig's multi-SFF/workload
// defaults which would obscure each scenario's single variable of interest.
func baseConfig() sim.RunConfig {
	return sim.RunConfig{
		Horizon: 1_000_000,
		Topology: sim.TopologyConfig{
			ServerCapacity:      100,
			ServersPerSite:      []int{1},
			SFFPerSite:          []int{1},
			LatencyWithinSites:  []int{50},
			LatencyBetweenSites: []int{1000},
		},
		Policy: sim.PolicyConfig{
			Scheduler:          "greedy",
			CPUPolicy:          "one-at-a-time",
			Granularity:        100,
			DropAfterAttempts:  sim.DefaultACPVisitThreshold,
			MPPAllowUnderway:   1,
			MPPBatchScheduling: 1,
		},
		Workload: sim.WorkloadConfig{
			NumberOfSFTypes:            1,
			SFProcessingRate:           []float64{15},
			TrafficClasses:             [][]int{{0}},
			DeadlineScaling:            1000,
			StartNewFlowsTill:          0,
			PacketInterArrivalExpected: 1,
			PacketsPerFlow:             10,
			Lambda:                     1,
			FlowArrivalL:               1,
			FlowArrivalH:               1,
			ProbabilityStayInL:         1,
			ProbabilityStayInH:         1,
			ProbabilityFactor:          1,
		},
	}
}

// ScenarioSingleSFFRoundRobinSFIs is scenario 1: a single SFF, two SFIs of
// SF0 (each on its own server), one 10-packet flow, Greedy
// local-incremental, one-at-a-time CPU policy — expect every packet
// delivered.
func ScenarioSingleSFFRoundRobinSFIs() GoldenScenario {
	cfg := baseConfig()
	cfg.Topology.ServersPerSite = []int{2}
	cfg.Topology.NumberOfTotalSFIs = 2
	cfg.Policy.Scheduler = "greedy"
	cfg.Policy.SchedulerIncremental = true
	return GoldenScenario{Name: "single-sff-two-sfis", Seed: 1, Config: cfg}
}

// ScenarioTwoSFFOracleRemote is scenario 2: two SFFs in separate sites (so
// the 1000us between-site latency distribution governs the hop), one SFI
// of SF0 on SFF0, a flow ingressing at SFF1, Greedy oracle non-incremental —
// expect the packet to bounce SFF1 -> SFF0 -> SFI -> SFF0 -> SFF1.
func ScenarioTwoSFFOracleRemote() GoldenScenario {
	cfg := baseConfig()
	cfg.Topology.SFFPerSite = []int{1, 1}
	cfg.Topology.ServersPerSite = []int{1, 1}
	cfg.Topology.NumberOfTotalSFIs = 1
	cfg.Policy.Scheduler = "greedy"
	cfg.Policy.SchedulerOracle = true
	cfg.Workload.PacketsPerFlow = 5
	return GoldenScenario{Name: "two-sff-oracle-remote", Seed: 2, Config: cfg}
}

// ScenarioRejectAll is scenario 3: three SFFs mesh, Reject scheduler — every
// packet is rejected with zero delay.
func ScenarioRejectAll() GoldenScenario {
	cfg := baseConfig()
	cfg.Topology.SFFPerSite = []int{3}
	cfg.Topology.ServersPerSite = []int{1, 1, 1}
	cfg.Topology.NumberOfTotalSFIs = 0
	cfg.Policy.Scheduler = "reject"
	cfg.Workload.PacketsPerFlow = 100
	return GoldenScenario{Name: "reject-all", Seed: 3, Config: cfg}
}

// ScenarioMPPDeadlineWeighting is scenario 4: single SFF, MPP scheduler,
// two classes sharing a server with equal queue lengths — the class with
// the smaller deadline should win the tie via deadline weighting.
func ScenarioMPPDeadlineWeighting() GoldenScenario {
	cfg := baseConfig()
	cfg.Topology.NumberOfTotalSFIs = 2
	cfg.Policy.Scheduler = "mpp"
	cfg.Policy.SchedulerDeadlineWeight = true
	cfg.Policy.CPUPolicy = "one-at-a-time"
	cfg.Workload.NumberOfSFTypes = 2
	cfg.Workload.SFProcessingRate = []float64{15, 15}
	cfg.Workload.TrafficClasses = [][]int{{0, 1}, {0}}
	return GoldenScenario{Name: "mpp-deadline-weighting", Seed: 4, Config: cfg}
}

// ScenarioMarkovBurstiness is scenario 5: a two-state Markov workload with
// prob_stay_in_h=0.4, prob_stay_in_l=0.8, factor=1.0 — a long-run flow
// inter-arrival mean check.
func ScenarioMarkovBurstiness() GoldenScenario {
	cfg := baseConfig()
	cfg.Topology.NumberOfTotalSFIs = 1
	cfg.Workload.ProbabilityStayInL = 0.8
	cfg.Workload.ProbabilityStayInH = 0.4
	cfg.Workload.ProbabilityFactor = 1.0
	cfg.Workload.Lambda = 60
	cfg.Workload.FlowArrivalL = 120
	cfg.Workload.FlowArrivalH = 15
	cfg.Workload.StartNewFlowsTill = 2_000_000
	cfg.Horizon = 3_000_000
	return GoldenScenario{Name: "markov-burstiness", Seed: 5, Config: cfg}
}

// ScenarioACPForwardRate is scenario 6: one SFF whose local load sits
// between theta_low/theta_high — the ACP forwarded fraction should approach
// (L-theta_low)/(theta_high-theta_low) over many arrivals.
func ScenarioACPForwardRate() GoldenScenario {
	cfg := baseConfig()
	cfg.Topology.SFFPerSite = []int{2}
	cfg.Topology.ServersPerSite = []int{2}
	cfg.Topology.NumberOfTotalSFIs = 2
	cfg.Policy.AdmissionThresholdLow = 0.4
	cfg.Policy.AdmissionThresholdHigh = 0.9
	return GoldenScenario{Name: "acp-forward-rate", Seed: 6, Config: cfg}
}

// AllScenarios returns every end-to-end golden scenario.
func AllScenarios() []GoldenScenario {
	return []GoldenScenario{
		ScenarioSingleSFFRoundRobinSFIs(),
		ScenarioTwoSFFOracleRemote(),
		ScenarioRejectAll(),
		ScenarioMPPDeadlineWeighting(),
		ScenarioMarkovBurstiness(),
		ScenarioACPForwardRate(),
	}
}
