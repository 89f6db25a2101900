package sim

// TopologyConfig describes the SFF/server/link layout: sites, per-site
// server and SFF counts, server capacity, and the two latency distributions
// (within a site, between sites).
type TopologyConfig struct {
	Seed                int64     `yaml:"seed"`
	Sites               int       `yaml:"sites"`
	ServerCapacity      float64   `yaml:"server_capacity"`
	NumberOfTotalSFIs   int       `yaml:"number_of_total_sfis"`
	ServersPerSite      []int     `yaml:"number_of_servers_per_site"`
	SFFPerSite          []int     `yaml:"number_of_sff_per_site"`
	LatencyWithinSites  []int     `yaml:"latency_within_sites"`
	LatencyBetweenSites []int     `yaml:"latency_between_sites"`
	ConsiderLinkCap     bool      `yaml:"consider_link_capacity"`
	LinkBandwidth       float64   `yaml:"link_bandwidth"`
}

// PolicyConfig groups scheduler and CPU-policy selection.
type PolicyConfig struct {
	Scheduler               string  `yaml:"scheduler"`
	SchedulerIncremental    bool    `yaml:"scheduler_incremental"`
	SchedulerOracle         bool    `yaml:"scheduler_oracle"`
	SchedulerDeadlineWeight bool    `yaml:"scheduler_deadline_weighting"`
	CPUPolicy               string  `yaml:"cpu_policy"`
	Granularity             int64   `yaml:"cpu_granularity"`
	IndividualClassPerEgress bool   `yaml:"individual_class_per_egress"`
	AdmissionThresholdLow   float64 `yaml:"admission_threshold_low"`
	AdmissionThresholdHigh  float64 `yaml:"admission_threshold_high"`
	DropAfterAttempts       int     `yaml:"drop_after_scheduling_attempts"`
	MPPAllowUnderway        int     `yaml:"mpp_allow_underway"`
	MPPBatchScheduling      int     `yaml:"mpp_batch_scheduling"`
}

// WorkloadConfig groups the synthetic two-state-Markov/Poisson workload
// generator's parameters, matching SyntheticWorkloadGenerator's config dict
// in the original one-for-one.
type WorkloadConfig struct {
	StartNewFlowsTill           int64     `yaml:"workload_start_new_flows_till"`
	ProbabilityStayInL          float64   `yaml:"workload_probability_stay_in_l"`
	ProbabilityStayInH          float64   `yaml:"workload_probability_stay_in_h"`
	ProbabilityFactor           float64   `yaml:"workload_probability_factor"`
	FlowArrivalL                float64   `yaml:"workload_flow_arrival_l"`
	FlowArrivalH                float64   `yaml:"workload_flow_arrival_h"`
	Lambda                      float64   `yaml:"workload_lambda"`
	PacketInterArrivalExpected  float64   `yaml:"workload_packet_inter_arrival_expected_time"`
	PacketsPerFlow              float64   `yaml:"workload_packets_per_flow"`
	NumberOfSFTypes             int       `yaml:"number_of_sf_types"`
	SFProcessingRate            []float64 `yaml:"sf_processing_rate"`
	TrafficClasses              [][]int   `yaml:"tClasses"`
	DeadlineScaling             float64   `yaml:"workload_deadline_scaling"`
}

// deadlinePerClass computes the base (unscaled) deadline for each traffic
// class: the sum of 1_000_000/serviceRate across its SF chain.
func (c *WorkloadConfig) deadlinePerClass() []int64 {
	out := make([]int64, len(c.TrafficClasses))
	for i, tc := range c.TrafficClasses {
		var delay float64
		for _, sf := range tc {
			delay += 1_000_000.0 / c.SFProcessingRate[sf]
		}
		out[i] = int64(delay)
	}
	return out
}

// EffectiveDeadlines returns deadlinePerClass scaled by DeadlineScaling.
func (c *WorkloadConfig) EffectiveDeadlines() []int64 {
	base := c.deadlinePerClass()
	out := make([]int64, len(base))
	for i, d := range base {
		out[i] = int64(float64(d) * c.DeadlineScaling)
	}
	return out
}

// RunConfig is the top-level YAML document consumed by the CLI's run and
// validate subcommands.
type RunConfig struct {
	Horizon  int64          `yaml:"horizon"`
	Topology TopologyConfig `yaml:"topology"`
	Policy   PolicyConfig   `yaml:"policy"`
	Workload WorkloadConfig `yaml:"workload"`
	Trace    bool           `yaml:"trace"`
	Strict   bool           `yaml:"strict"`
}

// DefaultConfig mirrors SyntheticWorkloadGenerator.get_default_config,
// translated into the Go structs above.
func DefaultConfig() RunConfig {
	return RunConfig{
		Horizon: 10_000_000,
		Topology: TopologyConfig{
			Sites:               1,
			ServerCapacity:      80,
			ServersPerSite:      []int{1},
			SFFPerSite:          []int{1},
			LatencyWithinSites:  []int{50},
			LatencyBetweenSites: []int{500},
		},
		Policy: PolicyConfig{
			Scheduler:              "greedy-oracle",
			CPUPolicy:              "dynamic",
			Granularity:            100,
			AdmissionThresholdLow:  0.6,
			AdmissionThresholdHigh: 0.9,
			DropAfterAttempts:      DefaultACPVisitThreshold,
			MPPAllowUnderway:       1,
			MPPBatchScheduling:     1,
		},
		Workload: WorkloadConfig{
			StartNewFlowsTill:          10_000_000,
			ProbabilityStayInL:         0.8,
			ProbabilityStayInH:         0.4,
			ProbabilityFactor:          0.8,
			FlowArrivalL:               120,
			FlowArrivalH:               15,
			Lambda:                     60,
			PacketInterArrivalExpected: 800,
			PacketsPerFlow:             150,
			NumberOfSFTypes:            2,
			SFProcessingRate:           []float64{1_000_000.0 / 160.0 / 80.0, 1_000_000.0 / 250.0 / 80.0},
			TrafficClasses:             [][]int{{0, 1}, {0}, {1}},
			DeadlineScaling:            10,
		},
	}
}
