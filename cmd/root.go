// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sim "github.com/mblo/sfctss/sim"
)

var (
	configPath        string
	simulationHorizon int64
	seed              int64
	logLevel          string
	statsOut          string
	statsOverview     bool
	statsServers      bool
	statsPackets      bool
	statsCDF          bool
	statsCDFBuckets   int
	statsPollInterval int64
	strict            bool
	dryRun            bool
	fullWorkloadDump  string
)

var rootCmd = &cobra.Command{
	Use:   "sfctss",
	Short: "Discrete-event simulator for service function chain traffic scheduling",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation from a YAML config",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := loadConfig(configPath)
		if err != nil {
			logrus.Fatalf("config error: %v", err)
		}
		applyOverrides(&cfg)

		s, err := sim.BuildSimulator(cfg, seed)
		if err != nil {
			logrus.Fatalf("build error: %v", err)
		}

		if fullWorkloadDump != "" {
			if err := dumpWorkload(s, fullWorkloadDump); err != nil {
				logrus.Fatalf("workload dump error: %v", err)
			}
		}

		if dryRun {
			fmt.Println("=== Dry Run: Workload Demand ===")
			demand := s.Workload().DemandPerSF()
			for sf := 0; sf < cfg.Workload.NumberOfSFTypes; sf++ {
				fmt.Printf("SF type %d: %d packets expected\n", sf, demand[sf])
			}
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"horizon":   cfg.Horizon,
			"scheduler": cfg.Policy.Scheduler,
			"seed":      seed,
		}).Info("starting simulation")

		var packetRows []sim.PacketRow
		if statsPackets || statsCDF {
			s.AddTeardownHook(func(p *sim.Packet, state string) {
				packetRows = append(packetRows, sim.PacketRow{ID: p.ID, ClassID: p.Class(), FinalState: state, Delay: p.Delay()})
			})
		}

		var pollFile *os.File
		if statsOut != "" && statsPollInterval > 0 {
			pf, kvSink, err := sim.OpenCSVKV(statsOut + "-poll.csv")
			if err != nil {
				logrus.Fatalf("stats poll output error: %v", err)
			}
			pollFile = pf
			s.AddStatsPoll(statsPollInterval, func(now int64) {
				kvSink.WriteKV(now, "aggregate_idle_time_us", float64(s.AggregateServerIdleTime(now)))
			})
		}

		s.Run()
		if pollFile != nil {
			pollFile.Close()
		}

		m := &sim.Metrics{Stats: &s.Stats, IdleTimeTotal: s.AggregateServerIdleTime(s.Clock), Horizon: cfg.Horizon}
		m.Print()

		if err := writeStatsOutputs(s, m, packetRows); err != nil {
			logrus.Fatalf("stats output error: %v", err)
		}
		logrus.Info("simulation complete")
		return nil
	},
}

// dumpWorkload writes the simulator's full generated flow list to path
// before any events run, feeding --full-workload-dump.
func dumpWorkload(s *sim.Simulator, path string) error {
	f, sink, err := sim.OpenCSV(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return sim.WriteFlowDumpRows(sink, s.Workload().DumpFlows())
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and build a config without running any events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			logrus.Fatalf("config error: %v", err)
		}
		applyOverrides(&cfg)
		if _, err := sim.BuildSimulator(cfg, seed); err != nil {
			logrus.Fatalf("build error: %v", err)
		}
		fmt.Println("config OK")
		return nil
	},
}

func loadConfig(path string) (sim.RunConfig, error) {
	if path == "" {
		return sim.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sim.RunConfig{}, err
	}
	cfg := sim.DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return sim.RunConfig{}, err
	}
	return cfg, nil
}

func applyOverrides(cfg *sim.RunConfig) {
	if simulationHorizon > 0 {
		cfg.Horizon = simulationHorizon
	}
	cfg.Strict = cfg.Strict || strict
}

func writeStatsOutputs(s *sim.Simulator, m *sim.Metrics, packetRows []sim.PacketRow) error {
	if statsOut == "" {
		return nil
	}
	if statsOverview {
		f, sink, err := sim.OpenCSV(statsOut + "-overview.csv")
		if err != nil {
			return err
		}
		defer f.Close()
		if err := m.WriteOverview(sink); err != nil {
			return err
		}
	}
	if statsServers {
		f, sink, err := sim.OpenCSV(statsOut + "-servers.csv")
		if err != nil {
			return err
		}
		defer f.Close()
		if err := sim.WriteServerRows(sink, s.ServerRows(s.Clock)); err != nil {
			return err
		}
	}
	if statsPackets {
		f, sink, err := sim.OpenCSV(statsOut + "-packets.csv")
		if err != nil {
			return err
		}
		defer f.Close()
		if err := sim.WritePacketRows(sink, packetRows); err != nil {
			return err
		}
	}
	if statsCDF {
		f, sink, err := sim.OpenCSV(statsOut + "-cdf.csv")
		if err != nil {
			return err
		}
		defer f.Close()
		buckets := sim.NewCDFBuckets(statsCDFBuckets)
		for _, r := range packetRows {
			if r.FinalState != "done" {
				continue
			}
			deadline := s.SFC.Class(r.ClassID).Deadline
			if deadline <= 0 {
				continue
			}
			buckets.Add(fmt.Sprintf("class-%d", r.ClassID), "delay_ratio", float64(r.Delay)/float64(deadline))
		}
		if err := buckets.WriteTo(sink); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the root command, exiting nonzero on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config path (defaults to sim.DefaultConfig)")
	rootCmd.PersistentFlags().Int64Var(&simulationHorizon, "horizon", 0, "Override simulation horizon in microseconds")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 1, "Simulation seed")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "Treat scheduling failures as fatal instead of rejecting the packet")

	runCmd.Flags().StringVar(&statsOut, "stats-out", "", "Statistics output file prefix")
	runCmd.Flags().BoolVar(&statsOverview, "stats-overview", false, "Write an overview CSV to <stats-out>-overview.csv")
	runCmd.Flags().BoolVar(&statsServers, "stats-servers", false, "Write a per-server CSV to <stats-out>-servers.csv")
	runCmd.Flags().BoolVar(&statsPackets, "stats-packets", false, "Write a per-packet CSV to <stats-out>-packets.csv")
	runCmd.Flags().BoolVar(&statsCDF, "stats-cdf", false, "Write a per-class delay/deadline CDF histogram to <stats-out>-cdf.csv")
	runCmd.Flags().IntVar(&statsCDFBuckets, "stats-cdf-buckets", 20, "Number of CDF histogram buckets")
	runCmd.Flags().Int64Var(&statsPollInterval, "stats-poll-interval", 0, "Poll interval in microseconds for time-series stats to <stats-out>-poll.csv (0 disables)")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build and print the workload's per-SF-type packet demand without running any events")
	runCmd.Flags().StringVar(&fullWorkloadDump, "full-workload-dump", "", "Write every generated flow to this CSV path before running")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
