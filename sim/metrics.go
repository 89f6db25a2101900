package sim

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// RowSink accepts tabular rows with a header, flushed by the caller once
// done. CSVRowSink is the only implementation this package ships; a caller
// wanting a different format only has to satisfy this interface.
type RowSink interface {
	WriteRow(cells ...string) error
	Flush() error
}

// KVSink accepts (time, key, value) samples — used for the per-poll-interval
// server/queue telemetry the CLI's --stats-poll-interval flag drives.
type KVSink interface {
	WriteKV(time int64, key string, value float64) error
}

// CDFSink accumulates normalized [0,1] datapoints bucketed by (key, group),
// for the CLI's --stats-cdf-buckets output (e.g. delay distribution per
// traffic class).
type CDFSink interface {
	Add(key, group string, value float64)
}

// CSVRowSink is a RowSink backed by encoding/csv over an io.Writer, closing
// nothing itself — the caller owns the underlying file.
type CSVRowSink struct {
	w *csv.Writer
}

// NewCSVRowSink wraps w.
func NewCSVRowSink(w io.Writer) *CSVRowSink {
	return &CSVRowSink{w: csv.NewWriter(w)}
}

func (s *CSVRowSink) WriteRow(cells ...string) error { return s.w.Write(cells) }
func (s *CSVRowSink) Flush() error                   { s.w.Flush(); return s.w.Error() }

// CDFBuckets is a fixed-width histogram over [0,1], keyed by (key, group),
// used to satisfy CDFSink without pulling in a plotting dependency — this
// module only accumulates counts; rendering is left to an external tool.
type CDFBuckets struct {
	n       int
	buckets map[[2]string][]int
}

// NewCDFBuckets creates an accumulator with n buckets per (key, group).
func NewCDFBuckets(n int) *CDFBuckets {
	if n <= 0 {
		n = 20
	}
	return &CDFBuckets{n: n, buckets: make(map[[2]string][]int)}
}

// Add records one normalized datapoint under (key, group), clamping to
// [0,1] before bucketing.
func (c *CDFBuckets) Add(key, group string, value float64) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	k := [2]string{key, group}
	row, ok := c.buckets[k]
	if !ok {
		row = make([]int, c.n)
		c.buckets[k] = row
	}
	idx := int(value * float64(c.n))
	if idx >= c.n {
		idx = c.n - 1
	}
	row[idx]++
}

// WriteTo dumps every (key, group) histogram as CSV rows of
// key,group,bucket0,bucket1,...
func (c *CDFBuckets) WriteTo(sink RowSink) error {
	for k, row := range c.buckets {
		cells := make([]string, 0, len(row)+2)
		cells = append(cells, k[0], k[1])
		for _, count := range row {
			cells = append(cells, fmt.Sprintf("%d", count))
		}
		if err := sink.WriteRow(cells...); err != nil {
			return err
		}
	}
	return sink.Flush()
}

// Metrics wraps a Simulator's Stats with the aggregate-idle-time figure
// needed for a complete end-of-run report, and formats it the way the
// teacher's Metrics.Print does: a plain-text summary block.
type Metrics struct {
	Stats         *Stats
	IdleTimeTotal int64
	Horizon       int64
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Injected Packets     : %d\n", m.Stats.Injected)
	fmt.Printf("Completed Packets    : %d\n", m.Stats.Done)
	fmt.Printf("Timed Out            : %d\n", m.Stats.Timeout)
	fmt.Printf("Rejected             : %d\n", m.Stats.Reject)
	if m.Stats.Total() > 0 {
		fmt.Printf("Success Rate         : %.4f\n", m.Stats.SuccessRate())
		fmt.Printf("Reject Rate          : %.4f\n", m.Stats.RejectRate())
		fmt.Printf("Mean Service Quality : %.4f\n", m.Stats.ServiceQuality())
	}
	if m.Horizon > 0 {
		fmt.Printf("Aggregate Idle Time  : %d us (%.2f%% of horizon)\n",
			m.IdleTimeTotal, 100*float64(m.IdleTimeTotal)/float64(m.Horizon))
	}
}

// WriteOverview writes the packet counts and rates that Print shows (not the
// aggregate idle time) as one CSV row with a header, feeding the CLI's
// --stats-overview sink.
func (m *Metrics) WriteOverview(sink RowSink) error {
	if err := sink.WriteRow("injected", "done", "timeout", "reject", "success_rate", "reject_rate", "service_quality"); err != nil {
		return err
	}
	if err := sink.WriteRow(
		fmt.Sprintf("%d", m.Stats.Injected),
		fmt.Sprintf("%d", m.Stats.Done),
		fmt.Sprintf("%d", m.Stats.Timeout),
		fmt.Sprintf("%d", m.Stats.Reject),
		fmt.Sprintf("%.6f", m.Stats.SuccessRate()),
		fmt.Sprintf("%.6f", m.Stats.RejectRate()),
		fmt.Sprintf("%.2f", m.Stats.ServiceQuality()),
	); err != nil {
		return err
	}
	return sink.Flush()
}

// PacketRow is one packet's final disposition, written by the CLI's
// --stats-packets sink.
type PacketRow struct {
	ID         int64
	ClassID    int
	FinalState string
	Delay      int64
}

// WritePacketRows writes one CSV row per packet.
func WritePacketRows(sink RowSink, rows []PacketRow) error {
	if err := sink.WriteRow("packet_id", "class_id", "final_state", "delay_us"); err != nil {
		return err
	}
	for _, r := range rows {
		if err := sink.WriteRow(
			fmt.Sprintf("%d", r.ID),
			fmt.Sprintf("%d", r.ClassID),
			r.FinalState,
			fmt.Sprintf("%d", r.Delay),
		); err != nil {
			return err
		}
	}
	return sink.Flush()
}

// ServerRow is one server's utilization snapshot at the end of the run,
// feeding the CLI's --stats-servers sink.
type ServerRow struct {
	ID       int
	IdleTime int64
	Horizon  int64
}

// WriteServerRows writes one CSV row per server.
func WriteServerRows(sink RowSink, rows []ServerRow) error {
	if err := sink.WriteRow("server_id", "idle_time_us", "utilization"); err != nil {
		return err
	}
	for _, r := range rows {
		util := 0.0
		if r.Horizon > 0 {
			util = 1 - float64(r.IdleTime)/float64(r.Horizon)
		}
		if err := sink.WriteRow(fmt.Sprintf("%d", r.ID), fmt.Sprintf("%d", r.IdleTime), fmt.Sprintf("%.6f", util)); err != nil {
			return err
		}
	}
	return sink.Flush()
}

// CSVKVSink is a KVSink backed by encoding/csv, feeding the CLI's
// --stats-poll-interval time-series output.
type CSVKVSink struct {
	w *csv.Writer
}

// NewCSVKVSink wraps w, writing the (time, key, value) header immediately.
func NewCSVKVSink(w io.Writer) (*CSVKVSink, error) {
	s := &CSVKVSink{w: csv.NewWriter(w)}
	if err := s.w.Write([]string{"time", "key", "value"}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVKVSink) WriteKV(time int64, key string, value float64) error {
	if err := s.w.Write([]string{fmt.Sprintf("%d", time), key, fmt.Sprintf("%.6f", value)}); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// WriteFlowDumpRows writes one CSV row per generated flow, feeding the
// CLI's --full-workload-dump sink.
func WriteFlowDumpRows(sink RowSink, rows []FlowDump) error {
	if err := sink.WriteRow("ingress", "egress", "class_idx", "deadline_us", "start_time_us", "size"); err != nil {
		return err
	}
	for _, r := range rows {
		if err := sink.WriteRow(
			fmt.Sprintf("%d", r.Ingress),
			fmt.Sprintf("%d", r.Egress),
			fmt.Sprintf("%d", r.ClassIdx),
			fmt.Sprintf("%d", r.Deadline),
			fmt.Sprintf("%d", r.StartTime),
			fmt.Sprintf("%d", r.Size),
		); err != nil {
			return err
		}
	}
	return sink.Flush()
}

// OpenCSV creates path (truncating it if it exists) and wraps it in a
// CSVRowSink; the caller is responsible for closing the returned file after
// the sink's last Flush.
func OpenCSV(path string) (*os.File, *CSVRowSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, NewCSVRowSink(f), nil
}

// OpenCSVKV creates path (truncating it if it exists) and wraps it in a
// CSVKVSink; the caller is responsible for closing the returned file.
func OpenCSVKV(path string) (*os.File, *CSVKVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	sink, err := NewCSVKVSink(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, sink, nil
}
