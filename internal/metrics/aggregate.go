package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Histogram bounds in microseconds: 1µs up to 10 minutes.
	histogramLowest  = 1
	histogramHighest = 600_000_000
	histogramSigFigs = 3
)

// TimingSummary describes one merged timing series.
//
// Count, Min, Max, Mean and StdDev are exact. Percentiles are read from an
// HdrHistogram with microsecond resolution and three significant figures;
// samples outside [1µs, 10m] are clamped to the nearest bound.
type TimingSummary struct {
	Count  int64         `json:"count" yaml:"count"`
	Min    time.Duration `json:"-" yaml:"-"`
	Max    time.Duration `json:"-" yaml:"-"`
	Mean   time.Duration `json:"-" yaml:"-"`
	StdDev time.Duration `json:"-" yaml:"-"`
	P50    time.Duration `json:"-" yaml:"-"`
	P90    time.Duration `json:"-" yaml:"-"`
	P95    time.Duration `json:"-" yaml:"-"`
	P99    time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	MinMs    float64 `json:"min_ms" yaml:"min_ms"`
	MaxMs    float64 `json:"max_ms" yaml:"max_ms"`
	MeanMs   float64 `json:"mean_ms" yaml:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms" yaml:"stddev_ms"`
	P50Ms    float64 `json:"p50_ms" yaml:"p50_ms"`
	P90Ms    float64 `json:"p90_ms" yaml:"p90_ms"`
	P95Ms    float64 `json:"p95_ms" yaml:"p95_ms"`
	P99Ms    float64 `json:"p99_ms" yaml:"p99_ms"`
}

// WorkerSummary is the per-worker slice of a report.
type WorkerSummary struct {
	ID      int     `json:"id" yaml:"id"`
	Queries uint64  `json:"queries" yaml:"queries"`
	Errors  uint64  `json:"errors" yaml:"errors"`
	MeanMs  float64 `json:"mean_ms" yaml:"mean_ms"`
}

// Report is the aggregate view of a finished run.
type Report struct {
	RunID               string                   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Workers             int                      `json:"workers" yaml:"workers"`
	IterationsPerWorker int                      `json:"iterations_per_worker" yaml:"iterations_per_worker"`
	QueriesPerIteration int                      `json:"queries_per_iteration" yaml:"queries_per_iteration"`
	Duration            time.Duration            `json:"-" yaml:"-"`
	DurationMs          float64                  `json:"duration_ms" yaml:"duration_ms"`
	OpsPerSec           float64                  `json:"ops_per_sec" yaml:"ops_per_sec"`
	Interrupted         bool                     `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Counters            map[string]uint64        `json:"counters" yaml:"counters"`
	Timings             map[string]TimingSummary `json:"timings" yaml:"timings"`
	PerWorker           []WorkerSummary          `json:"per_worker,omitempty" yaml:"per_worker,omitempty"`
	Driver              map[string]int64         `json:"driver,omitempty" yaml:"driver,omitempty"`
}

// Counter returns the named merged counter.
func (r Report) Counter(name string) uint64 {
	return r.Counters[name]
}

// Timing returns the named merged timing summary.
func (r Report) Timing(name string) (TimingSummary, bool) {
	t, ok := r.Timings[name]
	return t, ok
}

// SetDuration records the run's wall time and derives throughput from the
// sample count of the named series.
func (r *Report) SetDuration(elapsed time.Duration, series string) {
	r.Duration = elapsed
	r.DurationMs = toMs(elapsed)
	r.OpsPerSec = 0
	if t, ok := r.Timings[series]; ok && elapsed > 0 && t.Count > 0 {
		r.OpsPerSec = float64(t.Count) / elapsed.Seconds()
	}
}

// Aggregate merges the state of every sink into a report.
func Aggregate(sinks ...*Sink) Report {
	snaps := make([]Snapshot, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		snaps = append(snaps, s.Snapshot())
	}
	return AggregateSnapshots(snaps...)
}

// AggregateSnapshots merges snapshots into a report. The result depends only
// on the multiset of counters and samples, not on the order of snaps.
func AggregateSnapshots(snaps ...Snapshot) Report {
	counters := make(map[string]uint64)
	series := make(map[string][]time.Duration)

	for _, snap := range snaps {
		for name, v := range snap.Counters {
			counters[name] += v
		}
		for name, spans := range snap.Timings {
			durations := series[name]
			for _, span := range spans {
				durations = append(durations, span.Duration())
			}
			series[name] = durations
		}
	}

	timings := make(map[string]TimingSummary, len(series))
	for name, durations := range series {
		timings[name] = summarize(durations)
	}

	return Report{
		Counters: counters,
		Timings:  timings,
	}
}

func summarize(durations []time.Duration) TimingSummary {
	var summary TimingSummary
	if len(durations) == 0 {
		return summary
	}

	// Sorted input keeps the floating point variance independent of merge order.
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	h := hdrhistogram.New(histogramLowest, histogramHighest, histogramSigFigs)
	var sum int64
	for _, d := range durations {
		sum += int64(d)
		us := d.Microseconds()
		if us < h.LowestTrackableValue() {
			us = h.LowestTrackableValue()
		}
		if us > h.HighestTrackableValue() {
			us = h.HighestTrackableValue()
		}
		_ = h.RecordValue(us)
	}

	count := int64(len(durations))
	mean := time.Duration(sum / count)

	var variance float64
	for _, d := range durations {
		diff := float64(d - mean)
		variance += diff * diff
	}
	variance /= float64(count)

	minD, maxD := durations[0], durations[len(durations)-1]
	// Bucket values are the highest equivalent value of a bucket, so they can
	// land outside the exact extremes.
	quantile := func(q float64) time.Duration {
		v := time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
		return min(max(v, minD), maxD)
	}

	summary = TimingSummary{
		Count:  count,
		Min:    minD,
		Max:    maxD,
		Mean:   mean,
		StdDev: time.Duration(math.Sqrt(variance)),
		P50:    quantile(50),
		P90:    quantile(90),
		P95:    quantile(95),
		P99:    quantile(99),
	}
	summary.MinMs = toMs(summary.Min)
	summary.MaxMs = toMs(summary.Max)
	summary.MeanMs = toMs(summary.Mean)
	summary.StdDevMs = toMs(summary.StdDev)
	summary.P50Ms = toMs(summary.P50)
	summary.P90Ms = toMs(summary.P90)
	summary.P95Ms = toMs(summary.P95)
	summary.P99Ms = toMs(summary.P99)
	return summary
}

// SortedCounterNames returns counter names in lexical order.
func (r Report) SortedCounterNames() []string {
	names := make([]string, 0, len(r.Counters))
	for name := range r.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortedTimingNames returns timing series names in lexical order.
func (r Report) SortedTimingNames() []string {
	names := make([]string, 0, len(r.Timings))
	for name := range r.Timings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
