// Package metrics accumulates per-worker benchmark measurements and merges them
// into a final report.
//
// # Sinks
//
// Every worker owns exactly one [Sink]. A sink holds named counters and named
// timing series made of (start, end) pairs read from the sink's clock:
//
//	sink := metrics.NewSink(clock.Real())
//	start := sink.Now()
//	err := backend.Execute(ctx, q)
//	end := sink.Now()
//	if err == nil {
//		_ = sink.RecordTiming("query", start, end)
//		sink.IncrementCounter("query_count", 1)
//	}
//
// Sinks are not safe for concurrent use. They are written by their owning
// worker only and read after every worker has joined, so the timing path
// takes no locks.
//
// # Aggregation
//
// [Aggregate] merges any number of sinks into a [Report]. Counters are summed
// and timing series concatenated, so the result does not depend on merge
// order. Percentiles come from an HdrHistogram (see [TimingSummary]).
//
// # Live progress
//
// [Progress] is a separate, atomics-only tracker used by the progress line and
// the terminal dashboard while the run is in flight. It never feeds the final
// report.
package metrics
