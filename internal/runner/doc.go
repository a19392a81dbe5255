// Package runner is the benchmark execution engine for mongo-bench.
//
// A [Runner] starts a fixed number of workers, each owning its own
// [metrics.Sink] and its own clone of the [workload.Spec]. Every worker runs
// the full query sequence Iterations times against a shared [Backend]:
//
//	r := runner.New(runner.Options{
//		Workers:    5,
//		Iterations: 10,
//		Workload:   spec,
//		Backend:    client,
//		Logger:     logger,
//	})
//	report, err := r.Run(ctx)
//
// # Failure isolation
//
// A failed query is logged, counted under query_error_count and
// query_error.<class>, and skipped. It records no timing sample and never
// shortens the loop. Only a panic inside a worker ([WorkerFatalError]) or
// cancellation of the run context ([ErrInterrupted]) ends a run early.
//
// # Pacing
//
// A workload pause is applied between consecutive operations of a worker,
// not after its last one. An optional global rate cap
// ([Options.RatePerSecond]) is waited on before each timed operation, so the
// wait is not part of the measured latency.
//
// # Middleware
//
// Backends can be decorated:
//   - [WithTimeout]: per-query deadline
//   - [WithTracing]: one OpenTelemetry client span per query
package runner
